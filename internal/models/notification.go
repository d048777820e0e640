package models

import "time"

// NotificationType discriminates outbound messages.
type NotificationType string

const (
	NotificationImmediateAlert       NotificationType = "immediate_alert"
	NotificationEscalationAlert      NotificationType = "escalation_alert"
	NotificationResponseConfirmation NotificationType = "response_confirmation"
	NotificationTimeoutWarning       NotificationType = "timeout_warning"
	NotificationStatusUpdate         NotificationType = "status_update"
)

// NotificationUrgency drives message styling and transport priority.
type NotificationUrgency string

const (
	UrgencyCritical NotificationUrgency = "critical"
	UrgencyHigh     NotificationUrgency = "high"
	UrgencyNormal   NotificationUrgency = "normal"
	UrgencyLow      NotificationUrgency = "low"
)

// NotificationMessage is a stateless outbound message. It is transmitted, never stored.
type NotificationMessage struct {
	MessageID string              `json:"messageId"`
	Type      NotificationType    `json:"type"`
	Urgency   NotificationUrgency `json:"urgency"`
	Subject   string              `json:"subject"`
	Body      string              `json:"body"`
	// Recipient is a supervisor id for targeted messages, empty for broadcasts.
	Recipient string    `json:"recipient,omitempty"`
	EpisodeID string    `json:"episodeId,omitempty"`
	PatientID string    `json:"patientId,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Alert            *EmergencyAlert     `json:"alert,omitempty"`
	Escalation       *EscalationProtocol `json:"escalation,omitempty"`
	Response         *ResponseEvent      `json:"response,omitempty"`
	MinutesRemaining *int                `json:"minutesRemaining,omitempty"`
	Stats            *EmergencyStats     `json:"stats,omitempty"`
}

// EmergencyStats is the periodic digest of open emergency work.
type EmergencyStats struct {
	ActiveAlerts        int       `json:"activeAlerts"`
	CriticalAlerts      int       `json:"criticalAlerts"`
	AverageResponseTime float64   `json:"averageResponseTime"`
	OverdueAlerts       int       `json:"overdueAlerts"`
	GeneratedAt         time.Time `json:"generatedAt"`
}
