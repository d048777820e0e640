package models

import (
	"strconv"
	"strings"
	"time"
)

// Symptoms is the intake summary attached to an episode.
type Symptoms struct {
	PrimaryComplaint   string   `json:"primaryComplaint"`
	Duration           string   `json:"duration,omitempty"`
	Severity           int      `json:"severity"`
	AssociatedSymptoms []string `json:"associatedSymptoms,omitempty"`
	InputMethod        string   `json:"inputMethod,omitempty"`
}

// Summary renders a short one-line description for queues and messages.
func (s Symptoms) Summary() string {
	if s.PrimaryComplaint == "" {
		return "No symptoms recorded"
	}
	var b strings.Builder
	b.WriteString(s.PrimaryComplaint)
	if s.Severity > 0 {
		b.WriteString(" (severity ")
		b.WriteString(strconv.Itoa(s.Severity))
		b.WriteString("/10)")
	}
	if len(s.AssociatedSymptoms) > 0 {
		b.WriteString(" with ")
		b.WriteString(strings.Join(s.AssociatedSymptoms, ", "))
	}
	return b.String()
}

// EmergencySnapshot is the alert engine's summary stored on the episode.
type EmergencySnapshot struct {
	LastAlertID         string         `json:"lastAlertId,omitempty"`
	LastAlertAt         *time.Time     `json:"lastAlertAt,omitempty"`
	LastAlertSeverity   Severity       `json:"lastAlertSeverity,omitempty"`
	AssignedSupervisors []string       `json:"assignedSupervisors,omitempty"`
	ResponseStatus      ResponseStatus `json:"responseStatus,omitempty"`
	ResolvedAt          *time.Time     `json:"resolvedAt,omitempty"`
	ResolvedBy          string         `json:"resolvedBy,omitempty"`
}

// EscalationSnapshot is the escalation engine's summary stored on the episode.
type EscalationSnapshot struct {
	CurrentEscalationID string          `json:"currentEscalationId,omitempty"`
	CurrentLevel        EscalationLevel `json:"currentLevel,omitempty"`
	AssignedSupervisors []string        `json:"assignedSupervisors,omitempty"`
	LastEscalatedAt     *time.Time      `json:"lastEscalatedAt,omitempty"`
}

// ResponseEvent records a supervisor action on an episode.
type ResponseEvent struct {
	SupervisorID string    `json:"supervisorId"`
	Action       string    `json:"action"`
	Notes        string    `json:"notes,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Episode is a patient's symptom-report-to-resolution lifecycle. Only the
// fields the emergency subsystem reads or appends to are modelled.
type Episode struct {
	EpisodeID    string       `json:"episodeId"`
	PatientID    string       `json:"patientId"`
	Symptoms     Symptoms     `json:"symptoms"`
	UrgencyLevel UrgencyLevel `json:"urgencyLevel"`

	HasActiveEmergency  bool       `json:"hasActiveEmergency"`
	EmergencyFlaggedAt  *time.Time `json:"emergencyFlaggedAt,omitempty"`
	HasActiveEscalation bool       `json:"hasActiveEscalation"`
	EscalationFlaggedAt *time.Time `json:"escalationFlaggedAt,omitempty"`

	EmergencyStatus    *EmergencySnapshot  `json:"emergencyStatus,omitempty"`
	EscalationStatus   *EscalationSnapshot `json:"escalationStatus,omitempty"`
	EmergencyResponses []ResponseEvent     `json:"emergencyResponses,omitempty"`

	// Fallback storage for sub-records when the dedicated tables are unavailable.
	EmergencyAlerts []EmergencyAlert     `json:"emergencyAlerts,omitempty"`
	Escalations     []EscalationProtocol `json:"escalations,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsEmergencyTriage reports whether intake classified the episode as an emergency.
func (e *Episode) IsEmergencyTriage() bool {
	return e.UrgencyLevel == UrgencyEmergency
}
