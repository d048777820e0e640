package models

import "time"

// AlertStatus is the lifecycle state of an emergency alert.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// CanTransitionTo reports whether an alert may move from s to next.
// resolved is terminal.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertStatusActive:
		return next == AlertStatusAcknowledged || next == AlertStatusResolved
	case AlertStatusAcknowledged:
		return next == AlertStatusResolved
	default:
		return false
	}
}

// IsOpen is true for alerts that still need attention (active or acknowledged).
func (s AlertStatus) IsOpen() bool {
	return s == AlertStatusActive || s == AlertStatusAcknowledged
}

// ResponseStatus is the episode-level summary derived from its open alerts.
type ResponseStatus string

const (
	ResponseStatusPending      ResponseStatus = "pending"
	ResponseStatusAcknowledged ResponseStatus = "acknowledged"
	ResponseStatusResolved     ResponseStatus = "resolved"
)

// EmergencyAlert is one emergency notification cycle for an episode.
type EmergencyAlert struct {
	AlertID             string      `json:"alertId"`
	EpisodeID           string      `json:"episodeId"`
	AlertType           string      `json:"alertType"`
	Severity            Severity    `json:"severity"`
	CreatedAt           time.Time   `json:"createdAt"`
	Status              AlertStatus `json:"status"`
	AssignedSupervisors []string    `json:"assignedSupervisors"`
	ResponseTime        *int        `json:"responseTime,omitempty"`
	AcknowledgedAt      *time.Time  `json:"acknowledgedAt,omitempty"`
	ResolvedAt          *time.Time  `json:"resolvedAt,omitempty"`
	AdditionalInfo      string      `json:"additionalInfo,omitempty"`
	// TimeoutWarnedAt is set once the response-target warning has gone out.
	TimeoutWarnedAt *time.Time `json:"timeoutWarnedAt,omitempty"`
}

// WaitMinutes is the whole number of minutes since the alert was raised.
func (a EmergencyAlert) WaitMinutes(now time.Time) int {
	return WholeMinutesBetween(a.CreatedAt, now)
}

// DeriveResponseStatus summarizes a set of open alerts:
// none or all resolved -> resolved, any acknowledged -> acknowledged, otherwise pending.
func DeriveResponseStatus(alerts []EmergencyAlert) ResponseStatus {
	if len(alerts) == 0 {
		return ResponseStatusResolved
	}
	allResolved := true
	anyAcknowledged := false
	for _, a := range alerts {
		if a.Status != AlertStatusResolved {
			allResolved = false
		}
		if a.Status == AlertStatusAcknowledged {
			anyAcknowledged = true
		}
	}
	switch {
	case allResolved:
		return ResponseStatusResolved
	case anyAcknowledged:
		return ResponseStatusAcknowledged
	default:
		return ResponseStatusPending
	}
}

// LatestAlert returns the alert with the newest CreatedAt, or nil.
func LatestAlert(alerts []EmergencyAlert) *EmergencyAlert {
	var latest *EmergencyAlert
	for i := range alerts {
		if latest == nil || alerts[i].CreatedAt.After(latest.CreatedAt) {
			latest = &alerts[i]
		}
	}
	return latest
}

// EmergencyQueueItem is a read-only projection of an open alert for responders.
type EmergencyQueueItem struct {
	EpisodeID           string      `json:"episodeId"`
	PatientID           string      `json:"patientId"`
	AlertID             string      `json:"alertId"`
	Severity            Severity    `json:"severity"`
	CreatedAt           time.Time   `json:"createdAt"`
	WaitTime            int         `json:"waitTime"`
	AssignedSupervisors []string    `json:"assignedSupervisors"`
	SymptomSummary      string      `json:"symptomSummary"`
	Status              AlertStatus `json:"status"`
}

// WholeMinutesBetween floors the elapsed time to minutes, never negative.
func WholeMinutesBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
