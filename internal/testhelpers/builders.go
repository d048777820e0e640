// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"time"

	"github.com/carecall/carecall/internal/models"
)

// ========================================
// Episode Builder
// ========================================

// EpisodeBuilder builds Episode instances for testing
type EpisodeBuilder struct {
	episode models.Episode
}

// NewEpisodeBuilder creates a new episode builder with defaults
func NewEpisodeBuilder(id string) *EpisodeBuilder {
	return &EpisodeBuilder{
		episode: models.Episode{
			EpisodeID:    id,
			PatientID:    "patient-" + id,
			UrgencyLevel: models.UrgencyRoutine,
			Symptoms: models.Symptoms{
				PrimaryComplaint: "headache",
				Duration:         "2 hours",
				Severity:         4,
				InputMethod:      "text",
			},
			CreatedAt: BaseTime,
			UpdatedAt: BaseTime,
		},
	}
}

// WithPatient sets the patient id
func (b *EpisodeBuilder) WithPatient(id string) *EpisodeBuilder {
	b.episode.PatientID = id
	return b
}

// WithUrgency sets the triage urgency level
func (b *EpisodeBuilder) WithUrgency(u models.UrgencyLevel) *EpisodeBuilder {
	b.episode.UrgencyLevel = u
	return b
}

// AsEmergency marks the episode EMERGENCY at triage
func (b *EpisodeBuilder) AsEmergency() *EpisodeBuilder {
	return b.WithUrgency(models.UrgencyEmergency)
}

// WithComplaint sets the primary complaint and severity
func (b *EpisodeBuilder) WithComplaint(complaint string, severity int) *EpisodeBuilder {
	b.episode.Symptoms.PrimaryComplaint = complaint
	b.episode.Symptoms.Severity = severity
	return b
}

// WithAssociatedSymptoms sets associated symptoms
func (b *EpisodeBuilder) WithAssociatedSymptoms(symptoms ...string) *EpisodeBuilder {
	b.episode.Symptoms.AssociatedSymptoms = symptoms
	return b
}

// CreatedAt sets the creation time
func (b *EpisodeBuilder) CreatedAt(t time.Time) *EpisodeBuilder {
	b.episode.CreatedAt = t
	b.episode.UpdatedAt = t
	return b
}

// WithLastAlertAt records a previous alert time in the emergency snapshot
func (b *EpisodeBuilder) WithLastAlertAt(t time.Time) *EpisodeBuilder {
	b.episode.EmergencyStatus = &models.EmergencySnapshot{LastAlertAt: &t}
	return b
}

// WithEmbeddedAlerts stores alerts on the episode row
func (b *EpisodeBuilder) WithEmbeddedAlerts(alerts ...models.EmergencyAlert) *EpisodeBuilder {
	b.episode.EmergencyAlerts = append(b.episode.EmergencyAlerts, alerts...)
	return b
}

// Build returns the constructed episode
func (b *EpisodeBuilder) Build() models.Episode {
	return b.episode
}

// ========================================
// Alert Builder
// ========================================

// AlertBuilder builds EmergencyAlert instances for testing
type AlertBuilder struct {
	alert models.EmergencyAlert
}

// NewAlertBuilder creates a new alert builder with defaults
func NewAlertBuilder(id, episodeID string) *AlertBuilder {
	return &AlertBuilder{
		alert: models.EmergencyAlert{
			AlertID:             id,
			EpisodeID:           episodeID,
			AlertType:           "symptom_emergency",
			Severity:            models.SeverityHigh,
			CreatedAt:           BaseTime,
			Status:              models.AlertStatusActive,
			AssignedSupervisors: []string{"supervisor-1", "supervisor-2"},
		},
	}
}

// WithSeverity sets severity and the matching default supervisor prefix
func (b *AlertBuilder) WithSeverity(s models.Severity) *AlertBuilder {
	b.alert.Severity = s
	b.alert.AssignedSupervisors = models.DefaultRoster().SupervisorsFor(s)
	return b
}

// WithStatus sets the status
func (b *AlertBuilder) WithStatus(s models.AlertStatus) *AlertBuilder {
	b.alert.Status = s
	return b
}

// WithSupervisors overrides assigned supervisors
func (b *AlertBuilder) WithSupervisors(ids ...string) *AlertBuilder {
	b.alert.AssignedSupervisors = ids
	return b
}

// CreatedAt sets the creation time
func (b *AlertBuilder) CreatedAt(t time.Time) *AlertBuilder {
	b.alert.CreatedAt = t
	return b
}

// WithResponseTime sets the recorded response minutes
func (b *AlertBuilder) WithResponseTime(minutes int) *AlertBuilder {
	b.alert.ResponseTime = &minutes
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() models.EmergencyAlert {
	return b.alert
}

// ========================================
// Escalation Builder
// ========================================

// EscalationBuilder builds EscalationProtocol instances for testing
type EscalationBuilder struct {
	esc models.EscalationProtocol
}

// NewEscalationBuilder creates a new escalation builder with defaults
func NewEscalationBuilder(id, episodeID string) *EscalationBuilder {
	r := models.DefaultRoster()
	return &EscalationBuilder{
		esc: models.EscalationProtocol{
			EscalationID:        id,
			EpisodeID:           episodeID,
			EscalationLevel:     models.EscalationLevel1,
			Reason:              "test escalation",
			CreatedAt:           BaseTime,
			Status:              models.EscalationStatusActive,
			AssignedSupervisors: r.Policy(models.EscalationLevel1).Supervisors,
			EscalationPath:      r.Path(models.EscalationLevel1),
			TimeoutMinutes:      r.TimeoutMinutes(models.EscalationLevel1, false),
		},
	}
}

// AtLevel sets the level along with its default pool, path and timeout
func (b *EscalationBuilder) AtLevel(l models.EscalationLevel) *EscalationBuilder {
	r := models.DefaultRoster()
	b.esc.EscalationLevel = l
	b.esc.AssignedSupervisors = r.Policy(l).Supervisors
	b.esc.EscalationPath = r.Path(l)
	b.esc.TimeoutMinutes = r.TimeoutMinutes(l, b.esc.UrgentResponse)
	return b
}

// WithStatus sets the status
func (b *EscalationBuilder) WithStatus(s models.EscalationStatus) *EscalationBuilder {
	b.esc.Status = s
	return b
}

// WithTimeout sets the timeout minutes
func (b *EscalationBuilder) WithTimeout(minutes int) *EscalationBuilder {
	b.esc.TimeoutMinutes = minutes
	return b
}

// Urgent marks the escalation urgent
func (b *EscalationBuilder) Urgent() *EscalationBuilder {
	b.esc.UrgentResponse = true
	return b
}

// CreatedAt sets the creation time
func (b *EscalationBuilder) CreatedAt(t time.Time) *EscalationBuilder {
	b.esc.CreatedAt = t
	return b
}

// Build returns the constructed escalation
func (b *EscalationBuilder) Build() models.EscalationProtocol {
	return b.esc
}
