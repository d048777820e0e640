package database

import (
	"time"

	"github.com/carecall/carecall/internal/models"
)

// Column names shared by the store's targeted updates.
const (
	ColEpisodeID           = "episode_id"
	ColHasActiveEmergency  = "has_active_emergency"
	ColEmergencyFlaggedAt  = "emergency_flagged_at"
	ColHasActiveEscalation = "has_active_escalation"
	ColEscalationFlaggedAt = "escalation_flagged_at"
	ColEmergencyStatus     = "emergency_status"
	ColEscalationStatus    = "escalation_status"
	ColEmergencyResponses  = "emergency_responses"
	ColEmergencyAlerts     = "emergency_alerts"
	ColEscalations         = "escalations"
	ColUpdatedAt           = "updated_at"
)

// EpisodeRow is the persisted episode. Core intake fields are owned elsewhere;
// the emergency subsystem only writes the flag, snapshot and list columns.
type EpisodeRow struct {
	EpisodeID    string                `gorm:"column:episode_id;primaryKey;type:varchar(64)" json:"episode_id"`
	PatientID    string                `gorm:"column:patient_id;type:varchar(64);index" json:"patient_id"`
	Symptoms     JSON[models.Symptoms] `gorm:"column:symptoms" json:"symptoms"`
	UrgencyLevel string                `gorm:"column:urgency_level;type:varchar(16)" json:"urgency_level"`

	HasActiveEmergency  bool       `gorm:"column:has_active_emergency;default:false;index" json:"has_active_emergency"`
	EmergencyFlaggedAt  *time.Time `gorm:"column:emergency_flagged_at" json:"emergency_flagged_at"`
	HasActiveEscalation bool       `gorm:"column:has_active_escalation;default:false;index" json:"has_active_escalation"`
	EscalationFlaggedAt *time.Time `gorm:"column:escalation_flagged_at" json:"escalation_flagged_at"`

	EmergencyStatus    JSON[*models.EmergencySnapshot]   `gorm:"column:emergency_status" json:"emergency_status"`
	EscalationStatus   JSON[*models.EscalationSnapshot]  `gorm:"column:escalation_status" json:"escalation_status"`
	EmergencyResponses JSON[[]models.ResponseEvent]      `gorm:"column:emergency_responses" json:"emergency_responses"`
	EmergencyAlerts    JSON[[]models.EmergencyAlert]     `gorm:"column:emergency_alerts" json:"emergency_alerts"`
	Escalations        JSON[[]models.EscalationProtocol] `gorm:"column:escalations" json:"escalations"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (EpisodeRow) TableName() string {
	return "episodes"
}

// ToModel converts the row to the domain episode.
func (r *EpisodeRow) ToModel() *models.Episode {
	return &models.Episode{
		EpisodeID:           r.EpisodeID,
		PatientID:           r.PatientID,
		Symptoms:            r.Symptoms.Data,
		UrgencyLevel:        models.UrgencyLevel(r.UrgencyLevel),
		HasActiveEmergency:  r.HasActiveEmergency,
		EmergencyFlaggedAt:  r.EmergencyFlaggedAt,
		HasActiveEscalation: r.HasActiveEscalation,
		EscalationFlaggedAt: r.EscalationFlaggedAt,
		EmergencyStatus:     r.EmergencyStatus.Data,
		EscalationStatus:    r.EscalationStatus.Data,
		EmergencyResponses:  r.EmergencyResponses.Data,
		EmergencyAlerts:     r.EmergencyAlerts.Data,
		Escalations:         r.Escalations.Data,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// EpisodeRowFromModel is the inverse of ToModel.
func EpisodeRowFromModel(e *models.Episode) *EpisodeRow {
	return &EpisodeRow{
		EpisodeID:           e.EpisodeID,
		PatientID:           e.PatientID,
		Symptoms:            NewJSON(e.Symptoms),
		UrgencyLevel:        string(e.UrgencyLevel),
		HasActiveEmergency:  e.HasActiveEmergency,
		EmergencyFlaggedAt:  e.EmergencyFlaggedAt,
		HasActiveEscalation: e.HasActiveEscalation,
		EscalationFlaggedAt: e.EscalationFlaggedAt,
		EmergencyStatus:     NewJSON(e.EmergencyStatus),
		EscalationStatus:    NewJSON(e.EscalationStatus),
		EmergencyResponses:  NewJSON(e.EmergencyResponses),
		EmergencyAlerts:     NewJSON(e.EmergencyAlerts),
		Escalations:         NewJSON(e.Escalations),
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}
