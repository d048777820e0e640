package database

import (
	"time"

	"github.com/carecall/carecall/internal/models"
)

// AlertRow is an emergency alert in the dedicated alerts table.
type AlertRow struct {
	AlertID             string         `gorm:"column:alert_id;primaryKey;type:varchar(64)" json:"alert_id"`
	EpisodeID           string         `gorm:"column:episode_id;type:varchar(64);not null;index" json:"episode_id"`
	AlertType           string         `gorm:"column:alert_type;type:varchar(128);not null" json:"alert_type"`
	Severity            string         `gorm:"column:severity;type:varchar(20);not null" json:"severity"`
	Status              string         `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	AssignedSupervisors JSON[[]string] `gorm:"column:assigned_supervisors" json:"assigned_supervisors"`
	ResponseTime        *int           `gorm:"column:response_time" json:"response_time"`
	AcknowledgedAt      *time.Time     `gorm:"column:acknowledged_at" json:"acknowledged_at"`
	ResolvedAt          *time.Time     `gorm:"column:resolved_at" json:"resolved_at"`
	AdditionalInfo      string         `gorm:"column:additional_info;type:text" json:"additional_info"`
	TimeoutWarnedAt     *time.Time     `gorm:"column:timeout_warned_at" json:"timeout_warned_at"`
	CreatedAt           time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (AlertRow) TableName() string {
	return "emergency_alerts"
}

func (r *AlertRow) ToModel() models.EmergencyAlert {
	return models.EmergencyAlert{
		AlertID:             r.AlertID,
		EpisodeID:           r.EpisodeID,
		AlertType:           r.AlertType,
		Severity:            models.Severity(r.Severity),
		CreatedAt:           r.CreatedAt,
		Status:              models.AlertStatus(r.Status),
		AssignedSupervisors: r.AssignedSupervisors.Data,
		ResponseTime:        r.ResponseTime,
		AcknowledgedAt:      r.AcknowledgedAt,
		ResolvedAt:          r.ResolvedAt,
		AdditionalInfo:      r.AdditionalInfo,
		TimeoutWarnedAt:     r.TimeoutWarnedAt,
	}
}

func AlertRowFromModel(a models.EmergencyAlert) *AlertRow {
	return &AlertRow{
		AlertID:             a.AlertID,
		EpisodeID:           a.EpisodeID,
		AlertType:           a.AlertType,
		Severity:            string(a.Severity),
		Status:              string(a.Status),
		AssignedSupervisors: NewJSON(a.AssignedSupervisors),
		ResponseTime:        a.ResponseTime,
		AcknowledgedAt:      a.AcknowledgedAt,
		ResolvedAt:          a.ResolvedAt,
		AdditionalInfo:      a.AdditionalInfo,
		TimeoutWarnedAt:     a.TimeoutWarnedAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.CreatedAt,
	}
}

// EscalationRow is an escalation record in the dedicated escalations table.
type EscalationRow struct {
	EscalationID         string           `gorm:"column:escalation_id;primaryKey;type:varchar(64)" json:"escalation_id"`
	EpisodeID            string           `gorm:"column:episode_id;type:varchar(64);not null;index" json:"episode_id"`
	EscalationLevel      string           `gorm:"column:escalation_level;type:varchar(20);not null" json:"escalation_level"`
	Reason               string           `gorm:"column:reason;type:text" json:"reason"`
	TargetLevel          string           `gorm:"column:target_level;type:varchar(20)" json:"target_level"`
	UrgentResponse       bool             `gorm:"column:urgent_response;default:false" json:"urgent_response"`
	Status               string           `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	AssignedSupervisors  JSON[[]string]   `gorm:"column:assigned_supervisors" json:"assigned_supervisors"`
	EscalationPath       JSON[[][]string] `gorm:"column:escalation_path" json:"escalation_path"`
	TimeoutMinutes       int              `gorm:"column:timeout_minutes;not null" json:"timeout_minutes"`
	CompletedAt          *time.Time       `gorm:"column:completed_at" json:"completed_at"`
	FailureReason        string           `gorm:"column:failure_reason;type:text" json:"failure_reason"`
	PreviousEscalationID string           `gorm:"column:previous_escalation_id;type:varchar(64)" json:"previous_escalation_id"`
	CreatedAt            time.Time        `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (EscalationRow) TableName() string {
	return "escalation_protocols"
}

func (r *EscalationRow) ToModel() models.EscalationProtocol {
	return models.EscalationProtocol{
		EscalationID:         r.EscalationID,
		EpisodeID:            r.EpisodeID,
		EscalationLevel:      models.EscalationLevel(r.EscalationLevel),
		Reason:               r.Reason,
		TargetLevel:          models.EscalationLevel(r.TargetLevel),
		UrgentResponse:       r.UrgentResponse,
		CreatedAt:            r.CreatedAt,
		Status:               models.EscalationStatus(r.Status),
		AssignedSupervisors:  r.AssignedSupervisors.Data,
		EscalationPath:       r.EscalationPath.Data,
		TimeoutMinutes:       r.TimeoutMinutes,
		CompletedAt:          r.CompletedAt,
		FailureReason:        r.FailureReason,
		PreviousEscalationID: r.PreviousEscalationID,
	}
}

func EscalationRowFromModel(e models.EscalationProtocol) *EscalationRow {
	return &EscalationRow{
		EscalationID:         e.EscalationID,
		EpisodeID:            e.EpisodeID,
		EscalationLevel:      string(e.EscalationLevel),
		Reason:               e.Reason,
		TargetLevel:          string(e.TargetLevel),
		UrgentResponse:       e.UrgentResponse,
		Status:               string(e.Status),
		AssignedSupervisors:  NewJSON(e.AssignedSupervisors),
		EscalationPath:       NewJSON(e.EscalationPath),
		TimeoutMinutes:       e.TimeoutMinutes,
		CompletedAt:          e.CompletedAt,
		FailureReason:        e.FailureReason,
		PreviousEscalationID: e.PreviousEscalationID,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.CreatedAt,
	}
}
