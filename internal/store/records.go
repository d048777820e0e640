package store

import (
	"context"

	"github.com/carecall/carecall/internal/models"
)

// RecordStore persists alert and escalation sub-records for episodes.
// Implementations return ErrNotFound for updates and lookups of unknown ids.
type RecordStore interface {
	Name() string

	AppendAlert(ctx context.Context, alert models.EmergencyAlert) error
	Alerts(ctx context.Context, episodeID string, openOnly bool) ([]models.EmergencyAlert, error)
	UpdateAlert(ctx context.Context, alert models.EmergencyAlert) error

	AppendEscalation(ctx context.Context, esc models.EscalationProtocol) error
	Escalations(ctx context.Context, episodeID string, openOnly bool) ([]models.EscalationProtocol, error)
	GetEscalation(ctx context.Context, escalationID string) (*models.EscalationProtocol, error)
	UpdateEscalation(ctx context.Context, esc models.EscalationProtocol) error
	// OpenEscalations lists active and in-progress escalations across all episodes.
	OpenEscalations(ctx context.Context) ([]models.EscalationProtocol, error)
}

var openAlertStatuses = []string{
	string(models.AlertStatusActive),
	string(models.AlertStatusAcknowledged),
}

var openEscalationStatuses = []string{
	string(models.EscalationStatusActive),
	string(models.EscalationStatusInProgress),
}

func filterAlerts(alerts []models.EmergencyAlert, openOnly bool) []models.EmergencyAlert {
	out := make([]models.EmergencyAlert, 0, len(alerts))
	for _, a := range alerts {
		if openOnly && !a.Status.IsOpen() {
			continue
		}
		out = append(out, a)
	}
	return out
}

func filterEscalations(escalations []models.EscalationProtocol, openOnly bool) []models.EscalationProtocol {
	out := make([]models.EscalationProtocol, 0, len(escalations))
	for _, e := range escalations {
		if openOnly && !e.Status.IsOpen() {
			continue
		}
		out = append(out, e)
	}
	return out
}
