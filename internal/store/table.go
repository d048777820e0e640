package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecall/carecall/internal/database"
	"github.com/carecall/carecall/internal/models"
	"gorm.io/gorm"
)

// TableStore keeps sub-records in their dedicated tables.
type TableStore struct {
	db          *gorm.DB
	alerts      string
	escalations string
	now         func() time.Time
}

// NewTableStore creates a store over the named alert and escalation tables.
func NewTableStore(db *gorm.DB, alertsTable, escalationsTable string, now func() time.Time) *TableStore {
	t := database.Tables{Alerts: alertsTable, Escalations: escalationsTable}.WithDefaults()
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TableStore{db: db, alerts: t.Alerts, escalations: t.Escalations, now: now}
}

func (s *TableStore) Name() string { return "table" }

func (s *TableStore) AppendAlert(ctx context.Context, alert models.EmergencyAlert) error {
	if err := s.db.WithContext(ctx).Table(s.alerts).Create(database.AlertRowFromModel(alert)).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", s.alerts, err)
	}
	return nil
}

func (s *TableStore) Alerts(ctx context.Context, episodeID string, openOnly bool) ([]models.EmergencyAlert, error) {
	q := s.db.WithContext(ctx).Table(s.alerts).Where("episode_id = ?", episodeID)
	if openOnly {
		q = q.Where("status IN ?", openAlertStatuses)
	}
	var rows []database.AlertRow
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", s.alerts, err)
	}
	out := make([]models.EmergencyAlert, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToModel())
	}
	return out, nil
}

func (s *TableStore) UpdateAlert(ctx context.Context, alert models.EmergencyAlert) error {
	res := s.db.WithContext(ctx).Table(s.alerts).
		Where("alert_id = ?", alert.AlertID).
		Updates(map[string]interface{}{
			"status":            string(alert.Status),
			"response_time":     alert.ResponseTime,
			"acknowledged_at":   alert.AcknowledgedAt,
			"resolved_at":       alert.ResolvedAt,
			"timeout_warned_at": alert.TimeoutWarnedAt,
			"updated_at":        s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", s.alerts, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TableStore) AppendEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	if err := s.db.WithContext(ctx).Table(s.escalations).Create(database.EscalationRowFromModel(esc)).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", s.escalations, err)
	}
	return nil
}

func (s *TableStore) Escalations(ctx context.Context, episodeID string, openOnly bool) ([]models.EscalationProtocol, error) {
	q := s.db.WithContext(ctx).Table(s.escalations).Where("episode_id = ?", episodeID)
	if openOnly {
		q = q.Where("status IN ?", openEscalationStatuses)
	}
	return s.findEscalations(q)
}

func (s *TableStore) GetEscalation(ctx context.Context, escalationID string) (*models.EscalationProtocol, error) {
	var row database.EscalationRow
	err := s.db.WithContext(ctx).Table(s.escalations).Where("escalation_id = ?", escalationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.escalations, err)
	}
	esc := row.ToModel()
	return &esc, nil
}

func (s *TableStore) UpdateEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	res := s.db.WithContext(ctx).Table(s.escalations).
		Where("escalation_id = ?", esc.EscalationID).
		Updates(map[string]interface{}{
			"status":         string(esc.Status),
			"completed_at":   esc.CompletedAt,
			"failure_reason": esc.FailureReason,
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", s.escalations, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TableStore) OpenEscalations(ctx context.Context) ([]models.EscalationProtocol, error) {
	q := s.db.WithContext(ctx).Table(s.escalations).Where("status IN ?", openEscalationStatuses)
	return s.findEscalations(q)
}

func (s *TableStore) findEscalations(q *gorm.DB) ([]models.EscalationProtocol, error) {
	var rows []database.EscalationRow
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", s.escalations, err)
	}
	out := make([]models.EscalationProtocol, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToModel())
	}
	return out, nil
}
