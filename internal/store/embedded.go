package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carecall/carecall/internal/database"
	"github.com/carecall/carecall/internal/models"
)

// EmbeddedStore keeps sub-records as list fields on the episode row itself.
type EmbeddedStore struct {
	episodes *EpisodeRepository
}

// NewEmbeddedStore stores sub-records through the episode repository.
func NewEmbeddedStore(episodes *EpisodeRepository) *EmbeddedStore {
	return &EmbeddedStore{episodes: episodes}
}

func (s *EmbeddedStore) Name() string { return "embedded" }

func (s *EmbeddedStore) AppendAlert(ctx context.Context, alert models.EmergencyAlert) error {
	return s.episodes.mutate(ctx, alert.EpisodeID, func(row *database.EpisodeRow) (map[string]interface{}, error) {
		list := append(row.EmergencyAlerts.Data, alert)
		return map[string]interface{}{database.ColEmergencyAlerts: database.NewJSON(list)}, nil
	})
}

func (s *EmbeddedStore) Alerts(ctx context.Context, episodeID string, openOnly bool) ([]models.EmergencyAlert, error) {
	ep, err := s.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return filterAlerts(ep.EmergencyAlerts, openOnly), nil
}

func (s *EmbeddedStore) UpdateAlert(ctx context.Context, alert models.EmergencyAlert) error {
	return s.episodes.mutate(ctx, alert.EpisodeID, func(row *database.EpisodeRow) (map[string]interface{}, error) {
		list := row.EmergencyAlerts.Data
		for i := range list {
			if list[i].AlertID == alert.AlertID {
				list[i] = alert
				return map[string]interface{}{database.ColEmergencyAlerts: database.NewJSON(list)}, nil
			}
		}
		return nil, ErrNotFound
	})
}

func (s *EmbeddedStore) AppendEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	return s.episodes.mutate(ctx, esc.EpisodeID, func(row *database.EpisodeRow) (map[string]interface{}, error) {
		list := append(row.Escalations.Data, esc)
		return map[string]interface{}{database.ColEscalations: database.NewJSON(list)}, nil
	})
}

func (s *EmbeddedStore) Escalations(ctx context.Context, episodeID string, openOnly bool) ([]models.EscalationProtocol, error) {
	ep, err := s.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return filterEscalations(ep.Escalations, openOnly), nil
}

// GetEscalation finds the episode whose embedded list holds the id.
func (s *EmbeddedStore) GetEscalation(ctx context.Context, escalationID string) (*models.EscalationProtocol, error) {
	db := s.episodes.db.WithContext(ctx)
	q := db.Table(s.episodes.table)
	if db.Dialector.Name() == database.DriverPostgres {
		needle, err := json.Marshal([]map[string]string{{"escalationId": escalationID}})
		if err != nil {
			return nil, err
		}
		q = q.Where(database.ColEscalations+" @> ?::jsonb", string(needle))
	} else {
		id, err := json.Marshal(escalationID)
		if err != nil {
			return nil, err
		}
		q = q.Where(database.ColEscalations+" LIKE ?", `%"escalationId":`+string(id)+`%`)
	}

	var rows []database.EpisodeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("search embedded escalations: %w", err)
	}
	for i := range rows {
		for _, e := range rows[i].Escalations.Data {
			if e.EscalationID == escalationID {
				found := e
				return &found, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *EmbeddedStore) UpdateEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	return s.episodes.mutate(ctx, esc.EpisodeID, func(row *database.EpisodeRow) (map[string]interface{}, error) {
		list := row.Escalations.Data
		for i := range list {
			if list[i].EscalationID == esc.EscalationID {
				list[i] = esc
				return map[string]interface{}{database.ColEscalations: database.NewJSON(list)}, nil
			}
		}
		return nil, ErrNotFound
	})
}

// OpenEscalations scans episodes carrying the active-escalation flag.
func (s *EmbeddedStore) OpenEscalations(ctx context.Context) ([]models.EscalationProtocol, error) {
	eps, err := s.episodes.QueryActiveByFlag(ctx, FlagEscalation, 0)
	if err != nil {
		return nil, err
	}
	var out []models.EscalationProtocol
	for _, ep := range eps {
		out = append(out, filterEscalations(ep.Escalations, true)...)
	}
	return out, nil
}
