package store

import (
	"context"
	"errors"

	"github.com/carecall/carecall/internal/models"
	"go.uber.org/zap"
)

// FallbackStore writes to a primary store and silently falls back to a
// secondary one when the primary fails. Reads merge both, primary copy first,
// so a record is visible no matter which store accepted it.
type FallbackStore struct {
	primary   RecordStore
	secondary RecordStore
	episodes  *EpisodeRepository
	log       *zap.Logger
}

// NewFallbackStore composes primary and secondary. Successful primary writes
// stamp the episode's updated_at through episodes.
func NewFallbackStore(primary, secondary RecordStore, episodes *EpisodeRepository, log *zap.Logger) *FallbackStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FallbackStore{primary: primary, secondary: secondary, episodes: episodes, log: log}
}

// New wires the standard dedicated-table-then-episode-row composition.
func New(episodes *EpisodeRepository, tables *TableStore, log *zap.Logger) *FallbackStore {
	return NewFallbackStore(tables, NewEmbeddedStore(episodes), episodes, log)
}

func (s *FallbackStore) Name() string {
	return s.primary.Name() + "+" + s.secondary.Name()
}

func (s *FallbackStore) fellBack(op, kind, episodeID string, err error) {
	s.log.Warn("storage fallback",
		zap.String("op", op),
		zap.String("kind", kind),
		zap.String("episode_id", episodeID),
		zap.String("primary", s.primary.Name()),
		zap.String("secondary", s.secondary.Name()),
		zap.Error(err))
}

func (s *FallbackStore) AppendAlert(ctx context.Context, alert models.EmergencyAlert) error {
	err := s.primary.AppendAlert(ctx, alert)
	if err == nil {
		return s.episodes.Touch(ctx, alert.EpisodeID)
	}
	s.fellBack("append", "alert", alert.EpisodeID, err)
	return s.secondary.AppendAlert(ctx, alert)
}

func (s *FallbackStore) Alerts(ctx context.Context, episodeID string, openOnly bool) ([]models.EmergencyAlert, error) {
	fromPrimary, err := s.primary.Alerts(ctx, episodeID, openOnly)
	if err != nil {
		s.fellBack("query", "alert", episodeID, err)
		fromPrimary = nil
	}
	fromSecondary, err := s.secondary.Alerts(ctx, episodeID, openOnly)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(fromPrimary))
	out := make([]models.EmergencyAlert, 0, len(fromPrimary)+len(fromSecondary))
	for _, a := range fromPrimary {
		seen[a.AlertID] = struct{}{}
		out = append(out, a)
	}
	for _, a := range fromSecondary {
		if _, dup := seen[a.AlertID]; !dup {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FallbackStore) UpdateAlert(ctx context.Context, alert models.EmergencyAlert) error {
	err := s.primary.UpdateAlert(ctx, alert)
	if err == nil {
		return s.episodes.Touch(ctx, alert.EpisodeID)
	}
	if !errors.Is(err, ErrNotFound) {
		s.fellBack("update", "alert", alert.EpisodeID, err)
	}
	return s.secondary.UpdateAlert(ctx, alert)
}

func (s *FallbackStore) AppendEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	err := s.primary.AppendEscalation(ctx, esc)
	if err == nil {
		return s.episodes.Touch(ctx, esc.EpisodeID)
	}
	s.fellBack("append", "escalation", esc.EpisodeID, err)
	return s.secondary.AppendEscalation(ctx, esc)
}

func (s *FallbackStore) Escalations(ctx context.Context, episodeID string, openOnly bool) ([]models.EscalationProtocol, error) {
	fromPrimary, err := s.primary.Escalations(ctx, episodeID, openOnly)
	if err != nil {
		s.fellBack("query", "escalation", episodeID, err)
		fromPrimary = nil
	}
	fromSecondary, err := s.secondary.Escalations(ctx, episodeID, openOnly)
	if err != nil {
		return nil, err
	}
	return mergeEscalations(fromPrimary, fromSecondary), nil
}

func (s *FallbackStore) GetEscalation(ctx context.Context, escalationID string) (*models.EscalationProtocol, error) {
	esc, err := s.primary.GetEscalation(ctx, escalationID)
	if err == nil {
		return esc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.fellBack("get", "escalation", "", err)
	}
	return s.secondary.GetEscalation(ctx, escalationID)
}

func (s *FallbackStore) UpdateEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	err := s.primary.UpdateEscalation(ctx, esc)
	if err == nil {
		return s.episodes.Touch(ctx, esc.EpisodeID)
	}
	if !errors.Is(err, ErrNotFound) {
		s.fellBack("update", "escalation", esc.EpisodeID, err)
	}
	return s.secondary.UpdateEscalation(ctx, esc)
}

func (s *FallbackStore) OpenEscalations(ctx context.Context) ([]models.EscalationProtocol, error) {
	fromPrimary, err := s.primary.OpenEscalations(ctx)
	if err != nil {
		s.fellBack("sweep", "escalation", "", err)
		fromPrimary = nil
	}
	fromSecondary, err := s.secondary.OpenEscalations(ctx)
	if err != nil {
		return nil, err
	}
	return mergeEscalations(fromPrimary, fromSecondary), nil
}

func mergeEscalations(primary, secondary []models.EscalationProtocol) []models.EscalationProtocol {
	seen := make(map[string]struct{}, len(primary))
	out := make([]models.EscalationProtocol, 0, len(primary)+len(secondary))
	for _, e := range primary {
		seen[e.EscalationID] = struct{}{}
		out = append(out, e)
	}
	for _, e := range secondary {
		if _, dup := seen[e.EscalationID]; !dup {
			out = append(out, e)
		}
	}
	return out
}
