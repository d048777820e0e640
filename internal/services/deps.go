package services

import (
	"context"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EpisodeStore is the episode persistence the engines depend on.
type EpisodeStore interface {
	GetEpisode(ctx context.Context, episodeID string) (*models.Episode, error)
	QueryActiveByFlag(ctx context.Context, flag store.Flag, limit int) ([]*models.Episode, error)
	FlagEmergency(ctx context.Context, episodeID string, snap *models.EmergencySnapshot, at time.Time) error
	SetEmergencySnapshot(ctx context.Context, episodeID string, snap *models.EmergencySnapshot, active bool) error
	FlagEscalation(ctx context.Context, episodeID string, snap *models.EscalationSnapshot, at time.Time) error
	ClearEscalationFlag(ctx context.Context, episodeID string) error
	AppendResponse(ctx context.Context, episodeID string, ev models.ResponseEvent) error
}

// Notifier delivers domain events. Implementations are best-effort: delivery
// failures are handled inside the notifier and never reach the engines.
type Notifier interface {
	SendImmediateAlert(ctx context.Context, ep *models.Episode, alert models.EmergencyAlert)
	SendEscalationAlert(ctx context.Context, ep *models.Episode, esc models.EscalationProtocol)
	SendResponseConfirmation(ctx context.Context, ep *models.Episode, ev models.ResponseEvent)
	SendTimeoutWarning(ctx context.Context, ep *models.Episode, alert models.EmergencyAlert, minutesRemaining int)
	SendEmergencyStatusUpdate(ctx context.Context, stats models.EmergencyStats)
}

type nopNotifier struct{}

func (nopNotifier) SendImmediateAlert(context.Context, *models.Episode, models.EmergencyAlert)      {}
func (nopNotifier) SendEscalationAlert(context.Context, *models.Episode, models.EscalationProtocol) {}
func (nopNotifier) SendResponseConfirmation(context.Context, *models.Episode, models.ResponseEvent) {}
func (nopNotifier) SendTimeoutWarning(context.Context, *models.Episode, models.EmergencyAlert, int) {}
func (nopNotifier) SendEmergencyStatusUpdate(context.Context, models.EmergencyStats)                {}

// Deps bundles the collaborators shared by both engines.
type Deps struct {
	Episodes EpisodeStore
	Records  store.RecordStore
	Roster   models.Roster
	Notifier Notifier
	Logger   *zap.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if len(d.Roster.Supervisors) == 0 {
		def := models.DefaultRoster()
		d.Roster.Supervisors = def.Supervisors
		if d.Roster.Levels == nil {
			d.Roster.Levels = def.Levels
		}
	}
	return d
}
