// Package store persists episodes and their alert/escalation sub-records.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecall/carecall/internal/database"
	"github.com/carecall/carecall/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when an episode or sub-record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by conditional inserts.
	ErrAlreadyExists = errors.New("record already exists")
)

// Flag selects one of the episode's active markers.
type Flag int

const (
	FlagEmergency Flag = iota
	FlagEscalation
)

func (f Flag) columns() (flag, flaggedAt string) {
	if f == FlagEscalation {
		return database.ColHasActiveEscalation, database.ColEscalationFlaggedAt
	}
	return database.ColHasActiveEmergency, database.ColEmergencyFlaggedAt
}

// EpisodeRepository reads episodes and writes the emergency-owned columns.
// It never rewrites intake-owned fields after creation.
type EpisodeRepository struct {
	db    *gorm.DB
	table string
	now   func() time.Time
}

// NewEpisodeRepository creates a repository over the named episode table.
func NewEpisodeRepository(db *gorm.DB, table string, now func() time.Time) *EpisodeRepository {
	if table == "" {
		table = database.EpisodeRow{}.TableName()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &EpisodeRepository{db: db, table: table, now: now}
}

// Table returns the physical table name.
func (r *EpisodeRepository) Table() string {
	return r.table
}

// GetEpisode looks up an episode by id.
func (r *EpisodeRepository) GetEpisode(ctx context.Context, episodeID string) (*models.Episode, error) {
	row, err := r.load(r.db.WithContext(ctx), episodeID)
	if err != nil {
		return nil, err
	}
	return row.ToModel(), nil
}

// CreateEpisode inserts an episode that must not already exist.
func (r *EpisodeRepository) CreateEpisode(ctx context.Context, ep *models.Episode) error {
	now := r.now()
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	if ep.UpdatedAt.IsZero() {
		ep.UpdatedAt = ep.CreatedAt
	}
	res := r.db.WithContext(ctx).Table(r.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(database.EpisodeRowFromModel(ep))
	if res.Error != nil {
		return fmt.Errorf("create episode %s: %w", ep.EpisodeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// QueryActiveByFlag returns episodes with the flag set, most recently flagged first.
// A limit <= 0 returns every match.
func (r *EpisodeRepository) QueryActiveByFlag(ctx context.Context, flag Flag, limit int) ([]*models.Episode, error) {
	flagCol, atCol := flag.columns()
	q := r.db.WithContext(ctx).Table(r.table).
		Where(flagCol+" = ?", true).
		Order(clause.OrderByColumn{Column: clause.Column{Name: atCol}, Desc: true})
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []database.EpisodeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query episodes by %s: %w", flagCol, err)
	}
	out := make([]*models.Episode, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToModel())
	}
	return out, nil
}

// FlagEmergency marks the episode as having an active emergency and stores the snapshot.
func (r *EpisodeRepository) FlagEmergency(ctx context.Context, episodeID string, snap *models.EmergencySnapshot, at time.Time) error {
	return r.update(r.db.WithContext(ctx), episodeID, map[string]interface{}{
		database.ColHasActiveEmergency: true,
		database.ColEmergencyFlaggedAt: at,
		database.ColEmergencyStatus:    database.NewJSON(snap),
	})
}

// SetEmergencySnapshot stores the snapshot and the active marker without
// moving the flagged-at timestamp.
func (r *EpisodeRepository) SetEmergencySnapshot(ctx context.Context, episodeID string, snap *models.EmergencySnapshot, active bool) error {
	return r.update(r.db.WithContext(ctx), episodeID, map[string]interface{}{
		database.ColHasActiveEmergency: active,
		database.ColEmergencyStatus:    database.NewJSON(snap),
	})
}

// FlagEscalation marks the episode as having an active escalation and stores the snapshot.
func (r *EpisodeRepository) FlagEscalation(ctx context.Context, episodeID string, snap *models.EscalationSnapshot, at time.Time) error {
	return r.update(r.db.WithContext(ctx), episodeID, map[string]interface{}{
		database.ColHasActiveEscalation: true,
		database.ColEscalationFlaggedAt: at,
		database.ColEscalationStatus:    database.NewJSON(snap),
	})
}

// ClearEscalationFlag drops the active-escalation marker and keeps the snapshot.
func (r *EpisodeRepository) ClearEscalationFlag(ctx context.Context, episodeID string) error {
	return r.update(r.db.WithContext(ctx), episodeID, map[string]interface{}{
		database.ColHasActiveEscalation: false,
	})
}

// AppendResponse adds a supervisor response event to the episode.
func (r *EpisodeRepository) AppendResponse(ctx context.Context, episodeID string, ev models.ResponseEvent) error {
	return r.mutate(ctx, episodeID, func(row *database.EpisodeRow) (map[string]interface{}, error) {
		list := append(row.EmergencyResponses.Data, ev)
		return map[string]interface{}{database.ColEmergencyResponses: database.NewJSON(list)}, nil
	})
}

// Touch stamps updated_at.
func (r *EpisodeRepository) Touch(ctx context.Context, episodeID string) error {
	return r.update(r.db.WithContext(ctx), episodeID, map[string]interface{}{})
}

func (r *EpisodeRepository) load(tx *gorm.DB, episodeID string) (*database.EpisodeRow, error) {
	var row database.EpisodeRow
	err := tx.Table(r.table).Where(database.ColEpisodeID+" = ?", episodeID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load episode %s: %w", episodeID, err)
	}
	return &row, nil
}

func (r *EpisodeRepository) update(tx *gorm.DB, episodeID string, fields map[string]interface{}) error {
	fields[database.ColUpdatedAt] = r.now()
	res := tx.Table(r.table).Where(database.ColEpisodeID+" = ?", episodeID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update episode %s: %w", episodeID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// mutate runs a read-modify-write of list columns inside one transaction.
// The row is read FOR UPDATE, so concurrent appends to one episode serialize.
func (r *EpisodeRepository) mutate(ctx context.Context, episodeID string, fn func(row *database.EpisodeRow) (map[string]interface{}, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.load(tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), episodeID)
		if err != nil {
			return err
		}
		fields, err := fn(row)
		if err != nil {
			return err
		}
		return r.update(tx, episodeID, fields)
	})
}
