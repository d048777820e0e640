package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/store"
	"github.com/carecall/carecall/internal/utils"
	"go.uber.org/zap"
)

// EscalationRequest asks for a new escalation on an episode.
type EscalationRequest struct {
	EpisodeID string
	Reason    string
	// TargetLevel is honoured when it names a valid level and ignored otherwise.
	TargetLevel    string
	UrgentResponse bool
	// PreviousEscalationID links re-escalations created by the timeout sweep.
	PreviousEscalationID string
}

// EscalationResult is what processing an escalation produced.
type EscalationResult struct {
	EscalationID         string
	Episode              *models.Episode
	Escalation           models.EscalationProtocol
	TargetLevel          models.EscalationLevel
	AssignedSupervisors  []string
	ExpectedResponseTime int
}

// EscalationService is the escalation protocol engine. It owns escalation lifecycles.
type EscalationService struct {
	episodes EpisodeStore
	records  store.RecordStore
	roster   models.Roster
	notifier Notifier
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(deps Deps) *EscalationService {
	deps = deps.withDefaults()
	return &EscalationService{
		episodes: deps.Episodes,
		records:  deps.Records,
		roster:   deps.Roster,
		notifier: deps.Notifier,
		now:      deps.Now,
		newID:    deps.NewID,
		log:      deps.Logger.Named("escalations"),
	}
}

// AssessEscalationNeed is the advisory assessment at the service's clock.
func (s *EscalationService) AssessEscalationNeed(ep *models.Episode) models.EscalationAssessment {
	return AssessEscalationNeed(ep, s.roster, s.now())
}

// ProcessEscalation creates a new escalation record at the requested level,
// or one above the episode's highest open escalation.
func (s *EscalationService) ProcessEscalation(ctx context.Context, req EscalationRequest) (*EscalationResult, error) {
	ep, err := s.episodes.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		return nil, episodeNotFound(err, req.EpisodeID)
	}

	level, explicit := models.ParseEscalationLevel(req.TargetLevel)
	if !explicit {
		open, err := s.records.Escalations(ctx, ep.EpisodeID, true)
		if err != nil {
			return nil, fmt.Errorf("load active escalations: %w", err)
		}
		level = models.HighestLevel(open).Next()
	}

	now := s.now()
	esc := models.EscalationProtocol{
		EscalationID:         s.newID(),
		EpisodeID:            ep.EpisodeID,
		EscalationLevel:      level,
		Reason:               utils.SanitizeFreeText(req.Reason, utils.MaxNoteLength).Text,
		UrgentResponse:       req.UrgentResponse,
		CreatedAt:            now,
		Status:               models.EscalationStatusActive,
		EscalationPath:       s.roster.Path(level),
		TimeoutMinutes:       s.roster.TimeoutMinutes(level, req.UrgentResponse),
		PreviousEscalationID: req.PreviousEscalationID,
	}
	if explicit {
		esc.TargetLevel = level
	}
	esc.AssignedSupervisors = append([]string(nil), esc.EscalationPath[0]...)

	if err := s.records.AppendEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("store escalation: %w", err)
	}

	snap := &models.EscalationSnapshot{
		CurrentEscalationID: esc.EscalationID,
		CurrentLevel:        level,
		AssignedSupervisors: esc.AssignedSupervisors,
		LastEscalatedAt:     &now,
	}
	if err := s.episodes.FlagEscalation(ctx, ep.EpisodeID, snap, now); err != nil {
		return nil, fmt.Errorf("update escalation snapshot: %w", episodeNotFound(err, ep.EpisodeID))
	}
	ep.HasActiveEscalation = true
	ep.EscalationFlaggedAt = &now
	ep.EscalationStatus = snap
	ep.UpdatedAt = now

	s.log.Info("escalation created",
		zap.String("episode_id", ep.EpisodeID),
		zap.String("escalation_id", esc.EscalationID),
		zap.String("level", string(level)),
		zap.Bool("urgent", req.UrgentResponse),
		zap.Int("timeout_minutes", esc.TimeoutMinutes))

	s.notifier.SendEscalationAlert(ctx, ep, esc)

	return &EscalationResult{
		EscalationID:         esc.EscalationID,
		Episode:              ep,
		Escalation:           esc,
		TargetLevel:          level,
		AssignedSupervisors:  esc.AssignedSupervisors,
		ExpectedResponseTime: esc.TimeoutMinutes,
	}, nil
}

// UpdateEscalationStatus moves an escalation along its lifecycle. Failing
// requires a reason. Closing the episode's last open escalation clears its flag.
func (s *EscalationService) UpdateEscalationStatus(ctx context.Context, escalationID string, status models.EscalationStatus, failureReason string) (*models.EscalationProtocol, error) {
	switch status {
	case models.EscalationStatusActive, models.EscalationStatusInProgress,
		models.EscalationStatusCompleted, models.EscalationStatusFailed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	esc, err := s.records.GetEscalation(ctx, escalationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Resource: "Escalation", ID: escalationID}
	}
	if err != nil {
		return nil, fmt.Errorf("load escalation: %w", err)
	}

	next, err := TransitionEscalation(*esc, status, failureReason, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.records.UpdateEscalation(ctx, next); err != nil {
		return nil, fmt.Errorf("update escalation %s: %w", escalationID, err)
	}

	if !next.Status.IsOpen() {
		open, err := s.records.Escalations(ctx, next.EpisodeID, true)
		if err != nil {
			return nil, fmt.Errorf("load active escalations: %w", err)
		}
		if len(open) == 0 {
			if err := s.episodes.ClearEscalationFlag(ctx, next.EpisodeID); err != nil {
				return nil, fmt.Errorf("clear escalation flag: %w", episodeNotFound(err, next.EpisodeID))
			}
		}
	}

	s.log.Info("escalation status updated",
		zap.String("escalation_id", escalationID),
		zap.String("episode_id", next.EpisodeID),
		zap.String("status", string(next.Status)))
	return &next, nil
}

// CompleteEpisodeEscalations marks every open escalation of the episode
// completed and returns their ids. The episode flag clears with the last one.
func (s *EscalationService) CompleteEpisodeEscalations(ctx context.Context, episodeID string) ([]string, error) {
	open, err := s.records.Escalations(ctx, episodeID, true)
	if err != nil {
		return nil, fmt.Errorf("load active escalations: %w", episodeNotFound(err, episodeID))
	}

	completed := make([]string, 0, len(open))
	for _, e := range open {
		if _, err := s.UpdateEscalationStatus(ctx, e.EscalationID, models.EscalationStatusCompleted, ""); err != nil {
			return completed, err
		}
		completed = append(completed, e.EscalationID)
	}
	return completed, nil
}

// TransitionEscalation returns a copy of e moved to status.
func TransitionEscalation(e models.EscalationProtocol, status models.EscalationStatus, failureReason string, now time.Time) (models.EscalationProtocol, error) {
	if !e.Status.CanTransitionTo(status) {
		return e, fmt.Errorf("%w: escalation %s %s -> %s", ErrInvalidTransition, e.EscalationID, e.Status, status)
	}
	if status == models.EscalationStatusFailed && failureReason == "" {
		return e, ErrFailureReasonRequired
	}
	e.Status = status
	if status == models.EscalationStatusFailed {
		e.FailureReason = failureReason
	}
	if !status.IsOpen() {
		e.CompletedAt = &now
	}
	return e, nil
}

// GetActiveEscalations returns the episode's active and in-progress escalations.
func (s *EscalationService) GetActiveEscalations(ctx context.Context, episodeID string) ([]models.EscalationProtocol, error) {
	if _, err := s.episodes.GetEpisode(ctx, episodeID); err != nil {
		return nil, episodeNotFound(err, episodeID)
	}
	open, err := s.records.Escalations(ctx, episodeID, true)
	if err != nil {
		return nil, episodeNotFound(err, episodeID)
	}
	return open, nil
}

// CheckEscalationTimeouts fails every escalation past its deadline and opens
// the next level for its episode. A failure on one episode is logged and
// counted; the sweep carries on with the rest.
func (s *EscalationService) CheckEscalationTimeouts(ctx context.Context) (*SweepReport, error) {
	open, err := s.records.OpenEscalations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open escalations: %w", err)
	}

	report := &SweepReport{Scanned: len(open), NewEscalationIDs: []string{}}
	for _, t := range DetectEscalationTimeouts(s.now(), open) {
		report.TimedOut += len(t.Expired)
		id, err := s.handleTimeout(ctx, t)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", t.EpisodeID, err))
			s.log.Error("escalation timeout handling failed",
				zap.String("episode_id", t.EpisodeID),
				zap.Error(err))
			continue
		}
		report.Escalated++
		report.NewEscalationIDs = append(report.NewEscalationIDs, id)
	}

	if report.TimedOut > 0 {
		s.log.Info("escalation sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("timed_out", report.TimedOut),
			zap.Int("escalated", report.Escalated),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

// handleTimeout opens the next level before failing the expired escalations,
// so an episode whose successor cannot be stored stays open for the next sweep.
func (s *EscalationService) handleTimeout(ctx context.Context, t EscalationTimeout) (string, error) {
	var last models.EscalationProtocol
	for _, e := range t.Expired {
		if e.EscalationLevel.Rank() >= last.EscalationLevel.Rank() {
			last = e
		}
	}

	res, err := s.ProcessEscalation(ctx, EscalationRequest{
		EpisodeID:            t.EpisodeID,
		Reason:               fmt.Sprintf("Escalation at %s timed out after %d minutes", last.EscalationLevel, last.TimeoutMinutes),
		TargetLevel:          string(t.NextLevel),
		UrgentResponse:       t.Urgent,
		PreviousEscalationID: last.EscalationID,
	})
	if err != nil {
		return "", fmt.Errorf("open %s escalation: %w", t.NextLevel, err)
	}

	now := s.now()
	for _, e := range t.Expired {
		reason := fmt.Sprintf("Escalation timed out after %d minutes", e.TimeoutMinutes)
		failed, err := TransitionEscalation(e, models.EscalationStatusFailed, reason, now)
		if err != nil {
			return res.EscalationID, err
		}
		if err := s.records.UpdateEscalation(ctx, failed); err != nil {
			return res.EscalationID, fmt.Errorf("fail escalation %s: %w", e.EscalationID, err)
		}
	}
	return res.EscalationID, nil
}
