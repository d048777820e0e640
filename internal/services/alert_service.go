package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/store"
	"github.com/carecall/carecall/internal/utils"
	"go.uber.org/zap"
)

// DefaultQueueLimit is used when a queue request gives no positive limit.
const DefaultQueueLimit = 20

// Supervisor response actions.
const (
	ActionAcknowledge = "acknowledge"
	ActionResolve     = "resolve"
	ActionRespond     = "respond"
	ActionEscalate    = "escalate"
)

// AlertRequest asks for a new emergency alert on an episode.
type AlertRequest struct {
	EpisodeID      string
	AlertType      string
	Severity       string
	AdditionalInfo string
}

// AlertResult is what processing an alert produced.
type AlertResult struct {
	AlertID               string
	Episode               *models.Episode
	Alert                 models.EmergencyAlert
	NotificationsSent     int
	EstimatedResponseTime int
	Severity              models.Severity
}

// EmergencyStatus is the derived emergency view of an episode.
type EmergencyStatus struct {
	EpisodeID             string                  `json:"episodeId"`
	IsEmergency           bool                    `json:"isEmergency"`
	ActiveAlerts          []models.EmergencyAlert `json:"activeAlerts"`
	ResponseStatus        models.ResponseStatus   `json:"responseStatus"`
	AssignedSupervisors   []string                `json:"assignedSupervisors"`
	EstimatedResponseTime int                     `json:"estimatedResponseTime"`
}

// ResponseRequest records a supervisor action.
type ResponseRequest struct {
	EpisodeID    string
	SupervisorID string
	Action       string
	Notes        string
}

// ResponseResult describes a recorded supervisor action.
type ResponseResult struct {
	EpisodeID      string
	SupervisorID   string
	ResponseAction string
	Timestamp      time.Time
	AlertsUpdated  int
	Episode        *models.Episode
}

// AlertService is the emergency alert engine. It owns alert lifecycles.
type AlertService struct {
	episodes EpisodeStore
	records  store.RecordStore
	roster   models.Roster
	notifier Notifier
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(deps Deps) *AlertService {
	deps = deps.withDefaults()
	return &AlertService{
		episodes: deps.Episodes,
		records:  deps.Records,
		roster:   deps.Roster,
		notifier: deps.Notifier,
		now:      deps.Now,
		newID:    deps.NewID,
		log:      deps.Logger.Named("alerts"),
	}
}

// ProcessEmergencyAlert raises a new alert, assigns supervisors by severity and
// notifies them. The returned notification count is the number of assigned
// supervisors, not a delivery confirmation.
func (s *AlertService) ProcessEmergencyAlert(ctx context.Context, req AlertRequest) (*AlertResult, error) {
	ep, err := s.episodes.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		return nil, episodeNotFound(err, req.EpisodeID)
	}

	now := s.now()
	severity := models.ParseSeverity(req.Severity)
	supervisors := s.roster.SupervisorsFor(severity)
	alert := models.EmergencyAlert{
		AlertID:             s.newID(),
		EpisodeID:           ep.EpisodeID,
		AlertType:           req.AlertType,
		Severity:            severity,
		CreatedAt:           now,
		Status:              models.AlertStatusActive,
		AssignedSupervisors: supervisors,
		AdditionalInfo:      utils.SanitizeFreeText(req.AdditionalInfo, utils.MaxNoteLength).Text,
	}

	if err := s.records.AppendAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}

	snap := &models.EmergencySnapshot{
		LastAlertID:         alert.AlertID,
		LastAlertAt:         &now,
		LastAlertSeverity:   severity,
		AssignedSupervisors: supervisors,
		ResponseStatus:      models.ResponseStatusPending,
	}
	if err := s.episodes.FlagEmergency(ctx, ep.EpisodeID, snap, now); err != nil {
		return nil, fmt.Errorf("update emergency snapshot: %w", episodeNotFound(err, ep.EpisodeID))
	}
	ep.HasActiveEmergency = true
	ep.EmergencyFlaggedAt = &now
	ep.EmergencyStatus = snap
	ep.UpdatedAt = now

	s.log.Info("emergency alert created",
		zap.String("episode_id", ep.EpisodeID),
		zap.String("alert_id", alert.AlertID),
		zap.String("severity", string(severity)),
		zap.Strings("supervisors", supervisors))

	s.notifier.SendImmediateAlert(ctx, ep, alert)

	return &AlertResult{
		AlertID:               alert.AlertID,
		Episode:               ep,
		Alert:                 alert,
		NotificationsSent:     len(supervisors),
		EstimatedResponseTime: severity.ResponseTargetMinutes(),
		Severity:              severity,
	}, nil
}

// GetEmergencyStatus derives the emergency view of an episode from its open alerts.
func (s *AlertService) GetEmergencyStatus(ctx context.Context, episodeID string) (*EmergencyStatus, error) {
	ep, err := s.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, episodeNotFound(err, episodeID)
	}
	active, err := s.records.Alerts(ctx, episodeID, true)
	if err != nil {
		return nil, fmt.Errorf("load active alerts: %w", err)
	}

	status := &EmergencyStatus{
		EpisodeID:           episodeID,
		IsEmergency:         ep.IsEmergencyTriage() || len(active) > 0,
		ActiveAlerts:        active,
		ResponseStatus:      models.DeriveResponseStatus(active),
		AssignedSupervisors: []string{},
	}
	if latest := models.LatestAlert(active); latest != nil {
		status.AssignedSupervisors = latest.AssignedSupervisors
		status.EstimatedResponseTime = latest.Severity.ResponseTargetMinutes()
	}
	return status, nil
}

// GetEmergencyQueue lists open alerts for responders, most severe first and
// longest waiting first within a severity. An empty supervisorID lists all.
func (s *AlertService) GetEmergencyQueue(ctx context.Context, supervisorID string, limit int) ([]models.EmergencyQueueItem, error) {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	episodes, err := s.episodes.QueryActiveByFlag(ctx, store.FlagEmergency, limit*2)
	if err != nil {
		return nil, fmt.Errorf("load flagged episodes: %w", err)
	}

	now := s.now()
	queue := make([]models.EmergencyQueueItem, 0, limit)
	for _, ep := range episodes {
		alerts, err := s.records.Alerts(ctx, ep.EpisodeID, true)
		if err != nil {
			return nil, fmt.Errorf("load alerts for %s: %w", ep.EpisodeID, err)
		}
		for _, a := range alerts {
			if supervisorID != "" && !contains(a.AssignedSupervisors, supervisorID) {
				continue
			}
			queue = append(queue, models.EmergencyQueueItem{
				EpisodeID:           ep.EpisodeID,
				PatientID:           ep.PatientID,
				AlertID:             a.AlertID,
				Severity:            a.Severity,
				CreatedAt:           a.CreatedAt,
				WaitTime:            a.WaitMinutes(now),
				AssignedSupervisors: a.AssignedSupervisors,
				SymptomSummary:      ep.Symptoms.Summary(),
				Status:              a.Status,
			})
		}
	}

	SortQueue(queue)
	if len(queue) > limit {
		queue = queue[:limit]
	}
	return queue, nil
}

// SortQueue orders by severity rank descending, then wait time descending.
func SortQueue(queue []models.EmergencyQueueItem) {
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := queue[i].Severity.Rank(), queue[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return queue[i].WaitTime > queue[j].WaitTime
	})
}

// UpdateEmergencyResponse records a supervisor action and applies acknowledge
// or resolve to the episode's open alerts. Other actions are only recorded.
func (s *AlertService) UpdateEmergencyResponse(ctx context.Context, req ResponseRequest) (*ResponseResult, error) {
	ep, err := s.episodes.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		return nil, episodeNotFound(err, req.EpisodeID)
	}

	now := s.now()
	ev := models.ResponseEvent{
		SupervisorID: req.SupervisorID,
		Action:       req.Action,
		Notes:        utils.SanitizeFreeText(req.Notes, utils.MaxNoteLength).Text,
		Timestamp:    now,
	}
	if err := s.episodes.AppendResponse(ctx, ep.EpisodeID, ev); err != nil {
		return nil, fmt.Errorf("record response: %w", episodeNotFound(err, ep.EpisodeID))
	}

	result := &ResponseResult{
		EpisodeID:      ep.EpisodeID,
		SupervisorID:   req.SupervisorID,
		ResponseAction: req.Action,
		Timestamp:      now,
		Episode:        ep,
	}

	switch req.Action {
	case ActionAcknowledge:
		n, err := s.transitionOpenAlerts(ctx, ep, models.AlertStatusAcknowledged, req.SupervisorID, now)
		if err != nil {
			return nil, err
		}
		result.AlertsUpdated = n
	case ActionResolve:
		n, err := s.transitionOpenAlerts(ctx, ep, models.AlertStatusResolved, req.SupervisorID, now)
		if err != nil {
			return nil, err
		}
		result.AlertsUpdated = n
	}

	s.log.Info("emergency response recorded",
		zap.String("episode_id", ep.EpisodeID),
		zap.String("supervisor_id", req.SupervisorID),
		zap.String("action", req.Action),
		zap.Int("alerts_updated", result.AlertsUpdated))

	s.notifier.SendResponseConfirmation(ctx, ep, ev)
	return result, nil
}

// transitionOpenAlerts moves every open alert that may legally reach target,
// then refreshes the episode snapshot.
func (s *AlertService) transitionOpenAlerts(ctx context.Context, ep *models.Episode, target models.AlertStatus, supervisorID string, now time.Time) (int, error) {
	open, err := s.records.Alerts(ctx, ep.EpisodeID, true)
	if err != nil {
		return 0, fmt.Errorf("load active alerts: %w", err)
	}

	updated := 0
	for _, a := range open {
		if !a.Status.CanTransitionTo(target) {
			continue
		}
		next, err := TransitionAlert(a, target, now)
		if err != nil {
			return updated, err
		}
		if err := s.records.UpdateAlert(ctx, next); err != nil {
			return updated, fmt.Errorf("update alert %s: %w", a.AlertID, err)
		}
		updated++
	}

	remaining, err := s.records.Alerts(ctx, ep.EpisodeID, true)
	if err != nil {
		return updated, fmt.Errorf("load active alerts: %w", err)
	}

	snap := &models.EmergencySnapshot{}
	if ep.EmergencyStatus != nil {
		cp := *ep.EmergencyStatus
		snap = &cp
	}
	active := len(remaining) > 0
	snap.ResponseStatus = models.DeriveResponseStatus(remaining)
	if target == models.AlertStatusResolved {
		snap.ResolvedAt = &now
		snap.ResolvedBy = supervisorID
	}
	if err := s.episodes.SetEmergencySnapshot(ctx, ep.EpisodeID, snap, active); err != nil {
		return updated, fmt.Errorf("update emergency snapshot: %w", episodeNotFound(err, ep.EpisodeID))
	}
	ep.EmergencyStatus = snap
	ep.HasActiveEmergency = active
	return updated, nil
}

// TransitionAlert returns a copy of a moved to target, stamping the
// response time and acknowledgement or resolution time.
func TransitionAlert(a models.EmergencyAlert, target models.AlertStatus, now time.Time) (models.EmergencyAlert, error) {
	if !a.Status.CanTransitionTo(target) {
		return a, fmt.Errorf("%w: alert %s %s -> %s", ErrInvalidTransition, a.AlertID, a.Status, target)
	}
	a.Status = target
	if a.ResponseTime == nil {
		minutes := a.WaitMinutes(now)
		a.ResponseTime = &minutes
	}
	switch target {
	case models.AlertStatusAcknowledged:
		a.AcknowledgedAt = &now
	case models.AlertStatusResolved:
		a.ResolvedAt = &now
	}
	return a, nil
}

// EmergencyStats summarizes open emergency work across all flagged episodes.
func (s *AlertService) EmergencyStats(ctx context.Context) (models.EmergencyStats, error) {
	now := s.now()
	stats := models.EmergencyStats{GeneratedAt: now}

	episodes, err := s.episodes.QueryActiveByFlag(ctx, store.FlagEmergency, 0)
	if err != nil {
		return stats, fmt.Errorf("load flagged episodes: %w", err)
	}

	var responseTotal, responded int
	for _, ep := range episodes {
		alerts, err := s.records.Alerts(ctx, ep.EpisodeID, true)
		if err != nil {
			return stats, fmt.Errorf("load alerts for %s: %w", ep.EpisodeID, err)
		}
		for _, a := range alerts {
			stats.ActiveAlerts++
			if a.Severity == models.SeverityCritical {
				stats.CriticalAlerts++
			}
			if a.ResponseTime != nil {
				responseTotal += *a.ResponseTime
				responded++
			}
			if a.Status == models.AlertStatusActive && a.WaitMinutes(now) > a.Severity.ResponseTargetMinutes() {
				stats.OverdueAlerts++
			}
		}
	}
	if responded > 0 {
		stats.AverageResponseTime = float64(responseTotal) / float64(responded)
	}
	return stats, nil
}

// SendTimeoutWarnings warns about active alerts whose response target
// elapses within lead. Each alert is warned at most once; the warning is
// stamped on the alert. It returns how many warnings were sent.
func (s *AlertService) SendTimeoutWarnings(ctx context.Context, lead time.Duration) (int, error) {
	now := s.now()
	episodes, err := s.episodes.QueryActiveByFlag(ctx, store.FlagEmergency, 0)
	if err != nil {
		return 0, fmt.Errorf("load flagged episodes: %w", err)
	}

	sent := 0
	for _, ep := range episodes {
		alerts, err := s.records.Alerts(ctx, ep.EpisodeID, true)
		if err != nil {
			s.log.Warn("skipping timeout warnings for episode", zap.String("episode_id", ep.EpisodeID), zap.Error(err))
			continue
		}
		for _, a := range alerts {
			if a.Status != models.AlertStatusActive || a.TimeoutWarnedAt != nil {
				continue
			}
			deadline := a.CreatedAt.Add(time.Duration(a.Severity.ResponseTargetMinutes()) * time.Minute)
			remaining := deadline.Sub(now)
			if remaining <= 0 || remaining > lead {
				continue
			}
			minutes := int((remaining + time.Minute - 1) / time.Minute)
			s.notifier.SendTimeoutWarning(ctx, ep, a, minutes)
			sent++

			warned := now
			a.TimeoutWarnedAt = &warned
			if err := s.records.UpdateAlert(ctx, a); err != nil {
				s.log.Warn("failed to stamp timeout warning",
					zap.String("episode_id", ep.EpisodeID),
					zap.String("alert_id", a.AlertID),
					zap.Error(err))
			}
		}
	}
	return sent, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
