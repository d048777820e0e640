package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carecall/carecall/internal/api"
	"github.com/carecall/carecall/internal/middleware"
	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/services"
	"github.com/carecall/carecall/internal/store"
	"github.com/carecall/carecall/internal/utils"
	"go.uber.org/zap"
)

// EmergencyPrefix is where the emergency surface is mounted.
const EmergencyPrefix = "/emergency"

// genericCriticalSeverity is the symptom severity at which a generic emergency
// case raises a critical alert instead of a high one.
const genericCriticalSeverity = 9

type episodeGetter interface {
	GetEpisode(ctx context.Context, episodeID string) (*models.Episode, error)
}

// EmergencyHandler routes emergency requests to the alert and escalation engines.
type EmergencyHandler struct {
	episodes    episodeGetter
	alerts      *services.AlertService
	escalations *services.EscalationService
	log         *zap.Logger
}

// NewEmergencyHandler creates a new emergency handler
func NewEmergencyHandler(episodes episodeGetter, alerts *services.AlertService, escalations *services.EscalationService, log *zap.Logger) *EmergencyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmergencyHandler{
		episodes:    episodes,
		alerts:      alerts,
		escalations: escalations,
		log:         log.Named("emergency"),
	}
}

// ServeHTTP handles every method and path under EmergencyPrefix.
func (h *EmergencyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		api.RespondJSON(w, http.StatusOK, nil)
		return
	}

	req, err := api.Parse(r, strings.TrimPrefix(r.URL.Path, EmergencyPrefix))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	ctx := r.Context()
	var body interface{}
	switch req := req.(type) {
	case api.AlertRequest:
		body, err = h.processAlert(ctx, req)
	case api.EscalateRequest:
		body, err = h.processEscalation(ctx, req)
	case api.GenericCaseRequest:
		body, err = h.processGenericCase(ctx, req)
	case api.StatusRequest:
		body, err = h.alerts.GetEmergencyStatus(ctx, req.EpisodeID)
	case api.QueueRequest:
		body, err = h.queue(ctx, req)
	case api.ResponseRequest:
		body, err = h.updateResponse(ctx, req)
	default:
		err = fmt.Errorf("unhandled route %s", req.Route())
	}
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, body)
}

func (h *EmergencyHandler) processAlert(ctx context.Context, req api.AlertRequest) (*api.AlertResponse, error) {
	res, err := h.alerts.ProcessEmergencyAlert(ctx, services.AlertRequest{
		EpisodeID:      req.EpisodeID,
		AlertType:      req.AlertType,
		Severity:       req.Severity,
		AdditionalInfo: req.AdditionalInfo,
	})
	if err != nil {
		return nil, err
	}
	return &api.AlertResponse{
		Message:               "Emergency alert processed successfully",
		AlertID:               res.AlertID,
		EpisodeID:             req.EpisodeID,
		Severity:              res.Severity,
		NotificationsSent:     res.NotificationsSent,
		EstimatedResponseTime: res.EstimatedResponseTime,
	}, nil
}

func (h *EmergencyHandler) processEscalation(ctx context.Context, req api.EscalateRequest) (*api.EscalateResponse, error) {
	res, err := h.escalations.ProcessEscalation(ctx, services.EscalationRequest{
		EpisodeID:      req.EpisodeID,
		Reason:         req.EscalationReason,
		TargetLevel:    req.TargetLevel,
		UrgentResponse: req.UrgentResponse,
	})
	if err != nil {
		return nil, err
	}
	return &api.EscalateResponse{
		Message:              "Escalation processed successfully",
		EscalationID:         res.EscalationID,
		EpisodeID:            req.EpisodeID,
		TargetLevel:          res.TargetLevel,
		AssignedSupervisors:  res.AssignedSupervisors,
		ExpectedResponseTime: res.ExpectedResponseTime,
	}, nil
}

// errNotEmergency rejects generic cases for episodes triaged below EMERGENCY.
var errNotEmergency = errors.New("Episode is not classified as emergency")

// processGenericCase raises an alert for an EMERGENCY-triaged episode and
// escalates when the assessment of the episode as loaded calls for it.
func (h *EmergencyHandler) processGenericCase(ctx context.Context, req api.GenericCaseRequest) (*api.GenericCaseResponse, error) {
	ep, err := h.episodes.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &services.NotFoundError{Resource: "Episode", ID: req.EpisodeID}
		}
		return nil, err
	}
	if !ep.IsEmergencyTriage() {
		return nil, errNotEmergency
	}

	assessment := h.escalations.AssessEscalationNeed(ep)

	severity := models.SeverityHigh
	if ep.Symptoms.Severity >= genericCriticalSeverity {
		severity = models.SeverityCritical
	}
	alert, err := h.alerts.ProcessEmergencyAlert(ctx, services.AlertRequest{
		EpisodeID:      ep.EpisodeID,
		AlertType:      alertTypeFor(ep.Symptoms.PrimaryComplaint),
		Severity:       string(severity),
		AdditionalInfo: ep.Symptoms.Summary(),
	})
	if err != nil {
		return nil, err
	}

	resp := &api.GenericCaseResponse{
		Message:               "Emergency case processed",
		EpisodeID:             ep.EpisodeID,
		AlertID:               alert.AlertID,
		Severity:              alert.Severity,
		NotificationsSent:     alert.NotificationsSent,
		EstimatedResponseTime: alert.EstimatedResponseTime,
		Assessment:            assessment,
	}
	if !assessment.Required {
		return resp, nil
	}

	// The alert is committed at this point; a failed escalation is reported, not returned.
	esc, err := h.escalations.ProcessEscalation(ctx, services.EscalationRequest{
		EpisodeID:      ep.EpisodeID,
		Reason:         assessment.Reason,
		TargetLevel:    string(assessment.TargetLevel),
		UrgentResponse: assessment.UrgentResponse,
	})
	if err != nil {
		h.log.Error("follow-up escalation failed",
			zap.String("episode_id", ep.EpisodeID),
			zap.String("alert_id", alert.AlertID),
			zap.Error(err))
		resp.Message = "Emergency case processed; escalation failed"
		return resp, nil
	}
	resp.Message = "Emergency case processed and escalated"
	resp.Escalated = true
	resp.EscalationID = esc.EscalationID
	resp.TargetLevel = esc.TargetLevel
	return resp, nil
}

// alertTypeFor snake-cases the primary complaint, e.g. "Chest pain" -> "chest_pain".
func alertTypeFor(complaint string) string {
	if t := utils.SnakeCase(complaint); t != "" {
		return t
	}
	return "symptom_emergency"
}

func (h *EmergencyHandler) queue(ctx context.Context, req api.QueueRequest) (*api.QueueResponse, error) {
	items, err := h.alerts.GetEmergencyQueue(ctx, req.SupervisorID, req.Limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.EmergencyQueueItem{}
	}
	return &api.QueueResponse{
		Queue:        items,
		TotalItems:   len(items),
		SupervisorID: req.SupervisorID,
	}, nil
}

func (h *EmergencyHandler) updateResponse(ctx context.Context, req api.ResponseRequest) (*api.ResponseUpdateResponse, error) {
	res, err := h.alerts.UpdateEmergencyResponse(ctx, services.ResponseRequest{
		EpisodeID:    req.EpisodeID,
		SupervisorID: req.SupervisorID,
		Action:       req.ResponseAction,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}

	resp := &api.ResponseUpdateResponse{
		Message:        "Emergency response updated successfully",
		EpisodeID:      res.EpisodeID,
		ResponseAction: res.ResponseAction,
		SupervisorID:   res.SupervisorID,
		Timestamp:      res.Timestamp,
		AlertsUpdated:  res.AlertsUpdated,
	}
	switch req.ResponseAction {
	case services.ActionResolve:
		h.completeEscalations(ctx, resp)
	case services.ActionEscalate:
		h.escalateResponse(ctx, req, resp)
	}
	return resp, nil
}

// completeEscalations closes the episode's open escalations after a resolve.
func (h *EmergencyHandler) completeEscalations(ctx context.Context, resp *api.ResponseUpdateResponse) {
	ids, err := h.escalations.CompleteEpisodeEscalations(ctx, resp.EpisodeID)
	resp.EscalationsCompleted = ids
	if err != nil {
		h.log.Error("completing escalations after resolve failed",
			zap.String("episode_id", resp.EpisodeID),
			zap.Strings("completed", ids),
			zap.Error(err))
		resp.Message = "Emergency response updated; open escalations could not be completed"
	}
}

// escalateResponse opens a supervisor-requested escalation. The response is
// already recorded, so a failure only changes the message.
func (h *EmergencyHandler) escalateResponse(ctx context.Context, req api.ResponseRequest, resp *api.ResponseUpdateResponse) {
	reason := "Escalation requested by supervisor " + req.SupervisorID
	if req.Notes != "" {
		reason += ": " + req.Notes
	}
	esc, err := h.escalations.ProcessEscalation(ctx, services.EscalationRequest{
		EpisodeID: req.EpisodeID,
		Reason:    reason,
	})
	if err != nil {
		h.log.Error("supervisor escalation failed",
			zap.String("episode_id", req.EpisodeID),
			zap.String("supervisor_id", req.SupervisorID),
			zap.Error(err))
		resp.Message = "Emergency response updated; escalation failed"
		return
	}
	resp.EscalationID = esc.EscalationID
}

// respondErr maps an error to its status code. Unexpected errors are logged
// and answered with the generic internal error.
func (h *EmergencyHandler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *api.ValidationError
		bodyErr       *api.BodyError
		notFound      *services.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		api.RespondValidationError(w, validationErr)
	case errors.Is(err, api.ErrMethodNotAllowed):
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	case errors.As(err, &notFound):
		api.RespondError(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, errNotEmergency),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrFailureReasonRequired),
		errors.Is(err, services.ErrUnknownStatus):
		api.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		}
		if errors.As(err, &bodyErr) {
			h.log.Warn("unreadable request body", fields...)
		} else {
			h.log.Error("emergency request failed", fields...)
		}
		api.RespondInternalError(w)
	}
}
