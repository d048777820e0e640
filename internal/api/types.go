package api

import (
	"time"

	"github.com/carecall/carecall/internal/models"
)

// Route names one operation of the emergency surface.
type Route string

const (
	RouteAlert       Route = "alert"
	RouteEscalate    Route = "escalate"
	RouteGenericCase Route = "generic-case"
	RouteStatus      Route = "status"
	RouteQueue       Route = "queue"
	RouteResponse    Route = "response"
)

// Request is one parsed emergency request. The set of implementations is
// closed; handlers switch over the concrete types.
type Request interface {
	Route() Route
}

// ========== Requests ==========

// AlertRequest is the body of POST /emergency/alert.
type AlertRequest struct {
	EpisodeID      string `json:"episodeId" validate:"required"`
	AlertType      string `json:"alertType" validate:"required"`
	Severity       string `json:"severity,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// EscalateRequest is the body of POST /emergency/escalate.
type EscalateRequest struct {
	EpisodeID        string `json:"episodeId" validate:"required"`
	EscalationReason string `json:"escalationReason" validate:"required"`
	TargetLevel      string `json:"targetLevel,omitempty"`
	UrgentResponse   bool   `json:"urgentResponse,omitempty"`
}

// GenericCaseRequest is the body of POST /emergency.
type GenericCaseRequest struct {
	EpisodeID string `json:"episodeId" validate:"required"`
}

// StatusRequest is GET /emergency/{episodeId}.
type StatusRequest struct {
	EpisodeID string `json:"episodeId" validate:"required"`
}

// QueueRequest is GET /emergency with optional supervisorId and limit.
type QueueRequest struct {
	SupervisorID string `json:"supervisorId,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// ResponseRequest is the body of PUT /emergency.
type ResponseRequest struct {
	EpisodeID      string `json:"episodeId" validate:"required"`
	SupervisorID   string `json:"supervisorId" validate:"required"`
	ResponseAction string `json:"responseAction" validate:"required"`
	Notes          string `json:"notes,omitempty"`
}

func (AlertRequest) Route() Route       { return RouteAlert }
func (EscalateRequest) Route() Route    { return RouteEscalate }
func (GenericCaseRequest) Route() Route { return RouteGenericCase }
func (StatusRequest) Route() Route      { return RouteStatus }
func (QueueRequest) Route() Route       { return RouteQueue }
func (ResponseRequest) Route() Route    { return RouteResponse }

// ========== Responses ==========

// AlertResponse is returned by POST /emergency/alert.
type AlertResponse struct {
	Message               string          `json:"message"`
	AlertID               string          `json:"alertId"`
	EpisodeID             string          `json:"episodeId"`
	Severity              models.Severity `json:"severity"`
	NotificationsSent     int             `json:"notificationsSent"`
	EstimatedResponseTime int             `json:"estimatedResponseTime"`
}

// EscalateResponse is returned by POST /emergency/escalate.
type EscalateResponse struct {
	Message              string                 `json:"message"`
	EscalationID         string                 `json:"escalationId"`
	EpisodeID            string                 `json:"episodeId"`
	TargetLevel          models.EscalationLevel `json:"targetLevel"`
	AssignedSupervisors  []string               `json:"assignedSupervisors"`
	ExpectedResponseTime int                    `json:"expectedResponseTime"`
}

// GenericCaseResponse is returned by POST /emergency.
type GenericCaseResponse struct {
	Message               string                      `json:"message"`
	EpisodeID             string                      `json:"episodeId"`
	AlertID               string                      `json:"alertId"`
	Severity              models.Severity             `json:"severity"`
	NotificationsSent     int                         `json:"notificationsSent"`
	EstimatedResponseTime int                         `json:"estimatedResponseTime"`
	Escalated             bool                        `json:"escalated"`
	Assessment            models.EscalationAssessment `json:"assessment"`
	EscalationID          string                      `json:"escalationId,omitempty"`
	TargetLevel           models.EscalationLevel      `json:"targetLevel,omitempty"`
}

// QueueResponse is returned by GET /emergency.
type QueueResponse struct {
	Queue        []models.EmergencyQueueItem `json:"queue"`
	TotalItems   int                         `json:"totalItems"`
	SupervisorID string                      `json:"supervisorId,omitempty"`
}

// ResponseUpdateResponse is returned by PUT /emergency.
type ResponseUpdateResponse struct {
	Message        string    `json:"message"`
	EpisodeID      string    `json:"episodeId"`
	ResponseAction string    `json:"responseAction"`
	SupervisorID   string    `json:"supervisorId"`
	Timestamp      time.Time `json:"timestamp"`
	AlertsUpdated  int       `json:"alertsUpdated"`
	EscalationID   string    `json:"escalationId,omitempty"`
	// EscalationsCompleted lists the escalations a resolve closed.
	EscalationsCompleted []string `json:"escalationsCompleted,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Subscribers int    `json:"subscribers"`
	Error       string `json:"error,omitempty"`
}
