package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// InternalErrorMessage is the only detail a 500 response carries.
const InternalErrorMessage = "Internal server error"

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error         string   `json:"error"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// CORS headers attached to every response.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token,X-Request-ID",
	"Access-Control-Allow-Methods": "GET,POST,PUT,OPTIONS",
}

// SetCORSHeaders writes the permissive CORS headers and the JSON content type.
func SetCORSHeaders(h http.Header) {
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
	h.Set("Content-Type", "application/json")
}

// RespondJSON writes data as a JSON response with the given status code.
// A nil payload is written as an empty object so every body parses.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	SetCORSHeaders(w.Header())
	w.WriteHeader(status)
	if data == nil {
		data = struct{}{}
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondValidationError writes a 400 naming the route's required fields.
func RespondValidationError(w http.ResponseWriter, err *ValidationError) {
	RespondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:         err.Error(),
		MissingFields: err.Missing,
	})
}

// RespondInternalError writes the generic 500 envelope.
func RespondInternalError(w http.ResponseWriter) {
	RespondError(w, http.StatusInternalServerError, InternalErrorMessage)
}
