package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodySize is the maximum allowed request body size (1 MB).
const MaxBodySize = 1 << 20

// ErrMethodNotAllowed is returned by Parse for method and path pairs the
// emergency surface does not serve.
var ErrMethodNotAllowed = errors.New("method not allowed")

// BodyError reports a request body that could not be decoded. Callers answer
// it with a generic internal error.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string { return e.Err.Error() }
func (e *BodyError) Unwrap() error { return e.Err }

// DecodeJSON reads and decodes a JSON request body into dst. An empty body
// decodes as an empty object so the route's required-field check reports it.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}

	// Enforce max body size.
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &BodyError{Err: fmt.Errorf("request body exceeds maximum size of %d bytes", MaxBodySize)}
		}
		return &BodyError{Err: fmt.Errorf("read body: %w", err)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	err = json.Unmarshal(body, dst)
	if err == nil {
		return nil
	}

	// Translate common JSON errors into friendly messages.
	var syntaxErr *json.SyntaxError
	var unmarshalTypeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &syntaxErr):
		return &BodyError{Err: fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)}
	case errors.As(err, &unmarshalTypeErr):
		return &BodyError{Err: fmt.Errorf("invalid value for field %q: expected %s", unmarshalTypeErr.Field, unmarshalTypeErr.Type)}
	default:
		return &BodyError{Err: errors.New("invalid JSON in request body")}
	}
}

// Parse maps a request to its typed form. path is the request path relative
// to the emergency mount point ("", "/", "/alert", "/escalate" or
// "/{episodeId}"). Body routes are decoded and checked for required fields.
func Parse(r *http.Request, path string) (Request, error) {
	segment := strings.Trim(path, "/")

	switch r.Method {
	case http.MethodPost:
		switch segment {
		case "alert":
			return decodeInto(r, &AlertRequest{})
		case "escalate":
			return decodeInto(r, &EscalateRequest{})
		case "":
			return decodeInto(r, &GenericCaseRequest{})
		}
	case http.MethodGet:
		if segment == "" {
			return QueueRequest{
				SupervisorID: strings.TrimSpace(r.URL.Query().Get("supervisorId")),
				Limit:        ParseLimit(r),
			}, nil
		}
		if !strings.Contains(segment, "/") {
			return StatusRequest{EpisodeID: segment}, nil
		}
	case http.MethodPut:
		if segment == "" {
			return decodeInto(r, &ResponseRequest{})
		}
	}
	return nil, ErrMethodNotAllowed
}

// decodeInto decodes the body into dst, a pointer to a body request type.
func decodeInto(r *http.Request, dst Request) (Request, error) {
	if err := DecodeJSON(r, dst); err != nil {
		return nil, err
	}
	trimStrings(dst)
	if err := CheckRequired(dst); err != nil {
		return nil, err
	}
	return dereference(dst), nil
}

// dereference returns the value form so handlers match on value types.
func dereference(req Request) Request {
	switch v := req.(type) {
	case *AlertRequest:
		return *v
	case *EscalateRequest:
		return *v
	case *GenericCaseRequest:
		return *v
	case *ResponseRequest:
		return *v
	}
	return req
}

// trimStrings strips surrounding whitespace from the identifier fields so a
// blank value counts as missing.
func trimStrings(req Request) {
	switch v := req.(type) {
	case *AlertRequest:
		v.EpisodeID = strings.TrimSpace(v.EpisodeID)
		v.AlertType = strings.TrimSpace(v.AlertType)
	case *EscalateRequest:
		v.EpisodeID = strings.TrimSpace(v.EpisodeID)
		v.EscalationReason = strings.TrimSpace(v.EscalationReason)
	case *GenericCaseRequest:
		v.EpisodeID = strings.TrimSpace(v.EpisodeID)
	case *ResponseRequest:
		v.EpisodeID = strings.TrimSpace(v.EpisodeID)
		v.SupervisorID = strings.TrimSpace(v.SupervisorID)
		v.ResponseAction = strings.TrimSpace(v.ResponseAction)
	}
}
