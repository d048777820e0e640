package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		wantKept bool
	}{
		{name: "no client id", clientID: "", wantKept: false},
		{name: "well-formed client id", clientID: "nurse-station-7:42", wantKept: true},
		{name: "uuid client id", clientID: "3f2a6c1e-8d4b-4f7a-9c2e-1b5d7e9f0a12", wantKept: true},
		{name: "spaces rejected", clientID: "two words", wantKept: false},
		{name: "overlong rejected", clientID: strings.Repeat("a", 65), wantKept: false},
		{name: "header injection rejected", clientID: "abc\r\nX-Evil: 1", wantKept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/emergency", nil)
			if tt.clientID != "" {
				req.Header.Set(RequestIDHeader, tt.clientID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got != seen {
				t.Errorf("response id %q differs from context id %q", got, seen)
			}
			if tt.wantKept {
				if got != tt.clientID {
					t.Errorf("id = %q, want client id %q", got, tt.clientID)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("expected a generated UUID, got %q", got)
			}
		})
	}
}

func TestGetRequestID(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
	if id := GetRequestID(WithRequestID(context.Background(), "req-1")); id != "req-1" {
		t.Errorf("id = %q, want req-1", id)
	}
}
