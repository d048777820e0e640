package api

import (
	"errors"
	"testing"
)

type testValidateStruct struct {
	Name     string `json:"name" validate:"required,max=8"`
	Category string `json:"category" validate:"omitempty,oneof=system custom"`
	Owner    string `json:"owner,omitempty" validate:"required"`
	Internal string `json:"-"`
}

func TestValidate_ValidInput(t *testing.T) {
	if errs := Validate(testValidateStruct{Name: "n", Category: "system", Owner: "o"}); errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_UsesJSONNames(t *testing.T) {
	errs := Validate(testValidateStruct{Name: "far-too-long", Category: "other"})
	if errs["name"] != "must be at most 8" {
		t.Errorf("name error = %q", errs["name"])
	}
	if errs["category"] != "must be one of: system custom" {
		t.Errorf("category error = %q", errs["category"])
	}
	if errs["owner"] != "is required" {
		t.Errorf("owner error = %q", errs["owner"])
	}
}

func TestRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		req  interface{}
		want []string
	}{
		{"alert", AlertRequest{}, []string{"episodeId", "alertType"}},
		{"escalate", &EscalateRequest{}, []string{"episodeId", "escalationReason"}},
		{"response", ResponseRequest{}, []string{"episodeId", "supervisorId", "responseAction"}},
		{"queue", QueueRequest{}, nil},
		{"test struct", testValidateStruct{}, []string{"name", "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RequiredFields(tt.req)
			if len(got) != len(tt.want) {
				t.Fatalf("RequiredFields = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("RequiredFields[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCheckRequired(t *testing.T) {
	if err := CheckRequired(AlertRequest{EpisodeID: "ep-1", AlertType: "x"}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := CheckRequired(ResponseRequest{SupervisorID: "s1"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Missing) != 2 || ve.Missing[0] != "episodeId" || ve.Missing[1] != "responseAction" {
		t.Errorf("missing = %v", ve.Missing)
	}

	// non-required rule failures are not reported as missing fields
	err = CheckRequired(testValidateStruct{Name: "far-too-long", Owner: "o"})
	if err == nil || errors.As(err, &ve) {
		t.Errorf("expected a plain error, got %v", err)
	}
}
