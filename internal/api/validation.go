package api

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

// jsonName reports a field by its JSON key so errors match what callers send.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// ValidationError lists the required fields a request omitted. Required holds
// every required field of the route and Missing the absent ones, both in
// declaration order.
type ValidationError struct {
	Required []string
	Missing  []string
}

func (e *ValidationError) Error() string {
	return "Missing required fields: " + strings.Join(e.Required, ", ")
}

// RequiredFields returns the JSON names of s's fields tagged required.
func RequiredFields(s interface{}) []string {
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			if rule == "required" {
				out = append(out, jsonName(f))
				break
			}
		}
	}
	return out
}

// CheckRequired returns a *ValidationError when s is missing required fields.
func CheckRequired(s interface{}) error {
	errs := Validate(s)
	if errs == nil {
		return nil
	}
	required := RequiredFields(s)
	var missing []string
	for _, name := range required {
		if errs[name] == "is required" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return fmt.Errorf("invalid request: %v", errs)
	}
	return &ValidationError{Required: required, Missing: missing}
}

// Validate validates a struct using go-playground/validator tags.
// Returns nil on success or a map of field-name → error-message.
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errs := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		errs[fe.Field()] = validationMessage(fe)
	}
	return errs
}

// validationMessage returns a human-readable message for a validation error.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
