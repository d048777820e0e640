package services

import (
	"errors"
	"fmt"

	"github.com/carecall/carecall/internal/store"
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

var (
	// ErrInvalidTransition is returned for status moves the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrFailureReasonRequired is returned when failing an escalation without a reason.
	ErrFailureReasonRequired = errors.New("failure reason is required")
	// ErrUnknownStatus is returned for status values outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown status")
)

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func episodeNotFound(err error, episodeID string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: "Episode", ID: episodeID}
	}
	return err
}
