// Package notify turns domain events into outbound notification messages and
// delivers them over one or more transports.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carecall/carecall/internal/models"
	"golang.org/x/sync/errgroup"
)

// Publisher delivers a message to a topic over one transport.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, topic string, msg models.NotificationMessage) error
}

// Multi publishes to every transport concurrently. A failing transport does
// not stop the others; all failures are joined into the returned error.
type Multi []Publisher

func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, p := range m {
		names = append(names, p.Name())
	}
	return strings.Join(names, "+")
}

func (m Multi) Publish(ctx context.Context, topic string, msg models.NotificationMessage) error {
	errs := make([]error, len(m))
	var g errgroup.Group
	for i, p := range m {
		i, p := i, p
		g.Go(func() error {
			if err := p.Publish(ctx, topic, msg); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Discard drops every message. It stands in when no transport is configured.
type Discard struct{}

func (Discard) Name() string { return "discard" }

func (Discard) Publish(context.Context, string, models.NotificationMessage) error { return nil }
