package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/carecall/carecall/internal/models"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

func newTestPublisher(api *fakeAPI) *Publisher {
	return newPublisher(api,
		map[string]string{"supervisor-emergency-1": "U0SUP1"},
		map[string]string{"emergency-alerts": "#er-pager"},
		zap.NewNop())
}

func TestPublisher_Name(t *testing.T) {
	if got := newTestPublisher(&fakeAPI{}).Name(); got != "slack" {
		t.Errorf("Name() = %q, want slack", got)
	}
}

func TestPublisher_Publish(t *testing.T) {
	tests := []struct {
		name        string
		topic       string
		recipient   string
		wantChannel string
		wantPosts   int
	}{
		{"broadcast to mapped channel", "emergency-alerts", "", "C0ERPAGER1", 1},
		{"broadcast to topic-named channel", "notifications", "", "C0NOTIFY01", 1},
		{"targeted to mapped user", "emergency-alerts", "supervisor-emergency-1", "U0SUP1", 1},
		{"targeted to unmapped supervisor", "emergency-alerts", "supervisor-emergency-9", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{public: []slack.Channel{
				channel("C0ERPAGER1", "er-pager"),
				channel("C0NOTIFY01", "notifications"),
			}}
			p := newTestPublisher(api)

			msg := models.NotificationMessage{
				Type:      models.NotificationImmediateAlert,
				Urgency:   models.UrgencyCritical,
				Subject:   "CRITICAL emergency alert for patient p-1",
				Recipient: tt.recipient,
				EpisodeID: "ep-1",
			}
			if err := p.Publish(context.Background(), tt.topic, msg); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(api.posts) != tt.wantPosts {
				t.Fatalf("expected %d posts, got %d", tt.wantPosts, len(api.posts))
			}
			if tt.wantPosts > 0 && api.posts[0].channel != tt.wantChannel {
				t.Errorf("posted to %s, want %s", api.posts[0].channel, tt.wantChannel)
			}
		})
	}
}

func TestPublisher_PublishErrors(t *testing.T) {
	t.Run("unknown channel", func(t *testing.T) {
		p := newTestPublisher(&fakeAPI{})
		if err := p.Publish(context.Background(), "emergency-alerts", models.NotificationMessage{}); err == nil {
			t.Error("expected resolve error")
		}
	})

	t.Run("post failure", func(t *testing.T) {
		api := &fakeAPI{postErr: errors.New("channel_not_found")}
		p := newTestPublisher(api)
		err := p.Publish(context.Background(), "emergency-alerts", models.NotificationMessage{Recipient: "supervisor-emergency-1"})
		if err == nil || !errors.Is(err, api.postErr) {
			t.Errorf("expected wrapped post error, got %v", err)
		}
	})
}
