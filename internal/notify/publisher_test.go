package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/testhelpers"
	"github.com/redis/go-redis/v9"
)

func sampleMessage() models.NotificationMessage {
	return models.NotificationMessage{
		MessageID: "msg-1",
		Type:      models.NotificationImmediateAlert,
		Urgency:   models.UrgencyCritical,
		Subject:   "CRITICAL emergency alert for patient p-1",
		EpisodeID: "ep-1",
		Timestamp: testhelpers.BaseTime,
	}
}

func TestMulti(t *testing.T) {
	ok := testhelpers.NewRecordingPublisher("ok")
	bad := testhelpers.NewRecordingPublisher("bad")
	bad.Fail = true
	m := Multi{ok, bad}

	if m.Name() != "ok+bad" {
		t.Errorf("Name() = %q", m.Name())
	}

	err := m.Publish(context.Background(), "emergency-alerts", sampleMessage())
	if !errors.Is(err, testhelpers.ErrPublishFailed) {
		t.Fatalf("expected joined publish error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "bad: ") {
		t.Errorf("error should name the transport: %v", err)
	}
	testhelpers.AssertSliceLen(t, ok.Messages(), 1, "healthy transport still delivers")
}

func TestMulti_AllSucceed(t *testing.T) {
	a, b := testhelpers.NewRecordingPublisher("a"), testhelpers.NewRecordingPublisher("b")
	if err := (Multi{a, b}).Publish(context.Background(), "t", sampleMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Messages()) != 1 || len(b.Messages()) != 1 {
		t.Error("every transport should receive the message")
	}
}

func TestDiscard(t *testing.T) {
	if err := (Discard{}).Publish(context.Background(), "t", sampleMessage()); err != nil {
		t.Errorf("Discard returned %v", err)
	}
}

type fakeStream struct {
	mu   sync.Mutex
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestRedisStreamPublisher(t *testing.T) {
	fake := &fakeStream{}
	p := &RedisStreamPublisher{client: fake, MaxLen: 500}

	msg := sampleMessage()
	msg.Recipient = "s1"
	if err := p.Publish(context.Background(), "emergency-alerts", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(fake.args) != 1 {
		t.Fatalf("expected 1 XADD, got %d", len(fake.args))
	}
	a := fake.args[0]
	if a.Stream != "emergency-alerts" || a.MaxLen != 500 || !a.Approx {
		t.Errorf("unexpected args: %+v", a)
	}
	values := a.Values.(map[string]interface{})
	if values["recipient"] != "s1" || values["urgency"] != "critical" {
		t.Errorf("unexpected values: %v", values)
	}
	var decoded models.NotificationMessage
	if err := json.Unmarshal([]byte(values["data"].(string)), &decoded); err != nil {
		t.Fatalf("data is not JSON: %v", err)
	}
	if decoded.MessageID != "msg-1" {
		t.Errorf("decoded message id = %q", decoded.MessageID)
	}
}

func TestRedisStreamPublisher_Error(t *testing.T) {
	p := &RedisStreamPublisher{client: &fakeStream{err: errors.New("connection refused")}}
	err := p.Publish(context.Background(), "emergency-alerts", sampleMessage())
	if err == nil || !strings.Contains(err.Error(), "xadd emergency-alerts") {
		t.Errorf("expected wrapped xadd error, got %v", err)
	}
}

type fakeSubjects struct {
	subjects []string
	payloads [][]byte
}

func (f *fakeSubjects) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestSubject(t *testing.T) {
	tests := []struct {
		topic, recipient, want string
	}{
		{"emergency-alerts", "", "emergency-alerts"},
		{"emergency-alerts", "s1", "emergency-alerts.s1"},
		{"emergency-alerts", "dr. who*", "emergency-alerts.dr__who_"},
	}
	for _, tt := range tests {
		if got := Subject(tt.topic, tt.recipient); got != tt.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", tt.topic, tt.recipient, got, tt.want)
		}
	}
}

func TestNATSPublisher(t *testing.T) {
	fake := &fakeSubjects{}
	p := &NATSPublisher{conn: fake}

	msg := sampleMessage()
	msg.Recipient = "s2"
	if err := p.Publish(context.Background(), "emergency-alerts", msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	testhelpers.AssertSliceEqual(t, fake.subjects, []string{"emergency-alerts.s2"}, "subjects")
	testhelpers.AssertJSONKeyValue(t, string(fake.payloads[0]), "recipient", "s2", "nats payload")
	if err := p.Close(); err != nil {
		t.Errorf("Close without connection: %v", err)
	}
}

func TestWebhookPublisher(t *testing.T) {
	var (
		mu       sync.Mutex
		received []WebhookEnvelope
		headers  http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env WebhookEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, env)
		headers = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewWebhookPublisher(srv.URL)
	if err := p.Publish(context.Background(), "notifications", sampleMessage()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	if received[0].Topic != "notifications" || received[0].Message.MessageID != "msg-1" {
		t.Errorf("unexpected envelope: %+v", received[0])
	}
	if headers.Get("X-Notification-Topic") != "notifications" || headers.Get("X-Notification-Type") != "immediate_alert" {
		t.Errorf("unexpected headers: %v", headers)
	}
}

func TestWebhookPublisher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewWebhookPublisher(srv.URL)
	err := p.Publish(context.Background(), "notifications", sampleMessage())
	if err == nil || err.Error() != "webhook returned 400" {
		t.Errorf("expected status error, got %v", err)
	}
}
