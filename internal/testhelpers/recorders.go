package testhelpers

import (
	"context"
	"errors"
	"sync"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/store"
)

// ========================================
// Recording Notifier
// ========================================

// NotifierCall is one captured notifier invocation.
type NotifierCall struct {
	Kind             models.NotificationType
	EpisodeID        string
	Alert            *models.EmergencyAlert
	Escalation       *models.EscalationProtocol
	Response         *models.ResponseEvent
	MinutesRemaining int
	Stats            *models.EmergencyStats
}

// RecordingNotifier captures domain notifications in call order.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls []NotifierCall
}

// NewRecordingNotifier creates an empty recorder
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) record(c NotifierCall) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *RecordingNotifier) SendImmediateAlert(_ context.Context, ep *models.Episode, alert models.EmergencyAlert) {
	r.record(NotifierCall{Kind: models.NotificationImmediateAlert, EpisodeID: ep.EpisodeID, Alert: &alert})
}

func (r *RecordingNotifier) SendEscalationAlert(_ context.Context, ep *models.Episode, esc models.EscalationProtocol) {
	r.record(NotifierCall{Kind: models.NotificationEscalationAlert, EpisodeID: ep.EpisodeID, Escalation: &esc})
}

func (r *RecordingNotifier) SendResponseConfirmation(_ context.Context, ep *models.Episode, ev models.ResponseEvent) {
	r.record(NotifierCall{Kind: models.NotificationResponseConfirmation, EpisodeID: ep.EpisodeID, Response: &ev})
}

func (r *RecordingNotifier) SendTimeoutWarning(_ context.Context, ep *models.Episode, alert models.EmergencyAlert, minutesRemaining int) {
	r.record(NotifierCall{Kind: models.NotificationTimeoutWarning, EpisodeID: ep.EpisodeID, Alert: &alert, MinutesRemaining: minutesRemaining})
}

func (r *RecordingNotifier) SendEmergencyStatusUpdate(_ context.Context, stats models.EmergencyStats) {
	r.record(NotifierCall{Kind: models.NotificationStatusUpdate, Stats: &stats})
}

// Calls returns a copy of all captured calls.
func (r *RecordingNotifier) Calls() []NotifierCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NotifierCall(nil), r.calls...)
}

// CallsOf returns captured calls of one kind.
func (r *RecordingNotifier) CallsOf(kind models.NotificationType) []NotifierCall {
	var out []NotifierCall
	for _, c := range r.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ========================================
// Recording Publisher
// ========================================

// ErrPublishFailed is returned by a failing RecordingPublisher.
var ErrPublishFailed = errors.New("publish failed")

// Published is one captured publish.
type Published struct {
	Topic   string
	Message models.NotificationMessage
}

// RecordingPublisher captures publishes. Topics listed in FailTopics are
// rejected with ErrPublishFailed, and Fail rejects everything.
type RecordingPublisher struct {
	PublisherName string
	Fail          bool
	FailTopics    map[string]bool

	mu        sync.Mutex
	published []Published
}

// NewRecordingPublisher creates a publisher reporting the given name
func NewRecordingPublisher(name string) *RecordingPublisher {
	return &RecordingPublisher{PublisherName: name, FailTopics: map[string]bool{}}
}

func (p *RecordingPublisher) Name() string { return p.PublisherName }

func (p *RecordingPublisher) Publish(_ context.Context, topic string, msg models.NotificationMessage) error {
	if p.Fail || p.FailTopics[topic] {
		return ErrPublishFailed
	}
	p.mu.Lock()
	p.published = append(p.published, Published{Topic: topic, Message: msg})
	p.mu.Unlock()
	return nil
}

// Messages returns a copy of everything published.
func (p *RecordingPublisher) Messages() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.published...)
}

// OnTopic returns messages published to topic.
func (p *RecordingPublisher) OnTopic(topic string) []models.NotificationMessage {
	var out []models.NotificationMessage
	for _, m := range p.Messages() {
		if m.Topic == topic {
			out = append(out, m.Message)
		}
	}
	return out
}

// ========================================
// Failing Record Store
// ========================================

// ErrStoreUnavailable is returned by a FailingRecordStore while failing.
var ErrStoreUnavailable = errors.New("record store unavailable")

// FailingRecordStore wraps a RecordStore and rejects escalation appends while
// FailEscalations is set. Everything else passes through.
type FailingRecordStore struct {
	store.RecordStore

	mu              sync.Mutex
	failEscalations bool
}

// NewFailingRecordStore wraps inner.
func NewFailingRecordStore(inner store.RecordStore) *FailingRecordStore {
	return &FailingRecordStore{RecordStore: inner}
}

// FailEscalations toggles rejection of AppendEscalation.
func (f *FailingRecordStore) FailEscalations(fail bool) {
	f.mu.Lock()
	f.failEscalations = fail
	f.mu.Unlock()
}

func (f *FailingRecordStore) AppendEscalation(ctx context.Context, esc models.EscalationProtocol) error {
	f.mu.Lock()
	fail := f.failEscalations
	f.mu.Unlock()
	if fail {
		return ErrStoreUnavailable
	}
	return f.RecordStore.AppendEscalation(ctx, esc)
}
