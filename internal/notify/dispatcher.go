package notify

import (
	"context"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fanOutLimit caps concurrent per-supervisor sends for one alert.
const fanOutLimit = 8

var _ services.Notifier = (*Dispatcher)(nil)

// Topics are the two destinations the dispatcher publishes to.
type Topics struct {
	EmergencyAlert string
	Notification   string
}

// Dispatcher translates domain events into messages. Delivery is best-effort:
// failures are logged and never returned to the caller.
type Dispatcher struct {
	pub    Publisher
	topics Topics
	now    func() time.Time
	newID  func() string
	log    *zap.Logger
}

// NewDispatcher creates a dispatcher publishing through pub.
func NewDispatcher(pub Publisher, topics Topics, log *zap.Logger) *Dispatcher {
	if pub == nil {
		pub = Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		pub:    pub,
		topics: topics,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		log:    log.Named("notify"),
	}
}

// WithClock overrides the timestamp source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

func (d *Dispatcher) message(t models.NotificationType, u models.NotificationUrgency, subject, body string, ep *models.Episode) models.NotificationMessage {
	msg := models.NotificationMessage{
		MessageID: d.newID(),
		Type:      t,
		Urgency:   u,
		Subject:   subject,
		Body:      body,
		Timestamp: d.now(),
	}
	if ep != nil {
		msg.EpisodeID = ep.EpisodeID
		msg.PatientID = ep.PatientID
	}
	return msg
}

func (d *Dispatcher) publish(ctx context.Context, topic string, msg models.NotificationMessage) {
	if err := d.pub.Publish(ctx, topic, msg); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("topic", topic),
			zap.String("recipient", msg.Recipient),
			zap.String("transport", d.pub.Name()),
			zap.String("type", string(msg.Type)),
			zap.String("episode_id", msg.EpisodeID),
			zap.Error(err))
	}
}

// fanOut sends the broadcast and one targeted copy per recipient. Every send
// is independent of the others.
func (d *Dispatcher) fanOut(ctx context.Context, topic string, msg models.NotificationMessage, recipients []string) {
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	g.Go(func() error {
		d.publish(ctx, topic, msg)
		return nil
	})
	for _, r := range recipients {
		targeted := msg
		targeted.MessageID = d.newID()
		targeted.Recipient = r
		g.Go(func() error {
			d.publish(ctx, topic, targeted)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) SendImmediateAlert(ctx context.Context, ep *models.Episode, alert models.EmergencyAlert) {
	subject, body := immediateAlertContent(ep, alert)
	msg := d.message(models.NotificationImmediateAlert, AlertUrgency(alert.Severity), subject, body, ep)
	msg.Alert = &alert
	d.fanOut(ctx, d.topics.EmergencyAlert, msg, alert.AssignedSupervisors)
}

func (d *Dispatcher) SendEscalationAlert(ctx context.Context, ep *models.Episode, esc models.EscalationProtocol) {
	subject, body := escalationContent(ep, esc)
	msg := d.message(models.NotificationEscalationAlert, EscalationUrgency(esc), subject, body, ep)
	msg.Escalation = &esc
	d.fanOut(ctx, d.topics.EmergencyAlert, msg, esc.AssignedSupervisors)
}

func (d *Dispatcher) SendResponseConfirmation(ctx context.Context, ep *models.Episode, ev models.ResponseEvent) {
	subject, body := responseContent(ep, ev)
	msg := d.message(models.NotificationResponseConfirmation, models.UrgencyNormal, subject, body, ep)
	msg.Response = &ev
	d.publish(ctx, d.topics.Notification, msg)
}

func (d *Dispatcher) SendTimeoutWarning(ctx context.Context, ep *models.Episode, alert models.EmergencyAlert, minutesRemaining int) {
	subject, body := timeoutWarningContent(ep, alert, minutesRemaining)
	msg := d.message(models.NotificationTimeoutWarning, models.UrgencyHigh, subject, body, ep)
	msg.Alert = &alert
	msg.MinutesRemaining = &minutesRemaining
	d.fanOut(ctx, d.topics.EmergencyAlert, msg, alert.AssignedSupervisors)
}

func (d *Dispatcher) SendEmergencyStatusUpdate(ctx context.Context, stats models.EmergencyStats) {
	subject, body := statusUpdateContent(stats)
	msg := d.message(models.NotificationStatusUpdate, models.UrgencyLow, subject, body, nil)
	msg.Stats = &stats
	d.publish(ctx, d.topics.Notification, msg)
}
