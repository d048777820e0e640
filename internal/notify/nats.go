package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type subjectPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes broadcasts on the topic subject and targeted
// messages on "<topic>.<recipient>".
type NATSPublisher struct {
	conn subjectPublisher
	nc   *nats.Conn
}

// DialNATS connects to url with reconnect handling logged through log.
func DialNATS(url, name string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: nc, nc: nc}, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject a message for topic is published on.
func Subject(topic, recipient string) string {
	if recipient == "" {
		return topic
	}
	return topic + "." + strings.NewReplacer(" ", "_", ".", "_", "*", "_", ">", "_").Replace(recipient)
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, msg models.NotificationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	return p.conn.Publish(Subject(topic, msg.Recipient), payload)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
