package slack

import (
	"context"
	"fmt"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/notify"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type api interface {
	messagePoster
	conversationsAPI
}

// Publisher posts broadcasts to the channel mapped to the topic and targeted
// messages as direct messages to the supervisor's Slack user.
type Publisher struct {
	poster   messagePoster
	resolver *ChannelResolver
	// users maps supervisor ids to Slack user ids.
	users map[string]string
	// channels maps topics to channel names or IDs; unmapped topics use the topic name.
	channels map[string]string
	log      *zap.Logger
}

var _ notify.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher authenticated with a bot token.
func NewPublisher(botToken string, users, channels map[string]string, log *zap.Logger) *Publisher {
	return newPublisher(slack.New(botToken, slack.OptionDebug(false)), users, channels, log)
}

func newPublisher(client api, users, channels map[string]string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if users == nil {
		users = map[string]string{}
	}
	if channels == nil {
		channels = map[string]string{}
	}
	return &Publisher{
		poster:   client,
		resolver: NewChannelResolver(client, log),
		users:    users,
		channels: channels,
		log:      log.Named("slack"),
	}
}

func (p *Publisher) Name() string { return "slack" }

// Publish delivers msg. Targeted messages for supervisors without a Slack
// user mapping are skipped.
func (p *Publisher) Publish(ctx context.Context, topic string, msg models.NotificationMessage) error {
	var channel string
	if msg.Recipient != "" {
		userID, ok := p.users[msg.Recipient]
		if !ok {
			p.log.Debug("no slack user for supervisor", zap.String("supervisor_id", msg.Recipient))
			return nil
		}
		channel = userID
	} else {
		name := p.channels[topic]
		if name == "" {
			name = topic
		}
		id, err := p.resolver.ResolveChannel(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve channel for %s: %w", topic, err)
		}
		channel = id
	}

	_, _, err := p.poster.PostMessageContext(ctx, channel,
		slack.MsgOptionText(notify.FormatForSlack(msg), false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("post to %s: %w", channel, err)
	}
	return nil
}
