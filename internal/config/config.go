package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/carecall/carecall/internal/database"
	"github.com/carecall/carecall/internal/models"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Notification transports selectable through NOTIFY_TRANSPORTS.
const (
	TransportSlack     = "slack"
	TransportRedis     = "redis"
	TransportNATS      = "nats"
	TransportWebhook   = "webhook"
	TransportWebSocket = "websocket"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Server Configuration
	HTTPPort int `mapstructure:"HTTP_PORT"`

	// Database Configuration
	DatabaseDriver   string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	EpisodesTable    string `mapstructure:"EPISODES_TABLE"`
	AlertsTable      string `mapstructure:"ALERTS_TABLE"`
	EscalationsTable string `mapstructure:"ESCALATIONS_TABLE"`

	// Notification topics and transports
	EmergencyAlertTopic string `mapstructure:"EMERGENCY_ALERT_TOPIC"`
	NotificationTopic   string `mapstructure:"NOTIFICATION_TOPIC"`
	NotifyTransports    string `mapstructure:"NOTIFY_TRANSPORTS"`
	SlackBotToken       string `mapstructure:"SLACK_BOT_TOKEN"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int    `mapstructure:"REDIS_DB"`
	NATSURL             string `mapstructure:"NATS_URL"`
	WebhookURL          string `mapstructure:"WEBHOOK_URL"`

	// Responder roster
	RosterFile string `mapstructure:"ROSTER_FILE"`

	// Background sweep
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`
	TimeoutWarningLead time.Duration `mapstructure:"TIMEOUT_WARNING_LEAD"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]interface{}{
	"HTTP_PORT":             8080,
	"DATABASE_DRIVER":       database.DriverSQLite,
	"DATABASE_URL":          "file:carecall.db",
	"EPISODES_TABLE":        "episodes",
	"ALERTS_TABLE":          "emergency_alerts",
	"ESCALATIONS_TABLE":     "escalation_protocols",
	"EMERGENCY_ALERT_TOPIC": "emergency-alerts",
	"NOTIFICATION_TOPIC":    "notifications",
	"NOTIFY_TRANSPORTS":     TransportWebSocket,
	"REDIS_DB":              0,
	"SWEEP_INTERVAL":        "1m",
	"TIMEOUT_WARNING_LEAD":  "1m",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "json",
}

var envKeys = []string{
	"HTTP_PORT",
	"DATABASE_DRIVER", "DATABASE_URL",
	"EPISODES_TABLE", "ALERTS_TABLE", "ESCALATIONS_TABLE",
	"EMERGENCY_ALERT_TOPIC", "NOTIFICATION_TOPIC", "NOTIFY_TRANSPORTS",
	"SLACK_BOT_TOKEN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "NATS_URL", "WEBHOOK_URL",
	"ROSTER_FILE",
	"SWEEP_INTERVAL", "TIMEOUT_WARNING_LEAD",
	"LOG_LEVEL", "LOG_FORMAT",
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Tables returns the configured physical table names.
func (c *Config) Tables() database.Tables {
	return database.Tables{
		Episodes:    c.EpisodesTable,
		Alerts:      c.AlertsTable,
		Escalations: c.EscalationsTable,
	}.WithDefaults()
}

// Transports returns the enabled notification transports in configured order.
func (c *Config) Transports() []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range strings.Split(c.NotifyTransports, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.HTTPPort)
	}
	switch strings.ToLower(c.DatabaseDriver) {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", database.DriverPostgres, database.DriverSQLite, c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.EmergencyAlertTopic == "" || c.NotificationTopic == "" {
		return fmt.Errorf("EMERGENCY_ALERT_TOPIC and NOTIFICATION_TOPIC are required")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.TimeoutWarningLead < 0 {
		return fmt.Errorf("TIMEOUT_WARNING_LEAD must not be negative, got %s", c.TimeoutWarningLead)
	}

	for _, t := range c.Transports() {
		var missing string
		switch t {
		case TransportSlack:
			if c.SlackBotToken == "" {
				missing = "SLACK_BOT_TOKEN"
			}
		case TransportRedis:
			if c.RedisAddr == "" {
				missing = "REDIS_ADDR"
			}
		case TransportNATS:
			if c.NATSURL == "" {
				missing = "NATS_URL"
			}
		case TransportWebhook:
			if c.WebhookURL == "" {
				missing = "WEBHOOK_URL"
			}
		case TransportWebSocket:
		default:
			return fmt.Errorf("unknown notification transport %q", t)
		}
		if missing != "" {
			return fmt.Errorf("%s is required when the %s transport is enabled", missing, t)
		}
	}
	return nil
}

// Directory is the responder roster plus the chat routing that goes with it.
type Directory struct {
	Roster models.Roster
	// SlackUsers maps supervisor ids to Slack user ids for direct messages.
	SlackUsers map[string]string
	// TopicChannels maps notification topics to Slack channels.
	TopicChannels map[string]string
}

type rosterFile struct {
	Supervisors []string `yaml:"supervisors"`
	Escalation  struct {
		Levels map[string]models.LevelPolicy `yaml:"levels"`
	} `yaml:"escalation"`
	SlackUsers    map[string]string `yaml:"slackUsers"`
	TopicChannels map[string]string `yaml:"topicChannels"`
}

// LoadDirectory reads the roster YAML at path. An empty path yields the
// built-in roster with no Slack routing.
func LoadDirectory(path string) (*Directory, error) {
	dir := &Directory{
		Roster:        models.DefaultRoster(),
		SlackUsers:    map[string]string{},
		TopicChannels: map[string]string{},
	}
	if path == "" {
		return dir, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	return parseDirectory(data, dir)
}

func parseDirectory(data []byte, dir *Directory) (*Directory, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster file: %w", err)
	}

	if len(f.Supervisors) > 0 {
		dir.Roster.Supervisors = f.Supervisors
	}
	for name, policy := range f.Escalation.Levels {
		level, ok := models.ParseEscalationLevel(name)
		if !ok {
			return nil, fmt.Errorf("roster file: unknown escalation level %q", name)
		}
		if len(policy.Supervisors) == 0 {
			return nil, fmt.Errorf("roster file: level %s has no supervisors", name)
		}
		if policy.TimeoutMinutes <= 0 {
			return nil, fmt.Errorf("roster file: level %s needs a positive timeoutMinutes", name)
		}
		dir.Roster.Levels[level] = policy
	}
	for k, v := range f.SlackUsers {
		dir.SlackUsers[k] = v
	}
	for k, v := range f.TopicChannels {
		dir.TopicChannels[k] = v
	}
	return dir, nil
}
