package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/carecall/carecall/internal/services"
	"go.uber.org/zap"
)

type escalationSweeper interface {
	CheckEscalationTimeouts(ctx context.Context) (*services.SweepReport, error)
}

type alertSweeper interface {
	SendTimeoutWarnings(ctx context.Context, lead time.Duration) (int, error)
	EmergencyStats(ctx context.Context) (models.EmergencyStats, error)
}

// TickReport is the outcome of one monitor pass.
type TickReport struct {
	Sweep    *services.SweepReport `json:"sweep,omitempty"`
	Warnings int                   `json:"warnings"`
	Stats    models.EmergencyStats `json:"stats"`
}

// TimeoutMonitor drives the time-based work of the emergency engines: the
// escalation timeout sweep, response-target warnings and the status digest.
type TimeoutMonitor struct {
	escalations escalationSweeper
	alerts      alertSweeper
	notifier    services.Notifier
	warningLead time.Duration
	log         *zap.Logger
}

// NewTimeoutMonitor creates a new timeout monitor. A zero warningLead
// disables timeout warnings.
func NewTimeoutMonitor(escalations escalationSweeper, alerts alertSweeper, notifier services.Notifier, warningLead time.Duration, log *zap.Logger) *TimeoutMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &TimeoutMonitor{
		escalations: escalations,
		alerts:      alerts,
		notifier:    notifier,
		warningLead: warningLead,
		log:         log.Named("monitor"),
	}
}

// RunOnce performs one pass. Each step runs even if an earlier one failed;
// the returned error joins every step failure.
func (m *TimeoutMonitor) RunOnce(ctx context.Context) (*TickReport, error) {
	report := &TickReport{}
	var errs []error

	sweep, err := m.escalations.CheckEscalationTimeouts(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("escalation sweep: %w", err))
	}
	report.Sweep = sweep

	if m.warningLead > 0 {
		n, err := m.alerts.SendTimeoutWarnings(ctx, m.warningLead)
		if err != nil {
			errs = append(errs, fmt.Errorf("timeout warnings: %w", err))
		}
		report.Warnings = n
	}

	stats, err := m.alerts.EmergencyStats(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("emergency stats: %w", err))
	} else {
		report.Stats = stats
		if m.notifier != nil {
			m.notifier.SendEmergencyStatusUpdate(ctx, stats)
		}
	}

	return report, errors.Join(errs...)
}

// Start begins the periodic monitoring
func (m *TimeoutMonitor) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	m.log.Info("timeout monitor started", zap.Duration("interval", interval), zap.Duration("warning_lead", m.warningLead))
	for {
		select {
		case <-ticker.C:
			report, err := m.RunOnce(ctx)
			if err != nil {
				m.log.Error("timeout monitor error", zap.Error(err))
			}
			timedOut := 0
			if report.Sweep != nil {
				timedOut = report.Sweep.TimedOut
			}
			if timedOut > 0 || report.Warnings > 0 {
				m.log.Info("timeout monitor tick",
					zap.Int("timed_out", timedOut),
					zap.Int("warnings", report.Warnings),
					zap.Int("active_alerts", report.Stats.ActiveAlerts))
			}
		case <-stop:
			m.log.Info("timeout monitor stopped")
			return
		}
	}
}
