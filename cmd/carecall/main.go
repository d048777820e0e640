package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/carecall/carecall/internal/config"
	"github.com/carecall/carecall/internal/database"
	"github.com/carecall/carecall/internal/jobs"
	"github.com/carecall/carecall/internal/logging"
	"github.com/carecall/carecall/internal/notify"
	"github.com/carecall/carecall/internal/services"
	"github.com/carecall/carecall/internal/slack"
	"github.com/carecall/carecall/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const serviceName = "carecall"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Emergency alert and escalation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(escalationCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	var episodesOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the episode table and the alert and escalation tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			if episodesOnly {
				err = database.MigrateEpisodesOnly(rt.db, rt.cfg.Tables())
			} else {
				err = database.Migrate(rt.db, rt.cfg.Tables(), rt.log)
			}
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			rt.log.Info("migrations applied", zap.Bool("episodes_only", episodesOnly))
			return nil
		},
	}
	cmd.Flags().BoolVar(&episodesOnly, "episodes-only", false, "create only the episode table; alerts and escalations stay embedded")
	return cmd
}

func sweepCmd() *cobra.Command {
	var escalationsOnly bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one timeout sweep and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()

			app, err := rt.wire()
			if err != nil {
				return err
			}
			defer app.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			if escalationsOnly {
				report, err := app.escalations.CheckEscalationTimeouts(ctx)
				if err != nil {
					return fmt.Errorf("sweep escalations: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			}
			report, err := app.monitor.RunOnce(ctx)
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&escalationsOnly, "escalations-only", false, "skip timeout warnings and the status digest")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runtimeEnv is the configuration, logger and database every command needs.
type runtimeEnv struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func bootstrap() (*runtimeEnv, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, logger.Warn)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established", zap.String("driver", cfg.DatabaseDriver))

	return &runtimeEnv{cfg: cfg, log: log, db: db}, nil
}

func (rt *runtimeEnv) close() {
	if err := database.Close(rt.db); err != nil {
		rt.log.Warn("failed to close database", zap.Error(err))
	}
	_ = rt.log.Sync()
}

// app is the wired engine graph shared by serve and sweep.
type app struct {
	episodes    *store.EpisodeRepository
	alerts      *services.AlertService
	escalations *services.EscalationService
	monitor     *jobs.TimeoutMonitor
	hub         *notify.Hub
	closers     []func() error
}

func (rt *runtimeEnv) wire() (*app, error) {
	dir, err := config.LoadDirectory(rt.cfg.RosterFile)
	if err != nil {
		return nil, err
	}

	a := &app{}
	pub, err := a.transports(rt.cfg, dir, rt.log)
	if err != nil {
		a.close()
		return nil, err
	}

	dispatcher := notify.NewDispatcher(pub, notify.Topics{
		EmergencyAlert: rt.cfg.EmergencyAlertTopic,
		Notification:   rt.cfg.NotificationTopic,
	}, rt.log)

	tables := rt.cfg.Tables()
	a.episodes = store.NewEpisodeRepository(rt.db, tables.Episodes, nil)
	records := store.New(a.episodes, store.NewTableStore(rt.db, tables.Alerts, tables.Escalations, nil), rt.log)

	deps := services.Deps{
		Episodes: a.episodes,
		Records:  records,
		Roster:   dir.Roster,
		Notifier: dispatcher,
		Logger:   rt.log,
	}
	a.alerts = services.NewAlertService(deps)
	a.escalations = services.NewEscalationService(deps)
	a.monitor = jobs.NewTimeoutMonitor(a.escalations, a.alerts, dispatcher, rt.cfg.TimeoutWarningLead, rt.log)
	return a, nil
}

// transports builds the enabled publishers in configured order.
func (a *app) transports(cfg *config.Config, dir *config.Directory, log *zap.Logger) (notify.Publisher, error) {
	var pubs notify.Multi
	for _, name := range cfg.Transports() {
		switch name {
		case config.TransportSlack:
			pubs = append(pubs, slack.NewPublisher(cfg.SlackBotToken, dir.SlackUsers, dir.TopicChannels, log))
		case config.TransportRedis:
			p := notify.NewRedisStreamPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			a.closers = append(a.closers, p.Close)
			pubs = append(pubs, p)
		case config.TransportNATS:
			p, err := notify.DialNATS(cfg.NATSURL, serviceName, log)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, p.Close)
			pubs = append(pubs, p)
		case config.TransportWebhook:
			pubs = append(pubs, notify.NewWebhookPublisher(cfg.WebhookURL))
		case config.TransportWebSocket:
			a.hub = notify.NewHub(log)
			a.closers = append(a.closers, func() error { a.hub.Close(); return nil })
			pubs = append(pubs, a.hub)
		}
		log.Info("notification transport enabled", zap.String("transport", name))
	}
	if len(pubs) == 0 {
		log.Warn("no notification transports enabled; notifications are discarded")
		return notify.Discard{}, nil
	}
	return pubs, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			zap.L().Warn("failed to close transport", zap.Error(err))
		}
	}
}
