package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carecall/carecall/internal/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the timeout monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap()
			if err != nil {
				return err
			}
			defer rt.close()
			return runServer(rt)
		},
	}
}

func runServer(rt *runtimeEnv) error {
	app, err := rt.wire()
	if err != nil {
		return err
	}
	defer app.close()

	sqlDB, err := rt.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	emergency := handlers.NewEmergencyHandler(app.episodes, app.alerts, app.escalations, rt.log)
	var hub handlers.Subscribers
	if app.hub != nil {
		hub = app.hub
	}
	httpHandler := handlers.NewHTTPHandler(emergency, sqlDB, hub, rt.log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.HTTPPort),
		Handler:           httpHandler.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopMonitor := make(chan struct{})
	go app.monitor.Start(rt.cfg.SweepInterval, stopMonitor)

	serveErr := make(chan error, 1)
	go func() {
		rt.log.Info("starting HTTP server", zap.Int("port", rt.cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		rt.log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	close(stopMonitor)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	rt.log.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		rt.log.Warn("error shutting down HTTP server", zap.Error(err))
	}
	rt.log.Info("shutdown complete")
	return runErr
}
