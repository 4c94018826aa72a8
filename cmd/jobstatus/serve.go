package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/mohans/jobstatus"
	"github.com/mohans/jobstatus/api"
)

func runServe(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := e.newClient()

	sched := jobstatus.NewScheduler(client, e.log.Logger)
	for _, s := range e.cfg.Schedules {
		if _, err := sched.Add(s.Spec, s.Queue, s.Job, s.Options); err != nil {
			return fmt.Errorf("failed to add schedule %q for %s: %w", s.Spec, s.Job, err)
		}
	}
	sched.Start()

	if e.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(&api.Dependencies{
		Logger: e.log.Logger,
		Store:  e.store,
		Client: client,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", e.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  e.cfg.Server.ReadTimeout,
		WriteTimeout: e.cfg.Server.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		e.log.Info("Starting HTTP server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		e.log.Info("Received signal, shutting down gracefully")
	case runErr = <-errChan:
		e.log.Error("Server error", slog.String("error", runErr.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		e.log.Warn("Scheduler shutdown timeout exceeded", slog.String("error", err.Error()))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	e.log.Info("Server exited")
	return runErr
}
