package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "CropCast/pkg/http"
	applogger "CropCast/pkg/logger"
)

// Runner is a background component started with the app and stopped by
// cancelling its context.
type Runner interface {
	Run(ctx context.Context) error
}

// App encapsulates the serving process lifecycle.
type App struct {
	logger          *applogger.Logger
	httpServer      *xhttp.Server
	runners         []Runner
	shutdownTimeout time.Duration
}

// New creates an App. Nil runners are ignored.
func New(logger *applogger.Logger, srv *xhttp.Server, shutdownTimeout time.Duration, runners ...Runner) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	a := &App{logger: logger, httpServer: srv, shutdownTimeout: shutdownTimeout}
	for _, r := range runners {
		if r != nil {
			a.runners = append(a.runners, r)
		}
	}
	return a
}

// HTTP returns the API server.
func (a *App) HTTP() *xhttp.Server { return a.httpServer }

// Run starts everything and blocks until ctx is cancelled or SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{}, len(a.runners))
	for _, r := range a.runners {
		go func(r Runner) {
			defer func() { done <- struct{}{} }()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("background runner stopped", applogger.Error(err))
			}
		}(r)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown(len(a.runners), done)
}

func (a *App) shutdown(running int, done <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	err := a.httpServer.Stop(ctx)
	if err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	for i := 0; i < running; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn("background runners did not stop in time")
			return ctx.Err()
		}
	}
	a.logger.Info("shutdown complete")
	return err
}
