package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/internal/config"
	"github.com/siahsang/beatpost/internal/fakeapi"
)

const (
	shutdownTimeout = 10 * time.Second
	fakeSeedUsers   = 12
)

func (app *application) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              app.config.ListenAddr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.doInBackground(func() {
		app.auth.Start(ctx)
	})

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		app.logger.Info("shutting down view server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(shutdownCtx)
	}()

	app.logger.Info("starting view server", slog.String("addr", server.Addr), slog.String("api", app.api.BaseURL()))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return xerrors.Newf("listen: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return xerrors.Newf("shutdown: %w", err)
	}

	app.wg.Wait()
	app.logger.Info("stopped view server")
	return nil
}

// startFakeBackend serves a seeded in-memory backend on a free local port and
// points cfg at it.
func startFakeBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(), error) {
	backend, err := fakeapi.New(fakeapi.Options{JWTSecret: cfg.FakeJWTSecret, Logger: logger.With("component", "fakeapi")})
	if err != nil {
		return nil, err
	}
	accounts, err := backend.Store().Seed(cfg.FakeSeed, fakeSeedUsers)
	if err != nil {
		return nil, xerrors.Newf("seed fake backend: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, xerrors.Newf("listen fake backend: %w", err)
	}
	server := &http.Server{Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("fake backend stopped", slog.String("stack", xerrors.Sprint(err)))
		}
	}()

	cfg.APIURL = "http://" + listener.Addr().String() + "/api"
	logger.Info("serving fake backend",
		slog.String("api", cfg.APIURL),
		slog.Int("accounts", len(accounts)),
		slog.String("demo_email", fakeapi.DemoEmail),
		slog.String("demo_password", fakeapi.DemoPassword))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("stopping fake backend failed", slog.String("stack", xerrors.Sprint(err)))
		}
	}, nil
}
