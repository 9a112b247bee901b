package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	adapthttp "hypertension/internal/adapter/http"
	"hypertension/internal/adapter/memory"
	"hypertension/internal/adapter/oidcauth"
	"hypertension/internal/adapter/postgres"
	"hypertension/internal/aggregate"
	"hypertension/internal/app"
	"hypertension/internal/config"
	"hypertension/internal/domain"
	"hypertension/internal/logging"
)

const purgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store    domain.DocumentStore
		auth     domain.Authenticator
		sessions domain.SessionRepository
	)
	switch cfg.Store {
	case config.StorePostgres:
		db, err := postgres.Open(cfg.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		defer func() { _ = db.Close() }()
		store, auth, sessions = db, postgres.NewAuthenticator(db), postgres.NewSessionRepo(db)
	default:
		log.Warn().Msg("using in-memory store; data is lost on exit")
		store, auth, sessions = memory.New(), memory.NewAuthenticator(0), memory.NewSessionRepo()
	}

	if cfg.OIDC.Enabled() {
		a, err := oidcauth.New(ctx, oidcauth.Config{
			Issuer:       cfg.OIDC.Issuer,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
		})
		if err != nil {
			return err
		}
		auth = a
		log.Info().Str("issuer", cfg.OIDC.Issuer).Msg("oidc sign-in enabled")
	}

	opts := app.FeedOptions{
		Chart: aggregate.ChartOptions{
			Window:     cfg.Feed.ChartWindow,
			LabelEvery: cfg.Feed.LabelEvery,
			Location:   time.Local,
		},
		EnrichLimit: cfg.Feed.EnrichLimit,
	}
	readings := app.NewReadingService(store, opts, log)
	authSvc := app.NewAuthService(auth, store, sessions, log)

	h := adapthttp.New(adapthttp.Services{
		Auth:            authSvc,
		Readings:        readings,
		Weight:          app.NewWeightService(store, opts, log),
		Medications:     app.NewMedicationService(store, memory.NewScheduler(log), log),
		Goals:           app.NewGoalService(store),
		Tips:            app.NewTipService(store, log),
		Recommendations: app.NewRecommendationService(store, log),
		Patients:        app.NewPatientService(store, readings, log),
	}, log).Handler()

	go purgeSessions(ctx, authSvc, log)

	// Shutdown cancels base, which ends open event streams.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancelBase)
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func purgeSessions(ctx context.Context, auth *app.AuthService, log zerolog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := auth.PurgeExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("purge expired sessions")
			}
		}
	}
}
