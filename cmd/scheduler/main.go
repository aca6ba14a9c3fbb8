package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dutyroster/scheduler/internal/config"
	"github.com/dutyroster/scheduler/internal/httpapi"
	"github.com/dutyroster/scheduler/internal/logging"
	"github.com/dutyroster/scheduler/internal/repository/sqlite"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log := logging.GetLogger("main")
	log.Info().Str("version", version).Str("commit", commit).Str("built", date).Msg("starting duty rotation scheduler")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received signal, initiating shutdown")
		cancel()
	}()

	if err := run(ctx, log); err != nil {
		log.Fatal().Err(err).Msg("scheduler exited with error")
	}
}

func run(ctx context.Context, log zerolog.Logger) error {
	configPath := os.Getenv("SCHED_CONFIG_FILE")
	if configPath == "" {
		configPath = "configs/scheduler.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Initialize(cfg.Log.Development)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqlite.New(sqlite.DefaultOptions(cfg.Database.Path))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repo := sqlite.NewRepository(db)

	server := httpapi.NewServer(repo, httpapi.SolverSettings{
		MaxPerPerson:   cfg.Solver.MaxPerPerson,
		DeltaScaledCap: cfg.Solver.DeltaScaledCap,
	}, []string{"*"})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info().Msg("shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}
