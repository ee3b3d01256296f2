// Package app wires the realtime subsystem together: every service is
// constructed explicitly and injected downward, so one process-wide instance
// of each exists without hidden global state.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"paddlearena/server/internal/api"
	"paddlearena/server/internal/metrics"
	"paddlearena/server/internal/queue"
	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/room"
	"paddlearena/server/internal/ws"
)

// Config carries the tunables read from the environment.
type Config struct {
	HTTPAddr    string
	TickRate    int
	SkillWindow float64
	QueueTTL    time.Duration
	LogLevel    zerolog.Level
}

// ConfigFromEnv applies defaults and environment overrides.
func ConfigFromEnv() Config {
	cfg := Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		TickRate:    0, // gateway default
		SkillWindow: queue.DefaultConfig().SkillWindow,
		QueueTTL:    queue.DefaultConfig().TTL,
		LogLevel:    zerolog.InfoLevel,
	}
	if raw := os.Getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.TickRate = value
		}
	}
	if raw := os.Getenv("MM_SKILL_WINDOW"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.SkillWindow = value
		}
	}
	if raw := os.Getenv("MM_QUEUE_TTL"); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil && value > 0 {
			cfg.QueueTTL = value
		}
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := zerolog.ParseLevel(raw); err == nil {
			cfg.LogLevel = level
		}
	}
	return cfg
}

// Run constructs the service graph and serves until the context is cancelled
// or a termination signal arrives.
func Run(ctx context.Context, cfg Config) error {
	logger := zerolog.New(os.Stdout).Level(cfg.LogLevel).With().Timestamp().Logger()
	metrics.Init()

	reg := registry.New(logger)
	rooms := room.NewManager(reg, logger)
	mm := queue.NewMatchmaker(rooms, reg, queue.Config{SkillWindow: cfg.SkillWindow, TTL: cfg.QueueTTL}, logger)
	hub := ws.NewHub(reg, rooms, ws.Config{TickRate: cfg.TickRate}, logger)

	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(reg, rooms, mm, hub, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
