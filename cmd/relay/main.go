// Command relay serves the generation endpoints.
//
// Configuration comes from an optional YAML file (-config, or AETHER_CONFIG)
// plus AETHER__ environment overrides; a .env file in the working directory
// is loaded first. API_KEY is the only required value.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lizzyg/aether/internal/config"
	"github.com/lizzyg/aether/internal/metrics"
	"github.com/lizzyg/aether/internal/providers"
	"github.com/lizzyg/aether/internal/relay"
)

func main() {
	configPath := flag.String("config", os.Getenv("AETHER_CONFIG"), "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("relay stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	hc := &http.Client{Timeout: 5 * time.Minute}
	gens, err := providers.NewSet(cfg, hc, logger, metrics.ObserveAttempt)
	if err != nil {
		return err
	}
	srv := relay.NewServer(cfg, gens, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("relay http server error: %w", err)
		}
		return nil
	})
	if cfg.Metrics.Addr != "" {
		group.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			ms := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics listening", slog.String("addr", cfg.Metrics.Addr))
			if err := relay.Serve(ctx, ms, cfg.Server.ShutdownTimeout); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	logger.Info("relay started",
		slog.String("text_provider", cfg.Upstream.TextProvider),
		slog.Int("max_attempts", cfg.Retry.MaxAttempts),
		slog.Duration("base_delay", cfg.Retry.BaseDelay),
	)
	return group.Wait()
}
