// Command parleyd serves multi-party debates over HTTP.
//
// Usage:
//
//	export OPENAI_API_KEY=sk-...
//	parleyd -config config.yaml
//
// Clients create a debate with POST /debates, then open
// GET /debates/{id}/stream to run it and receive the event stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parleyhq/parley/logger"
	"github.com/parleyhq/parley/metrics/prometheus"
	"github.com/parleyhq/parley/providers"
	"github.com/parleyhq/parley/resultstore"
	"github.com/parleyhq/parley/server"
	"github.com/parleyhq/parley/session"
	"github.com/parleyhq/parley/version"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersionInfo())
		return
	}

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	provider := providers.NewOpenAIProvider(
		cfg.Provider.ID,
		cfg.Provider.Model,
		cfg.Provider.BaseURL,
		providers.ProviderDefaults{
			Temperature: cfg.Provider.Temperature,
			MaxTokens:   cfg.Provider.MaxTokens,
		},
		openAIOptions(cfg.Provider)...,
	)
	defer provider.Close()

	var registry session.Registry
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		registry = session.NewRedisRegistry(client, session.WithRedisTTL(cfg.SessionTTL))
	} else {
		memReg := session.NewMemoryRegistry(session.WithTTL(cfg.SessionTTL))
		defer memReg.Close()
		registry = memReg
	}

	results, err := resultstore.NewStore(cfg.ResultsDir)
	if err != nil {
		logger.Error("failed to open result store", "dir", cfg.ResultsDir, "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(provider,
		server.WithAddr(cfg.Addr),
		server.WithRegistry(registry),
		server.WithResultStore(results),
		server.WithAllowedOrigin(cfg.AllowedOrigin),
		server.WithMaxConcurrentDebates(cfg.MaxConcurrentDebates),
	)

	var exporter *prometheus.Exporter
	if cfg.MetricsAddr != "" {
		exporter = prometheus.NewExporter(cfg.MetricsAddr)
		go func() {
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics exporter failed", "error", err)
			}
		}()
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		if exporter != nil {
			_ = exporter.Shutdown(ctx)
		}
	}()

	attrs := append([]any{"addr", cfg.Addr, "provider", cfg.Provider.ID, "model", cfg.Provider.Model},
		version.GetBuildInfo()...)
	logger.Info("parleyd starting", attrs...)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func openAIOptions(cfg server.ProviderConfig) []providers.OpenAIOption {
	var opts []providers.OpenAIOption
	if cfg.Timeout > 0 {
		opts = append(opts, providers.WithTimeout(cfg.Timeout))
	}
	return opts
}
