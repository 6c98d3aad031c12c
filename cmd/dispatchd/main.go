// Command dispatchd is the dispatch server daemon. It wires the provider,
// tool registry, task manager, and journal together and serves the task
// API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dispatchd/dispatch/config"
	"github.com/dispatchd/dispatch/internal/version"
	"github.com/dispatchd/dispatch/provider"
	"github.com/dispatchd/dispatch/provider/mock"
	"github.com/dispatchd/dispatch/server"
	"github.com/dispatchd/dispatch/task"
	"github.com/dispatchd/dispatch/tool"
)

var configPath = flag.String("config", "dispatch.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", *configPath, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	logger.Info("starting dispatchd",
		"version", version.Version,
		"commit", version.Commit,
		"provider", cfg.Provider.Name,
	)

	p, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to configure provider: %v", err)
	}

	tools := tool.NewDefaultRegistry(tool.Options{
		ResultTTL:     cfg.ResultTTL(),
		Timeout:       cfg.ToolTimeout(),
		CacheCapacity: cfg.Cache.Capacity,
		Logger:        logger,
	})

	journal, err := task.NewJournal(cfg.Journal.DSN)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer journal.Close()

	manager := task.NewManager(task.ManagerOptions{
		Provider: p,
		Tools:    tools,
		Env:      cfg,
		Journal:  journal,
		Logger:   logger,
	})

	srv := server.New(cfg, manager, tools, version.Version, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	logger.Info("shutdown complete")
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist. A missing explicit path is still an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && path == "dispatch.yaml" {
		return config.DefaultConfig(), nil
	}
	return nil, err
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider.Name {
	case "mock":
		return mock.New(), nil
	case "openai", "":
		key := cfg.Provider.APIKey()
		if key == "" {
			return nil, errors.New("no API key in $" + cfg.Provider.APIKeyEnv)
		}
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  key,
			Model:   cfg.Provider.Model,
			BaseURL: cfg.Provider.BaseURL,
		}), nil
	default:
		return nil, errors.New("unknown provider " + cfg.Provider.Name)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
