// Command codeshieldd serves the CodeShield scan API over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/bootstrap"
	"github.com/brad07/codeshield/pkg/config"
	"github.com/brad07/codeshield/pkg/events"
	"github.com/brad07/codeshield/pkg/logging"
	"github.com/brad07/codeshield/pkg/server"
	"github.com/brad07/codeshield/pkg/storage"
	"github.com/brad07/codeshield/pkg/watch"
)

var version = "dev"

func main() {
	host := flag.String("host", "", "Host to bind to (default from config)")
	port := flag.Int("port", 0, "Port to listen on (default from config)")
	configPath := flag.String("config", "", "Path to configuration file")
	projectDir := flag.String("project", ".", "Project directory for .codeshield/ overrides and .env")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("codeshieldd %s\n", version)
		os.Exit(0)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath, *projectDir)
	} else {
		cfg, err = config.Load(*projectDir)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting codeshieldd", zap.String("version", version))

	base, err := bootstrap.BaseRegistry(cfg.Signatures.Packs)
	if err != nil {
		return fmt.Errorf("failed to load signature packs: %w", err)
	}
	registry := base
	if cfg.Signatures.CustomPath != "" {
		registry, err = watch.LoadRegistry(base, cfg.Signatures.CustomPath)
		if err != nil {
			return err
		}
	}
	logger.Info("signatures loaded",
		zap.Strings("packs", cfg.Signatures.Packs),
		zap.String("custom", cfg.Signatures.CustomPath),
		zap.Int("count", registry.Len()))

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	reviewer, err := bootstrap.NewReviewer(initCtx, cfg, logger)
	if err == nil && reviewer != nil {
		if reviewer.IsAvailable(initCtx) {
			logger.Info("semantic reviewer ready", zap.String("provider", reviewer.Name()), zap.String("model", cfg.LLM.Model))
		} else {
			logger.Warn("semantic reviewer not reachable, scans will be pattern-only until it is",
				zap.String("provider", reviewer.Name()), zap.String("endpoint", cfg.LLM.Endpoint))
		}
	}
	cancel()
	if err != nil {
		return err
	}
	if reviewer != nil {
		defer reviewer.Close()
	}

	eng := bootstrap.NewEngine(registry, reviewer, cfg, logger)

	if cfg.Signatures.Watch {
		watchCfg := watch.DefaultConfig(cfg.Signatures.CustomPath)
		watchCfg.Logger = logger
		w, err := watch.New(base, eng, watchCfg)
		if err != nil {
			return fmt.Errorf("failed to create signature watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
		logger.Info("watching custom signatures", zap.String("path", cfg.Signatures.CustomPath))
	}

	store := storage.NewMemoryStore(0)
	defer store.Close()

	serverCfg := server.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.Parallelism = cfg.Scan.Parallelism
	serverCfg.Version = version
	serverCfg.Logger = logger
	if cfg.LLM.Enabled && cfg.LLM.Timeout+30*time.Second > serverCfg.WriteTimeout {
		serverCfg.WriteTimeout = cfg.LLM.Timeout + 30*time.Second
	}

	srv := server.New(serverCfg, eng, store)

	var publishers events.MultiPublisher
	if cfg.Events.Enabled {
		pub, err := events.NewNATSPublisher(cfg.Events.NatsURL, cfg.Events.Subject, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		publishers = append(publishers, pub)
	}
	if cfg.Events.WebhookURL != "" {
		publishers = append(publishers, events.NewWebhookPublisher(events.WebhookConfig{
			URL:    cfg.Events.WebhookURL,
			Secret: cfg.Events.WebhookSecret,
			Logger: logger,
		}))
		logger.Info("sending scan webhooks", zap.String("url", cfg.Events.WebhookURL))
	}
	if len(publishers) > 0 {
		defer publishers.Close()
		srv.SetPublisher(publishers)
	}

	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if err := srv.Stop(); err != nil {
		logger.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}
