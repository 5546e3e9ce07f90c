package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"aichat/internal/chat"
	"aichat/internal/config"
	providerfactory "aichat/internal/provider/factory"
	"aichat/internal/server"
	"aichat/internal/session"
	"aichat/internal/transport"
)

const serveUsage = `Usage:
  aichat serve --config <path> [--port <port>]

Flags:
  --config string   Path to YAML configuration file (required)
  --port   int      Override server port from configuration`

const janitorInterval = 10 * time.Minute

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("serve command requires --config <path>")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := providerfactory.NewRegistry(cfg)
	if err != nil {
		return err
	}

	client := transport.NewHTTPClient(cfg.Server.RequestTimeout, logger)
	svc := chat.NewService(registry, store, client, logger)

	srv, err := server.New(cfg, svc, logger)
	if err != nil {
		return err
	}

	if purger, ok := store.(session.Purger); ok {
		go session.RunJanitor(ctx, purger, janitorInterval, logger)
	}

	return srv.Run(ctx)
}

// openStore builds the configured session backend. The returned func
// releases it.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case config.SessionBackendPostgres:
		if err := session.RunMigrations(cfg.Session.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		pool, err := session.NewPool(ctx, cfg.Session.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("session store ready", slog.String("backend", cfg.Session.Backend))
		return session.NewPostgresStore(pool, cfg.Session.TTL), pool.Close, nil
	default:
		logger.Info("session store ready", slog.String("backend", cfg.Session.Backend), slog.Duration("ttl", cfg.Session.TTL))
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}
}
