package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"grimm.is/wanboard/internal/api"
	"grimm.is/wanboard/internal/audit"
	"grimm.is/wanboard/internal/brand"
	"grimm.is/wanboard/internal/monitor"
	"grimm.is/wanboard/internal/unifi"
)

// RunServe runs the API server until SIGINT or SIGTERM.
func RunServe(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, os.Stderr)
	logger.Info("starting", "version", brand.Version, "commit", brand.GitCommit, "config", configFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := api.ServerOptions{
		Config:  cfg,
		Service: newService(cfg, logger),
		Logger:  logger.WithComponent("api"),
	}

	var powerHost string
	if cfg.Power != nil {
		powerHost = cfg.Power.Host
	}
	opts.Prober = monitor.NewProber(cfg.Devices, powerHost, cfg.Probe.TimeoutDuration(), logger.WithComponent("monitor"))

	if cfg.UniFi != nil {
		opts.Guest = unifi.NewClient(unifi.Options{
			URL:      cfg.UniFi.URL,
			Username: cfg.UniFi.Username,
			Password: cfg.UniFi.Password,
			Site:     cfg.UniFi.Site,
			Insecure: cfg.UniFi.Insecure,
			Logger:   logger.WithComponent("unifi"),
		})
	}

	if cfg.API.Static != "" {
		opts.Assets = os.DirFS(cfg.API.Static)
	}

	g, gctx := errgroup.WithContext(ctx)

	if !cfg.Audit.Disabled {
		store, err := audit.NewStore(cfg.Audit.Path, cfg.Audit.RetentionDays)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		defer store.Close()
		opts.Audit = store

		auditLog := logger.WithComponent("audit")
		g.Go(func() error {
			store.RunPruner(gctx, func(n int64, err error) {
				if err != nil {
					auditLog.Warn("audit prune failed", "error", err)
					return
				}
				auditLog.Info("audit pruned", "deleted", n, "retention_days", cfg.Audit.RetentionDays)
			})
			return nil
		})
	}

	srv, err := api.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	g.Go(func() error {
		return srv.Start(gctx, cfg.API.Listen)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
