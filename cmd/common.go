// Package cmd implements the wanboard subcommands.
package cmd

import (
	"fmt"
	"io"
	"time"

	"grimm.is/wanboard/internal/client"
	"grimm.is/wanboard/internal/config"
	"grimm.is/wanboard/internal/i18n"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/routeros"
	"grimm.is/wanboard/internal/wan"
)

// Printer is the localized printer for CLI output.
var Printer = i18n.NewCLIPrinter()

// ClientOptions selects the API server a one-shot command talks to.
type ClientOptions struct {
	URL      string
	Insecure bool
	Timeout  time.Duration
}

func (o ClientOptions) client() *client.HTTPClient {
	url := o.URL
	if url == "" {
		url = config.DefaultDashboardURL
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []client.ClientOption{client.WithTimeout(timeout)}
	if o.Insecure {
		opts = append(opts, client.WithInsecureTLS())
	}
	return client.NewHTTPClient(url, opts...)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging block and installs it
// as the default. out receives console output; the optional file is rotated.
func newLogger(lc *config.LoggingConfig, out io.Writer) *logging.Logger {
	if lc == nil {
		lc = &config.LoggingConfig{}
	}
	level, levelErr := logging.ParseLevel(lc.Level)

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.JSON = lc.JSON
	cfg.Output = out
	if lc.File != "" {
		cfg.File = &logging.FileConfig{
			Path:       lc.File,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
			Compress:   true,
		}
	}

	logger := logging.New(cfg)
	logging.SetDefault(logger)
	if levelErr != nil {
		logger.Warn("invalid log level, using info", "level", lc.Level)
	}
	return logger
}

func newRouterClient(cfg *config.Config, logger *logging.Logger) *routeros.HTTPClient {
	r := cfg.Router
	return routeros.NewHTTPClient(r.Address,
		routeros.WithCredentials(r.Username, r.Password),
		routeros.WithTimeout(r.TimeoutDuration()),
		routeros.WithInsecureTLS(r.Insecure),
		routeros.WithLogger(logger.WithComponent("routeros")),
	)
}

func newService(cfg *config.Config, logger *logging.Logger) *wan.Service {
	naming := wan.Naming{
		WANPrefix:          cfg.Router.WANPrefix,
		LabelSeparator:     cfg.Router.LabelSeparator,
		DefaultRouteMarker: cfg.Router.DefaultRouteMarker,
	}
	return wan.NewService(newRouterClient(cfg, logger), naming,
		wan.WithLogger(logger.WithComponent("wan")))
}
