package cmd

import (
	"context"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"grimm.is/wanboard/internal/brand"
	"grimm.is/wanboard/internal/config"
	"grimm.is/wanboard/internal/dashboard"
	"grimm.is/wanboard/internal/tui"
)

// TUIOptions configures the terminal dashboard.
type TUIOptions struct {
	ClientOptions
	// ConfigFile, when set, supplies poll timings and logging. With Local it
	// also supplies the router connection.
	ConfigFile string
	// Local drives the router directly instead of going through the API.
	Local bool
}

// RunTUI runs the terminal dashboard until the user quits.
func RunTUI(opts TUIOptions) error {
	cfg := &config.Config{}
	if opts.ConfigFile != "" {
		loaded, err := loadConfig(opts.ConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.ApplyDefaults()
	}

	// The terminal belongs to the program, so logs only go to the file.
	logger := newLogger(cfg.Logging, io.Discard)

	var (
		backend dashboard.Backend
		status  tui.StatusSource
		title   = brand.Name
	)
	if opts.Local {
		backend = dashboard.LocalBackend{Service: newService(cfg, logger)}
		title += " · " + cfg.Router.Address
	} else {
		if opts.URL == "" {
			opts.URL = cfg.Dashboard.URL
		}
		c := opts.client()
		backend = c
		status = c
		title += " · " + opts.URL
	}

	var program *tea.Program
	coord := dashboard.New(backend,
		dashboard.WithLogger(logger.WithComponent("dashboard")),
		dashboard.WithPollInterval(cfg.Dashboard.PollIntervalDuration()),
		dashboard.WithSettleDelay(cfg.Dashboard.SettleDelayDuration()),
		dashboard.WithRenderer(dashboard.RenderFunc(func(v dashboard.View) {
			program.Send(tui.ViewMsg(v))
		})),
	)
	program = tea.NewProgram(tui.NewModel(title, coord, status), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = coord.Run(ctx)
	}()

	_, err := program.Run()
	cancel()
	wg.Wait()
	return err
}
