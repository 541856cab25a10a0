package cmd

import (
	"context"
	"io"

	"grimm.is/wanboard/internal/i18n"
)

// RunCheck validates the configuration file, then reads the connection view
// straight from the router to prove the credentials and naming work.
func RunCheck(ctx context.Context, w io.Writer, configFile string, verbose bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	Printer.Fprintln(w, Printer.Sprintf(i18n.MsgConfigValid))

	if verbose {
		Printer.Fprintf(w, "Router:     %s\n", cfg.Router.Address)
		Printer.Fprintf(w, "WAN prefix: %s\n", cfg.Router.WANPrefix)
		Printer.Fprintf(w, "Devices:    %d\n", len(cfg.Devices))
		Printer.Fprintf(w, "Listen:     %s\n", cfg.API.Listen)
	}

	logger := newLogger(cfg.Logging, io.Discard)
	conns, err := newService(cfg, logger).Connections(ctx)
	if err != nil {
		return err
	}
	Printer.Fprintln(w)
	printConnections(w, conns)
	return nil
}
