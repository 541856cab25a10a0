package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"grimm.is/wanboard/internal/brand"
	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/wan"
)

// RunStatus prints the connection view, the throughput and the monitored
// devices.
func RunStatus(ctx context.Context, w io.Writer, opts ClientOptions) error {
	c := opts.client()

	conns, err := c.Connections(ctx)
	if err != nil {
		return err
	}
	printConnections(w, conns)

	if tp, err := c.Throughput(ctx); err == nil {
		Printer.Fprintf(w, "\nThroughput: rx %d bit/s, tx %d bit/s\n", tp.RxSpeed, tp.TxSpeed)
	}

	devices, err := c.Devices(ctx)
	if err == nil && len(devices) > 0 {
		Printer.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DEVICE\tIP\tONLINE")
		for _, d := range devices {
			fmt.Fprintf(tw, "%s\t%s\t%t\n", d.DeviceName, d.IP, d.Online)
		}
		tw.Flush()
	}
	if ps, err := c.PowerStatus(ctx); err == nil {
		Printer.Fprintf(w, "Power: %t\n", ps.Status)
	}
	return nil
}

func printConnections(w io.Writer, conns []wan.Connection) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tINTERFACE\tRUNNING\tDISABLED\tACTIVE\tPREFERRED")
	for _, c := range conns {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\t%t\n",
			c.Label, c.InterfaceName, c.Running, c.Disabled, c.Active, c.Preferred)
	}
	tw.Flush()
}

// RunPrefer makes iface the preferred WAN through the API.
func RunPrefer(ctx context.Context, w io.Writer, opts ClientOptions, iface string) error {
	if iface == "" {
		return errors.Errorf(errors.KindValidation, "usage: %s prefer <interface>", brand.LowerName)
	}
	msg, err := opts.client().PreferMessage(ctx, iface)
	if err != nil {
		return err
	}
	Printer.Fprintln(w, msg)
	return nil
}

// RunRefresh disables and re-enables iface through the API.
func RunRefresh(ctx context.Context, w io.Writer, opts ClientOptions, iface string) error {
	if iface == "" {
		return errors.Errorf(errors.KindValidation, "usage: %s refresh <interface>", brand.LowerName)
	}
	msg, err := opts.client().RefreshMessage(ctx, iface)
	if err != nil {
		return err
	}
	Printer.Fprintln(w, msg)
	return nil
}

// RunAudit prints the most recent audit events, newest first.
func RunAudit(ctx context.Context, w io.Writer, opts ClientOptions, action string, limit int) error {
	events, err := opts.client().Audit(ctx, action, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tINTERFACE\tSTATUS\tCLIENT\tMESSAGE")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action, e.Interface, e.Status, e.ClientIP, e.Message)
	}
	return tw.Flush()
}

// RunGuest prints the guest network credentials, rotating the passphrase
// first when reset is set.
func RunGuest(ctx context.Context, w io.Writer, opts ClientOptions, reset bool) error {
	c := opts.client()

	get := c.GuestWifi
	if reset {
		get = c.ResetGuestPassword
	}
	gw, err := get(ctx)
	if err != nil {
		return err
	}
	Printer.Fprintf(w, "SSID:     %s\nPassword: %s\n", gw.Name, gw.Password)
	return nil
}
