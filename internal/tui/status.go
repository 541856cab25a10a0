package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"grimm.is/wanboard/internal/monitor"
	"grimm.is/wanboard/internal/wan"
)

const statusTimeout = 5 * time.Second

type statusMsg struct {
	throughput *wan.Throughput
	devices    []monitor.DeviceStatus
	power      *monitor.PowerStatus
	err        error
}

type refreshStatusMsg struct{}

// fetchStatus loads the three panel sources concurrently. Power is optional:
// a failed power probe leaves it nil without failing the panel.
func fetchStatus(src StatusSource) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()

		var msg statusMsg
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			tp, err := src.Throughput(gctx)
			msg.throughput = tp
			return err
		})
		g.Go(func() error {
			devices, err := src.Devices(gctx)
			msg.devices = devices
			return err
		})
		g.Go(func() error {
			if power, err := src.PowerStatus(gctx); err == nil {
				msg.power = power
			}
			return nil
		})
		msg.err = g.Wait()
		return msg
	}
}

func formatRate(bps int64) string {
	return humanize.SIWithDigits(float64(bps), 1, "bps")
}

func (m Model) panelView() string {
	p := m.panel

	var tp string
	if p.throughput != nil {
		tp = fmt.Sprintf("↓ %s  ↑ %s", formatRate(p.throughput.RxSpeed), formatRate(p.throughput.TxSpeed))
	} else {
		tp = StyleSubtitle.Render("no data")
	}
	throughput := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Throughput"), tp))

	lines := []string{StyleTitle.Render("Devices")}
	for _, d := range p.devices {
		state := StyleStatusBad.Render("offline")
		if d.Online {
			state = StyleStatusGood.Render("online")
		}
		lines = append(lines, fmt.Sprintf("%-12s %s", d.DeviceName, state))
	}
	if p.power != nil {
		state := StyleStatusBad.Render("on battery")
		if p.power.Status {
			state = StyleStatusGood.Render("mains")
		}
		lines = append(lines, fmt.Sprintf("%-12s %s", "Power", state))
	}
	devices := StyleCard.Render(strings.Join(lines, "\n"))

	row := lipgloss.JoinHorizontal(lipgloss.Top, throughput, devices)
	if p.err != nil {
		row = lipgloss.JoinVertical(lipgloss.Left, row, StyleStatusWarn.Render(p.err.Error()))
	}
	return row
}
