// Package tui is the terminal dashboard. It draws the views a
// dashboard.Coordinator renders and forwards key presses to it.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/wanboard/internal/dashboard"
	"grimm.is/wanboard/internal/monitor"
	"grimm.is/wanboard/internal/wan"
)

// StatusRefreshInterval is how often the side panel is reloaded.
const StatusRefreshInterval = 5 * time.Second

// Actions receives the mutations the user triggers. *dashboard.Coordinator
// implements it.
type Actions interface {
	Prefer(interfaceName string) error
	Refresh(interfaceName string) error
}

// StatusSource feeds the throughput, device and power panel. It is
// optional; *client.HTTPClient implements it.
type StatusSource interface {
	Throughput(ctx context.Context) (*wan.Throughput, error)
	Devices(ctx context.Context) ([]monitor.DeviceStatus, error)
	PowerStatus(ctx context.Context) (*monitor.PowerStatus, error)
}

// ViewMsg carries a coordinator render into the program.
type ViewMsg dashboard.View

// Model is the application state.
type Model struct {
	actions Actions
	status  StatusSource
	title   string

	table  table.Model
	view   dashboard.View
	panel  statusMsg
	flash  string
	width  int
	height int
}

// NewModel creates the initial model. status may be nil.
func NewModel(title string, actions Actions, status StatusSource) Model {
	columns := []table.Column{
		{Title: "Connection", Width: 16},
		{Title: "Interface", Width: 20},
		{Title: "Link", Width: 10},
		{Title: "Active", Width: 8},
		{Title: "Preferred", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(6),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorDeep).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(ColorAccent).
		Background(ColorDeep).
		Bold(false)
	t.SetStyles(s)

	return Model{
		actions: actions,
		status:  status,
		title:   title,
		table:   t,
	}
}

// Init starts the status panel refresh.
func (m Model) Init() tea.Cmd {
	if m.status == nil {
		return nil
	}
	return fetchStatus(m.status)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ViewMsg:
		m.view = dashboard.View(msg)
		m.setRows()
		return m, nil

	case statusMsg:
		m.panel = msg
		return m, tea.Tick(StatusRefreshInterval, func(time.Time) tea.Msg { return refreshStatusMsg{} })

	case refreshStatusMsg:
		if m.status == nil {
			return m, nil
		}
		return m, fetchStatus(m.status)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p", "enter":
			m.trigger("prefer", m.actions.Prefer)
			return m, nil
		case "r":
			m.trigger("refresh", m.actions.Refresh)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) trigger(action string, fn func(string) error) {
	conn, ok := m.Selected()
	if !ok {
		return
	}
	if err := fn(conn.InterfaceName); err != nil {
		m.flash = err.Error()
		return
	}
	m.flash = fmt.Sprintf("%s %s requested", action, conn.Label)
}

// Selected returns the connection under the cursor.
func (m Model) Selected() (wan.Connection, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.view.Connections) {
		return wan.Connection{}, false
	}
	return m.view.Connections[i], true
}

func (m *Model) setRows() {
	rows := make([]table.Row, len(m.view.Connections))
	for i, c := range m.view.Connections {
		link := "down"
		switch {
		case c.Disabled:
			link = "disabled"
		case c.Running:
			link = "up"
		}
		rows[i] = table.Row{c.Label, c.InterfaceName, link, mark(c.Active), mark(c.Preferred)}
	}
	m.table.SetRows(rows)
}

func mark(b bool) string {
	if b {
		return "●"
	}
	return ""
}

// View renders the application.
func (m Model) View() string {
	sections := []string{
		StyleHeader.Render(m.title),
		StyleCard.Render(m.table.View()),
		m.stateLine(),
	}
	if m.view.Err != nil {
		sections = append(sections, StyleErrorCard.Render(m.view.Err.Error()))
	}
	if m.status != nil {
		sections = append(sections, m.panelView())
	}
	if m.flash != "" {
		sections = append(sections, StyleSubtitle.Render(m.flash))
	}
	sections = append(sections, StyleHelp.Render("↑/↓ select • p prefer • r refresh • q quit"))

	return StyleApp.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) stateLine() string {
	var state string
	switch m.view.State {
	case dashboard.MutationInFlight:
		state = StyleStatusWarn.Render("switching " + m.view.Pending + "…")
	case dashboard.Polling:
		state = StyleStatusGood.Render("live")
	default:
		state = StyleSubtitle.Render("idle")
	}
	if m.view.UpdatedAt.IsZero() {
		return state
	}
	return state + StyleSubtitle.Render(" updated "+m.view.UpdatedAt.Format("15:04:05"))
}
