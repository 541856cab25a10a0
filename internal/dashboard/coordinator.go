// Package dashboard keeps a client's view of the WAN connections current.
//
// A Coordinator polls the connection view on a fixed period and runs user
// mutations against it. While a mutation is in flight the periodic timer is
// stopped, so a tick cannot overwrite the optimistic view with a
// half-converged router state. Every mutation ends with a forced poll and
// the timer is then restarted.
package dashboard

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"grimm.is/wanboard/internal/clock"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/metrics"
	"grimm.is/wanboard/internal/wan"
)

// Default timings.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultSettleDelay  = 2 * time.Second
)

// ErrMutationInFlight is returned when a mutation is requested while another
// one has not finished.
var ErrMutationInFlight = stderrors.New("a mutation is already in flight")

// State is the coordinator's position in its state machine.
type State int

const (
	Idle State = iota
	Polling
	MutationInFlight
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case MutationInFlight:
		return "mutation_in_flight"
	default:
		return "idle"
	}
}

// Backend is where the coordinator reads the view and sends mutations.
type Backend interface {
	Connections(ctx context.Context) ([]wan.Connection, error)
	Prefer(ctx context.Context, interfaceName string) error
	Refresh(ctx context.Context, interfaceName string) error
}

// View is what the render layer draws.
type View struct {
	Connections []wan.Connection
	// Err is the last poll failure; it is cleared by the next successful poll.
	Err       error
	State     State
	Pending   string
	UpdatedAt time.Time
}

// Renderer draws a View. Render is called from the coordinator goroutine.
type Renderer interface {
	Render(View)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(View)

// Render calls f(v).
func (f RenderFunc) Render(v View) { f(v) }

type actionKind int

const (
	actionPrefer actionKind = iota
	actionRefresh
)

func (k actionKind) String() string {
	if k == actionPrefer {
		return "prefer"
	}
	return "refresh"
}

type action struct {
	kind   actionKind
	target string
}

// Coordinator owns the poll timer and the rendered view of one session.
type Coordinator struct {
	backend      Backend
	renderer     Renderer
	clock        clock.Clock
	logger       *logging.Logger
	pollInterval time.Duration
	settleDelay  time.Duration

	actions  chan action
	inFlight atomic.Bool

	mu   sync.Mutex
	view View
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock driving the poll timer and settle delay.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// WithPollInterval sets the polling period.
func WithPollInterval(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.pollInterval = d
		}
	}
}

// WithSettleDelay sets the wait between a preference switch and the
// reconciliation poll.
func WithSettleDelay(d time.Duration) Option {
	return func(co *Coordinator) {
		if d >= 0 {
			co.settleDelay = d
		}
	}
}

// WithRenderer sets the render layer.
func WithRenderer(r Renderer) Option {
	return func(co *Coordinator) { co.renderer = r }
}

// New creates a Coordinator in the Idle state.
func New(backend Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:      backend,
		renderer:     RenderFunc(func(View) {}),
		clock:        &clock.RealClock{},
		logger:       logging.WithComponent("dashboard"),
		pollInterval: DefaultPollInterval,
		settleDelay:  DefaultSettleDelay,
		actions:      make(chan action, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.State
}

// Snapshot returns a copy of the current view.
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyViewLocked()
}

// Prefer requests a preference switch to interfaceName. It returns
// immediately; the outcome shows up in later renders.
func (c *Coordinator) Prefer(interfaceName string) error {
	return c.submit(action{kind: actionPrefer, target: interfaceName})
}

// Refresh requests an interface refresh. It returns immediately.
func (c *Coordinator) Refresh(interfaceName string) error {
	return c.submit(action{kind: actionRefresh, target: interfaceName})
}

func (c *Coordinator) submit(a action) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrMutationInFlight
	}
	c.actions <- a
	return nil
}

// Run polls once, then on every tick, and executes queued mutations until
// ctx is cancelled. The ticker is released when Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	c.setState(Polling, "")
	c.poll(ctx, "initial")

	ticker := c.clock.NewTicker(c.pollInterval)
	defer func() {
		ticker.Stop()
		c.setState(Idle, "")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C():
			c.poll(ctx, "interval")

		case a := <-c.actions:
			ticker.Stop()
			ok := c.mutate(ctx, a)
			c.inFlight.Store(false)
			if !ok {
				return ctx.Err()
			}
			ticker.Reset(c.pollInterval)
			c.setState(Polling, "")
		}
	}
}

// mutate runs one action with the timer already stopped. It returns false
// if ctx ended while waiting for the settle delay.
//
// The router writes run detached from ctx: a refresh cancelled between its
// disable and enable steps would leave the interface down. Each router call
// is still bounded by the router client's own timeout.
func (c *Coordinator) mutate(ctx context.Context, a action) bool {
	c.setState(MutationInFlight, a.target)

	mctx := context.WithoutCancel(ctx)
	var err error
	switch a.kind {
	case actionPrefer:
		c.applyOptimistic(a.target)
		err = c.backend.Prefer(mctx, a.target)
	case actionRefresh:
		err = c.backend.Refresh(mctx, a.target)
	}
	if err != nil {
		c.logger.Warn("mutation failed", "action", a.kind.String(), "interface", a.target, "error", err)
	} else {
		c.logger.Info("mutation completed", "action", a.kind.String(), "interface", a.target)
	}

	if a.kind == actionPrefer && c.settleDelay > 0 {
		select {
		case <-c.clock.After(c.settleDelay):
		case <-ctx.Done():
			return false
		}
	}

	c.poll(ctx, "reconcile")
	return true
}

// applyOptimistic shows target as the preferred, active connection before
// the router confirms it.
func (c *Coordinator) applyOptimistic(target string) {
	c.mu.Lock()
	for i := range c.view.Connections {
		conn := &c.view.Connections[i]
		match := conn.InterfaceName == target
		conn.Preferred = match
		conn.Active = match
	}
	v := c.copyViewLocked()
	c.mu.Unlock()

	c.renderer.Render(v)
}

func (c *Coordinator) poll(ctx context.Context, reason string) {
	conns, err := c.backend.Connections(ctx)

	status := "ok"
	c.mu.Lock()
	if err != nil {
		status = "error"
		c.view.Err = err
	} else {
		c.view.Connections = conns
		c.view.Err = nil
		c.view.UpdatedAt = c.clock.Now()
	}
	v := c.copyViewLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("poll failed", "reason", reason, "error", err)
	}
	metrics.Get().Polls.WithLabelValues(reason, status).Inc()

	c.renderer.Render(v)
}

func (c *Coordinator) setState(s State, pending string) {
	c.mu.Lock()
	c.view.State = s
	c.view.Pending = pending
	c.mu.Unlock()
}

func (c *Coordinator) copyViewLocked() View {
	v := c.view
	if c.view.Connections != nil {
		v.Connections = make([]wan.Connection, len(c.view.Connections))
		copy(v.Connections, c.view.Connections)
	}
	return v
}
