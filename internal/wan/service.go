package wan

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"grimm.is/wanboard/internal/clock"
	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/metrics"
	"grimm.is/wanboard/internal/routeros"
)

// StepStatus is the outcome of one command in a multi-step mutation.
type StepStatus string

const (
	StepApplied StepStatus = "applied"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// SwitchStep is one "set distance" write of a preference switch.
type SwitchStep struct {
	RouteID  string     `json:"routeId"`
	Gateway  string     `json:"gateway"`
	Distance int        `json:"distance"`
	Status   StepStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// SwitchResult records every write of a preference switch in issue order.
type SwitchResult struct {
	Interface string       `json:"interface"`
	Steps     []SwitchStep `json:"steps"`
}

// Applied returns the number of writes that took effect.
func (r *SwitchResult) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepApplied {
			n++
		}
	}
	return n
}

// Message is the confirmation shown to the user.
func (r *SwitchResult) Message() string {
	return "Preferred " + r.Interface
}

// RefreshStep is the disable or enable half of a refresh.
type RefreshStep struct {
	Action string     `json:"action"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// RefreshResult records both halves of an interface refresh.
type RefreshResult struct {
	Interface string        `json:"interface"`
	Steps     []RefreshStep `json:"steps"`
}

// Message is the confirmation shown to the user.
func (r *RefreshResult) Message() string {
	return "Refreshed " + r.Interface
}

// Service exposes the connection view and the WAN mutations. It holds no
// mutable state; every call reads the router afresh, and concurrent callers
// are not serialized against each other.
type Service struct {
	client routeros.Client
	reader *Reader
	clock  clock.Clock
	logger *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for mutation timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service talking to client.
func NewService(client routeros.Client, naming Naming, opts ...Option) *Service {
	s := &Service{
		client: client,
		reader: NewReader(client, naming),
		clock:  &clock.RealClock{},
		logger: logging.WithComponent("wan"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reader returns the underlying state reader.
func (s *Service) Reader() *Reader {
	return s.reader
}

// Connections reads the router and builds the connection view.
func (s *Service) Connections(ctx context.Context) ([]Connection, error) {
	ifaces, err := s.reader.ListWanInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := s.reader.ListDefaultRouteCandidates(ctx)
	if err != nil {
		return nil, err
	}
	conns, err := BuildConnections(ifaces, routes)
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	for _, c := range conns {
		m.SetConnection(c.InterfaceName, c.Running, c.Active, c.Preferred)
	}
	return conns, nil
}

// PreferConnection makes target the preferred WAN by writing distance 2 to
// its default routes and 3 to every other candidate, one write at a time.
//
// State is re-read first; a caller's snapshot is never trusted. If write k
// fails, writes before it stay applied and the rest are reported as skipped
// under KindPartialSwitchFailure. Nothing is retried or rolled back.
func (s *Service) PreferConnection(ctx context.Context, target string) (*SwitchResult, error) {
	iface, err := s.reader.lookup(ctx, target)
	if err != nil {
		return nil, err
	}
	routes, err := s.reader.ListDefaultRouteCandidates(ctx)
	if err != nil {
		return nil, err
	}

	result := &SwitchResult{Interface: iface.Name, Steps: make([]SwitchStep, 0, len(routes))}
	for _, r := range routes {
		distance := FallbackDistance
		if r.Gateway == iface.Name {
			distance = PreferredDistance
		}
		result.Steps = append(result.Steps, SwitchStep{
			RouteID:  r.ID,
			Gateway:  r.Gateway,
			Distance: distance,
			Status:   StepSkipped,
		})
	}

	m := metrics.Get()
	for i := range result.Steps {
		step := &result.Steps[i]
		_, err := s.client.Run(ctx, "/ip/route/set", map[string]string{
			".id":      step.RouteID,
			"distance": strconv.Itoa(step.Distance),
		})
		if err != nil {
			step.Status = StepFailed
			step.Error = err.Error()
			m.SwitchWrites.WithLabelValues("failed").Inc()

			s.logger.Error("preference switch stopped partway",
				"interface", iface.Name,
				"applied", i,
				"total", len(result.Steps),
				"route", step.RouteID,
				"error", err)
			s.record("prefer", err)

			perr := errors.Wrapf(err, errors.KindPartialSwitchFailure,
				"switch to %s stopped after %d of %d writes", iface.Name, i, len(result.Steps))
			perr = errors.Attr(perr, "interface", iface.Name)
			perr = errors.Attr(perr, "applied", i)
			return result, perr
		}
		step.Status = StepApplied
		m.SwitchWrites.WithLabelValues("applied").Inc()
	}

	s.logger.Info("preferred connection switched", "interface", iface.Name, "writes", len(result.Steps))
	s.record("prefer", nil)
	return result, nil
}

// RefreshInterface forces name to renegotiate by disabling and then
// enabling it. Enable is only issued after disable succeeds. A failed enable
// leaves the interface disabled; no recovery is attempted.
func (s *Service) RefreshInterface(ctx context.Context, name string) (*RefreshResult, error) {
	iface, err := s.reader.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		Interface: iface.Name,
		Steps: []RefreshStep{
			{Action: "disable", Status: StepSkipped},
			{Action: "enable", Status: StepSkipped},
		},
	}

	for i, value := range []string{"yes", "no"} {
		step := &result.Steps[i]
		_, err := s.client.Run(ctx, "/interface/set", map[string]string{
			".id":      iface.ID,
			"disabled": value,
		})
		if err != nil {
			step.Status = StepFailed
			step.Error = err.Error()

			s.logger.Error("interface refresh failed", "interface", iface.Name, "step", step.Action, "error", err)
			s.record("refresh", err)

			rerr := errors.Wrapf(err, errors.KindRefreshFailed, "refresh of %s failed at %s", iface.Name, step.Action)
			rerr = errors.Attr(rerr, "interface", iface.Name)
			rerr = errors.Attr(rerr, "step", step.Action)
			return result, rerr
		}
		step.Status = StepApplied
	}

	s.logger.Info("interface refreshed", "interface", iface.Name)
	s.record("refresh", nil)
	return result, nil
}

// Throughput sums the current rx/tx rates of every WAN interface. Interfaces
// are sampled concurrently.
func (s *Service) Throughput(ctx context.Context) (*Throughput, error) {
	ifaces, err := s.reader.ListWanInterfaces(ctx)
	if err != nil {
		return nil, err
	}

	per := make([]InterfaceThroughput, len(ifaces))
	g, gctx := errgroup.WithContext(ctx)
	for i, iface := range ifaces {
		g.Go(func() error {
			rows, err := s.client.Run(gctx, "/interface/monitor-traffic", map[string]string{
				"interface": iface.Name,
				"once":      "",
			})
			if err != nil {
				return upstream(err, fmt.Sprintf("failed to sample %s", iface.Name))
			}
			if len(rows) == 0 {
				return errors.Errorf(errors.KindUpstreamUnavailable, "no traffic sample for %s", iface.Name)
			}
			rx, err := parseRate(rows[0]["rx-bits-per-second"])
			if err != nil {
				return err
			}
			tx, err := parseRate(rows[0]["tx-bits-per-second"])
			if err != nil {
				return err
			}
			per[i] = InterfaceThroughput{InterfaceName: iface.Name, RxSpeed: rx, TxSpeed: tx}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Throughput{Interfaces: per}
	m := metrics.Get()
	for _, p := range per {
		out.RxSpeed += p.RxSpeed
		out.TxSpeed += p.TxSpeed
		m.SetThroughput(p.InterfaceName, p.RxSpeed, p.TxSpeed)
	}
	return out, nil
}

func (s *Service) record(action string, err error) {
	metrics.Get().RecordMutation(action, err, float64(s.clock.Now().Unix()))
}

// parseRate accepts plain integers and the "12.5kbps"-style values some
// RouterOS versions return.
func parseRate(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}

	mult := 1.0
	num := strings.TrimSuffix(v, "bps")
	switch {
	case strings.HasSuffix(num, "k"):
		mult, num = 1e3, strings.TrimSuffix(num, "k")
	case strings.HasSuffix(num, "M"):
		mult, num = 1e6, strings.TrimSuffix(num, "M")
	case strings.HasSuffix(num, "G"):
		mult, num = 1e9, strings.TrimSuffix(num, "G")
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindUpstreamUnavailable, "invalid rate %q", v)
	}
	return int64(f * mult), nil
}
