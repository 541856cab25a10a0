package routeros

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"grimm.is/wanboard/internal/errors"
)

// Call records one command received by a Fake.
type Call struct {
	Command string
	Params  map[string]string
}

// Fake is an in-memory router used by tests and the demo mode. It keeps an
// interface list and a routing table and applies set commands to them.
type Fake struct {
	mu         sync.Mutex
	interfaces []Row
	routes     []Row
	traffic    map[string]Row
	calls      []Call
	failOn     func(Call) error
	nextID     int
}

// NewFake returns an empty fake router.
func NewFake() *Fake {
	return &Fake{traffic: make(map[string]Row)}
}

// AddInterface adds an interface and returns its id.
func (f *Fake) AddInterface(name string, running, disabled bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.allocID()
	f.interfaces = append(f.interfaces, Row{
		".id":      id,
		"name":     name,
		"type":     "pppoe-out",
		"running":  strconv.FormatBool(running),
		"disabled": strconv.FormatBool(disabled),
	})
	return id
}

// AddRoute adds a 0.0.0.0/0 route via gateway and returns its id.
func (f *Fake) AddRoute(gateway string, distance int, comment string, active bool) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.allocID()
	f.routes = append(f.routes, Row{
		".id":         id,
		"dst-address": "0.0.0.0/0",
		"gateway":     gateway,
		"distance":    strconv.Itoa(distance),
		"comment":     comment,
		"active":      strconv.FormatBool(active),
	})
	return id
}

// SetTraffic sets the rates reported by monitor-traffic for an interface.
func (f *Fake) SetTraffic(iface string, rxBits, txBits int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traffic[iface] = Row{
		"name":               iface,
		"rx-bits-per-second": strconv.FormatInt(rxBits, 10),
		"tx-bits-per-second": strconv.FormatInt(txBits, 10),
	}
}

// FailOn installs a hook consulted before every command. A non-nil return
// fails the command without touching state.
func (f *Fake) FailOn(fn func(Call) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = fn
}

// Calls returns every command received so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// ResetCalls clears the call log.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Route returns a copy of the route with the given id.
func (f *Fake) Route(id string) Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := find(f.routes, ".id", id); r != nil {
		return copyRow(r)
	}
	return nil
}

// Interface returns a copy of the named interface.
func (f *Fake) Interface(name string) Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r := find(f.interfaces, "name", name); r != nil {
		return copyRow(r)
	}
	return nil
}

// Run implements Client.
func (f *Fake) Run(ctx context.Context, command string, params map[string]string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindUpstreamUnavailable, "router unreachable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Command: command, Params: copyRow(params)}
	f.calls = append(f.calls, call)

	if f.failOn != nil {
		if err := f.failOn(call); err != nil {
			return nil, errors.Attr(
				errors.Wrap(err, errors.KindUpstreamUnavailable, "router error"),
				"command", command)
		}
	}

	switch command {
	case "/interface/print":
		return copyRows(f.interfaces), nil
	case "/ip/route/print":
		return copyRows(f.routes), nil
	case "/interface/set":
		if err := f.set(f.interfaces, params); err != nil {
			return nil, err
		}
		return []Row{}, nil
	case "/ip/route/set":
		if err := f.set(f.routes, params); err != nil {
			return nil, err
		}
		f.recomputeActive()
		return []Row{}, nil
	case "/interface/monitor-traffic":
		name := params["interface"]
		if find(f.interfaces, "name", name) == nil {
			return nil, errors.Errorf(errors.KindUpstreamUnavailable, "router error: no such interface %q", name)
		}
		if t, ok := f.traffic[name]; ok {
			return []Row{copyRow(t)}, nil
		}
		return []Row{{"name": name, "rx-bits-per-second": "0", "tx-bits-per-second": "0"}}, nil
	}
	return nil, errors.Errorf(errors.KindUpstreamUnavailable, "router error: unknown command %s", command)
}

func (f *Fake) set(rows []Row, params map[string]string) error {
	row := find(rows, ".id", params[".id"])
	if row == nil {
		return errors.Errorf(errors.KindUpstreamUnavailable, "router error: no such item %q", params[".id"])
	}
	for k, v := range params {
		if k == ".id" {
			continue
		}
		if k == "disabled" {
			v = strconv.FormatBool(ParseBool(v))
		}
		row[k] = v
	}
	return nil
}

// recomputeActive marks the lowest-distance default route active, the way
// the router's route selection would after a distance change.
func (f *Fake) recomputeActive() {
	best := -1
	bestDist := 0
	for i, r := range f.routes {
		d, err := strconv.Atoi(r["distance"])
		if err != nil {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	for i, r := range f.routes {
		r["active"] = strconv.FormatBool(i == best)
	}
}

func (f *Fake) allocID() string {
	f.nextID++
	return fmt.Sprintf("*%X", f.nextID)
}

func find(rows []Row, key, val string) Row {
	for _, r := range rows {
		if r[key] == val {
			return r
		}
	}
	return nil
}

func copyRow(r map[string]string) Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r)
	}
	return out
}
