package wan

import (
	"context"
	"strconv"
	"strings"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/routeros"
)

// Naming describes how WAN interfaces and default routes are recognised.
type Naming struct {
	WANPrefix          string
	LabelSeparator     string
	DefaultRouteMarker string
}

// DefaultNaming matches "PPPoE-<label>" interfaces and routes whose comment
// starts with "Default".
func DefaultNaming() Naming {
	return Naming{
		WANPrefix:          "PPPoE",
		LabelSeparator:     DefaultLabelSeparator,
		DefaultRouteMarker: "Default",
	}
}

// Reader fetches router state and filters it to the WAN subset. It never
// retries; a failed call surfaces as errors.KindUpstreamUnavailable.
type Reader struct {
	client routeros.Client
	naming Naming
}

// NewReader creates a Reader.
func NewReader(client routeros.Client, naming Naming) *Reader {
	return &Reader{client: client, naming: naming}
}

// ListWanInterfaces returns interfaces whose name starts with the WAN prefix,
// in router order.
func (r *Reader) ListWanInterfaces(ctx context.Context) ([]Interface, error) {
	rows, err := r.client.Run(ctx, "/interface/print", nil)
	if err != nil {
		return nil, upstream(err, "failed to list interfaces")
	}

	var out []Interface
	for _, row := range rows {
		name := row["name"]
		if !strings.HasPrefix(name, r.naming.WANPrefix) {
			continue
		}
		out = append(out, Interface{
			ID:       row.ID(),
			Name:     name,
			Label:    LabelOf(name, r.naming.LabelSeparator),
			Running:  row.Bool("running"),
			Disabled: row.Bool("disabled"),
		})
	}
	return out, nil
}

// ListDefaultRouteCandidates returns routes whose comment starts with the
// default-route marker, in router order.
func (r *Reader) ListDefaultRouteCandidates(ctx context.Context) ([]Route, error) {
	rows, err := r.client.Run(ctx, "/ip/route/print", nil)
	if err != nil {
		return nil, upstream(err, "failed to list routes")
	}

	var out []Route
	for _, row := range rows {
		comment := row["comment"]
		if comment == "" || !strings.HasPrefix(comment, r.naming.DefaultRouteMarker) {
			continue
		}
		distance, err := strconv.Atoi(strings.TrimSpace(row["distance"]))
		if err != nil {
			return nil, errors.Attr(
				errors.Wrapf(err, errors.KindUpstreamUnavailable, "route %s has invalid distance %q", row.ID(), row["distance"]),
				"route", row.ID())
		}
		out = append(out, Route{
			ID:       row.ID(),
			Gateway:  row["gateway"],
			Distance: distance,
			Comment:  comment,
			Active:   row.Bool("active"),
		})
	}
	return out, nil
}

// lookup resolves name to a WAN interface from a fresh read.
func (r *Reader) lookup(ctx context.Context, name string) (Interface, error) {
	ifaces, err := r.ListWanInterfaces(ctx)
	if err != nil {
		return Interface{}, err
	}
	for _, iface := range ifaces {
		if iface.Name == name {
			return iface, nil
		}
	}
	return Interface{}, errors.Attr(
		errors.New(errors.KindUnknownInterface, "Invalid Interface Name"),
		"interface", name)
}

func upstream(err error, msg string) error {
	return errors.Wrap(err, errors.KindUpstreamUnavailable, msg)
}
