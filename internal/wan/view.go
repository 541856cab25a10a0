package wan

import "grimm.is/wanboard/internal/errors"

// BuildConnections joins WAN interfaces to their default routes.
//
// The preferred route is the first one holding the minimum distance. Each
// interface uses the first route whose gateway names it; interfaces without
// such a route are omitted. With no routes at all there is no preference to
// derive and KindNoDefaultRoute is returned.
func BuildConnections(interfaces []Interface, routes []Route) ([]Connection, error) {
	if len(routes) == 0 {
		return nil, errors.New(errors.KindNoDefaultRoute, "no default route candidates")
	}

	preferred := routes[0]
	for _, r := range routes[1:] {
		if r.Distance < preferred.Distance {
			preferred = r
		}
	}

	conns := make([]Connection, 0, len(interfaces))
	for _, iface := range interfaces {
		route, ok := firstRouteVia(routes, iface.Name)
		if !ok {
			continue
		}
		label := iface.Label
		if label == "" {
			label = LabelOf(iface.Name, DefaultLabelSeparator)
		}
		conns = append(conns, Connection{
			Label:         label,
			InterfaceName: iface.Name,
			Running:       iface.Running,
			Disabled:      iface.Disabled,
			Active:        route.Active,
			Preferred:     route.Gateway == preferred.Gateway,
		})
	}
	return conns, nil
}

func firstRouteVia(routes []Route, gateway string) (Route, bool) {
	for _, r := range routes {
		if r.Gateway == gateway {
			return r, true
		}
	}
	return Route{}, false
}
