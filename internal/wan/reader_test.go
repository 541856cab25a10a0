package wan

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/routeros"
)

func TestReader_Filters(t *testing.T) {
	f := routeros.NewFake()
	f.AddInterface("ether1", true, false)
	f.AddInterface("PPPoE-ISP1", true, false)
	f.AddInterface("PPPoE-ISP2", false, true)
	f.AddRoute("PPPoE-ISP1", 3, "Default ISP1", false)
	f.AddRoute("PPPoE-ISP1", 1, "Office VPN", true)
	f.AddRoute("PPPoE-ISP2", 2, "", true)

	r := NewReader(f, DefaultNaming())

	ifaces, err := r.ListWanInterfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ifaces, 2)
	assert.Equal(t, "PPPoE-ISP1", ifaces[0].Name)
	assert.Equal(t, "ISP1", ifaces[0].Label)
	assert.True(t, ifaces[0].Running)
	assert.True(t, ifaces[1].Disabled)
	assert.NotEmpty(t, ifaces[0].ID)

	routes, err := r.ListDefaultRouteCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, 3, routes[0].Distance)
	assert.Equal(t, "Default ISP1", routes[0].Comment)
}

func TestReader_CustomNaming(t *testing.T) {
	f := routeros.NewFake()
	f.AddInterface("WAN_Fiber", true, false)
	f.AddInterface("PPPoE-ISP1", true, false)

	r := NewReader(f, Naming{WANPrefix: "WAN", LabelSeparator: "_", DefaultRouteMarker: "GW"})
	ifaces, err := r.ListWanInterfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.Equal(t, "Fiber", ifaces[0].Label)
}

func TestReader_Upstream(t *testing.T) {
	f := routeros.NewFake()
	f.FailOn(func(routeros.Call) error { return fmt.Errorf("connection refused") })

	r := NewReader(f, DefaultNaming())
	_, err := r.ListWanInterfaces(context.Background())
	assert.Equal(t, errors.KindUpstreamUnavailable, errors.GetKind(err))

	_, err = r.ListDefaultRouteCandidates(context.Background())
	assert.Equal(t, errors.KindUpstreamUnavailable, errors.GetKind(err))
}

type staticClient []routeros.Row

func (s staticClient) Run(ctx context.Context, command string, params map[string]string) ([]routeros.Row, error) {
	return s, nil
}

func TestReader_BadDistance(t *testing.T) {
	r := NewReader(staticClient{{".id": "*1", "comment": "Default", "gateway": "PPPoE-A", "distance": "far"}}, DefaultNaming())
	_, err := r.ListDefaultRouteCandidates(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamUnavailable, errors.GetKind(err))
	assert.Equal(t, "*1", errors.GetAttributes(err)["route"])
}
