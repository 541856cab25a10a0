package wan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wanboard/internal/errors"
)

func TestBuildConnections(t *testing.T) {
	ifaces := []Interface{
		{Name: "PPPoE-ISP1", Label: "ISP1", Running: true},
		{Name: "PPPoE-ISP2", Label: "ISP2", Running: true},
	}
	routes := []Route{
		{ID: "*1", Gateway: "PPPoE-ISP1", Distance: 3, Comment: "Default ISP1"},
		{ID: "*2", Gateway: "PPPoE-ISP2", Distance: 2, Comment: "Default ISP2", Active: true},
	}

	conns, err := BuildConnections(ifaces, routes)
	require.NoError(t, err)
	require.Len(t, conns, 2)

	assert.Equal(t, Connection{Label: "ISP1", InterfaceName: "PPPoE-ISP1", Running: true}, conns[0])
	assert.Equal(t, Connection{Label: "ISP2", InterfaceName: "PPPoE-ISP2", Running: true, Active: true, Preferred: true}, conns[1])
}

func TestBuildConnections_NoDefaultRoute(t *testing.T) {
	ifaces := []Interface{{Name: "PPPoE-ISP1"}}

	conns, err := BuildConnections(ifaces, nil)
	require.Error(t, err)
	assert.Nil(t, conns)
	assert.Equal(t, errors.KindNoDefaultRoute, errors.GetKind(err))
}

func TestBuildConnections_TieGoesToFirst(t *testing.T) {
	ifaces := []Interface{{Name: "PPPoE-A"}, {Name: "PPPoE-B"}}
	routes := []Route{
		{Gateway: "PPPoE-B", Distance: 2},
		{Gateway: "PPPoE-A", Distance: 2},
	}

	conns, err := BuildConnections(ifaces, routes)
	require.NoError(t, err)
	assert.False(t, conns[0].Preferred)
	assert.True(t, conns[1].Preferred)
}

func TestBuildConnections_OmitsInterfacesWithoutRoute(t *testing.T) {
	ifaces := []Interface{{Name: "PPPoE-A"}, {Name: "PPPoE-Spare"}}
	routes := []Route{{Gateway: "PPPoE-A", Distance: 1}}

	conns, err := BuildConnections(ifaces, routes)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "PPPoE-A", conns[0].InterfaceName)
	assert.Equal(t, "A", conns[0].Label)
}

func TestBuildConnections_FirstRoutePerGateway(t *testing.T) {
	ifaces := []Interface{{Name: "PPPoE-A"}, {Name: "PPPoE-B"}}
	routes := []Route{
		{Gateway: "PPPoE-A", Distance: 3, Active: false},
		{Gateway: "PPPoE-B", Distance: 2, Active: true},
		{Gateway: "PPPoE-A", Distance: 1, Active: true},
	}

	conns, err := BuildConnections(ifaces, routes)
	require.NoError(t, err)

	// The global minimum is the second A route, so A is preferred even
	// though its first route (used for Active) is not the minimum.
	assert.True(t, conns[0].Preferred)
	assert.False(t, conns[0].Active)
	assert.False(t, conns[1].Preferred)
}

func TestBuildConnections_AtMostOnePreferred(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"PPPoE-A", "PPPoE-B", "PPPoE-C", "PPPoE-D"}

	for iter := 0; iter < 500; iter++ {
		var ifaces []Interface
		for _, n := range names {
			ifaces = append(ifaces, Interface{Name: n})
		}
		var routes []Route
		for i := 0; i < 1+rng.Intn(6); i++ {
			routes = append(routes, Route{
				Gateway:  names[rng.Intn(len(names))],
				Distance: 1 + rng.Intn(4),
			})
		}

		conns, err := BuildConnections(ifaces, routes)
		require.NoError(t, err)

		minDist := routes[0].Distance
		firstMinGateway := routes[0].Gateway
		for _, r := range routes {
			if r.Distance < minDist {
				minDist, firstMinGateway = r.Distance, r.Gateway
			}
		}

		preferred := 0
		for _, c := range conns {
			if c.Preferred {
				preferred++
				assert.Equal(t, firstMinGateway, c.InterfaceName)
			}
		}
		assert.Equal(t, 1, preferred, "routes=%v", routes)
	}
}

func TestLabelOf(t *testing.T) {
	assert.Equal(t, "Techminds", LabelOf("PPPoE-Techminds", "-"))
	assert.Equal(t, "ISP", LabelOf("PPPoE-ISP-Fiber", "-"))
	assert.Equal(t, "", LabelOf("PPPoE-", "-"))
	assert.Equal(t, "PPPoE", LabelOf("PPPoE", "-"))
	assert.Equal(t, "ISP", LabelOf("WAN_ISP", "_"))
	assert.Equal(t, "ISP", LabelOf("WAN-ISP", ""))
}
