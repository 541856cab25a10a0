package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wanboard/internal/api"
	"grimm.is/wanboard/internal/audit"
	"grimm.is/wanboard/internal/config"
	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/monitor"
	"grimm.is/wanboard/internal/routeros"
	"grimm.is/wanboard/internal/wan"
)

func newAPI(t *testing.T) (ClientOptions, *routeros.Fake) {
	t.Helper()

	prev := monitor.CheckPingFunc
	monitor.CheckPingFunc = func(string, time.Duration) error { return nil }
	t.Cleanup(func() { monitor.CheckPingFunc = prev })

	f := routeros.NewFake()
	f.AddInterface("PPPoE-ISP1", true, false)
	f.AddInterface("PPPoE-ISP2", true, false)
	f.AddRoute("PPPoE-ISP1", 3, "Default ISP1", false)
	f.AddRoute("PPPoE-ISP2", 2, "Default ISP2", true)

	store, err := audit.NewStore(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Router:  config.RouterConfig{Address: "https://192.168.88.1"},
		Devices: []config.DeviceConfig{{Name: "Router", IP: "192.168.88.1"}},
	}
	cfg.ApplyDefaults()

	srv, err := api.NewServer(api.ServerOptions{
		Config:  cfg,
		Service: wan.NewService(f, wan.DefaultNaming()),
		Prober:  monitor.NewProber(cfg.Devices, "", time.Second, nil),
		Audit:   store,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ClientOptions{URL: ts.URL, Timeout: 5 * time.Second}, f
}

func TestRunStatus(t *testing.T) {
	opts, _ := newAPI(t)

	var out bytes.Buffer
	require.NoError(t, RunStatus(context.Background(), &out, opts))

	s := out.String()
	assert.Contains(t, s, "PPPoE-ISP1")
	assert.Contains(t, s, "ISP2")
	assert.Contains(t, s, "Throughput")
	assert.Contains(t, s, "Router")
	assert.Contains(t, s, "Power: false")
}

func TestRunPrefer(t *testing.T) {
	opts, f := newAPI(t)

	var out bytes.Buffer
	require.NoError(t, RunPrefer(context.Background(), &out, opts, "PPPoE-ISP1"))
	assert.Contains(t, out.String(), "PPPoE-ISP1")

	conns, err := wan.NewService(f, wan.DefaultNaming()).Connections(context.Background())
	require.NoError(t, err)
	assert.True(t, conns[0].Preferred)
}

func TestRunPreferUnknownInterface(t *testing.T) {
	opts, _ := newAPI(t)

	var out bytes.Buffer
	err := RunPrefer(context.Background(), &out, opts, "ether1")
	require.Error(t, err)
	assert.Equal(t, errors.KindUnknownInterface, errors.GetKind(err))
	assert.Empty(t, out.String())
}

func TestRunPreferRequiresInterface(t *testing.T) {
	err := RunPrefer(context.Background(), &bytes.Buffer{}, ClientOptions{}, "")
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	err = RunRefresh(context.Background(), &bytes.Buffer{}, ClientOptions{}, "")
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestRunRefreshAndAudit(t *testing.T) {
	opts, _ := newAPI(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, RunRefresh(ctx, &out, opts, "PPPoE-ISP2"))
	assert.Contains(t, out.String(), "PPPoE-ISP2")

	out.Reset()
	require.NoError(t, RunAudit(ctx, &out, opts, "", 10))
	assert.Contains(t, out.String(), "refresh")
	assert.Contains(t, out.String(), "PPPoE-ISP2")
}

func TestRunGuestDisabled(t *testing.T) {
	opts, _ := newAPI(t)

	err := RunGuest(context.Background(), &bytes.Buffer{}, opts, false)
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestRunStatusServerDown(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	err := RunStatus(context.Background(), &bytes.Buffer{}, ClientOptions{URL: url, Timeout: time.Second})
	require.Error(t, err)
	assert.Equal(t, errors.KindUpstreamUnavailable, errors.GetKind(err))
}
