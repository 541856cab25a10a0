// Package monitor answers "is it reachable" for the configured devices and
// the mains-power sentinel host.
package monitor

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"golang.org/x/sync/errgroup"

	"grimm.is/wanboard/internal/config"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/metrics"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = time.Second

// CheckPingFunc sends one unprivileged ICMP echo and reports an error when no
// reply arrives within timeout. Tests replace it.
var CheckPingFunc = func(ip string, timeout time.Duration) error {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return err
	}

	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("packet loss")
	}
	return nil
}

// DeviceStatus is one row of the device reachability list.
type DeviceStatus struct {
	DeviceName string `json:"deviceName"`
	IP         string `json:"ip"`
	Online     bool   `json:"online"`
}

// PowerStatus reports whether the mains-powered sentinel answers.
type PowerStatus struct {
	Status bool `json:"status"`
}

// Prober probes configured hosts.
type Prober struct {
	devices   []config.DeviceConfig
	powerHost string
	timeout   time.Duration
	logger    *logging.Logger
}

// NewProber creates a prober for the given devices and power host. An empty
// power host disables the power check.
func NewProber(devices []config.DeviceConfig, powerHost string, timeout time.Duration, logger *logging.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.WithComponent("monitor")
	}
	return &Prober{
		devices:   devices,
		powerHost: powerHost,
		timeout:   timeout,
		logger:    logger,
	}
}

// Devices probes every device concurrently. Results keep config order and a
// failed probe only marks its own row offline.
func (p *Prober) Devices(ctx context.Context) ([]DeviceStatus, error) {
	out := make([]DeviceStatus, len(p.devices))
	g, ctx := errgroup.WithContext(ctx)
	for i, d := range p.devices {
		out[i] = DeviceStatus{DeviceName: d.Name, IP: d.IP}
		g.Go(func() error {
			out[i].Online = p.reachable(ctx, d.IP)
			metrics.Get().SetDeviceOnline(d.Name, out[i].Online)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Power probes the power sentinel host.
func (p *Prober) Power(ctx context.Context) PowerStatus {
	if p.powerHost == "" {
		return PowerStatus{}
	}
	online := p.reachable(ctx, p.powerHost)
	if online {
		metrics.Get().PowerOnline.Set(1)
	} else {
		metrics.Get().PowerOnline.Set(0)
	}
	return PowerStatus{Status: online}
}

func (p *Prober) reachable(ctx context.Context, ip string) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := CheckPingFunc(ip, p.timeout); err != nil {
		p.logger.Debug("host unreachable", "target", ip, "error", err)
		return false
	}
	return true
}
