// Package config defines the wanboard configuration schema and its defaults.
//
// A minimal HCL configuration:
//
//	router {
//	  address  = "https://192.168.88.1"
//	  username = "dashboard"
//	  password = env("WANBOARD_ROUTER_PASSWORD")
//	}
//
//	device "Router" {
//	  ip = "192.168.88.1"
//	}
package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"grimm.is/wanboard/internal/brand"
	"grimm.is/wanboard/internal/errors"
)

// Default values applied by ApplyDefaults.
const (
	DefaultRouterTimeout      = "5s"
	DefaultWANPrefix          = "PPPoE"
	DefaultLabelSeparator     = "-"
	DefaultRouteMarker        = "Default"
	DefaultListen             = ":9000"
	DefaultMutationLimit      = 10
	DefaultMutationWindow     = "1m"
	DefaultPollInterval       = "2s"
	DefaultSettleDelay        = "2s"
	DefaultProbeTimeout       = "1s"
	DefaultAuditRetentionDays = 90
	DefaultUniFiSite          = "default"
	DefaultDashboardURL       = "http://localhost:9000"
)

// Config is the top-level configuration.
type Config struct {
	Router    RouterConfig     `hcl:"router,block" yaml:"router"`
	UniFi     *UniFiConfig     `hcl:"unifi,block" yaml:"unifi"`
	API       *APIConfig       `hcl:"api,block" yaml:"api"`
	Power     *PowerConfig     `hcl:"power,block" yaml:"power"`
	Devices   []DeviceConfig   `hcl:"device,block" yaml:"devices"`
	Dashboard *DashboardConfig `hcl:"dashboard,block" yaml:"dashboard"`
	Probe     *ProbeConfig     `hcl:"probe,block" yaml:"probe"`
	Audit     *AuditConfig     `hcl:"audit,block" yaml:"audit"`
	Logging   *LoggingConfig   `hcl:"logging,block" yaml:"logging"`
}

// RouterConfig describes how to reach the router's REST API and how its
// interfaces and routes are named.
type RouterConfig struct {
	Address  string `hcl:"address" yaml:"address"`
	Username string `hcl:"username,optional" yaml:"username"`
	Password string `hcl:"password,optional" yaml:"password"`
	Insecure bool   `hcl:"insecure,optional" yaml:"insecure"`
	Timeout  string `hcl:"timeout,optional" yaml:"timeout"`

	// WANPrefix selects WAN interfaces by name prefix.
	WANPrefix string `hcl:"wan_prefix,optional" yaml:"wan_prefix"`
	// LabelSeparator splits an interface name into category and label.
	LabelSeparator string `hcl:"label_separator,optional" yaml:"label_separator"`
	// DefaultRouteMarker selects default-route candidates by comment prefix.
	DefaultRouteMarker string `hcl:"default_route_marker,optional" yaml:"default_route_marker"`
}

// TimeoutDuration returns the parsed request timeout.
func (r RouterConfig) TimeoutDuration() time.Duration {
	return mustDuration(r.Timeout, DefaultRouterTimeout)
}

// UniFiConfig points at the UniFi controller that owns the guest network.
type UniFiConfig struct {
	URL      string `hcl:"url" yaml:"url"`
	Username string `hcl:"username,optional" yaml:"username"`
	Password string `hcl:"password,optional" yaml:"password"`
	Site     string `hcl:"site,optional" yaml:"site"`
	Insecure bool   `hcl:"insecure,optional" yaml:"insecure"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Listen string `hcl:"listen,optional" yaml:"listen"`
	// Static serves a directory of dashboard assets at /.
	Static string `hcl:"static,optional" yaml:"static"`
	// MutationLimit caps prefer, refresh and password resets per client IP
	// in every MutationWindow. A negative limit disables the cap.
	MutationLimit  int    `hcl:"mutation_limit,optional" yaml:"mutation_limit"`
	MutationWindow string `hcl:"mutation_window,optional" yaml:"mutation_window"`
	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For
	// and X-Real-IP headers name the client. Headers from anyone else are
	// ignored.
	TrustedProxies []string `hcl:"trusted_proxies,optional" yaml:"trusted_proxies"`
}

// MutationWindowDuration returns the parsed rate limit window.
func (a APIConfig) MutationWindowDuration() time.Duration {
	return mustDuration(a.MutationWindow, DefaultMutationWindow)
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a
// single-host prefix.
func (a APIConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(a.TrustedProxies))
	for _, raw := range a.TrustedProxies {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, errors.Wrapf(err, errors.KindValidation, "api.trusted_proxies: invalid network %q", raw)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "api.trusted_proxies: invalid address %q", raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// PowerConfig names the host whose reachability stands in for mains power.
type PowerConfig struct {
	Host string `hcl:"host" yaml:"host"`
}

// DeviceConfig is one entry of the device reachability list.
type DeviceConfig struct {
	Name string `hcl:"name,label" yaml:"name"`
	IP   string `hcl:"ip" yaml:"ip"`
}

// DashboardConfig tunes the poll coordinator used by the TUI and the
// websocket stream.
type DashboardConfig struct {
	URL          string `hcl:"url,optional" yaml:"url"`
	PollInterval string `hcl:"poll_interval,optional" yaml:"poll_interval"`
	SettleDelay  string `hcl:"settle_delay,optional" yaml:"settle_delay"`
}

// PollIntervalDuration returns the parsed poll interval.
func (d DashboardConfig) PollIntervalDuration() time.Duration {
	return mustDuration(d.PollInterval, DefaultPollInterval)
}

// SettleDelayDuration returns the parsed settle delay.
func (d DashboardConfig) SettleDelayDuration() time.Duration {
	return mustDuration(d.SettleDelay, DefaultSettleDelay)
}

// ProbeConfig bounds reachability probes.
type ProbeConfig struct {
	Timeout string `hcl:"timeout,optional" yaml:"timeout"`
}

// TimeoutDuration returns the parsed probe timeout.
func (p ProbeConfig) TimeoutDuration() time.Duration {
	return mustDuration(p.Timeout, DefaultProbeTimeout)
}

// AuditConfig controls the mutation audit trail. It is on unless disabled.
type AuditConfig struct {
	Disabled      bool   `hcl:"disabled,optional" yaml:"disabled"`
	Path          string `hcl:"path,optional" yaml:"path"`
	RetentionDays int    `hcl:"retention_days,optional" yaml:"retention_days"`
}

// LoggingConfig controls log level, format and the optional rotated file.
type LoggingConfig struct {
	Level      string `hcl:"level,optional" yaml:"level"`
	JSON       bool   `hcl:"json,optional" yaml:"json"`
	File       string `hcl:"file,optional" yaml:"file"`
	MaxSizeMB  int    `hcl:"max_size_mb,optional" yaml:"max_size_mb"`
	MaxBackups int    `hcl:"max_backups,optional" yaml:"max_backups"`
	MaxAgeDays int    `hcl:"max_age_days,optional" yaml:"max_age_days"`
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	r := &c.Router
	if r.Timeout == "" {
		r.Timeout = DefaultRouterTimeout
	}
	if r.WANPrefix == "" {
		r.WANPrefix = DefaultWANPrefix
	}
	if r.LabelSeparator == "" {
		r.LabelSeparator = DefaultLabelSeparator
	}
	if r.DefaultRouteMarker == "" {
		r.DefaultRouteMarker = DefaultRouteMarker
	}

	if c.API == nil {
		c.API = &APIConfig{}
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}
	if c.API.MutationLimit == 0 {
		c.API.MutationLimit = DefaultMutationLimit
	}
	if c.API.MutationWindow == "" {
		c.API.MutationWindow = DefaultMutationWindow
	}

	if c.Dashboard == nil {
		c.Dashboard = &DashboardConfig{}
	}
	if c.Dashboard.URL == "" {
		c.Dashboard.URL = DefaultDashboardURL
	}
	if c.Dashboard.PollInterval == "" {
		c.Dashboard.PollInterval = DefaultPollInterval
	}
	if c.Dashboard.SettleDelay == "" {
		c.Dashboard.SettleDelay = DefaultSettleDelay
	}

	if c.Probe == nil {
		c.Probe = &ProbeConfig{}
	}
	if c.Probe.Timeout == "" {
		c.Probe.Timeout = DefaultProbeTimeout
	}

	if c.Audit == nil {
		c.Audit = &AuditConfig{}
	}
	if c.Audit.Path == "" {
		c.Audit.Path = brand.DefaultAuditPath()
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = DefaultAuditRetentionDays
	}

	if c.UniFi != nil && c.UniFi.Site == "" {
		c.UniFi.Site = DefaultUniFiSite
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for errors. It expects ApplyDefaults to
// have run.
func (c *Config) Validate() error {
	if c.Router.Address == "" {
		return errors.New(errors.KindValidation, "router.address is required")
	}
	if err := validateURL("router.address", c.Router.Address); err != nil {
		return err
	}
	if err := validateDuration("router.timeout", c.Router.Timeout); err != nil {
		return err
	}

	if c.API != nil {
		if err := validateDuration("api.mutation_window", c.API.MutationWindow); err != nil {
			return err
		}
		if _, err := c.API.TrustedProxyPrefixes(); err != nil {
			return err
		}
	}
	if c.Dashboard != nil {
		if err := validateDuration("dashboard.poll_interval", c.Dashboard.PollInterval); err != nil {
			return err
		}
		if err := validateDuration("dashboard.settle_delay", c.Dashboard.SettleDelay); err != nil {
			return err
		}
	}
	if c.Probe != nil {
		if err := validateDuration("probe.timeout", c.Probe.Timeout); err != nil {
			return err
		}
	}

	if c.UniFi != nil {
		if err := validateURL("unifi.url", c.UniFi.URL); err != nil {
			return err
		}
	}

	if c.Power != nil && c.Power.Host == "" {
		return errors.New(errors.KindValidation, "power.host is required")
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.Name == "" {
			return errors.New(errors.KindValidation, "device name is required")
		}
		if seen[d.Name] {
			return errors.Errorf(errors.KindValidation, "duplicate device %q", d.Name)
		}
		seen[d.Name] = true
		if _, err := netip.ParseAddr(d.IP); err != nil {
			return errors.Errorf(errors.KindValidation, "device %q: invalid ip %q", d.Name, d.IP)
		}
	}

	if c.Audit != nil && c.Audit.RetentionDays < 0 {
		return errors.New(errors.KindValidation, "audit.retention_days must not be negative")
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Errorf(errors.KindValidation, "%s: invalid URL %q", field, raw)
	}
	return nil
}

func validateDuration(field, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "%s: invalid duration %q", field, raw)
	}
	if d <= 0 {
		return errors.Errorf(errors.KindValidation, "%s must be positive", field)
	}
	return nil
}

func mustDuration(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic(fmt.Sprintf("config: bad default duration %q", fallback))
	}
	return d
}
