package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all wanboard metrics.
type Registry struct {
	// Router transport
	RouterRequests        *prometheus.CounterVec
	RouterRequestDuration *prometheus.HistogramVec

	// Connection view
	ConnectionRunning   *prometheus.GaugeVec
	ConnectionPreferred *prometheus.GaugeVec
	ConnectionActive    *prometheus.GaugeVec

	// Mutations
	Mutations    *prometheus.CounterVec
	SwitchWrites *prometheus.CounterVec
	LastMutation *prometheus.GaugeVec

	// Throughput in bits per second
	Throughput *prometheus.GaugeVec

	// Reachability
	DeviceOnline *prometheus.GaugeVec
	PowerOnline  prometheus.Gauge

	// Guest Wi-Fi
	GuestPasswordRotations *prometheus.CounterVec

	// Coordinator
	Polls *prometheus.CounterVec

	// System metrics
	Uptime      prometheus.Gauge
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	// Router transport
	r.RouterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanboard_router_requests_total",
		Help: "Router API commands issued",
	}, []string{"command", "status"})

	r.RouterRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wanboard_router_request_duration_seconds",
		Help:    "Router API command latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	// Connection view
	r.ConnectionRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wanboard_connection_running",
		Help: "1 if the WAN interface is running",
	}, []string{"interface"})

	r.ConnectionPreferred = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wanboard_connection_preferred",
		Help: "1 if the WAN interface holds the minimum default-route distance",
	}, []string{"interface"})

	r.ConnectionActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wanboard_connection_active",
		Help: "1 if the WAN interface's default route is active",
	}, []string{"interface"})

	// Mutations
	r.Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanboard_mutations_total",
		Help: "Prefer and refresh operations by outcome",
	}, []string{"action", "outcome"})

	r.SwitchWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanboard_switch_writes_total",
		Help: "Route distance writes issued by preference switches",
	}, []string{"status"})

	r.LastMutation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wanboard_last_mutation_timestamp_seconds",
		Help: "Unix time of the last mutation per action",
	}, []string{"action"})

	r.Throughput = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wanboard_throughput_bits_per_second",
		Help: "Current WAN throughput",
	}, []string{"interface", "direction"})

	// Reachability
	r.DeviceOnline = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wanboard_device_online",
		Help: "1 if the device answered the last probe",
	}, []string{"device"})

	r.PowerOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wanboard_power_online",
		Help: "1 if the power sentinel host answered the last probe",
	})

	r.GuestPasswordRotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanboard_guest_password_rotations_total",
		Help: "Guest Wi-Fi password rotations",
	}, []string{"status"})

	r.Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanboard_dashboard_polls_total",
		Help: "Connection view polls made by dashboard coordinators",
	}, []string{"reason", "status"})

	// System metrics
	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wanboard_uptime_seconds",
		Help: "Server uptime in seconds",
	})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wanboard_api_requests_total",
		Help: "Total API requests",
	}, []string{"method", "path", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wanboard_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	return r
}

// RecordAPIRequest records an API request.
func (r *Registry) RecordAPIRequest(method, path string, status int, duration float64) {
	r.APIRequests.WithLabelValues(method, path, statusString(status)).Inc()
	r.APILatency.WithLabelValues(method, path).Observe(duration)
}

// RecordMutation records the outcome of a prefer or refresh.
func (r *Registry) RecordMutation(action string, err error, unixTime float64) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.Mutations.WithLabelValues(action, outcome).Inc()
	r.LastMutation.WithLabelValues(action).Set(unixTime)
}

// SetConnection publishes one row of the connection view.
func (r *Registry) SetConnection(iface string, running, active, preferred bool) {
	r.ConnectionRunning.WithLabelValues(iface).Set(boolGauge(running))
	r.ConnectionActive.WithLabelValues(iface).Set(boolGauge(active))
	r.ConnectionPreferred.WithLabelValues(iface).Set(boolGauge(preferred))
}

// SetThroughput publishes the rates of one interface.
func (r *Registry) SetThroughput(iface string, rxBits, txBits int64) {
	r.Throughput.WithLabelValues(iface, "rx").Set(float64(rxBits))
	r.Throughput.WithLabelValues(iface, "tx").Set(float64(txBits))
}

// SetDeviceOnline publishes a device probe result.
func (r *Registry) SetDeviceOnline(device string, online bool) {
	r.DeviceOnline.WithLabelValues(device).Set(boolGauge(online))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// statusString converts an HTTP status code to string.
func statusString(status int) string {
	return fmt.Sprintf("%d", status)
}
