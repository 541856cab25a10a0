package api

import (
	"bytes"
	"context"
	"io/fs"
	"mime"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/wanboard/internal/audit"
	"grimm.is/wanboard/internal/clock"
	"grimm.is/wanboard/internal/config"
	"grimm.is/wanboard/internal/health"
	"grimm.is/wanboard/internal/i18n"
	"grimm.is/wanboard/internal/logging"
	"grimm.is/wanboard/internal/metrics"
	"grimm.is/wanboard/internal/monitor"
	"grimm.is/wanboard/internal/ratelimit"
	"grimm.is/wanboard/internal/unifi"
	"grimm.is/wanboard/internal/wan"
)

func init() {
	// Minimal environments may lack /etc/mime.types.
	mime.AddExtensionType(".js", "application/javascript")
	mime.AddExtensionType(".css", "text/css")
	mime.AddExtensionType(".html", "text/html")
	mime.AddExtensionType(".svg", "image/svg+xml")
}

// ServerConfig holds HTTP server timeouts and limits.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	ShutdownTimeout   time.Duration
}

// DefaultServerConfig returns secure default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second, // Slowloris prevention
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		MaxBodyBytes:      1 << 20,
		ShutdownTimeout:   5 * time.Second,
	}
}

// GuestNetwork reads and rotates the guest Wi-Fi passphrase.
type GuestNetwork interface {
	GuestWifi(ctx context.Context) (*unifi.GuestWifi, error)
	ResetPassword(ctx context.Context) (*unifi.GuestWifi, error)
}

// ServerOptions holds dependencies for the API server
type ServerOptions struct {
	Config  *config.Config
	Service *wan.Service
	// Prober answers /api/devices and /api/power-status. Optional.
	Prober *monitor.Prober
	// Guest answers /api/guest-wifi. Optional.
	Guest GuestNetwork
	// Audit records mutations. Optional.
	Audit  *audit.Store
	Health *health.Checker
	Logger *logging.Logger
	Assets fs.FS
	Clock  clock.Clock
}

// Server handles API requests.
type Server struct {
	Config  *config.Config
	Assets  fs.FS
	service *wan.Service
	prober  *monitor.Prober
	guest   GuestNetwork
	audit   *audit.Store
	health  *health.Checker
	logger  *logging.Logger
	clock   clock.Clock

	startTime    time.Time
	pollInterval time.Duration
	limiter      *ratelimit.Limiter
	trusted      []netip.Prefix

	mux *http.ServeMux
}

// NewServer creates a new API server with the provided options
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("api")
	}
	clk := opts.Clock
	if clk == nil {
		clk = &clock.RealClock{}
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	s := &Server{
		Config:       cfg,
		Assets:       opts.Assets,
		service:      opts.Service,
		prober:       opts.Prober,
		guest:        opts.Guest,
		audit:        opts.Audit,
		health:       opts.Health,
		logger:       logger,
		clock:        clk,
		startTime:    clk.Now(),
		pollInterval: config.DashboardConfig{}.PollIntervalDuration(),
	}
	if cfg.Dashboard != nil {
		s.pollInterval = cfg.Dashboard.PollIntervalDuration()
	}
	if cfg.API != nil {
		if cfg.API.MutationLimit > 0 {
			s.limiter = ratelimit.NewLimiter(cfg.API.MutationLimit, cfg.API.MutationWindowDuration(), clk)
		}
		trusted, err := cfg.API.TrustedProxyPrefixes()
		if err != nil {
			return nil, err
		}
		s.trusted = trusted
	}
	if s.health == nil {
		s.health = s.defaultChecks()
	}

	s.initRoutes()
	return s, nil
}

// defaultChecks registers the router and audit checks behind /healthz.
func (s *Server) defaultChecks() *health.Checker {
	checker := health.NewChecker()
	checker.SetClock(s.clock)
	if s.service != nil {
		checker.Register("router", health.FromError("router reachable", health.StatusUnhealthy,
			func(ctx context.Context) error {
				_, err := s.service.Reader().ListWanInterfaces(ctx)
				return err
			}))
	}
	if s.audit != nil {
		checker.Register("audit", health.FromError("audit store writable", health.StatusDegraded, s.audit.Ping))
	}
	return checker
}

func (s *Server) initRoutes() {
	mux := http.NewServeMux()

	// Connection view and mutations
	mux.HandleFunc("GET /api/connections", s.handleConnections)
	mux.HandleFunc("POST /api/connections/prefer/{interfaceName}", s.limitMutations(s.handlePrefer))
	mux.HandleFunc("POST /api/connections/refresh/{interfaceName}", s.limitMutations(s.handleRefresh))
	mux.HandleFunc("GET /api/throughput", s.handleThroughput)
	mux.HandleFunc("GET /api/ws/connections", s.handleConnectionsWS)

	// Reachability
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/power-status", s.handlePowerStatus)

	// Guest Wi-Fi
	mux.HandleFunc("GET /api/guest-wifi", s.handleGuestWifi)
	mux.HandleFunc("POST /api/guest-wifi/reset-password", s.limitMutations(s.handleResetGuestPassword))

	// Operations
	mux.HandleFunc("GET /api/audit", s.handleAuditQuery)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /healthz", s.health.Handler())
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler())
	mux.HandleFunc("GET /livez", health.LivenessHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.Assets != nil {
		mux.Handle("GET /", s.spaHandler(s.Assets, "index.html"))
	}

	s.mux = mux
}

// Handler returns the HTTP handler with middleware applied.
// Chain: body limit -> request id -> i18n -> client ip -> access log -> mux
func (s *Server) Handler() http.Handler {
	cfg := DefaultServerConfig()
	h := AccessLogger(s.logger)(s.mux)
	h = ClientIPMiddleware(s.trusted)(h)
	h = i18n.Middleware(h)
	h = RequestIDMiddleware(h)
	return maxBodyMiddleware(cfg.MaxBodyBytes)(h)
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	cfg := DefaultServerConfig()
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go s.trackUptime(ctx)
	if s.limiter != nil {
		go s.cleanupLimiter(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) trackUptime(ctx context.Context) {
	ticker := s.clock.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.Get().Uptime.Set(s.clock.Since(s.startTime).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

// spaHandler serves static files, falling back to index.html for client-side routing.
// fs.FS confines lookups to the asset root.
func (s *Server) spaHandler(assets fs.FS, fallback string) http.Handler {
	fileServer := http.FileServer(http.FS(assets))

	indexContent, err := fs.ReadFile(assets, fallback)
	if err != nil {
		s.logger.Warn("dashboard assets have no index", "file", fallback, "error", err)
		indexContent = []byte("wanboard")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = fallback
		}

		if f, err := assets.Open(path); err == nil {
			stat, statErr := f.Stat()
			f.Close()
			if statErr == nil && !stat.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		// Missing assets must 404 rather than return HTML.
		if strings.HasPrefix(path, "assets/") || strings.HasPrefix(path, "api/") {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", s.startTime, bytes.NewReader(indexContent))
	})
}
