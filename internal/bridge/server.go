package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests during shutdown.
	gracefulShutdownTimeout = 5 * time.Second

	// healthCheckTimeout bounds each dependency check in /health.
	healthCheckTimeout = 2 * time.Second
)

// HealthChecker is implemented by infrastructure clients (MQTT, InfluxDB)
// whose health is reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ServerDeps holds the dependencies of the status server.
type ServerDeps struct {
	Addr    string
	Bridge  *Bridge
	Checks  map[string]HealthChecker
	Logger  *logging.Logger
	Version string
}

// StatusServer serves /health and /metrics for a bridge.
type StatusServer struct {
	addr    string
	bridge  *Bridge
	checks  map[string]HealthChecker
	logger  *logging.Logger
	version string

	server   *http.Server
	listener net.Listener
}

// NewStatusServer creates a status server. It is not listening until Start.
func NewStatusServer(deps ServerDeps) (*StatusServer, error) {
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &StatusServer{
		addr:    deps.Addr,
		bridge:  deps.Bridge,
		checks:  deps.Checks,
		logger:  logger.With("component", "status"),
		version: deps.Version,
	}, nil
}

// Handler returns the router.
func (s *StatusServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		s.bridge.Metrics().Registry,
		promhttp.HandlerOpts{},
	))
	r.Get("/devices/{deviceURL}/states", s.handleDeviceStates)
	return r
}

// Start binds the listen address and serves in a background goroutine.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status server listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()
	s.logger.Info("status server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *StatusServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Close gracefully shuts the server down.
func (s *StatusServer) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Bridge  Status            `json:"bridge"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth reports 200 when the bridge holds a listener and every
// dependency is healthy, 503 otherwise.
func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.version,
		Bridge:  s.bridge.Status(),
	}
	if !resp.Bridge.ListenerActive {
		resp.Status = "degraded"
	}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := check.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleDeviceStates returns the cached states of one device. The device
// URL is a single percent-encoded path segment.
func (s *StatusServer) handleDeviceStates(w http.ResponseWriter, r *http.Request) {
	deviceURL, err := url.PathUnescape(chi.URLParam(r, "deviceURL"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed device URL"})
		return
	}
	states, ok := s.bridge.DeviceStates(deviceURL)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cached state for device"})
		return
	}
	writeJSON(w, http.StatusOK, StateMessage{
		DeviceURL: deviceURL,
		States:    states,
		Protocol:  Protocol,
	})
}

func (s *StatusServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("status request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
