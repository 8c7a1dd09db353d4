package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

type stubCheck struct{ err error }

func (s stubCheck) HealthCheck(context.Context) error { return s.err }

func newTestServer(t *testing.T, b *Bridge, checks map[string]HealthChecker) *httptest.Server {
	t.Helper()
	s, err := NewStatusServer(ServerDeps{Bridge: b, Checks: checks, Logger: testLogger(), Version: "1.2.3"})
	if err != nil {
		t.Fatalf("NewStatusServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getHealth(t *testing.T, url string) (int, healthResponse) {
	t.Helper()
	resp, err := http.Get(url + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	return resp.StatusCode, body
}

func TestNewStatusServer_RequiresBridge(t *testing.T) {
	if _, err := NewStatusServer(ServerDeps{}); err == nil {
		t.Error("NewStatusServer() without bridge error = nil, want error")
	}
}

func TestHealth_DegradedWithoutListener(t *testing.T) {
	b, _, _, _ := newTestBridge(t, Options{})
	srv := newTestServer(t, b, nil)

	code, body := getHealth(t, srv.URL)
	if code != http.StatusServiceUnavailable || body.Status != "degraded" {
		t.Errorf("health = %d %+v, want 503 degraded", code, body)
	}
}

func TestHealth_OK(t *testing.T) {
	b, _, _, _ := newTestBridge(t, Options{})
	b.Poll(context.Background())
	srv := newTestServer(t, b, map[string]HealthChecker{"mqtt": stubCheck{}})

	code, body := getHealth(t, srv.URL)
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("health = %d %+v, want 200 ok", code, body)
	}
	if body.Version != "1.2.3" || !body.Bridge.ListenerActive || body.Checks["mqtt"] != "ok" {
		t.Errorf("health body = %+v", body)
	}
}

func TestHealth_FailingDependency(t *testing.T) {
	b, _, _, _ := newTestBridge(t, Options{})
	b.Poll(context.Background())
	srv := newTestServer(t, b, map[string]HealthChecker{"influxdb": stubCheck{err: errBoom}})

	code, body := getHealth(t, srv.URL)
	if code != http.StatusServiceUnavailable || body.Checks["influxdb"] != "boom" {
		t.Errorf("health = %d %+v", code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	b, _, _, _ := newTestBridge(t, Options{})
	b.Poll(context.Background())
	srv := newTestServer(t, b, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`somfy_bridge_polls_total{result="ok"} 1`,
		`somfy_bridge_listener_registrations_total 1`,
		`somfy_bridge_listener_active 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestDeviceStatesEndpoint(t *testing.T) {
	b, gw, _, _ := newTestBridge(t, Options{})
	gw.batches = [][]somfy.Event{decodeEvents(t, stateEvents)}
	b.Poll(context.Background())
	srv := newTestServer(t, b, nil)

	resp, err := http.Get(srv.URL + "/devices/" + somfy.EscapeSegment("io://1234-5678-9012/4218932") + "/states")
	if err != nil {
		t.Fatalf("GET states error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var msg StateMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decoding states: %v", err)
	}
	if msg.DeviceURL != "io://1234-5678-9012/4218932" || len(msg.States) != 2 {
		t.Errorf("states = %+v", msg)
	}

	resp, err = http.Get(srv.URL + "/devices/unknown/states")
	if err != nil {
		t.Fatalf("GET unknown states error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusServer_StartClose(t *testing.T) {
	b, _, _, _ := newTestBridge(t, Options{})
	s, err := NewStatusServer(ServerDeps{Addr: "127.0.0.1:0", Bridge: b, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewStatusServer() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	resp.Body.Close()

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
