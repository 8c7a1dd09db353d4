package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

const testAPIKey = "cli-test-key"

// fakeGateway is a TLS test server speaking the local API.
type fakeGateway struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
	bodies   map[string]string
}

func (g *fakeGateway) record(r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	g.mu.Lock()
	defer g.mu.Unlock()
	key := r.Method + " " + r.URL.EscapedPath()
	g.requests = append(g.requests, key)
	g.bodies[key] = string(body)
}

func (g *fakeGateway) saw(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.requests {
		if r == key {
			return true
		}
	}
	return false
}

func (g *fakeGateway) body(key string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bodies[key]
}

const api = "/enduser-mobile-web/1/enduserAPI"

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()

	g := &fakeGateway{bodies: make(map[string]string)}
	mux := http.NewServeMux()
	handle := func(pattern string, body func(r *http.Request) string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			g.record(r)
			if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body(r))
		})
	}
	reply := func(pattern, body string) {
		handle(pattern, func(*http.Request) string { return body })
	}

	reply("GET "+api+"/apiVersion", `{"protocolVersion":"2022.1.3-1"}`)
	reply("GET "+api+"/setup/gateways", `[{"gatewayId":"1234-5678-9012","connectivity":{"status":"OK","protocolVersion":"2022.1.3-1"}}]`)
	reply("GET "+api+"/setup", `{"gateways":[{"gatewayId":"1234-5678-9012"}],"devices":[{"deviceURL":"io://1234-5678-9012/4218932","label":"Living room shutter"}]}`)
	reply("GET "+api+"/setup/devices", `[{"deviceURL":"io://1234-5678-9012/4218932","label":"Living room shutter","controllableName":"io:RollerShutterGenericIOComponent","available":true}]`)

	// Device URLs are single escaped segments, so the subtree is routed by
	// hand on the escaped path.
	handle("GET "+api+"/setup/devices/", func(r *http.Request) string {
		rest := strings.TrimPrefix(r.URL.EscapedPath(), api+"/setup/devices/")
		parts := strings.Split(rest, "/")
		switch {
		case parts[0] == "controllables":
			return `["io://1234-5678-9012/4218932"]`
		case len(parts) == 1:
			return `{"deviceURL":"io://1234-5678-9012/4218932","label":"Living room shutter","states":[{"name":"core:ClosureState","type":1,"value":42}]}`
		case len(parts) == 2:
			return `[{"name":"core:ClosureState","type":1,"value":42}]`
		default:
			return `{"name":"core:ClosureState","type":1,"value":42}`
		}
	})
	reply("POST "+api+"/exec/apply", `{"execId":"exec-42"}`)
	reply("GET "+api+"/exec/current", `[{"id":"exec-42","state":"IN_PROGRESS","startTime":1700000000000,"actionGroup":{"label":"close","actions":[]}}]`)
	reply("GET "+api+"/exec/current/{id}", `null`)
	reply("DELETE "+api+"/exec/current/setup", `{}`)
	reply("DELETE "+api+"/exec/current/setup/{id}", `{}`)
	reply("POST "+api+"/events/register", `{"id":"listener-1"}`)
	reply("POST "+api+"/events/{id}/fetch", `[
		{"name":"DeviceStateChangedEvent","timestamp":1700000000000,"deviceURL":"io://1234-5678-9012/4218932","deviceStates":[{"name":"core:ClosureState","type":1,"value":0}]},
		{"name":"ExecutionStateChangedEvent","timestamp":1700000000100,"execId":"exec-42","oldState":"IN_PROGRESS","newState":"COMPLETED"}
	]`)
	reply("POST "+api+"/events/{id}/unregister", `[]`)

	g.Server = httptest.NewTLSServer(mux)
	t.Cleanup(g.Close)
	return g
}

// writeGatewayConfig writes a config file pointing at g and returns its
// path.
func writeGatewayConfig(t *testing.T, g *fakeGateway, extra string) string {
	t.Helper()

	dir := t.TempDir()
	certPath := filepath.Join(dir, "root.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: g.Certificate().Raw})
	if err := os.WriteFile(certPath, certPEM, 0600); err != nil {
		t.Fatalf("writing cert: %v", err)
	}

	u, err := url.Parse(g.URL)
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}

	content := fmt.Sprintf(`
gateway:
  host: %q
  port: %s
  api_key: %q
  cert_file: %q
logging:
  output: discard
%s`, u.Hostname(), u.Port(), testAPIKey, certPath, extra)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// resetFlags restores every flag to its default between runs.
func resetFlags() {
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
		for _, child := range c.Commands() {
			reset(child)
		}
	}
	reset(rootCmd)
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Setenv("SOMFY_CONFIG", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := Execute(context.Background())
	return out.String(), err
}

// =============================================================================
// Setup commands
// =============================================================================

func TestVersionCommand(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	out, err := runCLI(t, "", "version", "--config", cfgPath)
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "2022.1.3-1") {
		t.Errorf("output = %q, want protocol version", out)
	}

	out, err = runCLI(t, "", "version", "--config", cfgPath, "--json")
	if err != nil {
		t.Fatalf("version --json error = %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if v["protocolVersion"] != "2022.1.3-1" {
		t.Errorf("json = %v", v)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	resetFlags()
	t.Setenv("SOMFY_CONFIG", cfgPath)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"gateways"})

	if err := Execute(context.Background()); err != nil {
		t.Fatalf("gateways error = %v", err)
	}
	if !strings.Contains(out.String(), "1234-5678-9012") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSetupCommand(t *testing.T) {
	g := newFakeGateway(t)

	out, err := runCLI(t, "", "setup", "--config", writeGatewayConfig(t, g, ""))
	if err != nil {
		t.Fatalf("setup error = %v", err)
	}
	for _, want := range []string{"GATEWAYS", "1234-5678-9012", "DEVICES (1)", "Living room shutter"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDevicesCommand(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	out, err := runCLI(t, "", "devices", "--config", cfgPath)
	if err != nil {
		t.Fatalf("devices error = %v", err)
	}
	if !strings.Contains(out, "Living room shutter") || !strings.Contains(out, "io://1234-5678-9012/4218932") {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, "", "devices", "--config", cfgPath, "--controllable", "io:RollerShutterGenericIOComponent", "--json")
	if err != nil {
		t.Fatalf("devices --controllable error = %v", err)
	}
	var urls []string
	if err := json.Unmarshal([]byte(out), &urls); err != nil || len(urls) != 1 {
		t.Errorf("output = %q, err = %v", out, err)
	}
	if !g.saw("GET " + api + "/setup/devices/controllables/io%3ARollerShutterGenericIOComponent") {
		t.Errorf("controllable request not escaped: %v", g.requests)
	}
}

func TestDeviceAndStatesCommands(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")
	escaped := "io%3A%2F%2F1234-5678-9012%2F4218932"

	out, err := runCLI(t, "", "device", "io://1234-5678-9012/4218932", "--config", cfgPath)
	if err != nil {
		t.Fatalf("device error = %v", err)
	}
	if !strings.Contains(out, "core:ClosureState = 42") {
		t.Errorf("output = %q", out)
	}
	if !g.saw("GET " + api + "/setup/devices/" + escaped) {
		t.Errorf("requests = %v, want escaped device URL", g.requests)
	}

	if _, err := runCLI(t, "", "states", "io://1234-5678-9012/4218932", "--config", cfgPath); err != nil {
		t.Fatalf("states error = %v", err)
	}
	out, err = runCLI(t, "", "states", "io://1234-5678-9012/4218932", "core:ClosureState", "--config", cfgPath)
	if err != nil {
		t.Fatalf("states NAME error = %v", err)
	}
	if !strings.Contains(out, "core:ClosureState = 42") {
		t.Errorf("output = %q", out)
	}
	if !g.saw("GET " + api + "/setup/devices/" + escaped + "/states/core%3AClosureState") {
		t.Errorf("requests = %v", g.requests)
	}

	if _, err := runCLI(t, "", "device", "--config", cfgPath); err == nil {
		t.Error("device without argument error = nil, want error")
	}
}

func TestUnauthorized(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")
	t.Setenv("SOMFY_API_KEY", "wrong-key")

	_, err := runCLI(t, "", "devices", "--config", cfgPath)
	if !errors.Is(err, somfy.ErrAuth) {
		t.Errorf("devices error = %v, want authentication failure", err)
	}
}

func TestMissingConfiguration(t *testing.T) {
	t.Setenv("SOMFY_GATEWAY_ID", "")
	t.Setenv("SOMFY_API_KEY", "")

	_, err := runCLI(t, "", "devices")
	if err == nil || !strings.Contains(err.Error(), "gateway.api_key") {
		t.Errorf("devices error = %v, want validation error", err)
	}
}

// =============================================================================
// Execution commands
// =============================================================================

const actionGroupJSON = `{
  "label": "close living room",
  "actions": [
    {"deviceURL": "io://1234-5678-9012/4218932", "commands": [{"name": "close", "parameters": []}]}
  ]
}`

func TestExecCommand(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	groupPath := filepath.Join(t.TempDir(), "group.json")
	if err := os.WriteFile(groupPath, []byte(actionGroupJSON), 0600); err != nil {
		t.Fatalf("writing group: %v", err)
	}

	out, err := runCLI(t, "", "exec", "-f", groupPath, "--config", cfgPath)
	if err != nil {
		t.Fatalf("exec error = %v", err)
	}
	if !strings.Contains(out, "exec-42") {
		t.Errorf("output = %q", out)
	}

	var sent map[string]any
	if err := json.Unmarshal([]byte(g.body("POST "+api+"/exec/apply")), &sent); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if sent["label"] != "close living room" {
		t.Errorf("sent = %v", sent)
	}
}

func TestExecCommand_StdinAndLabel(t *testing.T) {
	g := newFakeGateway(t)

	out, err := runCLI(t, actionGroupJSON, "exec", "-f", "-", "--label", "override", "--json", "--config", writeGatewayConfig(t, g, ""))
	if err != nil {
		t.Fatalf("exec error = %v", err)
	}
	var id map[string]string
	if err := json.Unmarshal([]byte(out), &id); err != nil || id["execId"] != "exec-42" {
		t.Errorf("output = %q, err = %v", out, err)
	}
	if !strings.Contains(g.body("POST "+api+"/exec/apply"), `"label":"override"`) {
		t.Errorf("body = %s", g.body("POST "+api+"/exec/apply"))
	}
}

func TestExecCommand_InvalidGroup(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	for _, input := range []string{`{not json`, `{"actions":[]}`, `{"actions":[{"commands":[]}]}`, `{"actions":[],"bogus":1}`} {
		if _, err := runCLI(t, input, "exec", "-f", "-", "--config", cfgPath); err == nil {
			t.Errorf("exec with %s error = nil, want error", input)
		}
	}
	if g.saw("POST " + api + "/exec/apply") {
		t.Error("invalid action group reached the gateway")
	}
}

func TestExecutionsCommand(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	out, err := runCLI(t, "", "executions", "--config", cfgPath)
	if err != nil {
		t.Fatalf("executions error = %v", err)
	}
	if !strings.Contains(out, "exec-42") || !strings.Contains(out, "IN_PROGRESS") {
		t.Errorf("output = %q", out)
	}

	_, err = runCLI(t, "", "executions", "exec-gone", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "not running") {
		t.Errorf("executions ID error = %v, want not running", err)
	}
}

func TestCancelCommand(t *testing.T) {
	g := newFakeGateway(t)
	cfgPath := writeGatewayConfig(t, g, "")

	if _, err := runCLI(t, "", "cancel", "--all", "--config", cfgPath); err != nil {
		t.Fatalf("cancel --all error = %v", err)
	}
	if !g.saw("DELETE " + api + "/exec/current/setup") {
		t.Errorf("requests = %v", g.requests)
	}

	if _, err := runCLI(t, "", "cancel", "exec-42", "--config", cfgPath); err != nil {
		t.Fatalf("cancel ID error = %v", err)
	}
	if !g.saw("DELETE " + api + "/exec/current/setup/exec-42") {
		t.Errorf("requests = %v", g.requests)
	}

	if _, err := runCLI(t, "", "cancel", "--config", cfgPath); err == nil {
		t.Error("cancel without target error = nil, want error")
	}
	if _, err := runCLI(t, "", "cancel", "exec-42", "--all", "--config", cfgPath); err == nil {
		t.Error("cancel ID --all error = nil, want error")
	}
}

// =============================================================================
// Events
// =============================================================================

func TestEventsCommand(t *testing.T) {
	g := newFakeGateway(t)

	out, err := runCLI(t, "", "events", "--count", "2", "--json", "--config", writeGatewayConfig(t, g, ""))
	if err != nil {
		t.Fatalf("events error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("output lines = %d, want 2:\n%s", len(lines), out)
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not JSON: %q", lines[0])
	}
	if first["name"] != "DeviceStateChangedEvent" {
		t.Errorf("first event = %v", first)
	}

	if !g.saw("POST " + api + "/events/listener-1/unregister") {
		t.Errorf("listener not unregistered: %v", g.requests)
	}
}

func TestEventsCommand_Text(t *testing.T) {
	g := newFakeGateway(t)

	out, err := runCLI(t, "", "events", "-n", "2", "--config", writeGatewayConfig(t, g, ""))
	if err != nil {
		t.Fatalf("events error = %v", err)
	}
	for _, want := range []string{"listener-1", "DeviceStateChangedEvent", "core:ClosureState = 0", "IN_PROGRESS → COMPLETED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func testCLILogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "debug"}, "test", io.Discard)
}
