package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

// fakeGateway records calls and serves queued event batches.
type fakeGateway struct {
	mu sync.Mutex

	registerErrs []error // consumed one per registration
	nextID       int
	registered   []string
	unregistered []string

	fetchErr error
	batches  [][]somfy.Event

	executed []somfy.ActionGroup
	execErr  error
}

func (g *fakeGateway) RegisterEventListener(context.Context) (somfy.EventListener, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.registerErrs) > 0 {
		err := g.registerErrs[0]
		g.registerErrs = g.registerErrs[1:]
		if err != nil {
			return somfy.EventListener{}, err
		}
	}
	g.nextID++
	id := "listener-" + strconv.Itoa(g.nextID)
	g.registered = append(g.registered, id)
	return somfy.EventListener{ID: id}, nil
}

func (g *fakeGateway) FetchEvents(context.Context, string) ([]somfy.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		err := g.fetchErr
		g.fetchErr = nil
		return nil, err
	}
	if len(g.batches) == 0 {
		return []somfy.Event{}, nil
	}
	batch := g.batches[0]
	g.batches = g.batches[1:]
	return batch, nil
}

func (g *fakeGateway) UnregisterEventListener(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unregistered = append(g.unregistered, id)
	return nil
}

func (g *fakeGateway) ExecuteActionGroup(_ context.Context, group somfy.ActionGroup) (somfy.ExecutionID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.execErr != nil {
		return somfy.ExecutionID{}, g.execErr
	}
	g.executed = append(g.executed, group)
	return somfy.ExecutionID{ExecID: "exec-1"}, nil
}

func (g *fakeGateway) counts() (registered, unregistered, executed int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.registered), len(g.unregistered), len(g.executed)
}

type publication struct {
	topic    string
	payload  []byte
	retained bool
}

// fakePublisher captures publications and subscription handlers.
type fakePublisher struct {
	mu       sync.Mutex
	messages []publication
	handlers map[string]mqtt.MessageHandler
	subErr   error
	unsubbed []string
}

func (p *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.messages = append(p.messages, publication{topic: topic, payload: payload, retained: retained})
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if p.subErr != nil {
		return p.subErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handlers == nil {
		p.handlers = make(map[string]mqtt.MessageHandler)
	}
	p.handlers[topic] = handler
	return nil
}

func (p *fakePublisher) Unsubscribe(topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handlers, topic)
	p.unsubbed = append(p.unsubbed, topic)
	return nil
}

func (p *fakePublisher) unsubscribed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.unsubbed...)
}

func (p *fakePublisher) handler(topic string) mqtt.MessageHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers[topic]
}

// last returns the most recent publication on topic.
func (p *fakePublisher) last(t *testing.T, topic string) publication {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].topic == topic {
			return p.messages[i]
		}
	}
	t.Fatalf("nothing published on %s", topic)
	return publication{}
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.messages {
		if m.topic == topic {
			n++
		}
	}
	return n
}

type deviceSample struct {
	deviceURL, state string
	value            float64
}

type executionSample struct {
	execID, oldState, newState string
}

type fakeRecorder struct {
	mu         sync.Mutex
	states     []deviceSample
	executions []executionSample
	flushes    int
}

func (r *fakeRecorder) WriteDeviceState(deviceURL, stateName string, value float64, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, deviceSample{deviceURL, stateName, value})
}

func (r *fakeRecorder) WriteExecutionState(execID, oldState, newState string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions = append(r.executions, executionSample{execID, oldState, newState})
}

func (r *fakeRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
}

func (r *fakeRecorder) flushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "debug"}, "test", io.Discard)
}

// newTestBridge builds a bridge with fakes for every dependency.
func newTestBridge(t *testing.T, opts Options) (*Bridge, *fakeGateway, *fakePublisher, *fakeRecorder) {
	t.Helper()

	gw, _ := opts.Gateway.(*fakeGateway)
	if gw == nil {
		gw = &fakeGateway{}
		opts.Gateway = gw
	}
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	opts.Publisher = pub
	opts.Recorder = rec
	opts.Logger = testLogger()
	if opts.NewRequestID == nil {
		opts.NewRequestID = func() string { return "generated-id" }
	}

	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b, gw, pub, rec
}

// decodeEvents parses a gateway fetch body so that Raw is populated.
func decodeEvents(t *testing.T, body string) []somfy.Event {
	t.Helper()
	var events []somfy.Event
	if err := json.Unmarshal([]byte(body), &events); err != nil {
		t.Fatalf("decoding events: %v", err)
	}
	return events
}

func authError() error {
	return &somfy.RequestError{Kind: somfy.KindAuth, StatusCode: 401}
}

var errBoom = errors.New("boom")

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
