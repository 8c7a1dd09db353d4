package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

const (
	// DefaultPollInterval is used when Options.PollInterval is zero.
	DefaultPollInterval = 2 * time.Second

	// commandTimeout bounds one gateway execution request, including the
	// wait for a rate limiter token.
	commandTimeout = 15 * time.Second

	// shutdownTimeout bounds the listener unregistration on exit.
	shutdownTimeout = 5 * time.Second
)

// Gateway is the subset of *somfy.Client the bridge drives.
type Gateway interface {
	RegisterEventListener(ctx context.Context) (somfy.EventListener, error)
	FetchEvents(ctx context.Context, listenerID string) ([]somfy.Event, error)
	UnregisterEventListener(ctx context.Context, listenerID string) error
	ExecuteActionGroup(ctx context.Context, group somfy.ActionGroup) (somfy.ExecutionID, error)
}

// Publisher is the subset of *mqtt.Client the bridge publishes and
// subscribes through.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Recorder stores time series. *influxdb.Client satisfies it.
type Recorder interface {
	WriteDeviceState(deviceURL, stateName string, value float64, at time.Time)
	WriteExecutionState(execID, oldState, newState string, at time.Time)
	Flush()
}

// Options configures a Bridge.
type Options struct {
	// Gateway is required.
	Gateway Gateway

	// Publisher is optional. Without it events are only logged, recorded
	// and counted, and no commands are accepted.
	Publisher Publisher

	// Recorder is optional.
	Recorder Recorder

	// Metrics is optional; a fresh set is created when nil.
	Metrics *Metrics

	// Logger is optional; logging.Default() is used when nil.
	Logger *logging.Logger

	PollInterval time.Duration

	// CommandRate is the sustained commands per second; zero disables
	// limiting. CommandBurst is the bucket size (minimum 1).
	CommandRate  float64
	CommandBurst int

	// NewRequestID generates ack ids for commands without one.
	NewRequestID func() string
}

// Status is a point-in-time view of the bridge for health reporting.
type Status struct {
	Running        bool      `json:"running"`
	ListenerActive bool      `json:"listener_active"`
	LastPoll       time.Time `json:"last_poll,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Devices        int       `json:"devices"`
}

// Bridge polls gateway events and relays them to MQTT.
//
// Thread Safety: All methods are safe for concurrent use. Run must be called
// at most once at a time.
type Bridge struct {
	gateway   Gateway
	publisher Publisher
	recorder  Recorder
	metrics   *Metrics
	logger    *logging.Logger
	limiter   *rate.Limiter
	interval  time.Duration
	newID     func() string
	topics    mqtt.Topics

	mu         sync.RWMutex
	runCtx     context.Context
	listenerID string
	lastPoll   time.Time
	lastErr    error

	// State cache for merged retained state messages.
	stateCache   map[string]map[string]somfy.StateValue
	stateCacheMu sync.Mutex
}

// New creates a bridge. Call Run to start it.
func New(opts Options) (*Bridge, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if opts.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", opts.PollInterval)
	}

	b := &Bridge{
		gateway:    opts.Gateway,
		publisher:  opts.Publisher,
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		interval:   opts.PollInterval,
		newID:      opts.NewRequestID,
		stateCache: make(map[string]map[string]somfy.StateValue),
	}
	if b.metrics == nil {
		b.metrics = NewMetrics()
	}
	if b.logger == nil {
		b.logger = logging.Default()
	}
	b.logger = b.logger.With("component", "bridge")
	if b.interval == 0 {
		b.interval = DefaultPollInterval
	}
	if b.newID == nil {
		b.newID = newRequestID
	}
	if opts.CommandRate > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.CommandRate), max(opts.CommandBurst, 1))
	}

	return b, nil
}

// Metrics returns the bridge's collectors.
func (b *Bridge) Metrics() *Metrics {
	return b.metrics
}

// Run registers an event listener, subscribes to commands and polls until
// ctx is cancelled, then unregisters the listener. It returns early only
// when the gateway rejects the credentials or certificate during any
// registration, or the command subscription fails.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.runCtx != nil {
		b.mu.Unlock()
		return fmt.Errorf("bridge already running")
	}
	b.runCtx = ctx
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.runCtx = nil
		b.mu.Unlock()
	}()

	if err := b.register(ctx); err != nil {
		if isFatal(err) {
			return fmt.Errorf("registering event listener: %w", err)
		}
		b.logger.Warn("event listener registration failed, will retry", "error", err)
	}

	if b.publisher != nil {
		topic := b.topics.AllCommands()
		if err := b.publisher.Subscribe(topic, 1, b.handleCommand); err != nil {
			b.unregister(ctx)
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logger.Info("subscribed to commands", "topic", topic)
		defer func() {
			if err := b.publisher.Unsubscribe(topic); err != nil {
				b.logger.Warn("unsubscribing from commands failed", "topic", topic, "error", err)
			}
		}()
	}
	if b.recorder != nil {
		defer b.recorder.Flush()
	}

	b.logger.Info("bridge started", "poll_interval", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.unregister(ctx)
			b.logger.Info("bridge stopped")
			return nil
		case <-ticker.C:
			if err := b.Poll(ctx); isFatal(err) {
				b.logger.Error("event listener registration rejected, stopping", "error", err)
				return fmt.Errorf("registering event listener: %w", err)
			}
		}
	}
}

// Poll performs one fetch cycle: it registers a listener if none is
// active, fetches pending events and handles each of them. An expired
// listener is replaced immediately.
//
// The returned error is non-nil only when a listener could not be
// registered. Fetch failures are recorded in Status and retried on the
// next cycle.
func (b *Bridge) Poll(ctx context.Context) error {
	id := b.currentListener()
	if id == "" {
		if err := b.register(ctx); err != nil {
			b.metrics.RecordPoll(pollNoListen)
			b.logger.Warn("event listener registration failed", "error", err)
			return err
		}
		id = b.currentListener()
	}

	events, err := b.gateway.FetchEvents(ctx, id)
	switch {
	case err == nil:
	case listenerExpired(err):
		b.metrics.RecordPoll(pollExpired)
		b.logger.Info("event listener expired, re-registering", "listener_id", id)
		b.setListener("")
		if err := b.register(ctx); err != nil {
			b.logger.Warn("event listener re-registration failed", "error", err)
			return err
		}
		return nil
	default:
		b.metrics.RecordPoll(pollError)
		b.setError(err)
		b.logger.Warn("fetching events failed", "listener_id", id, "error", err)
		return nil
	}

	now := time.Now()
	b.mu.Lock()
	b.lastPoll = now
	b.lastErr = nil
	b.mu.Unlock()
	b.metrics.RecordPoll(pollOK)
	b.metrics.LastPollTimestamp.Set(float64(now.Unix()))

	for _, ev := range events {
		b.handleEvent(ev)
	}
	return nil
}

// Status returns the current bridge status.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	s := Status{
		Running:        b.runCtx != nil,
		ListenerActive: b.listenerID != "",
		LastPoll:       b.lastPoll,
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	b.mu.RUnlock()

	b.stateCacheMu.Lock()
	s.Devices = len(b.stateCache)
	b.stateCacheMu.Unlock()
	return s
}

// DeviceStates returns a copy of the cached states of a device.
func (b *Bridge) DeviceStates(deviceURL string) (map[string]somfy.StateValue, bool) {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	cached, ok := b.stateCache[deviceURL]
	if !ok {
		return nil, false
	}
	out := make(map[string]somfy.StateValue, len(cached))
	for k, v := range cached {
		out[k] = v
	}
	return out, true
}

// register obtains a new event listener from the gateway.
func (b *Bridge) register(ctx context.Context) error {
	listener, err := b.gateway.RegisterEventListener(ctx)
	if err != nil {
		b.setError(err)
		return err
	}
	b.setListener(listener.ID)
	b.metrics.RegistrationsTotal.Inc()
	b.logger.Info("event listener registered", "listener_id", listener.ID)
	return nil
}

// unregister releases the active listener. It runs after ctx is done, so it
// uses a detached context with its own deadline.
func (b *Bridge) unregister(ctx context.Context) {
	id := b.currentListener()
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := b.gateway.UnregisterEventListener(ctx, id); err != nil {
		b.logger.Warn("unregistering event listener failed", "listener_id", id, "error", err)
	} else {
		b.logger.Info("event listener unregistered", "listener_id", id)
	}
	b.setListener("")
}

func (b *Bridge) currentListener() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listenerID
}

func (b *Bridge) setListener(id string) {
	b.mu.Lock()
	b.listenerID = id
	b.mu.Unlock()
	b.metrics.SetListenerActive(id != "")
}

func (b *Bridge) setError(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// handleEvent republishes one event and updates derived state.
func (b *Bridge) handleEvent(ev somfy.Event) {
	b.metrics.RecordEvent(ev.Name)

	payload := ev.Raw
	if len(payload) == 0 {
		encoded, err := json.Marshal(ev)
		if err != nil {
			b.logger.Error("encoding event failed", "event", ev.Name, "error", err)
			return
		}
		payload = encoded
	}
	b.publish(b.topics.Event(ev.Name), json.RawMessage(payload), false)

	switch ev.Name {
	case somfy.EventDeviceStateChanged:
		b.handleStateChange(ev)
	case somfy.EventExecutionStateChanged:
		if b.recorder != nil && ev.ExecID != "" {
			b.recorder.WriteExecutionState(ev.ExecID, ev.OldState, ev.NewState, eventTime(ev))
		}
	}
}

// handleStateChange merges the changed states into the cache, publishes the
// merged view retained and records numeric values.
func (b *Bridge) handleStateChange(ev somfy.Event) {
	if ev.DeviceURL == "" || len(ev.DeviceStates) == 0 {
		return
	}
	at := eventTime(ev)

	b.stateCacheMu.Lock()
	cached, ok := b.stateCache[ev.DeviceURL]
	if !ok {
		cached = make(map[string]somfy.StateValue)
		b.stateCache[ev.DeviceURL] = cached
	}
	for _, st := range ev.DeviceStates {
		cached[st.Name] = st.Value
	}
	merged := make(map[string]somfy.StateValue, len(cached))
	for k, v := range cached {
		merged[k] = v
	}
	devices := len(b.stateCache)
	b.stateCacheMu.Unlock()

	b.metrics.DevicesTracked.Set(float64(devices))

	b.publish(b.topics.State(ev.DeviceURL), StateMessage{
		DeviceURL: ev.DeviceURL,
		States:    merged,
		Protocol:  Protocol,
		Timestamp: at,
	}, true)

	if b.recorder == nil {
		return
	}
	for _, st := range ev.DeviceStates {
		if value, ok := numericValue(st.Value); ok {
			b.recorder.WriteDeviceState(ev.DeviceURL, st.Name, value, at)
		}
	}
}

// ClearStateCache forgets all cached device states.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	b.stateCache = make(map[string]map[string]somfy.StateValue)
	b.stateCacheMu.Unlock()
	b.metrics.DevicesTracked.Set(0)
}

func (b *Bridge) publish(topic string, v any, retained bool) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.PublishJSON(topic, v, retained); err != nil {
		b.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

// numericValue returns a state value as a float for time-series recording.
// Booleans map to 0 and 1.
func numericValue(v somfy.StateValue) (float64, bool) {
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	if on, ok := v.AsBool(); ok {
		if on {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// isFatal reports errors that retrying cannot fix.
func isFatal(err error) bool {
	return errors.Is(err, somfy.ErrAuth) || errors.Is(err, somfy.ErrCert)
}

// listenerExpired reports whether a fetch failed because the gateway no
// longer knows the listener. Gateways answer 400 or 404 for that.
func listenerExpired(err error) bool {
	return errors.Is(err, somfy.ErrNotFound) || errors.Is(err, somfy.ErrInvalidRequest)
}
