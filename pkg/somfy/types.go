package somfy

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Version is the gateway protocol version.
type Version struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func (v *Version) validate() error {
	if v.ProtocolVersion == "" {
		return missingField("protocolVersion")
	}
	return nil
}

// GatewayConnectivity describes a gateway's link state.
type GatewayConnectivity struct {
	Status          string `json:"status"`
	ProtocolVersion string `json:"protocolVersion"`
}

// Gateway is a hub exposing the local API.
type Gateway struct {
	GatewayID    string              `json:"gatewayId"`
	Connectivity GatewayConnectivity `json:"connectivity"`
}

func (g *Gateway) validate() error {
	if g.GatewayID == "" {
		return missingField("gatewayId")
	}
	return nil
}

// Setup is the full installation: gateways plus devices.
type Setup struct {
	Gateways []Gateway `json:"gateways"`
	Devices  []Device  `json:"devices"`
}

func (s *Setup) validate() error {
	for i := range s.Gateways {
		if err := s.Gateways[i].validate(); err != nil {
			return err
		}
	}
	for i := range s.Devices {
		if err := s.Devices[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// DeviceDefinition lists the commands and states a device type supports.
type DeviceDefinition struct {
	WidgetName string                    `json:"widgetName,omitempty"`
	UIClass    string                    `json:"uiClass,omitempty"`
	Type       string                    `json:"type,omitempty"`
	Commands   []DeviceCommandDefinition `json:"commands,omitempty"`
	States     []DeviceStateDefinition   `json:"states,omitempty"`
}

// DeviceCommandDefinition names one supported command.
type DeviceCommandDefinition struct {
	CommandName string `json:"commandName"`
	Nparams     int    `json:"nparams"`
}

// DeviceStateDefinition names one reported state.
type DeviceStateDefinition struct {
	QualifiedName string `json:"qualifiedName"`
	Type          string `json:"type,omitempty"`
}

// Device is one piece of equipment paired with the gateway. DeviceURL is
// its identity, e.g. "io://1234-5678-9012/4218932".
type Device struct {
	DeviceURL        string            `json:"deviceURL"`
	Label            string            `json:"label"`
	ControllableName string            `json:"controllableName"`
	SubsystemID      int               `json:"subsystemId"`
	Type             int               `json:"type"`
	Available        bool              `json:"available"`
	Synced           bool              `json:"synced"`
	Enabled          bool              `json:"enabled"`
	Definition       *DeviceDefinition `json:"definition,omitempty"`
	States           []DeviceState     `json:"states"`
	Attributes       []DeviceState     `json:"attributes"`
}

func (d *Device) validate() error {
	if d.DeviceURL == "" {
		return missingField("deviceURL")
	}
	for i := range d.States {
		if err := d.States[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// State type codes reported alongside device state values.
const (
	StateTypeInt    = 1
	StateTypeFloat  = 2
	StateTypeString = 3
	StateTypeBool   = 6
	StateTypeJSON   = 10
	StateTypeArray  = 11
)

// DeviceState is a named state value of a device.
type DeviceState struct {
	Name  string     `json:"name"`
	Type  int        `json:"type"`
	Value StateValue `json:"value"`
}

func (s *DeviceState) validate() error {
	if s.Name == "" {
		return missingField("name")
	}
	return nil
}

// StateValue holds a heterogeneous state value as raw JSON.
// The zero value represents an absent value.
type StateValue struct {
	raw json.RawMessage
}

// NewStateValue wraps v, which must be JSON-encodable.
func NewStateValue(v any) (StateValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return StateValue{}, err
	}
	return StateValue{raw: raw}, nil
}

// UnmarshalJSON keeps a copy of the raw value.
func (v *StateValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

// MarshalJSON returns the raw value, or null when absent.
func (v StateValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// Raw returns the undecoded JSON value.
func (v StateValue) Raw() json.RawMessage {
	return v.raw
}

// IsNull reports whether the value is absent or JSON null.
func (v StateValue) IsNull() bool {
	trimmed := bytes.TrimSpace(v.raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// AsString returns the value if it is a JSON string.
func (v StateValue) AsString() (string, bool) {
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsFloat returns the value if it is a JSON number. Numeric strings, which
// some devices report, are accepted too.
func (v StateValue) AsFloat() (float64, bool) {
	var f float64
	if err := json.Unmarshal(v.raw, &f); err == nil {
		return f, true
	}
	if s, ok := v.AsString(); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AsBool returns the value if it is a JSON boolean.
func (v StateValue) AsBool() (bool, bool) {
	var b bool
	if err := json.Unmarshal(v.raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// Decode unmarshals the value into dst.
func (v StateValue) Decode(dst any) error {
	return json.Unmarshal(v.raw, dst)
}

// EventListener identifies a registered event listener.
type EventListener struct {
	ID string `json:"id"`
}

func (l *EventListener) validate() error {
	if l.ID == "" {
		return missingField("id")
	}
	return nil
}

// Event names the gateway emits that callers commonly switch on.
const (
	EventDeviceStateChanged    = "DeviceStateChangedEvent"
	EventExecutionRegistered   = "ExecutionRegisteredEvent"
	EventExecutionStateChanged = "ExecutionStateChangedEvent"
	EventGatewayAlive          = "GatewayAliveEvent"
	EventGatewayDown           = "GatewayDownEvent"
	EventDeviceAvailable       = "DeviceAvailableEvent"
	EventDeviceUnavailable     = "DeviceUnavailableEvent"
)

// Event is one entry returned by an event fetch. The common fields are
// decoded; Raw keeps the complete payload for event types with extra data.
type Event struct {
	Name         string        `json:"name"`
	Timestamp    int64         `json:"timestamp,omitempty"`
	GatewayID    string        `json:"gatewayId,omitempty"`
	DeviceURL    string        `json:"deviceURL,omitempty"`
	DeviceStates []DeviceState `json:"deviceStates,omitempty"`
	ExecID       string        `json:"execId,omitempty"`
	OldState     string        `json:"oldState,omitempty"`
	NewState     string        `json:"newState,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the common fields and keeps the raw payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (e *Event) validate() error {
	if e.Name == "" {
		return missingField("name")
	}
	return nil
}

// DeviceCommand is one command sent to a device within an action.
type DeviceCommand struct {
	Type       int    `json:"type,omitempty"`
	Name       string `json:"name"`
	Parameters []any  `json:"parameters"`
}

// Action targets one device with an ordered list of commands.
type Action struct {
	DeviceURL string          `json:"deviceURL"`
	Commands  []DeviceCommand `json:"commands"`
}

// ActionGroup is a labelled batch of actions the gateway runs as one
// execution.
type ActionGroup struct {
	Label   string   `json:"label,omitempty"`
	Actions []Action `json:"actions"`
}

// ExecutionID identifies a started execution.
type ExecutionID struct {
	ExecID string `json:"execId"`
}

func (e *ExecutionID) validate() error {
	if e.ExecID == "" {
		return missingField("execId")
	}
	return nil
}

// Execution is a gateway-tracked run of an action group.
type Execution struct {
	ID               string      `json:"id"`
	Owner            string      `json:"owner"`
	ExecutionType    string      `json:"executionType"`
	ExecutionSubType string      `json:"executionSubType"`
	Description      string      `json:"description"`
	StartTime        int64       `json:"startTime"`
	State            string      `json:"state"`
	ActionGroup      ActionGroup `json:"actionGroup"`
}

func (e *Execution) validate() error {
	if e.ID == "" {
		return missingField("id")
	}
	return nil
}

// CancelResult is the (empty) acknowledgement of a cancel request.
type CancelResult struct{}

// UnregisterResult is the acknowledgement of an unregister request. The
// gateway answers with an empty array.
type UnregisterResult []json.RawMessage
