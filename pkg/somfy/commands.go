package somfy

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// =============================================================================
// Gateway and setup
// =============================================================================

// GetVersionCommand reads the API protocol version.
type GetVersionCommand struct{}

// Request implements Command.
func (GetVersionCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("apiVersion")), nil
}

// ParseResponse implements Command.
func (GetVersionCommand) ParseResponse(body []byte) (Version, error) {
	return DecodeJSON[Version](body)
}

// GetGatewaysCommand lists the gateways of the installation.
type GetGatewaysCommand struct{}

// Request implements Command.
func (GetGatewaysCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("setup", "gateways")), nil
}

// ParseResponse implements Command.
func (GetGatewaysCommand) ParseResponse(body []byte) ([]Gateway, error) {
	return DecodeList[Gateway](body)
}

// GetSetupCommand reads the full installation.
type GetSetupCommand struct{}

// Request implements Command.
func (GetSetupCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("setup")), nil
}

// ParseResponse implements Command.
func (GetSetupCommand) ParseResponse(body []byte) (Setup, error) {
	return DecodeJSON[Setup](body)
}

// =============================================================================
// Devices
// =============================================================================

// GetDevicesCommand lists every device.
type GetDevicesCommand struct{}

// Request implements Command.
func (GetDevicesCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("setup", "devices")), nil
}

// ParseResponse implements Command.
func (GetDevicesCommand) ParseResponse(body []byte) ([]Device, error) {
	return DecodeList[Device](body)
}

// GetDeviceCommand reads a single device.
type GetDeviceCommand struct {
	DeviceURL string
}

// Request implements Command.
func (c GetDeviceCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("setup", "devices", EscapeSegment(c.DeviceURL))), nil
}

// ParseResponse implements Command.
func (GetDeviceCommand) ParseResponse(body []byte) (Device, error) {
	return DecodeJSON[Device](body)
}

// GetDeviceStatesCommand lists all states of a device.
type GetDeviceStatesCommand struct {
	DeviceURL string
}

// Request implements Command.
func (c GetDeviceStatesCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("setup", "devices", EscapeSegment(c.DeviceURL), "states")), nil
}

// ParseResponse implements Command.
func (GetDeviceStatesCommand) ParseResponse(body []byte) ([]DeviceState, error) {
	return DecodeList[DeviceState](body)
}

// GetDeviceStateCommand reads one named state of a device.
type GetDeviceStateCommand struct {
	DeviceURL string
	StateName string
}

// Request implements Command.
func (c GetDeviceStateCommand) Request() (*RequestData, error) {
	path := apiPath("setup", "devices", EscapeSegment(c.DeviceURL), "states", EscapeSegment(c.StateName))
	return NewRequest(http.MethodGet, path), nil
}

// ParseResponse implements Command.
func (GetDeviceStateCommand) ParseResponse(body []byte) (DeviceState, error) {
	return DecodeJSON[DeviceState](body)
}

// GetDevicesByControllableCommand lists the URLs of devices with the given
// controllable name, e.g. "io:RollerShutterGenericIOComponent".
type GetDevicesByControllableCommand struct {
	ControllableName string
}

// Request implements Command.
func (c GetDevicesByControllableCommand) Request() (*RequestData, error) {
	path := apiPath("setup", "devices", "controllables", EscapeSegment(c.ControllableName))
	return NewRequest(http.MethodGet, path), nil
}

// ParseResponse implements Command.
func (GetDevicesByControllableCommand) ParseResponse(body []byte) ([]string, error) {
	return DecodeList[string](body)
}

// =============================================================================
// Events
// =============================================================================

// RegisterEventListenerCommand registers a new event listener.
type RegisterEventListenerCommand struct{}

// Request implements Command.
func (RegisterEventListenerCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodPost, apiPath("events", "register")), nil
}

// ParseResponse implements Command.
func (RegisterEventListenerCommand) ParseResponse(body []byte) (EventListener, error) {
	return DecodeJSON[EventListener](body)
}

// FetchEventsCommand drains the events queued for a listener.
// An empty list means nothing happened since the previous fetch.
type FetchEventsCommand struct {
	ListenerID string
}

// Request implements Command.
func (c FetchEventsCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodPost, apiPath("events", EscapeSegment(c.ListenerID), "fetch")), nil
}

// ParseResponse implements Command.
func (FetchEventsCommand) ParseResponse(body []byte) ([]Event, error) {
	return DecodeList[Event](body)
}

// UnregisterEventListenerCommand removes a listener.
type UnregisterEventListenerCommand struct {
	ListenerID string
}

// Request implements Command.
func (c UnregisterEventListenerCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodPost, apiPath("events", EscapeSegment(c.ListenerID), "unregister")), nil
}

// ParseResponse implements Command.
func (UnregisterEventListenerCommand) ParseResponse(body []byte) (UnregisterResult, error) {
	return DecodeJSON[UnregisterResult](body)
}

// =============================================================================
// Executions
// =============================================================================

// ExecuteActionGroupCommand starts an execution of an action group.
type ExecuteActionGroupCommand struct {
	ActionGroup ActionGroup
}

// Request implements Command.
func (c ExecuteActionGroupCommand) Request() (*RequestData, error) {
	return NewJSONRequest(http.MethodPost, apiPath("exec", "apply"), c.ActionGroup)
}

// ParseResponse implements Command.
func (ExecuteActionGroupCommand) ParseResponse(body []byte) (ExecutionID, error) {
	return DecodeJSON[ExecutionID](body)
}

// GetCurrentExecutionsCommand lists running executions.
type GetCurrentExecutionsCommand struct{}

// Request implements Command.
func (GetCurrentExecutionsCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("exec", "current")), nil
}

// ParseResponse implements Command.
func (GetCurrentExecutionsCommand) ParseResponse(body []byte) ([]Execution, error) {
	return DecodeList[Execution](body)
}

// GetExecutionCommand reads one running execution.
type GetExecutionCommand struct {
	ExecutionID string
}

// Request implements Command.
func (c GetExecutionCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodGet, apiPath("exec", "current", EscapeSegment(c.ExecutionID))), nil
}

// ParseResponse implements Command.
//
// The gateway answers an unknown execution id with 200 and a body of
// either null or an empty array instead of a 404. Both are reported as
// ErrNotFound, whatever whitespace they carry.
func (GetExecutionCommand) ParseResponse(body []byte) (Execution, error) {
	var compact bytes.Buffer
	if json.Compact(&compact, body) == nil {
		switch compact.String() {
		case "null", "[]":
			return Execution{}, NotFoundError("execution")
		}
	}
	return DecodeJSON[Execution](body)
}

// CancelAllExecutionsCommand cancels every running execution.
type CancelAllExecutionsCommand struct{}

// Request implements Command.
func (CancelAllExecutionsCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodDelete, apiPath("exec", "current", "setup")), nil
}

// ParseResponse implements Command.
func (CancelAllExecutionsCommand) ParseResponse(body []byte) (CancelResult, error) {
	return DecodeJSON[CancelResult](body)
}

// CancelExecutionCommand cancels one running execution.
type CancelExecutionCommand struct {
	ExecutionID string
}

// Request implements Command.
func (c CancelExecutionCommand) Request() (*RequestData, error) {
	return NewRequest(http.MethodDelete, apiPath("exec", "current", "setup", EscapeSegment(c.ExecutionID))), nil
}

// ParseResponse implements Command.
func (CancelExecutionCommand) ParseResponse(body []byte) (CancelResult, error) {
	return DecodeJSON[CancelResult](body)
}
