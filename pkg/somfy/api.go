package somfy

import "context"

// GetVersion returns the gateway's API protocol version.
func (c *Client) GetVersion(ctx context.Context) (Version, error) {
	return Execute[Version](ctx, c, GetVersionCommand{})
}

// GetGateways lists the gateways of the installation.
func (c *Client) GetGateways(ctx context.Context) ([]Gateway, error) {
	return Execute[[]Gateway](ctx, c, GetGatewaysCommand{})
}

// GetSetup returns gateways and devices in one call.
func (c *Client) GetSetup(ctx context.Context) (Setup, error) {
	return Execute[Setup](ctx, c, GetSetupCommand{})
}

// GetDevices lists every device.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	return Execute[[]Device](ctx, c, GetDevicesCommand{})
}

// GetDevice returns the device with the given URL.
func (c *Client) GetDevice(ctx context.Context, deviceURL string) (Device, error) {
	return Execute[Device](ctx, c, GetDeviceCommand{DeviceURL: deviceURL})
}

// GetDeviceStates lists the states of a device.
func (c *Client) GetDeviceStates(ctx context.Context, deviceURL string) ([]DeviceState, error) {
	return Execute[[]DeviceState](ctx, c, GetDeviceStatesCommand{DeviceURL: deviceURL})
}

// GetDeviceState returns one named state of a device.
func (c *Client) GetDeviceState(ctx context.Context, deviceURL, stateName string) (DeviceState, error) {
	return Execute[DeviceState](ctx, c, GetDeviceStateCommand{DeviceURL: deviceURL, StateName: stateName})
}

// GetDevicesByControllable lists the URLs of devices with the given
// controllable name.
func (c *Client) GetDevicesByControllable(ctx context.Context, controllableName string) ([]string, error) {
	return Execute[[]string](ctx, c, GetDevicesByControllableCommand{ControllableName: controllableName})
}

// RegisterEventListener registers a new event listener.
func (c *Client) RegisterEventListener(ctx context.Context) (EventListener, error) {
	return Execute[EventListener](ctx, c, RegisterEventListenerCommand{})
}

// FetchEvents returns the events queued for a listener since the last fetch.
func (c *Client) FetchEvents(ctx context.Context, listenerID string) ([]Event, error) {
	return Execute[[]Event](ctx, c, FetchEventsCommand{ListenerID: listenerID})
}

// UnregisterEventListener removes a listener.
func (c *Client) UnregisterEventListener(ctx context.Context, listenerID string) error {
	_, err := Execute[UnregisterResult](ctx, c, UnregisterEventListenerCommand{ListenerID: listenerID})
	return err
}

// ExecuteActionGroup starts an execution and returns its id.
func (c *Client) ExecuteActionGroup(ctx context.Context, group ActionGroup) (ExecutionID, error) {
	return Execute[ExecutionID](ctx, c, ExecuteActionGroupCommand{ActionGroup: group})
}

// GetCurrentExecutions lists running executions.
func (c *Client) GetCurrentExecutions(ctx context.Context) ([]Execution, error) {
	return Execute[[]Execution](ctx, c, GetCurrentExecutionsCommand{})
}

// GetExecution returns a running execution, or ErrNotFound.
func (c *Client) GetExecution(ctx context.Context, executionID string) (Execution, error) {
	return Execute[Execution](ctx, c, GetExecutionCommand{ExecutionID: executionID})
}

// CancelAllExecutions cancels every running execution.
func (c *Client) CancelAllExecutions(ctx context.Context) error {
	_, err := Execute[CancelResult](ctx, c, CancelAllExecutionsCommand{})
	return err
}

// CancelExecution cancels one running execution.
func (c *Client) CancelExecution(ctx context.Context, executionID string) error {
	_, err := Execute[CancelResult](ctx, c, CancelExecutionCommand{ExecutionID: executionID})
	return err
}
