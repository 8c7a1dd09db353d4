package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

// Protocol is the protocol identifier carried in bridge messages.
const Protocol = "somfy"

// CommandMessage is an action group received on a command topic.
// Topic: graylogic/command/somfy/{target}
type CommandMessage struct {
	// RequestID correlates the command with its ack. Generated when empty.
	RequestID string `json:"request_id,omitempty"`

	Label   string         `json:"label,omitempty"`
	Actions []somfy.Action `json:"actions"`
}

// ActionGroup returns the gateway request for the command.
func (c CommandMessage) ActionGroup() somfy.ActionGroup {
	return somfy.ActionGroup{Label: c.Label, Actions: c.Actions}
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	// AckAccepted means the gateway started an execution.
	AckAccepted AckStatus = "accepted"

	// AckRejected means the command never reached the gateway.
	AckRejected AckStatus = "rejected"

	// AckFailed means the gateway refused or could not be reached.
	AckFailed AckStatus = "failed"
)

// AckMessage answers a command.
// Topic: graylogic/ack/somfy/{request_id}
type AckMessage struct {
	RequestID string    `json:"request_id"`
	Target    string    `json:"target"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Timestamp time.Time `json:"timestamp"`

	// ExecID is set when Status is accepted.
	ExecID string `json:"exec_id,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError describes why a command was not accepted. Code is a request
// error kind ("auth", "transport", ...) or "invalid_command" /
// "rate_limited".
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is the retained, merged view of a device's states.
// Topic: graylogic/state/somfy/{device_url}
type StateMessage struct {
	DeviceURL string                      `json:"device_url"`
	States    map[string]somfy.StateValue `json:"states"`
	Protocol  string                      `json:"protocol"`
	Timestamp time.Time                   `json:"timestamp"`
}

// eventTime converts a gateway event timestamp (milliseconds) to a time,
// falling back to now when absent.
func eventTime(ev somfy.Event) time.Time {
	if ev.Timestamp > 0 {
		return time.UnixMilli(ev.Timestamp).UTC()
	}
	return time.Now().UTC()
}
