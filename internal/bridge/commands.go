package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-somfy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-somfy/pkg/somfy"
)

// Ack error codes that are not request error kinds.
const (
	codeInvalidCommand = "invalid_command"
	codeRateLimited    = "rate_limited"
	codeNotRunning     = "not_running"
)

func newRequestID() string {
	return uuid.NewString()
}

// handleCommand executes an action group received on a command topic and
// publishes the outcome. The returned error is logged by the MQTT client.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	target := mqtt.LastLevel(topic)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd.RequestID = b.newID()
		b.reject(cmd, target, codeInvalidCommand, "payload is not a valid action group")
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.RequestID == "" {
		cmd.RequestID = b.newID()
	}
	if len(cmd.Actions) == 0 {
		b.reject(cmd, target, codeInvalidCommand, "action group has no actions")
		return fmt.Errorf("%w: no actions", ErrInvalidCommand)
	}

	b.mu.RLock()
	runCtx := b.runCtx
	b.mu.RUnlock()
	if runCtx == nil {
		b.reject(cmd, target, codeNotRunning, "bridge is not running")
		return ErrNotRunning
	}

	b.logger.Info("received command",
		"request_id", cmd.RequestID,
		"target", target,
		"actions", len(cmd.Actions))

	ctx, cancel := context.WithTimeout(runCtx, commandTimeout)
	defer cancel()

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			b.reject(cmd, target, codeRateLimited, "command rate limit exceeded")
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	exec, err := b.gateway.ExecuteActionGroup(ctx, cmd.ActionGroup())
	if err != nil {
		b.metrics.RecordCommand(AckFailed)
		b.publishAck(AckMessage{
			RequestID: cmd.RequestID,
			Target:    target,
			Status:    AckFailed,
			Error:     &AckError{Code: errorCode(err), Message: err.Error()},
		})
		return fmt.Errorf("executing command %s: %w", cmd.RequestID, err)
	}

	b.metrics.RecordCommand(AckAccepted)
	b.publishAck(AckMessage{
		RequestID: cmd.RequestID,
		Target:    target,
		Status:    AckAccepted,
		ExecID:    exec.ExecID,
	})
	b.logger.Info("command accepted", "request_id", cmd.RequestID, "exec_id", exec.ExecID)
	return nil
}

func (b *Bridge) reject(cmd CommandMessage, target, code, message string) {
	b.metrics.RecordCommand(AckRejected)
	b.publishAck(AckMessage{
		RequestID: cmd.RequestID,
		Target:    target,
		Status:    AckRejected,
		Error:     &AckError{Code: code, Message: message},
	})
}

func (b *Bridge) publishAck(ack AckMessage) {
	ack.Protocol = Protocol
	ack.Timestamp = time.Now().UTC()
	b.publish(b.topics.Ack(ack.RequestID), ack, false)
}

// errorCode returns the ack code for err.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCommand):
		return codeInvalidCommand
	case errors.Is(err, ErrRateLimited):
		return codeRateLimited
	case errors.Is(err, ErrNotRunning):
		return codeNotRunning
	}
	if kind, ok := somfy.KindOf(err); ok {
		return kind.String()
	}
	return "unknown"
}
