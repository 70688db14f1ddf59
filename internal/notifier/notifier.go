// Package notifier delivers plain-text alerts to the administrator over an
// external messaging service. The destination is fixed process-wide
// configuration resolved once at startup.
package notifier

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by Send when the notifier was built without a
// bot token or admin destination. Whether the notifier is configured is
// decided once, at construction.
var ErrNotConfigured = errors.New("notifier not configured")

// DeliveryError reports that the messaging service was reachable but the send
// failed, including a timeout of the delivery call.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notification delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Notifier sends a plain text message to the configured admin destination.
type Notifier interface {
	Send(ctx context.Context, text string) error
}
