package dispatcher

import (
	"errors"
	"fmt"

	"qmgr/interrupts"
)

// errors returned by the configuration methods
var (
	ErrNotConfigured        = errors.New("queue not configured")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidLivelockClass = errors.New("invalid livelock class")
	ErrInvalidParameter     = errors.New("invalid parameter")

	// ErrStatusChanged is a warning: notification is enabled, but the queue
	// status changed while doing so and an interrupt may have been missed.
	ErrStatusChanged = errors.New("queue status changed while enabling notification")
)

func queueError(id interrupts.QueueID, err error) error {
	return fmt.Errorf("queue %d: %w", id, err)
}

// checkQueue rejects ids out of range and queues never configured
func (d *Dispatcher) checkQueue(id interrupts.QueueID) error {
	if !id.Valid() {
		return queueError(id, ErrInvalidParameter)
	}
	if !d.cfg.IsConfigured(id) {
		return queueError(id, ErrNotConfigured)
	}
	return nil
}
