package broadcast

import (
	"context"
	"errors"
)

// ErrSubscriberClosed is returned by Deliver once a subscriber's transport is gone.
var ErrSubscriberClosed = errors.New("subscriber closed")

// ErrSubscriberExists is returned by Add for an id that is already registered.
var ErrSubscriberExists = errors.New("subscriber id already registered")

// Subscriber is a live delivery handle. Deliver must honour ctx cancellation
// and deadline, and must be safe to call from multiple goroutines.
type Subscriber interface {
	ID() string
	Deliver(ctx context.Context, msg *Message) error
}
