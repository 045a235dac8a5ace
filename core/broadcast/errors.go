package broadcast

import "errors"

var (
	// ErrChannelNotFound is returned when an operation references a
	// broadcast channel that does not exist.
	ErrChannelNotFound = errors.New("broadcast channel not found")

	// ErrNoSubscribers is returned by Send under PolicyError when a channel
	// has no active subscribers.
	ErrNoSubscribers = errors.New("no active subscribers")
)
