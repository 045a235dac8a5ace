package channel

import "errors"

var (
	// ErrChannelNotFound is returned when an operation references a channel
	// that does not exist.
	ErrChannelNotFound = errors.New("channel not found")
)
