package topic

import "errors"

var (
	// ErrInvalidPattern is returned when a pattern uses the multi-level
	// wildcard "#" anywhere but the final segment.
	ErrInvalidPattern = errors.New("topic pattern may use '#' only as the final segment")
)
