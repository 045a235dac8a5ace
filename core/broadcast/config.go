package broadcast

// Policy decides how a send behaves when a channel has no active
// subscribers. The behavioral difference is confined to a single branch
// inside Send.
type Policy int

const (
	// PolicyDropOldest absorbs sends with no subscribers and evicts the
	// oldest buffered message for subscribers that fall behind.
	PolicyDropOldest Policy = iota

	// PolicyError fails a send with ErrNoSubscribers when the channel has
	// no active subscribers. Lagging subscribers still lose their own
	// oldest messages rather than blocking the sender.
	PolicyError
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case PolicyDropOldest:
		return "drop_oldest"
	case PolicyError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	// DefaultBufferSize is the per-subscriber queue capacity.
	DefaultBufferSize = 256

	// DefaultDedupWindow is the number of distinct message IDs remembered
	// when deduplication is enabled.
	DefaultDedupWindow = 1000
)

// Config describes one broadcast channel's behavior.
type Config struct {
	// BufferSize is the per-subscriber queue capacity.
	BufferSize int `env:"BROADCAST_BUFFER_SIZE" envDefault:"256"`
	// Policy decides the zero-subscriber behavior.
	Policy Policy `env:"-"`
	// DedupEnabled turns on message ID deduplication.
	DedupEnabled bool `env:"BROADCAST_DEDUP_ENABLED" envDefault:"false"`
	// DedupWindow is the number of recent distinct message IDs remembered.
	DedupWindow int `env:"BROADCAST_DEDUP_WINDOW" envDefault:"1000"`
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:   DefaultBufferSize,
		Policy:       PolicyDropOldest,
		DedupEnabled: false,
		DedupWindow:  DefaultDedupWindow,
	}
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = DefaultDedupWindow
	}
	return c
}
