package heartbeat

import (
	"fmt"
	"time"
)

// Defaults applied by normalize when the corresponding field is unset.
const (
	DefaultInterval   = 30 * time.Second
	DefaultTimeout    = 90 * time.Second
	DefaultMaxRetries = 5
	DefaultSSERetry   = 3 * time.Second
)

// Config controls liveness thresholds and reconnect hints.
type Config struct {
	// Interval is how often the background loop sweeps and how long a
	// client may go without a ping before ClientsNeedingPing reports it.
	Interval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	// Timeout is the silence window after which a sweep counts a missed
	// pong against the client.
	Timeout time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"90s"`
	// MaxRetries is the number of consecutive missed pongs before a client
	// is considered dead.
	MaxRetries int `env:"HEARTBEAT_MAX_RETRIES" envDefault:"5"`
	// SSERetry is the reconnect delay advertised to SSE clients.
	SSERetry time.Duration `env:"HEARTBEAT_SSE_RETRY" envDefault:"3s"`
	// SendKeepalive tells transports whether to emit keepalive frames on
	// otherwise idle streams.
	SendKeepalive bool `env:"HEARTBEAT_SEND_KEEPALIVE" envDefault:"true"`
}

// DefaultConfig returns the configuration used when NewMonitor receives none.
func DefaultConfig() Config {
	return Config{
		Interval:      DefaultInterval,
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		SSERetry:      DefaultSSERetry,
		SendKeepalive: true,
	}
}

// normalize replaces non-positive thresholds with defaults. SSERetry is left
// as-is: zero or negative disables the retry directive in SSE fragments.
func (c Config) normalize() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// SSEKeepaliveComment returns the comment fragment a transport writes to keep
// an idle SSE stream open. Clients ignore comment lines per the SSE format.
func (c Config) SSEKeepaliveComment() string {
	return ": keepalive\n\n"
}

// SSERetryField returns the retry directive advertising the reconnect delay
// in milliseconds, or an empty string when SSERetry is not positive.
func (c Config) SSERetryField() string {
	if c.SSERetry <= 0 {
		return ""
	}
	return fmt.Sprintf("retry: %d\n\n", c.SSERetry.Milliseconds())
}

// SSEHeartbeatEvent returns a heartbeat fragment combining the retry
// directive with a comment line. The retry line is omitted when SSERetry is
// not positive.
func (c Config) SSEHeartbeatEvent() string {
	if c.SSERetry <= 0 {
		return ": heartbeat\n\n"
	}
	return fmt.Sprintf("retry: %d\n: heartbeat\n\n", c.SSERetry.Milliseconds())
}
