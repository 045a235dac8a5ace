package channel

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/core/topic"
)

const (
	// DefaultBufferSize is the per-subscriber queue capacity used when a
	// channel is created without an explicit buffer size.
	DefaultBufferSize = 256
)

// Stats is a point-in-time snapshot of a channel's counters.
type Stats struct {
	Name            string
	SubscriberCount int
	TotalMessages   uint64
	DroppedMessages uint64
	Metadata        map[string]string
}

// channelState holds one channel's subscribers and counters. Its mutex
// guards the subscriber set and serializes fan-out so every subscriber
// observes publishes in the same relative order.
type channelState struct {
	name       string
	bufferSize int
	metadata   map[string]string

	mu      sync.Mutex
	subs    map[string]*Subscriber
	total   atomic.Uint64
	dropped atomic.Uint64
}

// Manager owns named channels and their fan-out queues. The zero value is
// not usable; use NewManager.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]*channelState

	defaultBufferSize int
	matcher           *topic.Matcher
	logger            *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDefaultBufferSize sets the per-subscriber queue capacity for channels
// created without an explicit size. Default is 256.
func WithDefaultBufferSize(size int) ManagerOption {
	return func(m *Manager) {
		if size > 0 {
			m.defaultBufferSize = size
		}
	}
}

// WithLogger configures structured logging for manager operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a channel manager.
//
// Example:
//
//	manager := channel.NewManager(
//	    channel.WithDefaultBufferSize(512),
//	    channel.WithLogger(logger),
//	)
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		channels:          make(map[string]*channelState),
		defaultBufferSize: DefaultBufferSize,
		matcher:           topic.NewMatcher(),
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// ChannelOption configures a channel at creation time.
type ChannelOption func(*channelState)

// WithBufferSize overrides the manager's default per-subscriber queue
// capacity for this channel.
func WithBufferSize(size int) ChannelOption {
	return func(c *channelState) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithMetadata attaches string metadata to the channel, reported via Stats.
func WithMetadata(metadata map[string]string) ChannelOption {
	return func(c *channelState) {
		c.metadata = maps.Clone(metadata)
	}
}

// CreateChannel creates a named channel. Returns false if a channel with
// that name already exists.
func (m *Manager) CreateChannel(name string, opts ...ChannelOption) bool {
	ch := &channelState{
		name:       name,
		bufferSize: m.defaultBufferSize,
		metadata:   map[string]string{},
		subs:       make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(ch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[name]; exists {
		return false
	}
	m.channels[name] = ch

	m.logger.Debug("channel created",
		logger.Channel(name),
		slog.Int("buffer_size", ch.bufferSize))
	return true
}

// RemoveChannel deletes a channel and invalidates every outstanding
// Subscriber handle for it. Returns false if the channel does not exist.
func (m *Manager) RemoveChannel(name string) bool {
	m.mu.Lock()
	ch, ok := m.channels[name]
	if ok {
		delete(m.channels, name)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	ch.mu.Lock()
	for clientID, sub := range ch.subs {
		sub.close()
		m.matcher.Unsubscribe(name, clientID)
	}
	ch.subs = make(map[string]*Subscriber)
	ch.mu.Unlock()

	m.logger.Debug("channel removed", logger.Channel(name))
	return true
}

// HasChannel reports whether a channel exists.
func (m *Manager) HasChannel(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.channels[name]
	return ok
}

// Subscribe attaches a client to a channel and returns a receiving handle.
// A second call for the same (channel, client) pair invalidates and replaces
// the prior handle. Returns ErrChannelNotFound if the channel is absent.
func (m *Manager) Subscribe(name, clientID string) (*Subscriber, error) {
	ch, ok := m.channel(name)
	if !ok {
		return nil, ErrChannelNotFound
	}

	sub := newSubscriber(name, clientID, ch.bufferSize, func() {
		ch.dropped.Add(1)
	})

	ch.mu.Lock()
	if prev, ok := ch.subs[clientID]; ok {
		prev.close()
	}
	ch.subs[clientID] = sub
	ch.mu.Unlock()

	// Register the channel name as a pattern so the client participates in
	// topic-based routing. Channel names with a misplaced "#" are simply
	// not pattern-routable.
	if err := m.matcher.Subscribe(name, clientID); err != nil {
		m.logger.Debug("channel name not registered for topic routing",
			logger.Channel(name), logger.Error(err))
	}

	return sub, nil
}

// Unsubscribe detaches a client from a channel, invalidating its handle.
// Returns false if the client was not subscribed; safe to call defensively.
func (m *Manager) Unsubscribe(name, clientID string) bool {
	m.matcher.Unsubscribe(name, clientID)

	ch, ok := m.channel(name)
	if !ok {
		return false
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	sub, ok := ch.subs[clientID]
	if !ok {
		return false
	}
	sub.close()
	delete(ch.subs, clientID)
	return true
}

// Publish delivers a message to every current subscriber of a channel and
// returns the receiver count. It never blocks on slow receivers. Returns
// ErrChannelNotFound if the channel is absent.
func (m *Manager) Publish(name, message string) (int, error) {
	ch, ok := m.channel(name)
	if !ok {
		return 0, ErrChannelNotFound
	}
	return ch.publish(message), nil
}

// PublishJSON marshals a value to JSON and publishes it. Serialization
// happens before any channel lock is taken.
func (m *Manager) PublishJSON(name string, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return m.Publish(name, string(data))
}

// PublishToTopic publishes to every channel whose name matches the wildcard
// pattern and returns the total receiver count across matched channels.
// Returns topic.ErrInvalidPattern for a malformed pattern.
func (m *Manager) PublishToTopic(pattern, message string) (int, error) {
	if err := topic.ValidatePattern(pattern); err != nil {
		return 0, err
	}

	m.mu.RLock()
	matched := make([]*channelState, 0, len(m.channels))
	for name, ch := range m.channels {
		if topic.Match(pattern, name) {
			matched = append(matched, ch)
		}
	}
	m.mu.RUnlock()

	total := 0
	for _, ch := range matched {
		total += ch.publish(message)
	}
	return total, nil
}

// Stats returns a snapshot of a channel's counters. Returns
// ErrChannelNotFound if the channel is absent.
func (m *Manager) Stats(name string) (Stats, error) {
	ch, ok := m.channel(name)
	if !ok {
		return Stats{}, ErrChannelNotFound
	}

	ch.mu.Lock()
	subscriberCount := len(ch.subs)
	ch.mu.Unlock()

	return Stats{
		Name:            name,
		SubscriberCount: subscriberCount,
		TotalMessages:   ch.total.Load(),
		DroppedMessages: ch.dropped.Load(),
		Metadata:        maps.Clone(ch.metadata),
	}, nil
}

// ListChannels returns all channel names.
func (m *Manager) ListChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// Subscribers returns the client IDs currently subscribed to a channel.
// Returns ErrChannelNotFound if the channel is absent.
func (m *Manager) Subscribers(name string) ([]string, error) {
	ch, ok := m.channel(name)
	if !ok {
		return nil, ErrChannelNotFound
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	ids := make([]string, 0, len(ch.subs))
	for clientID := range ch.subs {
		ids = append(ids, clientID)
	}
	return ids, nil
}

// ChannelCount returns the number of channels.
func (m *Manager) ChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// Matcher returns the manager's topic matcher for pattern-based routing.
func (m *Manager) Matcher() *topic.Matcher {
	return m.matcher
}

// Clear removes all channels, invalidating every outstanding subscriber.
func (m *Manager) Clear() {
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]*channelState)
	m.mu.Unlock()

	for name, ch := range channels {
		ch.mu.Lock()
		for clientID, sub := range ch.subs {
			sub.close()
			m.matcher.Unsubscribe(name, clientID)
		}
		ch.subs = make(map[string]*Subscriber)
		ch.mu.Unlock()
	}
}

func (m *Manager) channel(name string) (*channelState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// publish fans a message out to every subscriber under the channel lock so
// all subscribers observe the same relative publish order.
func (c *channelState) publish(message string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total.Add(1)
	for _, sub := range c.subs {
		sub.push(message)
	}
	return len(c.subs)
}
