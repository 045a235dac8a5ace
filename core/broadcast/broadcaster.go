package broadcast

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dmitrymomot/realtime/core/logger"
)

// Stats is a point-in-time snapshot of broadcast counters, either for one
// channel or aggregated across all of them.
type Stats struct {
	TotalSent         uint64
	TotalDropped      uint64
	TotalDeduped      uint64
	ActiveSubscribers int
	ChannelCount      int
}

// broadcastChannel holds one channel's subscribers, dedup window, and
// counters. Its mutex serializes fan-out so every subscriber observes sends
// in the same relative order, and guards the dedup window.
type broadcastChannel struct {
	name   string
	config Config

	mu    sync.Mutex
	subs  map[*Subscriber]struct{}
	dedup *dedupWindow

	totalSent    atomic.Uint64
	totalDropped atomic.Uint64
	totalDeduped atomic.Uint64
}

// Broadcaster owns named broadcast channels. The zero value is not usable;
// use NewBroadcaster.
type Broadcaster struct {
	mu       sync.RWMutex
	channels map[string]*broadcastChannel

	logger *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger configures structured logging for broadcaster operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		channels: make(map[string]*broadcastChannel),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Create creates a named broadcast channel. The optional config defaults to
// DefaultConfig. Returns false if the channel already exists.
func (b *Broadcaster) Create(name string, cfg ...Config) bool {
	config := DefaultConfig()
	if len(cfg) > 0 {
		config = cfg[0].normalize()
	}

	ch := &broadcastChannel{
		name:   name,
		config: config,
		subs:   make(map[*Subscriber]struct{}),
	}
	if config.DedupEnabled {
		ch.dedup = newDedupWindow(config.DedupWindow)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.channels[name]; exists {
		return false
	}
	b.channels[name] = ch

	b.logger.Debug("broadcast channel created",
		logger.Channel(name),
		slog.String("policy", config.Policy.String()),
		slog.Bool("dedup", config.DedupEnabled))
	return true
}

// Remove deletes a broadcast channel and closes its subscriber handles.
// Returns false if the channel does not exist.
func (b *Broadcaster) Remove(name string) bool {
	b.mu.Lock()
	ch, ok := b.channels[name]
	if ok {
		delete(b.channels, name)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}

	ch.mu.Lock()
	subs := make([]*Subscriber, 0, len(ch.subs))
	for sub := range ch.subs {
		subs = append(subs, sub)
	}
	ch.subs = make(map[*Subscriber]struct{})
	ch.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return true
}

// Subscribe attaches a new handle to a broadcast channel. Returns
// ErrChannelNotFound if the channel is absent.
func (b *Broadcaster) Subscribe(name string) (*Subscriber, error) {
	ch, ok := b.channel(name)
	if !ok {
		return nil, ErrChannelNotFound
	}

	sub := newBroadcastSubscriber(name, ch.config.BufferSize, func(s *Subscriber) {
		ch.mu.Lock()
		delete(ch.subs, s)
		ch.mu.Unlock()
	})

	ch.mu.Lock()
	ch.subs[sub] = struct{}{}
	ch.mu.Unlock()

	return sub, nil
}

// Send delivers a message to every active subscriber of a channel and
// returns the receiver count. The optional messageID participates in
// deduplication: a send carrying an ID seen within the channel's dedup
// window is skipped and returns 0. With zero subscribers the outcome depends
// on the channel's policy: PolicyDropOldest absorbs the send, PolicyError
// returns ErrNoSubscribers. Returns ErrChannelNotFound if the channel is
// absent.
func (b *Broadcaster) Send(name, message string, messageID ...string) (int, error) {
	ch, ok := b.channel(name)
	if !ok {
		return 0, ErrChannelNotFound
	}

	msgID := ""
	if len(messageID) > 0 {
		msgID = messageID[0]
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.dedup != nil && msgID != "" {
		if ch.dedup.observe(msgID) {
			ch.totalDeduped.Add(1)
			return 0, nil
		}
	}

	ch.totalSent.Add(1)

	if len(ch.subs) == 0 {
		if ch.config.Policy == PolicyError {
			return 0, ErrNoSubscribers
		}
		ch.totalDropped.Add(1)
		return 0, nil
	}

	for sub := range ch.subs {
		sub.push(message)
	}
	return len(ch.subs), nil
}

// SendJSON marshals a value to JSON and sends it. Serialization happens
// before any channel lock is taken. An optional messageID participates in
// deduplication exactly as in Send; when omitted on a dedup-enabled channel
// a random one is generated so downstream consumers still see an ID-bearing
// send.
func (b *Broadcaster) SendJSON(name string, v any, messageID ...string) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	msgID := ""
	if len(messageID) > 0 {
		msgID = messageID[0]
	} else if ch, ok := b.channel(name); ok && ch.dedup != nil {
		msgID = uuid.NewString()
	}

	if msgID == "" {
		return b.Send(name, string(data))
	}
	return b.Send(name, string(data), msgID)
}

// SendMany applies Send independently to each named channel and returns the
// receiver count per name. One channel's failure under PolicyError does not
// prevent delivery to the others; failed or unknown channels report 0.
func (b *Broadcaster) SendMany(names []string, message string) map[string]int {
	results := make(map[string]int, len(names))
	for _, name := range names {
		if !b.HasChannel(name) {
			continue
		}
		count, err := b.Send(name, message)
		if err != nil {
			b.logger.Debug("broadcast send failed",
				logger.Channel(name), logger.Error(err))
		}
		results[name] = count
	}
	return results
}

// Stats returns a snapshot of one channel's counters. Returns
// ErrChannelNotFound if the channel is absent.
func (b *Broadcaster) Stats(name string) (Stats, error) {
	ch, ok := b.channel(name)
	if !ok {
		return Stats{}, ErrChannelNotFound
	}

	ch.mu.Lock()
	active := len(ch.subs)
	ch.mu.Unlock()

	return Stats{
		TotalSent:         ch.totalSent.Load(),
		TotalDropped:      ch.totalDropped.Load(),
		TotalDeduped:      ch.totalDeduped.Load(),
		ActiveSubscribers: active,
		ChannelCount:      1,
	}, nil
}

// GlobalStats returns counters aggregated across every broadcast channel.
func (b *Broadcaster) GlobalStats() Stats {
	b.mu.RLock()
	channels := make([]*broadcastChannel, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	stats := Stats{ChannelCount: len(channels)}
	for _, ch := range channels {
		ch.mu.Lock()
		stats.ActiveSubscribers += len(ch.subs)
		ch.mu.Unlock()

		stats.TotalSent += ch.totalSent.Load()
		stats.TotalDropped += ch.totalDropped.Load()
		stats.TotalDeduped += ch.totalDeduped.Load()
	}
	return stats
}

// ListChannels returns all broadcast channel names.
func (b *Broadcaster) ListChannels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	return names
}

// HasChannel reports whether a broadcast channel exists.
func (b *Broadcaster) HasChannel(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.channels[name]
	return ok
}

// Clear removes all broadcast channels and closes their subscribers.
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	channels := b.channels
	b.channels = make(map[string]*broadcastChannel)
	b.mu.Unlock()

	for _, ch := range channels {
		ch.mu.Lock()
		subs := make([]*Subscriber, 0, len(ch.subs))
		for sub := range ch.subs {
			subs = append(subs, sub)
		}
		ch.subs = make(map[*Subscriber]struct{})
		ch.mu.Unlock()

		for _, sub := range subs {
			sub.Close()
		}
	}
}

func (b *Broadcaster) channel(name string) (*broadcastChannel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.channels[name]
	return ch, ok
}
