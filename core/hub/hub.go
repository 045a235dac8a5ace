package hub

import (
	"io"
	"log/slog"

	"github.com/dmitrymomot/realtime/core/broadcast"
	"github.com/dmitrymomot/realtime/core/channel"
	"github.com/dmitrymomot/realtime/core/heartbeat"
	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/core/presence"
)

// Hub bundles the channel manager, presence tracker, broadcaster, and
// heartbeat monitor into compound join/leave/disconnect operations keyed by
// the transport's client identity.
type Hub struct {
	channels  *channel.Manager
	presence  *presence.Tracker
	broadcast *broadcast.Broadcaster
	heartbeat *heartbeat.Monitor
	logger    *slog.Logger
}

// Option configures a Hub.
type Option func(*settings)

type settings struct {
	bufferSize       int
	heartbeatConfig  heartbeat.Config
	heartbeatHandler heartbeat.Handler
	logger           *slog.Logger
}

// WithChannelBufferSize sets the default per-subscriber queue capacity for
// channels created through the hub.
func WithChannelBufferSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.bufferSize = size
		}
	}
}

// WithHeartbeatConfig sets liveness thresholds for the heartbeat monitor.
func WithHeartbeatConfig(cfg heartbeat.Config) Option {
	return func(s *settings) {
		s.heartbeatConfig = cfg
	}
}

// WithHeartbeatHandler sets the callbacks invoked by the heartbeat loop,
// letting the transport send ping frames and tear down dead connections.
func WithHeartbeatHandler(h heartbeat.Handler) Option {
	return func(s *settings) {
		s.heartbeatHandler = h
	}
}

// WithLogger sets the logger shared by all composed components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Hub with freshly constructed components.
func New(opts ...Option) *Hub {
	s := settings{
		bufferSize:      channel.DefaultBufferSize,
		heartbeatConfig: heartbeat.DefaultConfig(),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &Hub{
		channels: channel.NewManager(
			channel.WithDefaultBufferSize(s.bufferSize),
			channel.WithLogger(s.logger),
		),
		presence:  presence.NewTracker(),
		broadcast: broadcast.NewBroadcaster(broadcast.WithLogger(s.logger)),
		heartbeat: heartbeat.NewMonitor(
			heartbeat.WithConfig(s.heartbeatConfig),
			heartbeat.WithHandler(s.heartbeatHandler),
			heartbeat.WithLogger(s.logger),
		),
		logger: s.logger,
	}
}

// Channels returns the underlying channel manager.
func (h *Hub) Channels() *channel.Manager { return h.channels }

// Presence returns the underlying presence tracker.
func (h *Hub) Presence() *presence.Tracker { return h.presence }

// Broadcast returns the underlying broadcaster.
func (h *Hub) Broadcast() *broadcast.Broadcaster { return h.broadcast }

// Heartbeat returns the underlying liveness monitor.
func (h *Hub) Heartbeat() *heartbeat.Monitor { return h.heartbeat }

// CreateChannel creates a named channel. Returns false if it already exists.
func (h *Hub) CreateChannel(name string, opts ...channel.ChannelOption) bool {
	return h.channels.CreateChannel(name, opts...)
}

// CreateChannelWithBroadcast creates a channel together with a broadcast
// channel of the same name, pairing queue-per-subscriber fan-out with
// policy-driven broadcast. Returns false if either already exists, creating
// whichever was missing.
func (h *Hub) CreateChannelWithBroadcast(name string, cfg ...broadcast.Config) bool {
	created := h.channels.CreateChannel(name)
	return h.broadcast.Create(name, cfg...) && created
}

// Join subscribes a client to a channel, records its presence with the given
// metadata, and starts liveness tracking. The channel is created on demand.
// The returned subscriber is the client's receive handle; a second Join for
// the same (channel, clientID) pair replaces the prior handle.
func (h *Hub) Join(channelName, clientID string, metadata map[string]string) (*channel.Subscriber, error) {
	if h.channels.CreateChannel(channelName) {
		h.logger.Debug("channel created on join",
			logger.Channel(channelName))
	}

	sub, err := h.channels.Subscribe(channelName, clientID)
	if err != nil {
		return nil, err
	}

	h.presence.Track(channelName, clientID, metadata)
	h.heartbeat.Register(clientID)

	h.logger.Debug("client joined",
		logger.Channel(channelName),
		logger.ClientID(clientID))

	return sub, nil
}

// Leave removes a client from one channel: unsubscribes the receive handle
// and untracks presence. Liveness tracking stops only when the client has
// left its last channel. Returns false if the client was not in the channel.
func (h *Hub) Leave(channelName, clientID string) bool {
	unsubscribed := h.channels.Unsubscribe(channelName, clientID)
	untracked := h.presence.Untrack(channelName, clientID)

	if len(h.presence.ClientChannels(clientID)) == 0 {
		h.heartbeat.Unregister(clientID)
	}

	if unsubscribed || untracked {
		h.logger.Debug("client left",
			logger.Channel(channelName),
			logger.ClientID(clientID))
	}
	return unsubscribed || untracked
}

// Disconnect removes a client from every channel it is present in, drops its
// topic registrations, and stops liveness tracking. Returns the names of the
// channels the client was removed from. Safe to call for unknown clients.
func (h *Hub) Disconnect(clientID string) []string {
	channels := h.presence.UntrackAll(clientID)
	for _, name := range channels {
		h.channels.Unsubscribe(name, clientID)
	}
	h.channels.Matcher().UnsubscribeAll(clientID)
	h.heartbeat.Unregister(clientID)

	if len(channels) > 0 {
		h.logger.Debug("client disconnected",
			logger.ClientID(clientID),
			logger.Count("channels", len(channels)))
	}
	return channels
}

// Publish sends a message to every subscriber of a channel. Returns the
// receiver count and ErrChannelNotFound for unknown channels.
func (h *Hub) Publish(channelName, message string) (int, error) {
	return h.channels.Publish(channelName, message)
}

// PublishJSON marshals a value to JSON and publishes it.
func (h *Hub) PublishJSON(channelName string, v any) (int, error) {
	return h.channels.PublishJSON(channelName, v)
}

// PublishToTopic publishes to every channel whose name matches the wildcard
// pattern and returns the summed receiver count.
func (h *Hub) PublishToTopic(pattern, message string) (int, error) {
	return h.channels.PublishToTopic(pattern, message)
}

// GetPresence returns the presence entries for a channel.
func (h *Hub) GetPresence(channelName string) []presence.Info {
	return h.presence.List(channelName)
}

// GetPresenceDiff returns and clears the joins and leaves accumulated since
// the previous diff for a channel.
func (h *Hub) GetPresenceDiff(channelName string) presence.Diff {
	return h.presence.FlushDiff(channelName)
}
