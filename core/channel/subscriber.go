package channel

import (
	"sync"
	"sync/atomic"
)

// Subscriber is a receiving handle for one (channel, client) pair. It owns a
// bounded ring buffer that the channel's publishers push into; the transport
// layer drains it with TryRecv or Drain. A Subscriber becomes invalid when
// the client unsubscribes or the channel is removed.
type Subscriber struct {
	channelName string
	clientID    string

	mu     sync.Mutex
	buf    []string
	head   int
	count  int
	closed bool

	received atomic.Uint64
	missed   atomic.Uint64

	// onDrop bumps the owning channel's dropped counter.
	onDrop func()
}

func newSubscriber(channelName, clientID string, capacity int, onDrop func()) *Subscriber {
	if capacity < 1 {
		capacity = 1
	}
	return &Subscriber{
		channelName: channelName,
		clientID:    clientID,
		buf:         make([]string, capacity),
		onDrop:      onDrop,
	}
}

// push appends a message, evicting the oldest buffered message when full.
func (s *Subscriber) push(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.count == len(s.buf) {
		s.buf[s.head] = ""
		s.head = (s.head + 1) % len(s.buf)
		s.count--
		s.missed.Add(1)
		if s.onDrop != nil {
			s.onDrop()
		}
	}

	s.buf[(s.head+s.count)%len(s.buf)] = msg
	s.count++
}

// close invalidates the handle and discards any buffered messages.
func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.buf = nil
	s.head = 0
	s.count = 0
}

// TryRecv returns the next buffered message without blocking. The second
// return value is false when no message is available or the handle is
// invalid.
func (s *Subscriber) TryRecv() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.count == 0 {
		return "", false
	}

	msg := s.buf[s.head]
	s.buf[s.head] = ""
	s.head = (s.head + 1) % len(s.buf)
	s.count--
	s.received.Add(1)
	return msg, true
}

// Drain empties the buffer and returns all pending messages in receive
// order. It never blocks.
func (s *Subscriber) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.count == 0 {
		return nil
	}

	messages := make([]string, 0, s.count)
	for s.count > 0 {
		messages = append(messages, s.buf[s.head])
		s.buf[s.head] = ""
		s.head = (s.head + 1) % len(s.buf)
		s.count--
	}
	s.received.Add(uint64(len(messages)))
	return messages
}

// ChannelName returns the channel this subscriber is attached to.
func (s *Subscriber) ChannelName() string { return s.channelName }

// ClientID returns the subscribing client's identity.
func (s *Subscriber) ClientID() string { return s.clientID }

// ReceivedCount returns the number of messages delivered via TryRecv/Drain.
func (s *Subscriber) ReceivedCount() uint64 { return s.received.Load() }

// MissedCount returns the number of messages evicted because this subscriber
// fell behind.
func (s *Subscriber) MissedCount() uint64 { return s.missed.Load() }
