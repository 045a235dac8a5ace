package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscriber is a receiving handle for one broadcast channel. Unlike
// channel subscribers it carries no client identity: the handle itself is
// the identity. Close detaches it; a closed handle receives nothing.
type Subscriber struct {
	id          string
	channelName string

	mu     sync.Mutex
	buf    []string
	head   int
	count  int
	closed bool

	received atomic.Uint64
	lagged   atomic.Uint64

	// detach removes the handle from its channel; set once at subscribe.
	detach func(*Subscriber)
}

func newBroadcastSubscriber(channelName string, capacity int, detach func(*Subscriber)) *Subscriber {
	if capacity < 1 {
		capacity = 1
	}
	return &Subscriber{
		id:          uuid.NewString(),
		channelName: channelName,
		buf:         make([]string, capacity),
		detach:      detach,
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
		s.lagged.Add(1)
	}

	s.buf[(s.head+s.count)%len(s.buf)] = msg
	s.count++
}

// TryRecv returns the next buffered message without blocking. The second
// return value is false when no message is available or the handle is
// closed.
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

// Close detaches the handle from its channel and discards buffered
// messages. It is safe to call multiple times.
func (s *Subscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.buf = nil
	s.head = 0
	s.count = 0
	s.mu.Unlock()

	if s.detach != nil {
		s.detach(s)
	}
}

// ID returns the handle's unique identity, useful for logging.
func (s *Subscriber) ID() string { return s.id }

// ChannelName returns the broadcast channel this handle is attached to.
func (s *Subscriber) ChannelName() string { return s.channelName }

// ReceivedCount returns the number of messages delivered via TryRecv/Drain.
func (s *Subscriber) ReceivedCount() uint64 { return s.received.Load() }

// LaggedCount returns the number of messages this handle lost by falling
// behind.
func (s *Subscriber) LaggedCount() uint64 { return s.lagged.Load() }
