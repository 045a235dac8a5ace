package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/realtime/core/logger"
)

// clientState is the per-client liveness record.
type clientState struct {
	registeredAt time.Time
	lastPing     time.Time
	lastPong     time.Time
	timeouts     int
	lastEventID  string
}

// Monitor tracks liveness for a set of registered clients. All methods are
// safe for concurrent use; the optional background loop (Start) may run
// concurrently with register/unregister traffic.
type Monitor struct {
	mu      sync.RWMutex
	clients map[string]*clientState

	config  Config
	handler Handler
	logger  *slog.Logger

	// Loop state
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	totalPings    atomic.Uint64
	totalPongs    atomic.Uint64
	totalTimeouts atomic.Uint64
}

// Stats provides observability counters for monitoring and debugging.
type Stats struct {
	MonitoredClients int    // Currently registered clients
	DeadClients      int    // Registered clients past the retry budget
	TotalPings       uint64 // Pings recorded since creation
	TotalPongs       uint64 // Pongs recorded since creation
	TotalTimeouts    uint64 // Missed-pong counts across all sweeps
	IsRunning        bool   // Whether the background loop is running
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithConfig sets liveness thresholds. Non-positive fields fall back to
// defaults.
func WithConfig(cfg Config) Option {
	return func(m *Monitor) {
		m.config = cfg.normalize()
	}
}

// WithHandler sets the callbacks invoked by the background loop.
func WithHandler(h Handler) Option {
	return func(m *Monitor) {
		if h != nil {
			m.handler = h
		}
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMonitor creates a liveness monitor. Call Start to begin the background
// sweep loop, or drive CheckTimeouts and EvictDead from your own scheduler.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		clients: make(map[string]*clientState),
		config:  DefaultConfig(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Config returns the monitor's effective configuration.
func (m *Monitor) Config() Config {
	return m.config
}

// Register starts liveness tracking for a client with a zeroed timeout count.
// An optional last event ID seeds the resume cursor, typically from a
// reconnecting client's Last-Event-ID header. Registering an existing client
// resets its state.
func (m *Monitor) Register(clientID string, lastEventID ...string) {
	state := &clientState{registeredAt: time.Now()}
	if len(lastEventID) > 0 {
		state.lastEventID = lastEventID[0]
	}

	m.mu.Lock()
	m.clients[clientID] = state
	m.mu.Unlock()
}

// Unregister stops tracking a client. Returns false if the client was not
// registered.
func (m *Monitor) Unregister(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[clientID]; !ok {
		return false
	}
	delete(m.clients, clientID)
	return true
}

// Ping records that a ping was sent to the client. Returns false if the
// client is not registered.
func (m *Monitor) Ping(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.clients[clientID]
	if !ok {
		return false
	}
	state.lastPing = time.Now()
	m.totalPings.Add(1)
	return true
}

// Pong records a response from the client and resets its consecutive timeout
// count. Returns false if the client is not registered.
func (m *Monitor) Pong(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.clients[clientID]
	if !ok {
		return false
	}
	state.lastPong = time.Now()
	state.timeouts = 0
	m.totalPongs.Add(1)
	return true
}

// CheckTimeouts sweeps all registered clients and returns those whose last
// pong (or registration, if no pong arrived yet) is older than the timeout
// window. Each sweep increments the consecutive timeout count of every stale
// client, so repeated sweeps against a silent client walk it toward the
// retry budget.
func (m *Monitor) CheckTimeouts() []string {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var timedOut []string
	for clientID, state := range m.clients {
		since := state.lastPong
		if since.IsZero() {
			since = state.registeredAt
		}
		if now.Sub(since) > m.config.Timeout {
			state.timeouts++
			m.totalTimeouts.Add(1)
			timedOut = append(timedOut, clientID)
		}
	}
	return timedOut
}

// IsAlive reports whether a client is registered and within the retry
// budget. It becomes false once the consecutive timeout count reaches
// MaxRetries.
func (m *Monitor) IsAlive(clientID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.clients[clientID]
	return ok && state.timeouts < m.config.MaxRetries
}

// IsTimedOut reports whether a client currently has missed pongs counted
// against it. Resets to false on the next pong.
func (m *Monitor) IsTimedOut(clientID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.clients[clientID]
	return ok && state.timeouts > 0
}

// DeadClients returns the registered clients that exhausted the retry budget
// without unregistering them.
func (m *Monitor) DeadClients() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var dead []string
	for clientID, state := range m.clients {
		if state.timeouts >= m.config.MaxRetries {
			dead = append(dead, clientID)
		}
	}
	return dead
}

// EvictDead unregisters every client past the retry budget and returns their
// IDs.
func (m *Monitor) EvictDead() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for clientID, state := range m.clients {
		if state.timeouts >= m.config.MaxRetries {
			delete(m.clients, clientID)
			evicted = append(evicted, clientID)
		}
	}
	return evicted
}

// ClientsNeedingPing returns the clients whose last ping is older than the
// heartbeat interval, including clients never pinged since registration.
func (m *Monitor) ClientsNeedingPing() []string {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []string
	for clientID, state := range m.clients {
		if state.lastPing.IsZero() || now.Sub(state.lastPing) >= m.config.Interval {
			due = append(due, clientID)
		}
	}
	return due
}

// SetLastEventID stores the resume cursor for a client. Returns false if the
// client is not registered.
func (m *Monitor) SetLastEventID(clientID, eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.clients[clientID]
	if !ok {
		return false
	}
	state.lastEventID = eventID
	return true
}

// LastEventID returns the stored resume cursor. The second return is false
// when the client is not registered or has no cursor yet.
func (m *Monitor) LastEventID(clientID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.clients[clientID]
	if !ok || state.lastEventID == "" {
		return "", false
	}
	return state.lastEventID, true
}

// RetryCount returns a client's current consecutive timeout count, or 0 for
// unknown clients.
func (m *Monitor) RetryCount(clientID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.clients[clientID]
	if !ok {
		return 0
	}
	return state.timeouts
}

// ClientIDs returns all registered client IDs.
func (m *Monitor) ClientIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.clients))
	for clientID := range m.clients {
		ids = append(ids, clientID)
	}
	return ids
}

// ClientCount returns the number of registered clients.
func (m *Monitor) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	dead := 0
	for _, state := range m.clients {
		if state.timeouts >= m.config.MaxRetries {
			dead++
		}
	}
	monitored := len(m.clients)
	m.mu.RUnlock()

	return Stats{
		MonitoredClients: monitored,
		DeadClients:      dead,
		TotalPings:       m.totalPings.Load(),
		TotalPongs:       m.totalPongs.Load(),
		TotalTimeouts:    m.totalTimeouts.Load(),
		IsRunning:        m.running.Load(),
	}
}

// Clear unregisters every client. Counters are preserved.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.clients)
}

// Start begins the background sweep loop. This is a blocking operation that
// runs until the context is cancelled. Use Run() for errgroup pattern or
// call this in a goroutine.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat monitor already started")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.running.Store(true)
	defer m.running.Store(false)

	m.logger.InfoContext(m.ctx, "heartbeat loop started",
		slog.Duration("interval", m.config.Interval),
		slog.Duration("timeout", m.config.Timeout),
		slog.Int("max_retries", m.config.MaxRetries))

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.InfoContext(context.Background(), "heartbeat loop stopping")
			return m.ctx.Err()
		case <-ticker.C:
			m.sweepWithWait()
		}
	}
}

// Stop gracefully shuts down the background loop, waiting for an in-progress
// sweep to complete.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return fmt.Errorf("heartbeat monitor not started")
	}

	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	return nil
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the loop, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (m *Monitor) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- m.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = m.Stop() // Ignore stop error in normal shutdown
			<-errCh      // Wait for Start() to exit
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// sweepWithWait tracks the sweep with the WaitGroup so Stop can wait for it.
func (m *Monitor) sweepWithWait() {
	m.mu.RLock()
	if m.cancel == nil {
		m.mu.RUnlock()
		return
	}
	m.wg.Add(1)
	m.mu.RUnlock()

	defer m.wg.Done()
	m.sweep()
}

// sweep is one iteration of the liveness protocol: ping clients that are
// due, count missed pongs, evict clients past the retry budget. Each
// decision is surfaced through the handler so the transport can act on it.
func (m *Monitor) sweep() {
	for _, clientID := range m.ClientsNeedingPing() {
		if m.Ping(clientID) && m.handler != nil {
			m.handler.OnPing(clientID)
		}
	}

	timedOut := m.CheckTimeouts()
	for _, clientID := range timedOut {
		m.logger.DebugContext(context.Background(), "heartbeat timeout",
			logger.ClientID(clientID),
			logger.RetryCount(m.RetryCount(clientID)))
		if m.handler != nil {
			m.handler.OnTimeout(clientID)
		}
	}

	dead := m.EvictDead()
	for _, clientID := range dead {
		m.logger.InfoContext(context.Background(), "heartbeat client dead",
			logger.ClientID(clientID))
		if m.handler != nil {
			m.handler.OnDead(clientID)
		}
	}
}
