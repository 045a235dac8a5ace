package heartbeat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dmitrymomot/realtime/core/heartbeat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMonitor_Register(t *testing.T) {
	t.Parallel()

	t.Run("tracks registered clients", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor()
		m.Register("c1")
		m.Register("c2")

		assert.True(t, m.IsAlive("c1"))
		assert.Equal(t, 2, m.ClientCount())
		assert.ElementsMatch(t, []string{"c1", "c2"}, m.ClientIDs())
	})

	t.Run("seeds resume cursor", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor()
		m.Register("c1", "evt-42")

		id, ok := m.LastEventID("c1")
		require.True(t, ok)
		assert.Equal(t, "evt-42", id)
	})

	t.Run("re-register resets state", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Timeout: time.Millisecond,
		}))
		m.Register("c1")

		time.Sleep(5 * time.Millisecond)
		require.NotEmpty(t, m.CheckTimeouts())
		require.Equal(t, 1, m.RetryCount("c1"))

		m.Register("c1")
		assert.Equal(t, 0, m.RetryCount("c1"))
	})

	t.Run("unknown clients are not alive", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor()
		assert.False(t, m.IsAlive("ghost"))
	})
}

func TestMonitor_Unregister(t *testing.T) {
	t.Parallel()

	m := heartbeat.NewMonitor()
	m.Register("c1")

	assert.True(t, m.Unregister("c1"))
	assert.False(t, m.Unregister("c1"), "idempotent")
	assert.Equal(t, 0, m.ClientCount())
}

func TestMonitor_PingPong(t *testing.T) {
	t.Parallel()

	t.Run("records ping and pong for known clients", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor()
		m.Register("c1")

		assert.True(t, m.Ping("c1"))
		assert.True(t, m.Pong("c1"))
		assert.False(t, m.Ping("ghost"))
		assert.False(t, m.Pong("ghost"))

		stats := m.Stats()
		assert.Equal(t, uint64(1), stats.TotalPings)
		assert.Equal(t, uint64(1), stats.TotalPongs)
	})

	t.Run("pong resets the timeout count", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Timeout: time.Millisecond,
		}))
		m.Register("c1")

		time.Sleep(5 * time.Millisecond)
		require.Equal(t, []string{"c1"}, m.CheckTimeouts())
		require.Equal(t, 1, m.RetryCount("c1"))

		require.True(t, m.IsTimedOut("c1"))

		require.True(t, m.Pong("c1"))
		assert.Equal(t, 0, m.RetryCount("c1"))
		assert.False(t, m.IsTimedOut("c1"))
		assert.Empty(t, m.CheckTimeouts(), "recent pong is within the window")
	})
}

func TestMonitor_CheckTimeouts(t *testing.T) {
	t.Parallel()

	t.Run("every sweep counts against a silent client", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Timeout:    time.Millisecond,
			MaxRetries: 3,
		}))
		m.Register("c1")

		time.Sleep(5 * time.Millisecond)
		for i := 1; i <= 3; i++ {
			require.Equal(t, []string{"c1"}, m.CheckTimeouts())
			assert.Equal(t, i, m.RetryCount("c1"))
		}

		assert.False(t, m.IsAlive("c1"))
		assert.Equal(t, uint64(3), m.Stats().TotalTimeouts)
	})

	t.Run("clients inside the window are untouched", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Timeout: time.Hour,
		}))
		m.Register("c1")

		assert.Empty(t, m.CheckTimeouts())
		assert.Equal(t, 0, m.RetryCount("c1"))
	})

	t.Run("falls back to registration time before first pong", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Timeout: time.Millisecond,
		}))
		m.Register("c1")

		time.Sleep(5 * time.Millisecond)
		assert.Equal(t, []string{"c1"}, m.CheckTimeouts())
	})
}

func TestMonitor_EvictDead(t *testing.T) {
	t.Parallel()

	m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
		Timeout:    time.Millisecond,
		MaxRetries: 2,
	}))
	m.Register("silent")
	m.Register("responsive")

	time.Sleep(5 * time.Millisecond)
	for range 2 {
		m.CheckTimeouts()
		require.True(t, m.Pong("responsive"))
	}

	assert.ElementsMatch(t, []string{"silent"}, m.DeadClients())
	assert.ElementsMatch(t, []string{"silent"}, m.EvictDead())

	assert.Equal(t, 1, m.ClientCount())
	assert.True(t, m.IsAlive("responsive"))
	assert.Empty(t, m.EvictDead(), "eviction removed the dead client")
}

func TestMonitor_ClientsNeedingPing(t *testing.T) {
	t.Parallel()

	m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
		Interval: time.Hour,
	}))
	m.Register("c1")
	m.Register("c2")

	assert.ElementsMatch(t, []string{"c1", "c2"}, m.ClientsNeedingPing(),
		"never-pinged clients are due immediately")

	require.True(t, m.Ping("c1"))
	assert.ElementsMatch(t, []string{"c2"}, m.ClientsNeedingPing())
}

func TestMonitor_LastEventID(t *testing.T) {
	t.Parallel()

	m := heartbeat.NewMonitor()
	m.Register("c1")

	_, ok := m.LastEventID("c1")
	assert.False(t, ok, "no cursor until one is set")

	assert.True(t, m.SetLastEventID("c1", "evt-7"))
	id, ok := m.LastEventID("c1")
	require.True(t, ok)
	assert.Equal(t, "evt-7", id)

	assert.False(t, m.SetLastEventID("ghost", "evt-8"))
	_, ok = m.LastEventID("ghost")
	assert.False(t, ok)
}

func TestMonitor_Clear(t *testing.T) {
	t.Parallel()

	m := heartbeat.NewMonitor()
	m.Register("c1")
	require.True(t, m.Ping("c1"))

	m.Clear()

	assert.Equal(t, 0, m.ClientCount())
	assert.Equal(t, uint64(1), m.Stats().TotalPings, "counters survive Clear")
}

func TestMonitor_Loop(t *testing.T) {
	t.Parallel()

	t.Run("pings, times out, and evicts silent clients", func(t *testing.T) {
		t.Parallel()

		var (
			mu     sync.Mutex
			pings  []string
			stale  []string
			buried []string
		)
		record := func(dst *[]string) func(string) {
			return func(clientID string) {
				mu.Lock()
				defer mu.Unlock()
				*dst = append(*dst, clientID)
			}
		}

		m := heartbeat.NewMonitor(
			heartbeat.WithConfig(heartbeat.Config{
				Interval:   5 * time.Millisecond,
				Timeout:    time.Millisecond,
				MaxRetries: 2,
			}),
			heartbeat.WithHandler(heartbeat.HandlerFuncs{
				OnPingFunc:    record(&pings),
				OnTimeoutFunc: record(&stale),
				OnDeadFunc:    record(&buried),
			}),
		)
		m.Register("c1")

		done := make(chan error, 1)
		go func() { done <- m.Start(context.Background()) }()

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(buried) > 0
		}, time.Second, time.Millisecond)

		require.NoError(t, m.Stop())
		require.ErrorIs(t, <-done, context.Canceled)

		mu.Lock()
		defer mu.Unlock()
		assert.Contains(t, pings, "c1")
		assert.Contains(t, stale, "c1")
		assert.Equal(t, []string{"c1"}, buried)
		assert.Equal(t, 0, m.ClientCount())
	})

	t.Run("tolerates concurrent registration churn", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Interval:   time.Millisecond,
			Timeout:    time.Millisecond,
			MaxRetries: 1,
		}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Start(ctx) }()

		var wg sync.WaitGroup
		wg.Add(4)
		for w := range 4 {
			go func(w int) {
				defer wg.Done()
				for i := range 50 {
					id := string(rune('a'+w)) + "-" + string(rune('0'+i%10))
					m.Register(id)
					m.Pong(id)
					m.Unregister(id)
				}
			}(w)
		}
		wg.Wait()

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
		_ = m.Stop()
	})

	t.Run("double start fails", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Interval: time.Millisecond,
		}))

		done := make(chan error, 1)
		go func() { done <- m.Start(context.Background()) }()

		require.Eventually(t, func() bool {
			return m.Stats().IsRunning
		}, time.Second, time.Millisecond)

		require.Error(t, m.Start(context.Background()))
		require.NoError(t, m.Stop())
		<-done
	})

	t.Run("stop before start fails", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor()
		require.Error(t, m.Stop())
	})

	t.Run("run shuts down cleanly on context cancel", func(t *testing.T) {
		t.Parallel()

		m := heartbeat.NewMonitor(heartbeat.WithConfig(heartbeat.Config{
			Interval: time.Millisecond,
		}))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx)() }()

		require.Eventually(t, func() bool {
			return m.Stats().IsRunning
		}, time.Second, time.Millisecond)

		cancel()
		require.NoError(t, <-done)
	})
}
