package presence_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/presence"
)

func TestTracker_Track(t *testing.T) {
	t.Parallel()

	t.Run("creates an entry with timestamps", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		info := tracker.Track("room:lobby", "alice", map[string]string{"name": "Alice"})

		assert.Equal(t, "alice", info.ClientID)
		assert.Equal(t, "room:lobby", info.Channel)
		assert.Equal(t, "Alice", info.Metadata["name"])
		assert.False(t, info.JoinedAt.IsZero())
		assert.Equal(t, info.JoinedAt, info.LastSeen)
	})

	t.Run("refresh preserves joined at and replaces metadata", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		first := tracker.Track("room:lobby", "alice", map[string]string{"status": "online"})

		time.Sleep(5 * time.Millisecond)
		second := tracker.Track("room:lobby", "alice", map[string]string{"status": "away"})

		assert.Equal(t, first.JoinedAt, second.JoinedAt)
		assert.True(t, second.LastSeen.After(first.LastSeen))
		assert.Equal(t, "away", second.Metadata["status"])
		assert.Equal(t, 1, tracker.Count("room:lobby"))
	})
}

func TestTracker_Untrack(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()
	tracker.Track("room:lobby", "alice", nil)

	assert.True(t, tracker.Untrack("room:lobby", "alice"))
	assert.False(t, tracker.Untrack("room:lobby", "alice"), "idempotent cleanup")
	assert.False(t, tracker.Untrack("missing", "alice"))
	assert.Equal(t, 0, tracker.Count("room:lobby"))
}

func TestTracker_UntrackAll(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()
	tracker.Track("room:lobby", "alice", nil)
	tracker.Track("room:games", "alice", nil)
	tracker.Track("room:lobby", "bob", nil)

	channels := tracker.UntrackAll("alice")
	assert.ElementsMatch(t, []string{"room:lobby", "room:games"}, channels)
	assert.Nil(t, tracker.UntrackAll("alice"))

	assert.Equal(t, 1, tracker.Count("room:lobby"))
	assert.Equal(t, 0, tracker.Count("room:games"))
	assert.Equal(t, 1, tracker.TotalClients())
}

func TestTracker_UpdateAndTouch(t *testing.T) {
	t.Parallel()

	t.Run("update replaces metadata without touching joined at", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		before := tracker.Track("room:lobby", "alice", map[string]string{"status": "online"})

		require.True(t, tracker.Update("room:lobby", "alice", map[string]string{"status": "busy"}))

		after, ok := tracker.Get("room:lobby", "alice")
		require.True(t, ok)
		assert.Equal(t, "busy", after.Metadata["status"])
		assert.Equal(t, before.JoinedAt, after.JoinedAt)
	})

	t.Run("touch bumps last seen only", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		before := tracker.Track("room:lobby", "alice", map[string]string{"status": "online"})

		time.Sleep(5 * time.Millisecond)
		require.True(t, tracker.Touch("room:lobby", "alice"))

		after, ok := tracker.Get("room:lobby", "alice")
		require.True(t, ok)
		assert.True(t, after.LastSeen.After(before.LastSeen))
		assert.Equal(t, "online", after.Metadata["status"])
	})

	t.Run("return false for unknown entries", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		assert.False(t, tracker.Update("room:lobby", "ghost", nil))
		assert.False(t, tracker.Touch("room:lobby", "ghost"))
	})
}

func TestTracker_ListAndGet(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()
	tracker.Track("room:lobby", "alice", map[string]string{"name": "Alice"})
	tracker.Track("room:lobby", "bob", map[string]string{"name": "Bob"})

	members := tracker.List("room:lobby")
	require.Len(t, members, 2)

	info, ok := tracker.Get("room:lobby", "alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", info.Metadata["name"])

	_, ok = tracker.Get("room:lobby", "ghost")
	assert.False(t, ok)
	assert.Nil(t, tracker.List("missing"))
}

func TestTracker_FlushDiff(t *testing.T) {
	t.Parallel()

	t.Run("reports accumulated joins and leaves once", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		tracker.Track("room:lobby", "alice", nil)
		tracker.Track("room:lobby", "bob", nil)
		tracker.Untrack("room:lobby", "bob")

		diff := tracker.FlushDiff("room:lobby")
		assert.True(t, diff.HasChanges())
		assert.Equal(t, 3, diff.ChangeCount())
		require.Len(t, diff.Joins, 2)
		assert.Equal(t, []string{"bob"}, diff.Leaves)

		// Second flush sees nothing: changes are reported exactly once.
		second := tracker.FlushDiff("room:lobby")
		assert.False(t, second.HasChanges())
	})

	t.Run("changes across two flushes never repeat", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		tracker.Track("room:lobby", "alice", nil)
		first := tracker.FlushDiff("room:lobby")

		tracker.Track("room:lobby", "bob", nil)
		tracker.Untrack("room:lobby", "alice")
		second := tracker.FlushDiff("room:lobby")

		require.Len(t, first.Joins, 1)
		assert.Equal(t, "alice", first.Joins[0].ClientID)
		assert.Empty(t, first.Leaves)

		require.Len(t, second.Joins, 1)
		assert.Equal(t, "bob", second.Joins[0].ClientID)
		assert.Equal(t, []string{"alice"}, second.Leaves)
	})

	t.Run("re-tracking a pending join does not duplicate it", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		tracker.Track("room:lobby", "alice", map[string]string{"status": "online"})
		tracker.Track("room:lobby", "alice", map[string]string{"status": "away"})

		diff := tracker.FlushDiff("room:lobby")
		require.Len(t, diff.Joins, 1)
		assert.Equal(t, "away", diff.Joins[0].Metadata["status"])
	})

	t.Run("unknown channel yields empty diff", func(t *testing.T) {
		t.Parallel()

		tracker := presence.NewTracker()
		assert.False(t, tracker.FlushDiff("missing").HasChanges())
	})
}

func TestTracker_ChannelViews(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()
	tracker.Track("room:lobby", "alice", nil)
	tracker.Track("room:games", "alice", nil)
	tracker.Track("room:lobby", "bob", nil)

	assert.ElementsMatch(t, []string{"room:lobby", "room:games"}, tracker.ClientChannels("alice"))
	assert.ElementsMatch(t, []string{"room:lobby", "room:games"}, tracker.ActiveChannels())
	assert.Equal(t, 2, tracker.TotalClients())

	tracker.UntrackAll("alice")
	tracker.FlushDiff("room:games")
	assert.ElementsMatch(t, []string{"room:lobby"}, tracker.ActiveChannels())
}

func TestTracker_EvictStale(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()
	tracker.Track("room:lobby", "alice", nil)
	tracker.Track("room:lobby", "bob", nil)

	time.Sleep(10 * time.Millisecond)
	// Only bob stays fresh.
	require.True(t, tracker.Touch("room:lobby", "bob"))

	evicted := tracker.EvictStale(5 * time.Millisecond)
	require.Len(t, evicted, 1)
	assert.Equal(t, presence.Eviction{Channel: "room:lobby", ClientID: "alice"}, evicted[0])

	assert.Equal(t, 1, tracker.Count("room:lobby"))
	assert.Empty(t, tracker.ClientChannels("alice"))

	diff := tracker.FlushDiff("room:lobby")
	assert.Contains(t, diff.Leaves, "alice")
}

func TestTracker_Clear(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()
	tracker.Track("room:lobby", "alice", nil)
	tracker.Clear()

	assert.Equal(t, 0, tracker.TotalClients())
	assert.Empty(t, tracker.ActiveChannels())
	assert.Equal(t, 0, tracker.Count("room:lobby"))
}

func TestTracker_ConcurrentTrackUntrack(t *testing.T) {
	t.Parallel()

	tracker := presence.NewTracker()

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func(i int) {
			defer wg.Done()
			clientID := string(rune('a' + i))
			for range 100 {
				tracker.Track("room:lobby", clientID, nil)
				tracker.Touch("room:lobby", clientID)
				tracker.Untrack("room:lobby", clientID)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, tracker.Count("room:lobby"))
	assert.Equal(t, 0, tracker.TotalClients())
}
