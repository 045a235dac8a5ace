package topic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/topic"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{"exact match", "chat:general", "chat:general", true},
		{"exact mismatch", "chat:general", "chat:random", false},
		{"single wildcard matches one segment", "chat:*", "chat:general", true},
		{"single wildcard rejects two segments", "chat:*", "chat:a:b", false},
		{"single wildcard rejects zero segments", "chat:*", "chat", false},
		{"single wildcard in the middle", "chat:*:typing", "chat:general:typing", true},
		{"single wildcard in the middle mismatch", "chat:*:typing", "chat:general:read", false},
		{"multi wildcard matches deep topic", "events:#", "events:user:login", true},
		{"multi wildcard matches one segment", "events:#", "events:user", true},
		{"multi wildcard matches zero segments", "events:#", "events", true},
		{"multi wildcard alone matches everything", "#", "a:b:c", true},
		{"multi wildcard rejects different prefix", "events:#", "chat:general", false},
		{"pattern longer than topic", "chat:general:typing", "chat:general", false},
		{"topic longer than pattern", "chat:general", "chat:general:typing", false},
		{"case sensitive", "Chat:general", "chat:general", false},
		{"misplaced multi wildcard never matches", "events:#:login", "events:user:login", false},
		{"empty pattern matches empty topic", "", "", true},
		{"empty pattern rejects topic", "", "chat", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, topic.Match(tt.pattern, tt.topic),
				"Match(%q, %q)", tt.pattern, tt.topic)
		})
	}
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	t.Run("accepts literals and wildcards", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, topic.ValidatePattern("chat:general"))
		require.NoError(t, topic.ValidatePattern("chat:*"))
		require.NoError(t, topic.ValidatePattern("events:#"))
		require.NoError(t, topic.ValidatePattern("#"))
	})

	t.Run("rejects non-final multi wildcard", func(t *testing.T) {
		t.Parallel()

		err := topic.ValidatePattern("events:#:login")
		require.ErrorIs(t, err, topic.ErrInvalidPattern)
		require.ErrorIs(t, topic.ValidatePattern("#:events"), topic.ErrInvalidPattern)
	})
}

func TestMatcher_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("registers interest", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		require.NoError(t, m.Subscribe("events:#", "admin"))

		assert.ElementsMatch(t, []string{"admin"}, m.MatchTopic("events:user:login"))
		assert.Empty(t, m.MatchTopic("chat:general"))
	})

	t.Run("is idempotent for identical pairs", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		require.NoError(t, m.Subscribe("chat:*", "alice"))
		require.NoError(t, m.Subscribe("chat:*", "alice"))

		assert.Equal(t, 1, m.SubscriberCount("chat:*"))
	})

	t.Run("rejects invalid pattern", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		err := m.Subscribe("a:#:b", "alice")
		require.ErrorIs(t, err, topic.ErrInvalidPattern)
		assert.Empty(t, m.Patterns())
	})

	t.Run("deduplicates clients across patterns", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		require.NoError(t, m.Subscribe("events:#", "admin"))
		require.NoError(t, m.Subscribe("events:*", "admin"))

		assert.ElementsMatch(t, []string{"admin"}, m.MatchTopic("events:login"))
	})
}

func TestMatcher_Unsubscribe(t *testing.T) {
	t.Parallel()

	t.Run("removes a registration", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		require.NoError(t, m.Subscribe("chat:*", "alice"))

		assert.True(t, m.Unsubscribe("chat:*", "alice"))
		assert.Empty(t, m.MatchTopic("chat:general"))
	})

	t.Run("returns false for unknown registration", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		assert.False(t, m.Unsubscribe("chat:*", "alice"))

		require.NoError(t, m.Subscribe("chat:*", "bob"))
		assert.False(t, m.Unsubscribe("chat:*", "alice"))
	})

	t.Run("prunes empty patterns", func(t *testing.T) {
		t.Parallel()

		m := topic.NewMatcher()
		require.NoError(t, m.Subscribe("chat:*", "alice"))
		m.Unsubscribe("chat:*", "alice")

		assert.Empty(t, m.Patterns())
	})
}

func TestMatcher_UnsubscribeAll(t *testing.T) {
	t.Parallel()

	m := topic.NewMatcher()
	require.NoError(t, m.Subscribe("chat:*", "alice"))
	require.NoError(t, m.Subscribe("events:#", "alice"))
	require.NoError(t, m.Subscribe("events:#", "bob"))

	assert.Equal(t, 2, m.UnsubscribeAll("alice"))
	assert.Equal(t, 0, m.UnsubscribeAll("alice"))

	assert.ElementsMatch(t, []string{"events:#"}, m.Patterns())
	assert.ElementsMatch(t, []string{"bob"}, m.MatchTopic("events:user:login"))
}

func TestMatcher_Clear(t *testing.T) {
	t.Parallel()

	m := topic.NewMatcher()
	require.NoError(t, m.Subscribe("chat:*", "alice"))
	m.Clear()

	assert.Empty(t, m.Patterns())
	assert.Empty(t, m.MatchTopic("chat:general"))
}
