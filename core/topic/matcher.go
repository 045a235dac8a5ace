package topic

import (
	"strings"
	"sync"
)

const (
	// Separator delimits segments in patterns and topics.
	Separator = ":"

	// SingleWildcard matches exactly one arbitrary segment.
	SingleWildcard = "*"

	// MultiWildcard matches zero or more trailing segments. It is only
	// valid as the final segment of a pattern.
	MultiWildcard = "#"
)

// Matcher maintains pattern-to-client registrations and resolves concrete
// topics to the set of matching clients. The zero value is not usable; use
// NewMatcher.
type Matcher struct {
	mu sync.RWMutex
	// pattern -> set of client IDs
	patterns map[string]map[string]struct{}
}

// NewMatcher creates an empty pattern registry.
func NewMatcher() *Matcher {
	return &Matcher{
		patterns: make(map[string]map[string]struct{}),
	}
}

// Subscribe registers a client's interest in a topic pattern. Registering
// the same (pattern, client) pair twice is a no-op. Returns ErrInvalidPattern
// if the pattern uses "#" anywhere but the final segment.
func (m *Matcher) Subscribe(pattern, clientID string) error {
	if err := ValidatePattern(pattern); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.patterns[pattern]
	if !ok {
		clients = make(map[string]struct{})
		m.patterns[pattern] = clients
	}
	clients[clientID] = struct{}{}
	return nil
}

// Unsubscribe removes a single (pattern, client) registration and reports
// whether it existed. Patterns with no remaining clients are pruned.
func (m *Matcher) Unsubscribe(pattern, clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.patterns[pattern]
	if !ok {
		return false
	}
	if _, ok := clients[clientID]; !ok {
		return false
	}
	delete(clients, clientID)
	if len(clients) == 0 {
		delete(m.patterns, pattern)
	}
	return true
}

// UnsubscribeAll removes every pattern registration for a client and returns
// the number of registrations removed.
func (m *Matcher) UnsubscribeAll(clientID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for pattern, clients := range m.patterns {
		if _, ok := clients[clientID]; ok {
			delete(clients, clientID)
			count++
		}
		if len(clients) == 0 {
			delete(m.patterns, pattern)
		}
	}
	return count
}

// MatchTopic returns the IDs of all clients whose registered patterns match
// the given topic. Each client appears at most once, even when multiple of
// its patterns match.
func (m *Matcher) MatchTopic(topic string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make(map[string]struct{})
	for pattern, clients := range m.patterns {
		if !Match(pattern, topic) {
			continue
		}
		for clientID := range clients {
			matched[clientID] = struct{}{}
		}
	}

	result := make([]string, 0, len(matched))
	for clientID := range matched {
		result = append(result, clientID)
	}
	return result
}

// Patterns returns all currently registered patterns.
func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.patterns))
	for pattern := range m.patterns {
		result = append(result, pattern)
	}
	return result
}

// SubscriberCount returns the number of clients registered for a pattern.
func (m *Matcher) SubscriberCount(pattern string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns[pattern])
}

// Clear removes all registrations.
func (m *Matcher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = make(map[string]map[string]struct{})
}

// ValidatePattern reports whether a pattern is well-formed. The only
// structural rule is that "#" must be the final segment if present.
func ValidatePattern(pattern string) error {
	segments := strings.Split(pattern, Separator)
	for i, seg := range segments {
		if seg == MultiWildcard && i != len(segments)-1 {
			return ErrInvalidPattern
		}
	}
	return nil
}

// Match reports whether a pattern matches a topic. Matching is anchored and
// case-sensitive: literal segments must be equal, "*" consumes exactly one
// topic segment, and a trailing "#" consumes all remaining segments,
// including none. Patterns with a misplaced "#" never match.
func Match(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, Separator)
	topicParts := strings.Split(topic, Separator)

	pi, ti := 0, 0
	for pi < len(patternParts) && ti < len(topicParts) {
		switch patternParts[pi] {
		case MultiWildcard:
			return pi == len(patternParts)-1
		case SingleWildcard:
			pi++
			ti++
		default:
			if patternParts[pi] != topicParts[ti] {
				return false
			}
			pi++
			ti++
		}
	}

	// Leftover topic segments can only be absorbed by a trailing "#",
	// which is handled above.
	if ti < len(topicParts) {
		return false
	}

	// Topic exhausted: the pattern must be exhausted too, or end with a
	// trailing "#" that matches zero segments.
	if pi == len(patternParts) {
		return true
	}
	return pi == len(patternParts)-1 && patternParts[pi] == MultiWildcard
}
