package presence

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Info describes one client's presence in one channel.
type Info struct {
	ClientID string
	Channel  string
	Metadata map[string]string
	JoinedAt time.Time
	LastSeen time.Time
}

// Diff accumulates presence changes between two flushes.
type Diff struct {
	// Joins lists clients added since the last flush.
	Joins []Info
	// Leaves lists client IDs removed since the last flush.
	Leaves []string
}

// HasChanges reports whether the diff contains any joins or leaves.
func (d Diff) HasChanges() bool {
	return len(d.Joins) > 0 || len(d.Leaves) > 0
}

// ChangeCount returns the total number of changes in the diff.
func (d Diff) ChangeCount() int {
	return len(d.Joins) + len(d.Leaves)
}

// Eviction identifies a stale entry removed by EvictStale.
type Eviction struct {
	Channel  string
	ClientID string
}

// channelPresence holds one channel's members and its pending diff. Guarded
// by its own mutex so unrelated channels never contend.
type channelPresence struct {
	mu            sync.Mutex
	members       map[string]*Info
	pendingJoins  []Info
	pendingLeaves []string
}

func (cp *channelPresence) empty() bool {
	return len(cp.members) == 0 && len(cp.pendingJoins) == 0 && len(cp.pendingLeaves) == 0
}

// recordJoin appends a pending join, replacing a still-pending entry for the
// same client so a change never appears twice in one diff.
func (cp *channelPresence) recordJoin(info Info) {
	for i := range cp.pendingJoins {
		if cp.pendingJoins[i].ClientID == info.ClientID {
			cp.pendingJoins[i] = info
			return
		}
	}
	cp.pendingJoins = append(cp.pendingJoins, info)
}

// Tracker is a per-channel membership registry. The zero value is not
// usable; use NewTracker.
type Tracker struct {
	// mu guards the channel map itself; each channel record carries its own
	// mutex. Records are mutated while holding mu for reading, so pruning
	// (which needs the write lock) can never orphan an in-flight mutation.
	mu       sync.RWMutex
	channels map[string]*channelPresence

	clientsMu sync.Mutex
	// client ID -> set of channels, for fast disconnect cleanup
	clientChannels map[string]map[string]struct{}
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		channels:       make(map[string]*channelPresence),
		clientChannels: make(map[string]map[string]struct{}),
	}
}

// withChannel runs fn on a channel record while holding the map read lock.
// When create is false and the channel is unknown, fn is not called and
// withChannel returns false.
func (t *Tracker) withChannel(channel string, create bool, fn func(cp *channelPresence)) bool {
	for {
		t.mu.RLock()
		cp, ok := t.channels[channel]
		if ok {
			cp.mu.Lock()
			fn(cp)
			cp.mu.Unlock()
			t.mu.RUnlock()
			return true
		}
		t.mu.RUnlock()

		if !create {
			return false
		}

		t.mu.Lock()
		if _, ok := t.channels[channel]; !ok {
			t.channels[channel] = &channelPresence{members: make(map[string]*Info)}
		}
		t.mu.Unlock()
	}
}

// Track creates or refreshes a client's presence in a channel and returns
// the resulting entry. JoinedAt is set only on first creation; metadata is
// always replaced and LastSeen bumped. The join is recorded for the next
// FlushDiff.
func (t *Tracker) Track(channel, clientID string, metadata map[string]string) Info {
	var snapshot Info
	now := time.Now()

	t.withChannel(channel, true, func(cp *channelPresence) {
		info, exists := cp.members[clientID]
		if exists {
			info.Metadata = maps.Clone(metadata)
			info.LastSeen = now
		} else {
			info = &Info{
				ClientID: clientID,
				Channel:  channel,
				Metadata: maps.Clone(metadata),
				JoinedAt: now,
				LastSeen: now,
			}
			cp.members[clientID] = info
		}
		snapshot = cloneInfo(info)
		cp.recordJoin(snapshot)
	})

	t.clientsMu.Lock()
	channels, ok := t.clientChannels[clientID]
	if !ok {
		channels = make(map[string]struct{})
		t.clientChannels[clientID] = channels
	}
	channels[channel] = struct{}{}
	t.clientsMu.Unlock()

	return snapshot
}

// Untrack removes a client's presence from a channel and records the leave
// for the next FlushDiff. Returns false if the client was not present; safe
// to call defensively.
func (t *Tracker) Untrack(channel, clientID string) bool {
	existed := false
	t.withChannel(channel, false, func(cp *channelPresence) {
		if _, ok := cp.members[clientID]; ok {
			delete(cp.members, clientID)
			cp.pendingLeaves = append(cp.pendingLeaves, clientID)
			existed = true
		}
	})

	if existed {
		t.forgetClientChannel(clientID, channel)
	}
	t.pruneIfEmpty(channel)
	return existed
}

// UntrackAll removes a client from every channel it is present in and
// returns the affected channel names. Used on disconnect.
func (t *Tracker) UntrackAll(clientID string) []string {
	t.clientsMu.Lock()
	channelSet := t.clientChannels[clientID]
	delete(t.clientChannels, clientID)
	t.clientsMu.Unlock()

	if len(channelSet) == 0 {
		return nil
	}

	channels := slices.Collect(maps.Keys(channelSet))
	for _, channel := range channels {
		t.withChannel(channel, false, func(cp *channelPresence) {
			if _, ok := cp.members[clientID]; ok {
				delete(cp.members, clientID)
				cp.pendingLeaves = append(cp.pendingLeaves, clientID)
			}
		})
		t.pruneIfEmpty(channel)
	}
	return channels
}

// Update replaces a client's metadata and bumps LastSeen. JoinedAt is not
// affected. Returns false if the client is not present.
func (t *Tracker) Update(channel, clientID string, metadata map[string]string) bool {
	updated := false
	t.withChannel(channel, false, func(cp *channelPresence) {
		if info, ok := cp.members[clientID]; ok {
			info.Metadata = maps.Clone(metadata)
			info.LastSeen = time.Now()
			updated = true
		}
	})
	return updated
}

// Touch bumps a client's LastSeen timestamp only. Used by heartbeat
// integration. Returns false if the client is not present.
func (t *Tracker) Touch(channel, clientID string) bool {
	touched := false
	t.withChannel(channel, false, func(cp *channelPresence) {
		if info, ok := cp.members[clientID]; ok {
			info.LastSeen = time.Now()
			touched = true
		}
	})
	return touched
}

// List returns all present clients in a channel.
func (t *Tracker) List(channel string) []Info {
	var result []Info
	t.withChannel(channel, false, func(cp *channelPresence) {
		result = make([]Info, 0, len(cp.members))
		for _, info := range cp.members {
			result = append(result, cloneInfo(info))
		}
	})
	return result
}

// Get returns a specific client's presence entry.
func (t *Tracker) Get(channel, clientID string) (Info, bool) {
	var (
		result Info
		found  bool
	)
	t.withChannel(channel, false, func(cp *channelPresence) {
		if info, ok := cp.members[clientID]; ok {
			result = cloneInfo(info)
			found = true
		}
	})
	return result, found
}

// Count returns the number of clients present in a channel.
func (t *Tracker) Count(channel string) int {
	count := 0
	t.withChannel(channel, false, func(cp *channelPresence) {
		count = len(cp.members)
	})
	return count
}

// FlushDiff atomically returns and resets the accumulated joins and leaves
// for a channel. Two consecutive flushes never report the same change twice.
func (t *Tracker) FlushDiff(channel string) Diff {
	var diff Diff
	t.withChannel(channel, false, func(cp *channelPresence) {
		diff = Diff{
			Joins:  cp.pendingJoins,
			Leaves: cp.pendingLeaves,
		}
		cp.pendingJoins = nil
		cp.pendingLeaves = nil
	})

	t.pruneIfEmpty(channel)
	return diff
}

// ClientChannels returns all channels a client is present in.
func (t *Tracker) ClientChannels(clientID string) []string {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	return slices.Collect(maps.Keys(t.clientChannels[clientID]))
}

// ActiveChannels returns all channels with at least one present client.
func (t *Tracker) ActiveChannels() []string {
	t.mu.RLock()
	names := slices.Collect(maps.Keys(t.channels))
	t.mu.RUnlock()

	active := make([]string, 0, len(names))
	for _, name := range names {
		t.withChannel(name, false, func(cp *channelPresence) {
			if len(cp.members) > 0 {
				active = append(active, name)
			}
		})
	}
	return active
}

// TotalClients returns the number of distinct tracked clients across all
// channels.
func (t *Tracker) TotalClients() int {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()
	return len(t.clientChannels)
}

// EvictStale removes every entry whose LastSeen is older than the given age
// and returns the evicted (channel, client) pairs. Evictions are recorded as
// leaves for the next FlushDiff.
func (t *Tracker) EvictStale(olderThan time.Duration) []Eviction {
	cutoff := time.Now().Add(-olderThan)

	t.mu.RLock()
	names := slices.Collect(maps.Keys(t.channels))
	t.mu.RUnlock()

	var evicted []Eviction
	for _, name := range names {
		t.withChannel(name, false, func(cp *channelPresence) {
			for clientID, info := range cp.members {
				if info.LastSeen.Before(cutoff) {
					delete(cp.members, clientID)
					cp.pendingLeaves = append(cp.pendingLeaves, clientID)
					evicted = append(evicted, Eviction{Channel: name, ClientID: clientID})
				}
			}
		})
	}

	for _, e := range evicted {
		t.forgetClientChannel(e.ClientID, e.Channel)
	}
	return evicted
}

// Clear removes all presence data.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.channels = make(map[string]*channelPresence)
	t.mu.Unlock()

	t.clientsMu.Lock()
	t.clientChannels = make(map[string]map[string]struct{})
	t.clientsMu.Unlock()
}

// pruneIfEmpty drops a channel record that has no members and no pending
// diff. Lock order is the map write lock first, then the record lock.
func (t *Tracker) pruneIfEmpty(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp, ok := t.channels[channel]
	if !ok {
		return
	}
	cp.mu.Lock()
	empty := cp.empty()
	cp.mu.Unlock()
	if empty {
		delete(t.channels, channel)
	}
}

func (t *Tracker) forgetClientChannel(clientID, channel string) {
	t.clientsMu.Lock()
	defer t.clientsMu.Unlock()

	channels, ok := t.clientChannels[clientID]
	if !ok {
		return
	}
	delete(channels, channel)
	if len(channels) == 0 {
		delete(t.clientChannels, clientID)
	}
}

func cloneInfo(info *Info) Info {
	clone := *info
	clone.Metadata = maps.Clone(info.Metadata)
	return clone
}
