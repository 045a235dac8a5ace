// Package presence tracks which clients are currently "in" each channel,
// with per-entry metadata, join and last-seen timestamps, and diff-based
// incremental updates.
//
// # Usage
//
//	tracker := presence.NewTracker()
//	tracker.Track("room:lobby", "alice", map[string]string{"name": "Alice"})
//	tracker.Track("room:lobby", "bob", map[string]string{"name": "Bob"})
//
//	members := tracker.List("room:lobby") // two presence.Info entries
//	diff := tracker.FlushDiff("room:lobby") // Joins: alice, bob
//
// # Diff Semantics
//
// Every Track and Untrack is accumulated into a per-channel pending diff.
// FlushDiff atomically returns and resets it: a change is reported in exactly
// one flush, never twice. Re-tracking a client whose join is still pending
// replaces the pending entry rather than duplicating it.
//
// # Thread Safety
//
// All Tracker methods are safe for concurrent use. Channel records are
// guarded individually so unrelated channels never contend.
package presence
