// Package topic provides wildcard topic pattern matching and a registry that
// maps patterns to subscriber identities for pub/sub routing.
//
// # Pattern Syntax
//
// Patterns are strings of colon-delimited segments:
//   - a literal segment matches the same segment exactly (case-sensitive)
//   - "*" matches exactly one arbitrary segment
//   - a trailing "#" matches zero or more remaining segments
//
// Matching is anchored: the whole topic must be consumed, there are no
// partial matches.
//
// Examples:
//
//	topic.Match("chat:*", "chat:general")      // true
//	topic.Match("chat:*", "chat:a:b")          // false
//	topic.Match("events:#", "events:user:login") // true
//	topic.Match("events:#", "events")          // true
//
// # Registry Usage
//
// The Matcher keeps pattern registrations and resolves a concrete topic to
// the set of clients whose patterns match it:
//
//	m := topic.NewMatcher()
//	if err := m.Subscribe("events:#", "admin"); err != nil {
//	    log.Fatal(err)
//	}
//	clients := m.MatchTopic("events:user:login") // ["admin"]
//
// # Thread Safety
//
// All Matcher methods are safe for concurrent use.
package topic
