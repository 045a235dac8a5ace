// Package hub composes the realtime building blocks — channel fan-out,
// presence tracking, broadcast, and heartbeat monitoring — behind a single
// façade so transport handlers do not have to sequence four components
// correctly on every connect and disconnect.
//
// Join subscribes a client to a channel, records its presence, and starts
// liveness tracking in one call; Leave and Disconnect undo those steps in
// order. Compound operations sequence the underlying calls without holding
// any lock across the sequence, so unrelated channels never contend.
//
//	h := hub.New(hub.WithChannelBufferSize(512))
//
//	sub, err := h.Join("chat:general", clientID, map[string]string{"name": "Ann"})
//	if err != nil {
//		return err
//	}
//	defer h.Leave("chat:general", clientID)
//
//	h.Publish("chat:general", "hello")
//	for _, msg := range sub.Drain() {
//		// push msg to the wire
//	}
//
// The individual components remain reachable through accessors for callers
// that need the full surface (broadcast policies, presence diffs, SSE
// fragments).
package hub
