// Package broadcast provides a backpressure-aware fan-out primitive with
// named channels, configurable overflow policy, and optional message
// deduplication.
//
// # Backpressure Policy
//
// Each channel is configured with a Policy deciding what happens when a send
// finds no active subscribers:
//   - PolicyDropOldest (default): the send is silently absorbed and counted
//     as dropped.
//   - PolicyError: the send fails with ErrNoSubscribers.
//
// A slow subscriber never blocks the sender in either mode: each subscriber
// handle owns a bounded ring buffer and loses its own oldest messages when
// it falls behind.
//
// # Deduplication
//
// When enabled, a channel remembers the last DedupWindow distinct message
// IDs. A send carrying an already-seen ID is skipped, returns 0 receivers,
// and increments the deduped counter. The window is count-based: exactly the
// last N distinct IDs are remembered regardless of elapsed time.
//
// # Usage
//
//	b := broadcast.NewBroadcaster()
//	b.Create("alerts", broadcast.Config{
//	    BufferSize: 128,
//	    Policy:     broadcast.PolicyDropOldest,
//	})
//
//	sub, err := b.Subscribe("alerts")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Close()
//
//	b.Send("alerts", `{"type":"warning","msg":"CPU high"}`)
//	if msg, ok := sub.TryRecv(); ok {
//	    fmt.Println(msg)
//	}
//
// # Thread Safety
//
// All Broadcaster and Subscriber methods are safe for concurrent use.
package broadcast
