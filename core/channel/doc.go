// Package channel provides a process-local pub/sub manager with named
// channels, bounded per-subscriber fan-out queues, and pattern-based
// publishing.
//
// # Delivery Model
//
// Every subscriber owns a bounded ring buffer. Publishing never blocks: when
// a slow subscriber's buffer is full, the oldest unread message for that
// subscriber is evicted and counted as missed, without affecting the
// publisher or any other subscriber. Within one channel, all subscribers
// observe publishes in the same relative order; a lagging subscriber sees a
// gap, never reordered or duplicated messages.
//
// # Usage
//
//	manager := channel.NewManager(channel.WithDefaultBufferSize(256))
//	manager.CreateChannel("chat:general")
//
//	sub, err := manager.Subscribe("chat:general", "user-1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	manager.Publish("chat:general", `{"msg":"hello"}`)
//	if msg, ok := sub.TryRecv(); ok {
//	    fmt.Println(msg)
//	}
//
// Pattern-based publishing matches a wildcard pattern against channel names:
//
//	manager.CreateChannel("chat:general")
//	manager.CreateChannel("chat:random")
//	manager.PublishToTopic("chat:*", "announcement") // both channels
//
// # Thread Safety
//
// Manager and Subscriber are safe for concurrent use. Channel state is
// guarded per channel: operations on unrelated channels never contend.
package channel
