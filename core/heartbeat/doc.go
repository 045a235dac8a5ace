// Package heartbeat tracks per-client connection liveness.
//
// A Monitor records ping/pong timestamps per registered client, counts
// consecutive missed pongs, and declares a client dead once the miss count
// reaches the configured retry budget. It also keeps an opaque resume cursor
// (last event ID) per client so transports implementing resumable streams
// can restore a reconnecting client's position.
//
// The Monitor itself is transport-agnostic: it decides who needs a ping and
// who timed out, while the caller supplies the mechanics through a Handler.
// The background loop is optional — all bookkeeping methods work standalone:
//
//	m := heartbeat.NewMonitor(
//		heartbeat.WithConfig(heartbeat.Config{Interval: 15 * time.Second}),
//		heartbeat.WithHandler(heartbeat.HandlerFuncs{
//			OnPingFunc: func(clientID string) { sendPingFrame(clientID) },
//			OnDeadFunc: func(clientID string) { closeConnection(clientID) },
//		}),
//	)
//
//	m.Register("client-1")
//	go m.Start(ctx)
//	defer m.Stop()
//
// For text-based push protocols the Config exposes ready-made SSE fragments
// (keepalive comment, retry directive) that a transport embeds verbatim.
package heartbeat
