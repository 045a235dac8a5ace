package heartbeat

// Handler receives liveness decisions from the background loop. The Monitor
// decides who to ping, who timed out, and who is dead; the Handler performs
// the transport-specific mechanics (sending a ping frame, tearing down a
// connection). Methods are invoked from the loop goroutine and must not call
// back into Start or Stop.
type Handler interface {
	// OnPing is invoked for each client due for a ping. The Monitor has
	// already recorded the ping timestamp.
	OnPing(clientID string)
	// OnTimeout is invoked for each client that missed a pong during the
	// current sweep.
	OnTimeout(clientID string)
	// OnDead is invoked for each client evicted after exhausting the retry
	// budget. The client is already unregistered.
	OnDead(clientID string)
}

// HandlerFuncs adapts plain functions to the Handler interface. Nil fields
// are skipped.
type HandlerFuncs struct {
	OnPingFunc    func(clientID string)
	OnTimeoutFunc func(clientID string)
	OnDeadFunc    func(clientID string)
}

func (h HandlerFuncs) OnPing(clientID string) {
	if h.OnPingFunc != nil {
		h.OnPingFunc(clientID)
	}
}

func (h HandlerFuncs) OnTimeout(clientID string) {
	if h.OnTimeoutFunc != nil {
		h.OnTimeoutFunc(clientID)
	}
}

func (h HandlerFuncs) OnDead(clientID string) {
	if h.OnDeadFunc != nil {
		h.OnDeadFunc(clientID)
	}
}
