package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/realtime/core/hub"
	"github.com/dmitrymomot/realtime/core/logger"
)

// drainInterval is how often push loops poll their subscriber queue.
const drainInterval = 50 * time.Millisecond

type server struct {
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newServer(logger *slog.Logger) *server {
	return &server{
		logger: logger,
		upgrader: websocket.Upgrader{
			// Demo server, no origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*websocket.Conn),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /events", s.handleSSE)
	mux.HandleFunc("POST /publish", s.handlePublish)
	mux.HandleFunc("GET /presence", s.handlePresence)
	return mux
}

// pingClient sends a ping control frame to a connected WebSocket client.
// Invoked by the heartbeat loop; SSE clients have no inbound path and are
// kept alive by the keepalive comments written from their push loop.
func (s *server) pingClient(clientID string) {
	s.mu.Lock()
	conn, ok := s.conns[clientID]
	s.mu.Unlock()
	if !ok {
		return
	}

	deadline := time.Now().Add(5 * time.Second)
	if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		s.logger.Debug("ping failed",
			logger.ClientID(clientID), logger.Error(err))
	}
}

// dropClient tears down a connection the heartbeat monitor declared dead.
func (s *server) dropClient(clientID string) {
	s.mu.Lock()
	conn, ok := s.conns[clientID]
	delete(s.conns, clientID)
	s.mu.Unlock()

	if ok {
		_ = conn.Close()
	}
	channels := s.hub.Disconnect(clientID)
	s.logger.Info("dead client dropped",
		logger.ClientID(clientID),
		logger.Count("channels", len(channels)))
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	channelName := r.URL.Query().Get("channel")
	if channelName == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logger.Error(err))
		return
	}

	sub, err := s.hub.Join(channelName, clientID, map[string]string{
		"transport": "websocket",
	})
	if err != nil {
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.conns[clientID] = conn
	s.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		s.hub.Heartbeat().Pong(clientID)
		s.hub.Presence().Touch(channelName, clientID)
		return nil
	})

	done := make(chan struct{})

	// Reader: inbound text frames are published to the joined channel.
	go func() {
		defer close(done)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				if _, err := s.hub.Publish(channelName, string(data)); err != nil {
					return
				}
			}
		}
	}()

	// Writer: drain the subscriber queue onto the wire.
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-done:
			break loop
		case <-r.Context().Done():
			break loop
		case <-ticker.C:
			for _, msg := range sub.Drain() {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					break loop
				}
			}
		}
	}

	s.mu.Lock()
	delete(s.conns, clientID)
	s.mu.Unlock()
	_ = conn.Close()
	s.hub.Disconnect(clientID)
}

func (s *server) handleSSE(w http.ResponseWriter, r *http.Request) {
	channelName := r.URL.Query().Get("channel")
	if channelName == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.hub.Join(channelName, clientID, map[string]string{
		"transport": "sse",
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.hub.Disconnect(clientID)

	hb := s.hub.Heartbeat()
	if resumeFrom := r.Header.Get("Last-Event-ID"); resumeFrom != "" {
		hb.SetLastEventID(clientID, resumeFrom)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	cfg := hb.Config()
	fmt.Fprint(w, cfg.SSERetryField())
	flusher.Flush()

	drain := time.NewTicker(drainInterval)
	defer drain.Stop()
	keepalive := time.NewTicker(cfg.Interval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if cfg.SendKeepalive {
				fmt.Fprint(w, cfg.SSEKeepaliveComment())
				flusher.Flush()
			}
			// An accepted write is the closest thing SSE has to a pong.
			hb.Pong(clientID)
			s.hub.Presence().Touch(channelName, clientID)
		case <-drain.C:
			msgs := sub.Drain()
			if len(msgs) == 0 {
				continue
			}
			for _, msg := range msgs {
				eventID := uuid.NewString()
				fmt.Fprintf(w, "id: %s\ndata: %s\n\n", eventID, msg)
				hb.SetLastEventID(clientID, eventID)
			}
			flusher.Flush()
		}
	}
}

func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Channel == "" || req.Message == "" {
		http.Error(w, "channel and message are required", http.StatusBadRequest)
		return
	}

	n, err := s.hub.Publish(req.Channel, req.Message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"receivers": n})
}

func (s *server) handlePresence(w http.ResponseWriter, r *http.Request) {
	channelName := r.URL.Query().Get("channel")
	if channelName == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	type member struct {
		ClientID string            `json:"client_id"`
		Metadata map[string]string `json:"metadata,omitempty"`
		JoinedAt time.Time         `json:"joined_at"`
		LastSeen time.Time         `json:"last_seen"`
	}

	infos := s.hub.GetPresence(channelName)
	members := make([]member, 0, len(infos))
	for _, info := range infos {
		members = append(members, member{
			ClientID: info.ClientID,
			Metadata: info.Metadata,
			JoinedAt: info.JoinedAt,
			LastSeen: info.LastSeen,
		})
	}

	stats, err := s.hub.Channels().Stats(channelName)
	var subscriberCount int
	if err == nil {
		subscriberCount = stats.SubscriberCount
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel":          channelName,
		"subscriber_count": subscriberCount,
		"members":          members,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
