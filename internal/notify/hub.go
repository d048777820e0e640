package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/carecall/carecall/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	hubSendBuffer   = 32
	hubWriteTimeout = 10 * time.Second
	hubPongWait     = 60 * time.Second
	hubPingPeriod   = (hubPongWait * 9) / 10
)

// HubEvent is the frame written to websocket subscribers.
type HubEvent struct {
	Topic   string                     `json:"topic"`
	Message models.NotificationMessage `json:"message"`
}

type subscriber struct {
	conn         *websocket.Conn
	send         chan []byte
	supervisorID string
	topic        string
}

// wants reports whether the subscriber should see a message. Broadcasts reach
// everyone on the topic; targeted copies reach only their recipient.
func (s *subscriber) wants(topic, recipient string) bool {
	if s.topic != "" && s.topic != topic {
		return false
	}
	if recipient == "" {
		return s.supervisorID == ""
	}
	return recipient == s.supervisorID
}

// Hub pushes notifications to connected websocket clients. Clients filter with
// the supervisorId and topic query parameters.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	log      *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subs: make(map[*subscriber]struct{}),
		log:  log.Named("hub"),
	}
}

func (h *Hub) Name() string { return "websocket" }

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams matching notifications until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		conn:         conn,
		send:         make(chan []byte, hubSendBuffer),
		supervisorID: r.URL.Query().Get("supervisorId"),
		topic:        r.URL.Query().Get("topic"),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.log.Info("subscriber connected",
		zap.String("remote", r.RemoteAddr),
		zap.String("supervisor_id", s.supervisorID),
		zap.String("topic", s.topic))

	go h.writeLoop(s)
	h.readLoop(s)
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(s *subscriber) {
	defer h.remove(s)
	_ = s.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
}

// Publish queues the message for every matching subscriber. Subscribers whose
// buffer is full are skipped.
func (h *Hub) Publish(_ context.Context, topic string, msg models.NotificationMessage) error {
	data, err := json.Marshal(HubEvent{Topic: topic, Message: msg})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for s := range h.subs {
		if !s.wants(topic, msg.Recipient) {
			continue
		}
		select {
		case s.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%d slow subscribers skipped", dropped)
	}
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
