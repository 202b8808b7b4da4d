package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrelhq/portal/internal/observability/metrics"
	"github.com/kestrelhq/portal/internal/service"
)

const (
	boardPingInterval = 15 * time.Second
	boardWriteWait    = 5 * time.Second
	boardSendBuffer   = 16
)

type boardClient struct {
	send chan []byte
}

// BoardHub streams task board events to websocket subscribers
type BoardHub struct {
	mu             sync.Mutex
	clients        map[*boardClient]struct{}
	allowedOrigins []string
	logger         *slog.Logger
}

// NewBoardHub creates a hub accepting websocket upgrades from allowedOrigins
func NewBoardHub(allowedOrigins []string, logger *slog.Logger) *BoardHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoardHub{
		clients:        make(map[*boardClient]struct{}),
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *BoardHub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// Publish fans an event out to every subscriber; a client whose buffer is full is dropped
func (h *BoardHub) Publish(ev service.BoardEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode board event", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.removeLocked(c)
			h.logger.Debug("dropped slow board subscriber")
		}
	}
}

// Subscribers returns the number of connected clients
func (h *BoardHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *BoardHub) add(c *boardClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetBoardSubscribers(n)
}

func (h *BoardHub) remove(c *boardClient) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *BoardHub) removeLocked(c *boardClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.SetBoardSubscribers(len(h.clients))
}

// ServeHTTP handles GET /ws/hq/tasks
func (h *BoardHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	c := &boardClient{send: make(chan []byte, boardSendBuffer)}
	h.add(c)
	defer h.remove(c)

	// Reader only drains control frames and notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(boardPingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(boardWriteWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(boardWriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("board websocket closed", slog.String("error", err.Error()))
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(boardWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
