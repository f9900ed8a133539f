package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livemap/internal/tracker"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// wsHub pushes tracker state to every connected map client. Change
// notifications are coalesced; the run loop sends one snapshot per burst.
type wsHub struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
	api     *api
	dirty   chan struct{}

	mu      sync.Mutex
	clients map[string]*wsClient
}

func newHub(t *tracker.Tracker, logger *slog.Logger) *wsHub {
	return &wsHub{
		tracker: t,
		logger:  logger,
		dirty:   make(chan struct{}, 1),
		clients: make(map[string]*wsClient),
	}
}

// notify never blocks, so it is safe to call from tracker callbacks.
func (h *wsHub) notify() {
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

func (h *wsHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.dirty:
			if data := h.stateMessage(); data != nil {
				h.broadcast(data)
			}
		}
	}
}

// stateMessage returns nil when the snapshot cannot be encoded.
func (h *wsHub) stateMessage() []byte {
	s := h.tracker.Snapshot()
	data, err := encode(Message{Type: msgState, State: &s})
	if err != nil {
		h.logger.Error("dropping state broadcast", "action", "ws", "error", err)
		return nil
	}
	return data
}

func (h *wsHub) sendNotice(c *wsClient, notice string) {
	data, err := encode(Message{Type: msgNotice, Notice: notice})
	if err != nil {
		h.logger.Error("dropping notice", "action", "ws", "client", c.id, "error", err)
		return
	}
	_ = c.write(data)
}

func (h *wsHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade error", "action", "ws", "error", err)
		return
	}
	c := &wsClient{id: uuid.NewString(), conn: conn}
	h.add(c)
	h.logger.Info("map client connected", "action", "ws", "client", c.id)

	// current state so the map can render immediately
	if data := h.stateMessage(); data != nil {
		_ = c.write(data)
	}
	go h.readPump(c)
}

func (h *wsHub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
}

func (h *wsHub) broadcast(data []byte) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.logger.Debug("dropping map client", "action", "ws", "client", c.id, "error", err)
			_ = c.conn.Close()
			h.remove(c)
		}
	}
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}

func (h *wsHub) readPump(c *wsClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Info("map client disconnected", "action", "ws", "client", c.id)
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			h.sendNotice(c, "invalid message")
			continue
		}
		if notice := h.handle(m); notice != "" {
			h.sendNotice(c, notice)
		}
	}
}

// handle runs one client command and returns a notice for the sender, if any.
func (h *wsHub) handle(m Message) string {
	switch m.Type {
	case msgRecord:
		if err := h.tracker.RecordPosition(); err != nil {
			return err.Error()
		}
	case msgClear:
		h.tracker.ClearPositions()
	case msgSettle:
		if err := h.api.settle(context.Background(), m.Center, m.Zoom); err != nil {
			return err.Error()
		}
	case msgTogglePanel:
		h.tracker.TogglePanel()
	case msgLocation:
		if m.Location == nil {
			return "missing location"
		}
		if err := h.api.report(*m.Location); err != nil {
			return err.Error()
		}
	default:
		return "unknown command " + m.Type
	}
	return ""
}
