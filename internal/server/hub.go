package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The server binds to loopback by default.
	},
}

// Hub tracks WebSocket clients and the prompts waiting for an answer from
// one of them. It is the Prompter of a served coordinator.
type Hub struct {
	logger *slog.Logger

	clients   map[*client]bool
	clientsMu sync.RWMutex

	prompts   map[string]*pendingPrompt
	promptsMu sync.Mutex

	// onConnect produces the frames a new client receives first.
	onConnect func() []*Message
}

type pendingPrompt struct {
	message string
	answer  chan bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub creates a hub with no clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]bool),
		prompts: make(map[string]*pendingPrompt),
	}
}

// Confirm broadcasts a prompt.open frame and waits for the first
// prompt.answer carrying its id, or for ctx. Clients that connect while it
// is open receive it too.
func (h *Hub) Confirm(ctx context.Context, message string) bool {
	id := uuid.NewString()
	p := &pendingPrompt{message: message, answer: make(chan bool, 1)}
	h.promptsMu.Lock()
	h.prompts[id] = p
	h.promptsMu.Unlock()

	h.send(TypePromptOpen, PromptOpenPayload{ID: id, Message: message})

	var confirmed bool
	select {
	case confirmed = <-p.answer:
	case <-ctx.Done():
	}

	h.promptsMu.Lock()
	delete(h.prompts, id)
	h.promptsMu.Unlock()

	h.send(TypePromptClosed, PromptClosedPayload{ID: id, Confirmed: confirmed})
	return confirmed
}

// answer delivers a client's reply. It reports false for unknown ids.
func (h *Hub) answer(id string, confirm bool) bool {
	h.promptsMu.Lock()
	p, ok := h.prompts[id]
	if ok {
		delete(h.prompts, id)
	}
	h.promptsMu.Unlock()
	if !ok {
		return false
	}
	p.answer <- confirm
	return true
}

func (h *Hub) openPrompts() []*Message {
	h.promptsMu.Lock()
	defer h.promptsMu.Unlock()
	out := make([]*Message, 0, len(h.prompts))
	for id, p := range h.prompts {
		msg, err := NewMessage(TypePromptOpen, PromptOpenPayload{ID: id, Message: p.message})
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// send broadcasts payload under msgType to every client.
func (h *Hub) send(msgType string, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error("encode broadcast", "type", msgType, "err", err)
		return
	}
	h.broadcast(msg)
}

// broadcast sends a message to all connected clients.
func (h *Hub) broadcast(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, skip.
		}
	}
}

// serveWS upgrades an HTTP connection to WebSocket.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	var greeting []*Message
	if h.onConnect != nil {
		greeting = h.onConnect()
	}
	greeting = append(greeting, h.openPrompts()...)
	for _, msg := range greeting {
		c.enqueue(msg)
	}

	h.clientsMu.Lock()
	h.clients[c] = true
	h.clientsMu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) removeClient(c *client) {
	h.clientsMu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.clientsMu.Unlock()
	if ok {
		close(c.send)
	}
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.clientsMu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()
	for _, c := range clients {
		c.conn.Close()
	}
}

func (c *client) enqueue(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "err", err)
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *client) handleMessage(raw []byte) {
	_, answer, err := ValidateClientMessage(raw)
	if err != nil {
		c.sendError(ErrInvalidMessage, err.Error())
		return
	}
	if !c.hub.answer(answer.ID, answer.Confirm) {
		c.sendError(ErrPromptNotFound, "no open prompt with id "+answer.ID)
	}
}

func (c *client) sendError(code, message string) {
	msg, err := NewMessage(TypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
