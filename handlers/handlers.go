// Package handlers exposes the engine over HTTP: the observer/signal
// WebSocket endpoint plus health and status routes.
package handlers

import (
	"log"
	"net/http"
	"time"

	"whale-copytrader/config"
	"whale-copytrader/engine"
	"whale-copytrader/middleware"
	"whale-copytrader/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// closeUnauthorized is the application close code sent to observers that
// present a bad token, matching what dashboard clients expect.
const closeUnauthorized = 4001

const writeWait = 10 * time.Second

// Handler handles HTTP and WebSocket requests.
type Handler struct {
	cfg      *config.Config
	engine   *engine.Engine
	hub      *engine.Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(cfg *config.Config, eng *engine.Engine, hub *engine.Hub) *Handler {
	return &Handler{
		cfg:    cfg,
		engine: eng,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Observers connect from the dashboard on another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Health reports process liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// EngineStatus reports the paused flag, wallet, last balance, and activity
// counters.
func (h *Handler) EngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// WebSocket upgrades an observer connection. The observer immediately
// receives the current engine state and last known balance, then every
// broadcast event. Inbound copy_trade envelopes feed the engine; anything
// malformed is dropped with a warning and no reply.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	if !middleware.ValidObserverToken(c.Query("token")) {
		msg := websocket.FormatCloseMessage(closeUnauthorized, "Unauthorized")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		log.Printf("[WS] Rejected connection: invalid token")
		return
	}

	remote := conn.RemoteAddr().String()
	log.Printf("[WS] Client connected from %s", remote)

	// Snapshot before subscribing so the observer is never left blank.
	state, balance := h.engine.ConnectSnapshot()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(state); err != nil {
		conn.Close()
		return
	}
	if balance != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(balance); err != nil {
			conn.Close()
			return
		}
	}

	sub := h.hub.Subscribe()
	done := make(chan struct{})

	go func() {
		defer conn.Close()
		for {
			select {
			case data, ok := <-sub:
				if !ok {
					// Hub closed: server shutting down.
					msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
					conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := models.ParseIncoming(raw)
		if err != nil {
			log.Printf("[WS] Dropping message from %s: %v", remote, err)
			continue
		}
		h.engine.OnSignal(msg.Trade, *msg.Config)
	}

	close(done)
	h.hub.Unsubscribe(sub)
	conn.Close()
	log.Printf("[WS] Client disconnected: %s", remote)
}
