// Package ws bridges the durable event bus to browser WebSocket clients.
// Unlike a simpler in-memory fan-out hub with a single broadcast channel
// and no replay, each connection here opens its own events.Subscription
// so a client reconnecting after a drop can ask for full replay instead
// of only whatever arrives after it reattaches.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/gaze-engine/internal/auth"
	"github.com/your-org/gaze-engine/internal/events"
	"github.com/your-org/gaze-engine/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub upgrades WebSocket connections and streams pipeline/job events to
// each client from the durable bus.
type Hub struct {
	bus         *events.Bus
	bearerToken string
	log         *slog.Logger
}

func NewHub(bus *events.Bus, bearerToken string, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{bus: bus, bearerToken: bearerToken, log: log}
}

// HandleWS handles a WebSocket upgrade request. Query parameters:
// media_id restricts the stream to one item's events, replay=1 requests
// full replay from the start of the event stream instead of only new
// events.
func (h *Hub) HandleWS(c *gin.Context) {
	token := auth.WSToken(c.Request)
	if !auth.ValidWSToken(h.bearerToken, token) {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	observability.WSConnections.Inc()
	defer observability.WSConnections.Dec()

	mediaID := c.Query("media_id")
	replay := c.Query("replay") == "1" || c.Query("replay") == "true"

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var sub *events.Subscription
	if mediaID != "" {
		sub, err = h.bus.SubscribeMedia(ctx, mediaID, replay)
	} else {
		sub, err = h.bus.Subscribe(ctx, replay)
	}
	if err != nil {
		h.log.Error("ws subscribe failed", "error", err)
		return
	}
	defer sub.Close()

	go h.detectClose(conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// detectClose blocks on ReadMessage purely to notice when the client
// closes the connection; incoming client messages are not processed.
func (h *Hub) detectClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
