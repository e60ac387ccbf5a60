// README: WebSocket attach points for live driver and rider notifications.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"rideconnect/internal/dispatch"
	"rideconnect/internal/types"
)

type WSHandler struct {
	dispatcher *dispatch.WSDispatcher
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewWSHandler(dispatcher *dispatch.WSDispatcher, log *slog.Logger) *WSHandler {
	return &WSHandler{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mobile clients connect from app schemes, not browser origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *WSHandler) AttachDriver(c *gin.Context) {
	h.attach(c, types.ID(c.Param("id")), h.dispatcher.AttachDriver, h.dispatcher.DetachDriver)
}

func (h *WSHandler) AttachRider(c *gin.Context) {
	h.attach(c, types.ID(c.Param("id")), h.dispatcher.AttachRider, h.dispatcher.DetachRider)
}

// attach upgrades the connection and parks a reader goroutine whose only job
// is detecting the close.
func (h *WSHandler) attach(c *gin.Context, id types.ID,
	register func(types.ID, *websocket.Conn), unregister func(types.ID, *websocket.Conn)) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "id", id, "err", err)
		return
	}
	register(id, conn)
	h.log.Info("websocket attached", "id", id)

	go func() {
		defer func() {
			unregister(id, conn)
			conn.Close()
			h.log.Info("websocket detached", "id", id)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
