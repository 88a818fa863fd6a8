// Realtime websocket endpoint.
//
// GET /api/ws upgrades to a websocket, sends the init snapshot and then
// pushes state-change events. The only client-to-server traffic honored is
// the liveness ping, answered with a pong; everything else is ignored.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sushiaki/sora-backend/internal/http/middleware"
	"github.com/sushiaki/sora-backend/internal/ws"
)

const (
	wsReadLimit   = 4 << 10
	wsPongTimeout = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is a separate origin in development; CORS policy is
	// enforced at the router level for the REST surface.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSHandler serves the dashboard realtime channel.
type WSHandler struct {
	Hub *ws.Hub
}

// NewWSHandler binds the upgrade endpoint to the fan-out hub.
func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{Hub: hub}
}

// Serve godoc
// @ID          dashboardWS
// @Summary     Realtime dashboard feed
// @Description Websocket upgrade. The first frame is an init snapshot; {"type":"ping"} is answered with {"type":"pong"}.
// @Tags        Realtime
// @Router      /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote its own response.
		middleware.LoggerFrom(c).Warn().Err(err).Str("code", ErrCodeUpgradeFailed).Msg("websocket upgrade failed")
		return
	}

	obs := ws.NewConn(conn)
	h.Hub.Register(obs)
	middleware.WSClients.Inc()
	defer func() {
		h.Hub.Unregister(obs)
		middleware.WSClients.Dec()
	}()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout)) //nolint:errcheck

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout)) //nolint:errcheck

		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type == "ping" {
			if err := obs.Send([]byte(`{"type":"pong"}`)); err != nil {
				return
			}
		}
	}
}
