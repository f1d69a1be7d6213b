package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// The CORS middleware does not apply to websocket upgrades; origins are
// admitted here to match the HTTP surface.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RunAgentWS is the websocket variant of the run stream. The client sends
// one run request JSON per turn and receives every chunk as a separate text
// message; the connection stays open for follow-up turns, so an interrupt
// and its resume can share one socket.
//
// GET /api/agent/ws
func (h *Handler) RunAgentWS(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx := c.Request().Context()

	for {
		var req runRequest
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.LogWarn("api.ws.read_failed", "error", err)
			}

			return nil
		}

		if msg := validateRun(&req); msg != "" {
			if err := ws.WriteJSON(errorBody(msg)); err != nil {
				return nil
			}

			continue
		}

		for chunk := range h.dispatch(ctx, &req) {
			if err := ws.WriteJSON(chunk); err != nil {
				h.LogWarn("api.ws.write_failed", "error", err)
				return nil
			}
		}
	}
}
