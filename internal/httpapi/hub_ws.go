package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mghunch/dot-traffic/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The Hub UI is served from its own origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleHubWS speaks the same protocol as POST /hub, one chat request per
// text frame. The session id rides along in each frame so the client keeps
// its thread across frames.
func (a *api) handleHubWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		a.deps.Logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.deps.Logger.Error("websocket read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var chat hub.Request
		if err := json.Unmarshal(data, &chat); err != nil || chat.Content == "" {
			conn.WriteJSON(map[string]string{"error": "invalid payload"})
			continue
		}

		decision, sessionID, err := a.deps.Hub.Chat(req.Context(), chat)
		if err != nil {
			a.deps.Logger.Error("hub chat failed", "error", err)
			conn.WriteJSON(map[string]string{"error": "hub chat failed"})
			continue
		}
		if err := conn.WriteJSON(hubResponse{RoutingDecision: decision, SessionID: sessionID}); err != nil {
			a.deps.Logger.Error("websocket write failed", "error", err)
			return
		}
	}
}
