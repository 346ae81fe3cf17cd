package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"ecosort/internal/logger"
	"ecosort/internal/service"
)

// maxFrameSize bounds a single websocket frame; captured images arrive as data URIs.
const maxFrameSize = 16 << 20

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 4 << 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientWebsocketHandler connects a browser camera client to the hub and
// dispatches its events until it disconnects.
func ClientWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(maxFrameSize)

		hub := manager.GetHub()
		client := hub.Register(connection)
		defer hub.Unregister(client)

		for {
			messageType, message, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Client %s disconnected normally", client.ID())
				} else {
					logger.Warning("Client %s disconnected: %v", client.ID(), err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			client.HandleMessage(message)
		}
	}
}
