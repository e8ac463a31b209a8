package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/rental-manager/backend/internal/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = wsPongWait * 9 / 10
	wsMaxMessageSize = 64 << 10
)

// Sync notifications carry no credentials and the stream is behind bearer-token
// auth, so cross-origin dashboards are allowed to subscribe.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// session ties one websocket connection to its hub client.
type session struct {
	conn   *websocket.Conn
	client *ws.Client
	hub    *ws.Hub
}

// WebSocketUpgrade subscribes the caller to sync, scheduler and booking events.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
			return
		}

		s := &session{conn: conn, client: ws.NewClient(), hub: hub}
		hub.Register(s.client)

		go s.writeLoop()
		go s.readLoop()
	}
}

// writeLoop is the only goroutine that writes to the connection.
func (s *session) writeLoop() {
	ping := time.NewTicker(wsPingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, open := <-s.client.Send():
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) readLoop() {
	defer func() {
		s.hub.Unregister(s.client)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(wsMaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket closed unexpectedly: %v", err)
			}
			return
		}
		s.reply(clientReply(data))
	}
}

// reply queues a message for this client only; the hub hands it to writeLoop.
func (s *session) reply(msg ws.Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket reply: %v", err)
		return
	}
	s.hub.SendTo(s.client, data)
}

// clientReply answers a client command: ping gets pong, anything else an error.
func clientReply(data []byte) ws.Message {
	var cmd struct {
		Type ws.MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "invalid_message", Message: "Message is not valid JSON"})
	}
	if cmd.Type == ws.TypePing {
		return ws.NewMessage(ws.TypePong, nil)
	}
	return ws.NewMessage(ws.TypeError, ws.ErrorPayload{
		Code:         "unknown_type",
		Message:      "Unsupported message type",
		OriginalType: string(cmd.Type),
	})
}
