package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client connects from a different origin; auth happens via
	// the bearer token before the upgrade.
	CheckOrigin: func(*http.Request) bool { return true },
}

// outboundBuffer bounds how far a slow reader may fall behind before frames
// are dropped.
const outboundBuffer = 32

// wsSession adapts one websocket connection to the hub's Session interface.
// A single writer goroutine drains out; Deliver never blocks.
type wsSession struct {
	userID string
	conn   *websocket.Conn
	out    chan Envelope
	once   sync.Once
	done   chan struct{}
}

func (s *wsSession) UserID() string { return s.userID }

// Deliver queues a frame for the writer. Frames to a full or closed session
// are dropped.
func (s *wsSession) Deliver(env Envelope) {
	select {
	case s.out <- env:
	case <-s.done:
	default:
		log.Printf("chat: dropping frame %s for slow session of user %s", env.Event, s.userID)
	}
}

func (s *wsSession) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *wsSession) writePump() {
	for {
		select {
		case env := <-s.out:
			if err := s.conn.WriteJSON(env); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// inboundFrame is a client frame before its data payload is decoded.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeWS upgrades the request and runs the session until the client
// disconnects. userID is the authenticated caller; client frames never
// override it.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chat: upgrade: %v", err)
		return
	}

	s := &wsSession{
		userID: userID,
		conn:   conn,
		out:    make(chan Envelope, outboundBuffer),
		done:   make(chan struct{}),
	}
	go s.writePump()

	defer func() {
		hub.Leave(s)
		s.close()
	}()

	ctx := context.Background()
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Event {
		case EventJoinMission:
			var data struct {
				MissionID string `json:"missionId"`
			}
			if err := json.Unmarshal(frame.Data, &data); err != nil || data.MissionID == "" {
				continue
			}
			hub.Join(data.MissionID, s)

		case EventSendMessage:
			var params SendParams
			if err := json.Unmarshal(frame.Data, &params); err != nil {
				continue
			}
			if params.MissionID == "" || params.Content == "" || params.ReceiverID == "" {
				s.Deliver(Envelope{Event: EventMessageError, Data: map[string]string{"error": "Invalid message"}})
				continue
			}
			hub.Send(ctx, s, params)

		case EventMarkRead:
			var data struct {
				MissionID string `json:"missionId"`
			}
			if err := json.Unmarshal(frame.Data, &data); err != nil || data.MissionID == "" {
				continue
			}
			hub.MarkRead(ctx, s, data.MissionID)

		default:
			log.Printf("chat: unknown event %q from user %s", frame.Event, userID)
		}
	}
}
