package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nearplay/duelsync/internal/platform/id"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Relay pairs exactly two websocket clients per room and forwards binary
// frames between them. It assigns each member a fresh endpoint id on every
// join, so a client that drops and rejoins shows up under a new identity —
// the exact condition the battle core's reconnection detection exists for.
type Relay struct {
	log *logrus.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	members [2]*member
}

type member struct {
	endpointID string
	conn       *websocket.Conn
	writeMu    sync.Mutex
}

// NewRelay creates an empty relay.
func NewRelay(log *logrus.Logger) *Relay {
	if log == nil {
		log = logrus.New()
	}
	return &Relay{
		log:   log,
		rooms: make(map[string]*room),
	}
}

// Handler upgrades requests and joins them to the room named by the "room"
// query parameter.
func (r *Relay) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		roomName := req.URL.Query().Get("room")
		if roomName == "" {
			http.Error(w, "room is required", http.StatusBadRequest)
			return
		}

		socket, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			r.log.WithError(err).Warn("websocket upgrade")
			return
		}

		if err := r.join(roomName, socket); err != nil {
			r.log.WithError(err).WithField("room", roomName).Warn("join refused")
			_ = socket.Close()
		}
	})
}

func (r *Relay) join(roomName string, socket *websocket.Conn) error {
	endpointID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("assign endpoint id: %w", err)
	}
	joined := &member{endpointID: endpointID, conn: socket}

	r.mu.Lock()
	rm := r.rooms[roomName]
	if rm == nil {
		rm = &room{}
		r.rooms[roomName] = rm
	}
	slot := -1
	for i, m := range rm.members {
		if m == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		r.mu.Unlock()
		return fmt.Errorf("room %s is full", roomName)
	}
	rm.members[slot] = joined
	peer := rm.members[1-slot]
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"room":     roomName,
		"endpoint": endpointID,
	}).Info("member joined")

	if peer != nil {
		// Announce each side to the other. Each member learns the PEER's
		// endpoint id, which is the identity it addresses frames to.
		r.announce(joined, control{Event: controlConnected, EndpointID: peer.endpointID})
		r.announce(peer, control{Event: controlConnected, EndpointID: joined.endpointID})
	}

	go r.forward(roomName, slot, joined)
	return nil
}

// forward pumps frames from one member to its peer until the read fails.
func (r *Relay) forward(roomName string, slot int, m *member) {
	defer func() {
		_ = m.conn.Close()
		r.leave(roomName, slot, m)
	}()

	m.conn.SetReadLimit(maxMessageSize)
	if err := m.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		r.log.WithError(err).Warn("set read deadline")
	}
	m.conn.SetPongHandler(func(string) error {
		return m.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Clients drive the keepalive; their pings refresh our deadline.
	m.conn.SetPingHandler(func(message string) error {
		if err := m.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		return m.conn.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(writeWait))
	})

	for {
		messageType, payload, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		r.mu.Lock()
		var peer *member
		if rm := r.rooms[roomName]; rm != nil {
			peer = rm.members[1-slot]
		}
		r.mu.Unlock()
		if peer == nil {
			continue
		}

		peer.writeMu.Lock()
		err = peer.conn.WriteMessage(websocket.BinaryMessage, payload)
		peer.writeMu.Unlock()
		if err != nil {
			r.log.WithError(err).Debug("forward write")
		}
	}
}

func (r *Relay) leave(roomName string, slot int, m *member) {
	r.mu.Lock()
	var peer *member
	rm := r.rooms[roomName]
	if rm != nil && rm.members[slot] == m {
		rm.members[slot] = nil
		peer = rm.members[1-slot]
		if peer == nil {
			delete(r.rooms, roomName)
		}
	}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"room":     roomName,
		"endpoint": m.endpointID,
	}).Info("member left")

	if peer != nil {
		r.announce(peer, control{Event: controlDisconnected, Reason: "peer left"})
	}
}

func (r *Relay) announce(m *member, frame control) {
	payload, err := json.Marshal(frame)
	if err != nil {
		r.log.WithError(err).Warn("marshal control frame")
		return
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		r.log.WithError(err).Warn("set write deadline")
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		r.log.WithError(err).Debug("announce write")
	}
}

func unmarshalControl(payload []byte, frame *control) error {
	return json.Unmarshal(payload, frame)
}
