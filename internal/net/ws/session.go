package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tab-overlay/server/internal/tablist"
	"tab-overlay/server/logging"
	"tab-overlay/server/logging/network"
)

const writeWait = 5 * time.Second

// Message types written to the client.
const (
	TypeJoined      = "joined"
	TypeAdd         = "add"
	TypeRemove      = "remove"
	TypeDisplayName = "displayName"
	TypeLatency     = "latency"
	TypeGameMode    = "gameMode"
	TypeListed      = "listed"
	TypeError       = "error"
)

// Frame is one server to client message. Only the fields of its type are set.
type Frame struct {
	Type        string             `json:"type"`
	ID          *uuid.UUID         `json:"id,omitempty"`
	Entry       *tablist.Entry     `json:"entry,omitempty"`
	DisplayName *tablist.Component `json:"displayName,omitempty"`
	Latency     *int               `json:"latency,omitempty"`
	GameMode    *int               `json:"gameMode,omitempty"`
	Listed      *bool              `json:"listed,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// clientMessage is one client to server message.
type clientMessage struct {
	Type     string `json:"type"`
	Latency  int    `json:"latency"`
	Vanished bool   `json:"vanished"`
	SortKey  string `json:"sortKey"`
	Group    string `json:"group"`
	World    string `json:"world"`
	Server   string `json:"server"`
	GameMode int    `json:"gameMode"`
}

// Session is the tab list of one websocket connection. Every mutation is
// written as a JSON frame in call order.
type Session struct {
	conn      *websocket.Conn
	publisher logging.Publisher
	actor     logging.EntityRef

	mu     sync.Mutex
	broken atomic.Bool
	frames atomic.Uint64
}

func newSession(conn *websocket.Conn, publisher logging.Publisher, actor logging.EntityRef) *Session {
	return &Session{conn: conn, publisher: publisher, actor: actor}
}

// FramesWritten reports how many frames reached the connection.
func (s *Session) FramesWritten() uint64 {
	return s.frames.Load()
}

func (s *Session) write(frame Frame) {
	if s.broken.Load() {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		s.fail(frame.Type, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.fail(frame.Type, err)
		return
	}
	s.frames.Add(1)
}

// fail marks the session broken and closes the connection so the read loop
// ends and disconnects the player.
func (s *Session) fail(op string, err error) {
	if !s.broken.CompareAndSwap(false, true) {
		return
	}
	network.WriteFailed(context.Background(), s.publisher, s.actor, network.WriteFailedPayload{Op: op, Error: err.Error()})
	s.conn.Close()
}

// detach stops writing without reporting failures, once the player is
// leaving anyway.
func (s *Session) detach() {
	s.broken.Store(true)
}

func (s *Session) AddEntry(entry tablist.Entry) {
	s.write(Frame{Type: TypeAdd, ID: &entry.ID, Entry: &entry})
}

func (s *Session) RemoveEntry(id uuid.UUID) {
	s.write(Frame{Type: TypeRemove, ID: &id})
}

func (s *Session) UpdateDisplayName(id uuid.UUID, displayName *tablist.Component) {
	s.write(Frame{Type: TypeDisplayName, ID: &id, DisplayName: displayName})
}

func (s *Session) UpdateLatency(id uuid.UUID, latency int) {
	s.write(Frame{Type: TypeLatency, ID: &id, Latency: &latency})
}

func (s *Session) UpdateGameMode(id uuid.UUID, gameMode int) {
	s.write(Frame{Type: TypeGameMode, ID: &id, GameMode: &gameMode})
}

func (s *Session) UpdateListed(id uuid.UUID, listed bool) {
	s.write(Frame{Type: TypeListed, ID: &id, Listed: &listed})
}
