// Package ws serves viewers over websockets: entry mutations go out as JSON
// frames and session events come back as client messages.
package ws

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tab-overlay/server/internal/hub"
	"tab-overlay/server/internal/telemetry"
	"tab-overlay/server/logging"
	"tab-overlay/server/logging/network"
)

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

type Handler struct {
	hub       *hub.Hub
	logger    telemetry.Logger
	publisher logging.Publisher
	upgrader  websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Handler{
		hub:       h,
		logger:    logger,
		publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the request and joins a player named by the "name" query
// parameter. Optional parameters: id, group, world, server, sortKey, latency.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	name := query.Get("name")
	if name == "" {
		nethttp.Error(w, "missing name", nethttp.StatusBadRequest)
		return
	}
	req := hub.JoinRequest{
		Name:    name,
		Group:   query.Get("group"),
		World:   query.Get("world"),
		Server:  query.Get("server"),
		SortKey: query.Get("sortKey"),
	}
	if raw := query.Get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			nethttp.Error(w, "invalid id", nethttp.StatusBadRequest)
			return
		}
		req.ID = id
	}
	if raw := query.Get("latency"); raw != "" {
		latency, err := strconv.Atoi(raw)
		if err != nil {
			nethttp.Error(w, "invalid latency", nethttp.StatusBadRequest)
			return
		}
		req.Latency = latency
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", name, err)
		return
	}
	defer conn.Close()

	actor := logging.PlayerRef(name)
	session := newSession(conn, h.publisher, actor)
	p, err := h.hub.Join(req, session)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		conn.WriteMessage(websocket.CloseMessage, message)
		return
	}
	network.ViewerConnected(context.Background(), h.publisher, actor, network.ViewerConnectedPayload{RemoteAddr: r.RemoteAddr})
	id := p.ID()
	session.write(Frame{Type: TypeJoined, ID: &id})

	h.serve(id, name, conn, session)
}

func (h *Handler) serve(id uuid.UUID, name string, conn *websocket.Conn, session *Session) {
	reason := "disconnected"
	defer func() {
		session.detach()
		if err := h.hub.Disconnect(id, reason); err != nil {
			h.logger.Printf("disconnect of %s failed: %v", name, err)
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "closed"
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", name, err)
			continue
		}

		if err := h.apply(id, msg); err != nil {
			session.write(Frame{Type: TypeError, Error: err.Error()})
		}
	}
}

func (h *Handler) apply(id uuid.UUID, msg clientMessage) error {
	switch msg.Type {
	case "latency":
		return h.hub.UpdateLatency(id, msg.Latency)
	case "vanish":
		return h.hub.SetVanished(id, msg.Vanished)
	case "sortKey":
		return h.hub.SetSortKey(id, msg.SortKey)
	case "group":
		return h.hub.SetGroup(id, msg.Group, msg.SortKey)
	case "world":
		return h.hub.ChangeWorld(id, msg.World)
	case "server":
		return h.hub.ChangeServer(id, msg.Server)
	case "gameMode":
		return h.hub.SetGameMode(id, msg.GameMode)
	case "clear":
		return h.hub.TabListClear(id)
	default:
		h.logger.Printf("unknown message type %q from %s", msg.Type, id)
		return nil
	}
}
