// Package hub owns the connected players and turns session events into
// feature dispatches.
package hub

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"tab-overlay/server/internal/config"
	"tab-overlay/server/internal/core"
	"tab-overlay/server/internal/feature"
	"tab-overlay/server/internal/layout"
	"tab-overlay/server/internal/pingspoof"
	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/property"
	"tab-overlay/server/internal/tablist"
	"tab-overlay/server/internal/telemetry"
	"tab-overlay/server/logging"
	logginglayout "tab-overlay/server/logging/layout"
	"tab-overlay/server/logging/lifecycle"
)

var (
	// ErrUnknownPlayer is returned for ids that are not online.
	ErrUnknownPlayer = errors.New("hub: unknown player")
	// ErrNameTaken is returned when a name is already online.
	ErrNameTaken = errors.New("hub: name already online")
)

const metricPlayersOnline = "players_online"

// Config wires a Hub to its collaborators.
type Config struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

// JoinRequest describes a connecting player. A nil ID is generated.
type JoinRequest struct {
	ID       uuid.UUID
	Name     string
	Group    string
	World    string
	Server   string
	SortKey  string
	Latency  int
	GameMode int
	Skin     *tablist.Skin
}

// Hub owns the shared context, the feature set built from configuration and
// the live players.
type Hub struct {
	ctx     *core.Context
	values  *property.Values
	metrics telemetry.Metrics

	mu       sync.Mutex
	settings *config.Config
	layout   *layout.Manager
}

// New creates a hub with an empty feature set. Call Apply to install one.
func New(cfg Config) *Hub {
	values := property.NewValues()
	values.Set("online", "0")
	return &Hub{
		ctx: core.New(core.Context{
			Resolver:  values,
			Logger:    cfg.Logger,
			Publisher: cfg.Publisher,
		}),
		values:  values,
		metrics: cfg.Metrics,
	}
}

// Context exposes the shared collaborators.
func (h *Hub) Context() *core.Context {
	return h.ctx
}

// Values exposes the placeholder table.
func (h *Hub) Values() *property.Values {
	return h.values
}

// Layout returns the installed layout manager, or nil.
func (h *Hub) Layout() *layout.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.layout
}

// Settings returns the configuration last applied.
func (h *Hub) Settings() *config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settings
}

// Apply unloads every feature, rebuilds the feature set from cfg and loads
// it again for the players already online.
func (h *Hub) Apply(cfg *config.Config) {
	if cfg == nil {
		cfg = config.Default()
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	features := h.ctx.Features
	features.Unload()
	for _, name := range features.Names() {
		features.Unregister(name)
	}

	for _, d := range cfg.Diagnostics {
		h.ctx.Logger.Printf("config %s", d)
		logginglayout.ConfigDiagnostic(context.Background(), h.ctx.Publisher, logginglayout.ConfigDiagnosticPayload{
			Path:     d.Path,
			Value:    d.Value,
			Fallback: d.Fallback,
			Reason:   d.Reason,
		})
	}

	if cfg.PingSpoof {
		features.Register(pingspoof.Key, pingspoof.New(h.ctx.Players, cfg.PingSpoofValue))
	}
	h.layout = nil
	if cfg.LayoutEnabled {
		h.layout = layout.NewManager(h.ctx, cfg.Layout, nil)
		features.Register(layout.Key, h.layout)
	}
	h.settings = cfg
	features.Load()

	lifecycle.Reloaded(context.Background(), h.ctx.Publisher, lifecycle.ReloadedPayload{Features: features.Names()})
}

// Shutdown unloads every feature.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx.Features.Unload()
}

// Join registers a player writing to platform. Before join handlers run, the
// player and everyone online exchange their roster entries the way the
// vendor would.
func (h *Hub) Join(req JoinRequest, platform tablist.TabList) (*player.Player, error) {
	for _, other := range h.ctx.Players.Online() {
		if other.Name() == req.Name {
			return nil, ErrNameTaken
		}
	}
	id := req.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	p := player.New(id, req.Name, platform, player.Options{
		Skin:     req.Skin,
		Latency:  req.Latency,
		GameMode: req.GameMode,
		World:    req.World,
		Server:   req.Server,
		Group:    req.Group,
		SortKey:  req.SortKey,
		Resolver: h.values,
	})
	p.TabList().SetHooks(h.ctx.Features.Hooks(p))
	h.values.SetFor(id, "player", p.Name())
	h.values.SetFor(id, "group", p.Group())
	h.values.SetFor(id, "world", p.World())
	h.values.SetFor(id, "server", p.Server())

	online := h.ctx.Players.Online()
	joined := p.Entry()
	for _, other := range online {
		other.TabList().Deliver(&tablist.PlayerInfo{Actions: tablist.ActionsAll, Records: []tablist.Entry{joined}})
	}
	roster := make([]tablist.Entry, 0, len(online)+1)
	for _, other := range online {
		roster = append(roster, other.Entry())
	}
	roster = append(roster, joined)
	p.TabList().Deliver(&tablist.PlayerInfo{Actions: tablist.ActionsAll, Records: roster})

	h.values.Set("online", strconv.Itoa(len(online)+1))
	h.ctx.Features.OnJoin(p)
	count := h.updateOnline()

	lifecycle.PlayerJoined(context.Background(), h.ctx.Publisher, logging.PlayerRef(p.Name()), lifecycle.PlayerJoinedPayload{
		Online:  count,
		SortKey: p.SortKey(),
		Layout:  h.layoutName(p),
	}, nil)
	return p, nil
}

// Disconnect runs quit handlers for id and removes its roster entry from
// every remaining viewer.
func (h *Hub) Disconnect(id uuid.UUID, reason string) error {
	p := h.ctx.Players.Get(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	h.ctx.Features.OnQuit(p)
	for _, other := range h.ctx.Players.Online() {
		other.TabList().Deliver(&tablist.PlayerInfo{Remove: true, Records: []tablist.Entry{{ID: p.TabListID()}}})
	}
	h.values.Forget(id)
	count := h.updateOnline()

	lifecycle.PlayerQuit(context.Background(), h.ctx.Publisher, logging.PlayerRef(p.Name()), lifecycle.PlayerQuitPayload{
		Reason: reason,
		Online: count,
	}, nil)
	return nil
}

// Player returns the online player with id, or nil.
func (h *Hub) Player(id uuid.UUID) *player.Player {
	return h.ctx.Players.Get(id)
}

func (h *Hub) lookup(id uuid.UUID) (*player.Player, error) {
	p := h.ctx.Players.Get(id)
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	return p, nil
}

// UpdateLatency stores a measured latency, broadcasts it like the vendor
// does and refreshes the features mirroring it.
func (h *Hub) UpdateLatency(id uuid.UUID, latency int) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	p.SetLatency(latency)
	record := tablist.Entry{ID: p.TabListID(), Latency: latency}
	for _, viewer := range h.ctx.Players.Online() {
		viewer.TabList().Deliver(&tablist.PlayerInfo{Actions: tablist.ActionUpdateLatency, Records: []tablist.Entry{record}})
	}
	h.ctx.Features.Refresh(p, false)
	return nil
}

func (h *Hub) SetVanished(id uuid.UUID, vanished bool) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	if p.Vanished() == vanished {
		return nil
	}
	p.SetVanished(vanished)
	h.ctx.Features.OnVanishStatusChange(p)
	return nil
}

// SetGroup changes the group and, when key is not empty, the sort key.
func (h *Hub) SetGroup(id uuid.UUID, group, key string) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	p.SetGroup(group)
	if key != "" {
		p.SetSortKey(key)
	}
	h.values.SetFor(id, "group", group)
	h.ctx.Features.OnGroupChange(p)
	h.ctx.Features.Refresh(p, false)
	return nil
}

// SetSortKey reorders the player in every layout group.
func (h *Hub) SetSortKey(id uuid.UUID, key string) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	if m := h.Layout(); m != nil {
		m.UpdateSortKey(p, key)
		return nil
	}
	p.SetSortKey(key)
	return nil
}

func (h *Hub) SetGameMode(id uuid.UUID, mode int) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	p.SetGameMode(mode)
	record := tablist.Entry{ID: p.TabListID(), GameMode: mode}
	for _, viewer := range h.ctx.Players.Online() {
		viewer.TabList().Deliver(&tablist.PlayerInfo{Actions: tablist.ActionUpdateGameMode, Records: []tablist.Entry{record}})
	}
	h.ctx.Features.OnGameModeChange(p)
	return nil
}

// ChangeWorld moves the player and re-evaluates its conditions.
func (h *Hub) ChangeWorld(id uuid.UUID, world string) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	h.values.SetFor(id, "world", world)
	h.ctx.Features.OnWorldChange(id, world)
	h.ctx.Features.Refresh(p, false)
	return nil
}

// ChangeServer moves the player and re-evaluates its conditions.
func (h *Hub) ChangeServer(id uuid.UUID, server string) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	h.values.SetFor(id, "server", server)
	h.ctx.Features.OnServerChange(id, server)
	h.ctx.Features.Refresh(p, false)
	return nil
}

// TabListClear reports that the client of id dropped its whole tab list.
func (h *Hub) TabListClear(id uuid.UUID) error {
	p, err := h.lookup(id)
	if err != nil {
		return err
	}
	h.ctx.Features.OnTabListClear(p)
	return nil
}

// RunTicker refreshes every feature for every player until ctx is done.
func (h *Hub) RunTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = config.DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.ctx.Features.RefreshAll(false)
		}
	}
}

// PlayerDiagnostics is one row of the diagnostics snapshot.
type PlayerDiagnostics struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortKey  string `json:"sortKey"`
	Latency  int    `json:"latency"`
	Vanished bool   `json:"vanished,omitempty"`
	Layout   string `json:"layout,omitempty"`
	Entries  int    `json:"entries"`
	Sent     uint64 `json:"mutationsSent"`
}

// Diagnostics summarizes the hub state.
type Diagnostics struct {
	Players  []PlayerDiagnostics   `json:"players"`
	Features []string              `json:"features"`
	Usage    []feature.UsageSample `json:"usage"`
	Failures uint64                `json:"handlerFailures"`
}

// DiagnosticsSnapshot returns the current players in join order plus the
// feature usage totals.
func (h *Hub) DiagnosticsSnapshot() Diagnostics {
	online := h.ctx.Players.Online()
	out := Diagnostics{
		Players:  make([]PlayerDiagnostics, 0, len(online)),
		Features: h.ctx.Features.Names(),
		Usage:    h.ctx.Features.Usage().Snapshot(),
		Failures: h.ctx.Features.Failures(),
	}
	for _, p := range online {
		out.Players = append(out.Players, PlayerDiagnostics{
			ID:       p.ID().String(),
			Name:     p.Name(),
			SortKey:  p.SortKey(),
			Latency:  p.Latency(),
			Vanished: p.Vanished(),
			Layout:   h.layoutName(p),
			Entries:  p.TabList().Len(),
			Sent:     p.TabList().MutationsSent(),
		})
	}
	return out
}

func (h *Hub) layoutName(p *player.Player) string {
	m := h.Layout()
	if m == nil {
		return ""
	}
	if view := m.View(p); view != nil {
		return view.Pattern().Name()
	}
	return ""
}

func (h *Hub) updateOnline() int {
	count := h.ctx.Players.Len()
	h.values.Set("online", strconv.Itoa(count))
	if h.metrics != nil {
		h.metrics.Store(metricPlayersOnline, uint64(count))
	}
	return count
}
