// Package player models connected participants and the ordered online roster.
package player

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"tab-overlay/server/internal/property"
	"tab-overlay/server/internal/tablist"
)

// Player is one connected participant. It is also a viewer: every player owns
// the tracked tab list of its own connection.
type Player struct {
	id        uuid.UUID
	name      string
	tabListID uuid.UUID
	tabList   *tablist.Tracked
	resolver  property.Resolver
	online    atomic.Bool

	mu       sync.RWMutex
	props    map[string]*property.Property
	skin     *tablist.Skin
	latency  int
	gameMode int
	world    string
	server   string
	group    string
	vanished bool
	sortKey  string
}

// Options carries the optional attributes of a new player.
type Options struct {
	TabListID uuid.UUID
	Skin      *tablist.Skin
	Latency   int
	GameMode  int
	World     string
	Server    string
	Group     string
	SortKey   string
	Resolver  property.Resolver
}

// New creates an online player writing to the given platform tab list.
func New(id uuid.UUID, name string, platform tablist.TabList, opts Options) *Player {
	tabListID := opts.TabListID
	if tabListID == uuid.Nil {
		tabListID = id
	}
	sortKey := opts.SortKey
	if sortKey == "" {
		sortKey = name
	}
	p := &Player{
		id:        id,
		name:      name,
		tabListID: tabListID,
		tabList:   tablist.NewTracked(platform),
		resolver:  opts.Resolver,
		props:     make(map[string]*property.Property),
		skin:      opts.Skin,
		latency:   opts.Latency,
		gameMode:  opts.GameMode,
		world:     opts.World,
		server:    opts.Server,
		group:     opts.Group,
		sortKey:   sortKey,
	}
	p.online.Store(true)
	return p
}

func (p *Player) ID() uuid.UUID {
	return p.id
}

func (p *Player) Name() string {
	return p.name
}

// TabListID is the identity other viewers see this player's entry under.
func (p *Player) TabListID() uuid.UUID {
	return p.tabListID
}

// TabList returns the tracked tab list of this player's connection.
func (p *Player) TabList() *tablist.Tracked {
	return p.tabList
}

func (p *Player) Online() bool {
	return p.online.Load()
}

// MarkOffline flags the player as gone before quit handlers run.
func (p *Player) MarkOffline() {
	p.online.Store(false)
}

// SetProperty binds raw text under name, reusing the existing property when
// one is already registered.
func (p *Player) SetProperty(owner, name, raw string) *property.Property {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prop, ok := p.props[name]; ok {
		prop.SetRaw(owner, raw)
		return prop
	}
	prop := property.New(owner, p.id, raw, p.resolver)
	p.props[name] = prop
	return prop
}

// Property returns the property registered under name, or nil.
func (p *Player) Property(name string) *property.Property {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.props[name]
}

// RemoveProperty drops a property, typically at feature unload.
func (p *Player) RemoveProperty(name string) {
	p.mu.Lock()
	delete(p.props, name)
	p.mu.Unlock()
}

func (p *Player) Skin() *tablist.Skin {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.skin
}

func (p *Player) Latency() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latency
}

func (p *Player) SetLatency(latency int) {
	p.mu.Lock()
	p.latency = latency
	p.mu.Unlock()
}

func (p *Player) GameMode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gameMode
}

func (p *Player) SetGameMode(mode int) {
	p.mu.Lock()
	p.gameMode = mode
	p.mu.Unlock()
}

func (p *Player) World() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.world
}

// SetWorld stores the new world and returns the previous one.
func (p *Player) SetWorld(world string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.world
	p.world = world
	return previous
}

func (p *Player) Server() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.server
}

// SetServer stores the new server and returns the previous one.
func (p *Player) SetServer(server string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.server
	p.server = server
	return previous
}

func (p *Player) Group() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.group
}

func (p *Player) SetGroup(group string) {
	p.mu.Lock()
	p.group = group
	p.mu.Unlock()
}

func (p *Player) Vanished() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vanished
}

func (p *Player) SetVanished(vanished bool) {
	p.mu.Lock()
	p.vanished = vanished
	p.mu.Unlock()
}

// SortKey is the string ranking this player in layout groups.
func (p *Player) SortKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortKey
}

func (p *Player) SetSortKey(key string) {
	p.mu.Lock()
	p.sortKey = key
	p.mu.Unlock()
}

// Entry builds the roster entry other viewers receive for this player.
func (p *Player) Entry() tablist.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return tablist.Entry{
		ID:          p.tabListID,
		Name:        p.name,
		Skin:        p.skin,
		Listed:      true,
		Latency:     p.latency,
		GameMode:    p.gameMode,
		DisplayName: tablist.NewComponent(p.name),
	}
}
