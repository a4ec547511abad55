// Package feature dispatches lifecycle and packet events to pluggable
// features. A feature opts into an event by implementing the matching narrow
// interface; the registry sorts features into per-event lists when they are
// registered.
package feature

import (
	"github.com/google/uuid"

	"tab-overlay/server/internal/player"
)

// Feature is anything that can be registered.
type Feature interface {
	Name() string
}

type Loadable interface {
	Load()
}

type Unloadable interface {
	Unload()
}

type JoinListener interface {
	OnJoin(p *player.Player)
}

type QuitListener interface {
	OnQuit(p *player.Player)
}

type GroupListener interface {
	OnGroupChange(p *player.Player)
}

type GameModeListener interface {
	OnGameModeChange(p *player.Player)
}

type WorldSwitchListener interface {
	OnWorldChange(p *player.Player, from, to string)
}

type ServerSwitchListener interface {
	OnServerChange(p *player.Player, from, to string)
}

type VanishListener interface {
	OnVanishStatusChange(p *player.Player)
}

// TabListClearListener is told when a viewer's client dropped every entry.
type TabListClearListener interface {
	OnTabListClear(viewer *player.Player)
}

// EntryAddListener observes vendor entry adds on their way to a viewer.
type EntryAddListener interface {
	OnEntryAdd(viewer *player.Player, id uuid.UUID, name string)
}

// LatencyListener rewrites the latency of an outgoing entry. Listeners run in
// registration order, each receiving the previous output.
type LatencyListener interface {
	OnLatencyChange(viewer *player.Player, id uuid.UUID, latency int) int
}

// HideEntryListener rewrites the listed flag of an outgoing entry. Listeners
// chain like LatencyListener.
type HideEntryListener interface {
	ShouldHideEntry(viewer *player.Player, id uuid.UUID, listed bool) bool
}

// Refreshable is refreshed for every online player on each refresh pass.
type Refreshable interface {
	Feature
	RefreshDisplayName() string
	Refresh(p *player.Player, force bool)
}

// CustomThreaded features run their handlers on a private FIFO thread.
type CustomThreaded interface {
	Thread() *Thread
}

// Category groups handler timings.
type Category string

const (
	CategoryLoad          Category = "load"
	CategoryUnload        Category = "unload"
	CategoryJoin          Category = "player_join"
	CategoryQuit          Category = "player_quit"
	CategoryGroupChange   Category = "group_change"
	CategoryGameMode      Category = "gamemode_change"
	CategoryWorldSwitch   Category = "world_switch"
	CategoryServerSwitch  Category = "server_switch"
	CategoryVanishChange  Category = "vanish_change"
	CategoryTabListClear  Category = "tablist_clear"
	CategoryEntryAdd      Category = "entry_add"
	CategoryLatencyChange Category = "ping_change"
	CategoryHideEntry     Category = "hide_entry_change"
	CategoryRefresh       Category = "refresh"
)

// capabilities lists the event interfaces f implements, for diagnostics.
func capabilities(f Feature) []string {
	var caps []string
	add := func(ok bool, name string) {
		if ok {
			caps = append(caps, name)
		}
	}
	_, ok := f.(Loadable)
	add(ok, "load")
	_, ok = f.(Unloadable)
	add(ok, "unload")
	_, ok = f.(JoinListener)
	add(ok, "join")
	_, ok = f.(QuitListener)
	add(ok, "quit")
	_, ok = f.(GroupListener)
	add(ok, "group")
	_, ok = f.(GameModeListener)
	add(ok, "gamemode")
	_, ok = f.(WorldSwitchListener)
	add(ok, "world")
	_, ok = f.(ServerSwitchListener)
	add(ok, "server")
	_, ok = f.(VanishListener)
	add(ok, "vanish")
	_, ok = f.(TabListClearListener)
	add(ok, "tablist_clear")
	_, ok = f.(EntryAddListener)
	add(ok, "entry_add")
	_, ok = f.(LatencyListener)
	add(ok, "latency")
	_, ok = f.(HideEntryListener)
	add(ok, "hide_entry")
	_, ok = f.(Refreshable)
	add(ok, "refresh")
	return caps
}
