package feature

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/telemetry"
	"tab-overlay/server/logging"
	loggingfeatures "tab-overlay/server/logging/features"
)

// HandlerError describes a panic recovered from a feature handler.
type HandlerError struct {
	Feature  string
	Category Category
	Value    any
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("feature %s failed handling %s: %v", e.Feature, e.Category, e.Value)
}

// Config wires a Manager to its collaborators. Nil fields get no-op defaults.
type Config struct {
	Players   *player.Registry
	Usage     *Usage
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

// Manager owns the feature registry and dispatches events to it.
type Manager struct {
	mu      sync.Mutex
	byName  map[string]Feature
	order   []string
	current atomic.Pointer[registry]

	players   *player.Registry
	usage     *Usage
	logger    telemetry.Logger
	publisher logging.Publisher
	failures  atomic.Uint64
}

// registry is an immutable view of the registered features, rebuilt on every
// registration so dispatch never allocates or locks.
type registry struct {
	all          []Feature
	loadables    []Loadable
	unloadables  []Unloadable
	join         []JoinListener
	quit         []QuitListener
	group        []GroupListener
	gameMode     []GameModeListener
	world        []WorldSwitchListener
	server       []ServerSwitchListener
	vanish       []VanishListener
	tabListClear []TabListClearListener
	entryAdd     []EntryAddListener
	latency      []LatencyListener
	hideEntry    []HideEntryListener
	refreshable  []Refreshable
}

func buildRegistry(all []Feature) *registry {
	return &registry{
		all:          all,
		loadables:    collect[Loadable](all),
		unloadables:  collect[Unloadable](all),
		join:         collect[JoinListener](all),
		quit:         collect[QuitListener](all),
		group:        collect[GroupListener](all),
		gameMode:     collect[GameModeListener](all),
		world:        collect[WorldSwitchListener](all),
		server:       collect[ServerSwitchListener](all),
		vanish:       collect[VanishListener](all),
		tabListClear: collect[TabListClearListener](all),
		entryAdd:     collect[EntryAddListener](all),
		latency:      collect[LatencyListener](all),
		hideEntry:    collect[HideEntryListener](all),
		refreshable:  collect[Refreshable](all),
	}
}

func collect[T any](all []Feature) []T {
	var out []T
	for _, f := range all {
		if c, ok := f.(T); ok {
			out = append(out, c)
		}
	}
	return out
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		byName:    make(map[string]Feature),
		players:   cfg.Players,
		usage:     cfg.Usage,
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
	}
	if m.players == nil {
		m.players = player.NewRegistry()
	}
	if m.usage == nil {
		m.usage = NewUsage()
	}
	if m.logger == nil {
		m.logger = telemetry.LoggerFunc(nil)
	}
	if m.publisher == nil {
		m.publisher = logging.NopPublisher()
	}
	m.current.Store(buildRegistry(nil))
	return m
}

func (m *Manager) Players() *player.Registry {
	return m.players
}

func (m *Manager) Usage() *Usage {
	return m.usage
}

// Failures reports how many handler panics were recovered.
func (m *Manager) Failures() uint64 {
	return m.failures.Load()
}

// Register adds f under name. Re-registering a name replaces the feature but
// keeps its position.
func (m *Manager) Register(name string, f Feature) {
	if f == nil {
		return
	}
	m.mu.Lock()
	if _, exists := m.byName[name]; !exists {
		m.order = append(m.order, name)
	}
	m.byName[name] = f
	m.rebuildLocked()
	m.mu.Unlock()

	_, threaded := f.(CustomThreaded)
	loggingfeatures.Registered(context.Background(), m.publisher, name, loggingfeatures.RegisteredPayload{
		Capabilities: capabilities(f),
		Threaded:     threaded,
	})
}

// Unregister removes the feature registered under name.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[name]; !exists {
		return
	}
	delete(m.byName, name)
	for i, candidate := range m.order {
		if candidate == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	m.rebuildLocked()
}

func (m *Manager) rebuildLocked() {
	all := make([]Feature, 0, len(m.order))
	for _, name := range m.order {
		all = append(all, m.byName[name])
	}
	m.current.Store(buildRegistry(all))
}

// Get returns the feature registered under name, or nil.
func (m *Manager) Get(name string) Feature {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[name]
}

func (m *Manager) Enabled(name string) bool {
	return m.Get(name) != nil
}

// Names lists registered names in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Features returns the registered features in registration order.
func (m *Manager) Features() []Feature {
	return m.current.Load().all
}

// Lookup returns the feature registered under name if it has type T.
func Lookup[T any](m *Manager, name string) (T, bool) {
	f, ok := m.Get(name).(T)
	return f, ok
}

// Load calls Load on every Loadable feature.
func (m *Manager) Load() {
	each(m, m.current.Load().loadables, CategoryLoad, Loadable.Load)
}

// Unload stops every private thread first, then unloads synchronously so a
// following Load never overlaps an unfinished unload.
func (m *Manager) Unload() {
	reg := m.current.Load()
	for _, f := range reg.all {
		if threaded, ok := f.(CustomThreaded); ok {
			if thread := threaded.Thread(); thread != nil {
				thread.Shutdown()
			}
		}
	}
	for _, u := range reg.unloadables {
		m.timed(any(u).(Feature), CategoryUnload, u.Unload)
	}
}

// OnJoin registers p as online and forwards the join.
func (m *Manager) OnJoin(p *player.Player) {
	if p == nil {
		return
	}
	m.players.Add(p)
	each(m, m.current.Load().join, CategoryJoin, func(l JoinListener) { l.OnJoin(p) })
}

// OnQuit forwards the quit, removes p from the online set and drops display
// name overrides other viewers kept for p.
func (m *Manager) OnQuit(p *player.Player) {
	if p == nil {
		return
	}
	p.MarkOffline()
	each(m, m.current.Load().quit, CategoryQuit, func(l QuitListener) { l.OnQuit(p) })
	m.players.Remove(p)
	for _, viewer := range m.players.Online() {
		viewer.TabList().RemoveExpectedDisplayName(p.TabListID())
	}
}

func (m *Manager) OnGroupChange(p *player.Player) {
	each(m, m.current.Load().group, CategoryGroupChange, func(l GroupListener) { l.OnGroupChange(p) })
}

func (m *Manager) OnGameModeChange(p *player.Player) {
	each(m, m.current.Load().gameMode, CategoryGameMode, func(l GameModeListener) { l.OnGameModeChange(p) })
}

// OnWorldChange records the new world of the player and forwards the switch.
func (m *Manager) OnWorldChange(id uuid.UUID, to string) {
	p := m.players.Get(id)
	if p == nil {
		return
	}
	from := p.SetWorld(to)
	each(m, m.current.Load().world, CategoryWorldSwitch, func(l WorldSwitchListener) { l.OnWorldChange(p, from, to) })
}

// OnServerChange records the new server of the player and forwards the switch.
func (m *Manager) OnServerChange(id uuid.UUID, to string) {
	p := m.players.Get(id)
	if p == nil {
		return
	}
	from := p.SetServer(to)
	each(m, m.current.Load().server, CategoryServerSwitch, func(l ServerSwitchListener) { l.OnServerChange(p, from, to) })
}

func (m *Manager) OnVanishStatusChange(p *player.Player) {
	each(m, m.current.Load().vanish, CategoryVanishChange, func(l VanishListener) { l.OnVanishStatusChange(p) })
}

// OnTabListClear forgets the viewer's tracked entries and lets features
// re-send theirs.
func (m *Manager) OnTabListClear(viewer *player.Player) {
	if viewer == nil {
		return
	}
	viewer.TabList().Clear()
	each(m, m.current.Load().tabListClear, CategoryTabListClear, func(l TabListClearListener) { l.OnTabListClear(viewer) })
}

// OnEntryAdd runs inline since it is called from packet rewriting.
func (m *Manager) OnEntryAdd(viewer *player.Player, id uuid.UUID, name string) {
	for _, l := range m.current.Load().entryAdd {
		l := l
		m.timed(any(l).(Feature), CategoryEntryAdd, func() { l.OnEntryAdd(viewer, id, name) })
	}
}

// OnLatencyChange threads latency through every LatencyListener. A failing
// listener leaves the value it received untouched.
func (m *Manager) OnLatencyChange(viewer *player.Player, id uuid.UUID, latency int) int {
	for _, l := range m.current.Load().latency {
		l, in := l, latency
		m.timed(any(l).(Feature), CategoryLatencyChange, func() { latency = l.OnLatencyChange(viewer, id, in) })
	}
	return latency
}

// ShouldHideEntry threads the listed flag through every HideEntryListener.
func (m *Manager) ShouldHideEntry(viewer *player.Player, id uuid.UUID, listed bool) bool {
	for _, l := range m.current.Load().hideEntry {
		l, in := l, listed
		m.timed(any(l).(Feature), CategoryHideEntry, func() { listed = l.ShouldHideEntry(viewer, id, in) })
	}
	return listed
}

// RefreshAll refreshes every Refreshable feature for every online player.
func (m *Manager) RefreshAll(force bool) {
	online := m.players.Online()
	for _, r := range m.current.Load().refreshable {
		r := r
		f := Feature(r)
		// Each viewer is timed and recovered separately.
		m.schedule(f, CategoryRefresh, func() {
			for _, p := range online {
				m.timed(f, CategoryRefresh, func() { r.Refresh(p, force) })
			}
		})
	}
}

// Refresh refreshes every Refreshable feature for one player.
func (m *Manager) Refresh(p *player.Player, force bool) {
	if p == nil {
		return
	}
	each(m, m.current.Load().refreshable, CategoryRefresh, func(r Refreshable) { r.Refresh(p, force) })
}

// each runs fn for every listener, inline or on the listener's own thread.
func each[T any](m *Manager, listeners []T, category Category, fn func(T)) {
	for _, l := range listeners {
		l := l
		m.submit(any(l).(Feature), category, func() { fn(l) })
	}
}

func (m *Manager) submit(f Feature, category Category, fn func()) {
	m.schedule(f, category, func() { m.timed(f, category, fn) })
}

// schedule runs task on the feature's own thread, or inline without one.
func (m *Manager) schedule(f Feature, category Category, task func()) {
	if threaded, ok := f.(CustomThreaded); ok {
		if thread := threaded.Thread(); thread != nil {
			if !thread.Execute(task) {
				m.logger.Printf("dropping %s task for feature %s: thread %s stopped", category, f.Name(), thread.Name())
			}
			return
		}
	}
	task()
}

// timed runs fn, records its duration and recovers a panic into a
// HandlerError. It reports whether fn completed.
func (m *Manager) timed(f Feature, category Category, fn func()) (ok bool) {
	start := time.Now()
	defer func() {
		m.usage.Add(f.Name(), category, time.Since(start))
		if r := recover(); r != nil {
			ok = false
			m.report(&HandlerError{Feature: f.Name(), Category: category, Value: r}, debug.Stack())
		}
	}()
	fn()
	return true
}

func (m *Manager) report(err *HandlerError, stack []byte) {
	m.failures.Add(1)
	m.logger.Printf("%v", err)
	loggingfeatures.HandlerFailed(context.Background(), m.publisher, err.Feature, loggingfeatures.HandlerFailedPayload{
		Category: string(err.Category),
		Error:    fmt.Sprint(err.Value),
	}, map[string]any{"stack": string(stack)})
}
