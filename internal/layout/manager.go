// Package layout replaces the tab list of each viewer with an 80 slot grid
// built from configured patterns.
package layout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"tab-overlay/server/internal/condition"
	"tab-overlay/server/internal/core"
	"tab-overlay/server/internal/feature"
	"tab-overlay/server/internal/layout/skin"
	"tab-overlay/server/internal/pingspoof"
	"tab-overlay/server/internal/player"
	"tab-overlay/server/logging"
	logginglayout "tab-overlay/server/logging/layout"
)

const (
	// Key is the registration name of the layout manager.
	Key = "layout"
	// FeatureName groups the timings of the manager and its fixed slots.
	FeatureName = "Layout"

	LatencyKey         = "layout-latency"
	HideRealPlayersKey = "layout-hide-real-players"
)

var (
	// ErrNotActive is returned by the authoring API while the feature is unloaded.
	ErrNotActive = errors.New("layout: feature is not active")
	// ErrInvalidSlot marks slot numbers outside 1..80.
	ErrInvalidSlot = errors.New("layout: slot out of range")
)

// Config holds the layout settings.
type Config struct {
	Direction                   Direction
	DefaultSkin                 string
	DefaultSkins                []skin.Range
	RemainingPlayersTextEnabled bool
	RemainingPlayersText        string
	EmptySlotPing               int
	HideRealPlayers             bool
	IgnoreEmptySlots            bool
	Layouts                     []PatternDefinition
}

// PatternDefinition describes one configured layout. Conditions are
// expressions understood by condition.Registry.Parse.
type PatternDefinition struct {
	Name       string
	Condition  string
	FixedSlots []FixedSlotDefinition
	Groups     []GroupDefinition
}

type FixedSlotDefinition struct {
	Slot int
	Text string
	Skin string
	Ping *int
}

type GroupDefinition struct {
	Name      string
	Condition string
	Slots     []int
}

type viewerState struct {
	mu     sync.Mutex
	view   *View
	forced *Pattern
}

// Manager selects and maintains the layout view of every viewer.
type Manager struct {
	ctx    *core.Context
	cfg    Config
	skins  *skin.Manager
	ids    [MaxSlots + 1]uuid.UUID
	sorted *SortedIndex
	spoof  atomic.Pointer[pingspoof.PingSpoof]
	active atomic.Bool

	mu       sync.Mutex
	patterns []*Pattern
	states   map[uuid.UUID]*viewerState
}

// NewManager builds the configured patterns and registers their fixed slots
// with the feature manager of ctx. Invalid definitions are reported as
// diagnostics and skipped.
func NewManager(ctx *core.Context, cfg Config, skins *skin.Manager) *Manager {
	if skins == nil {
		skins = skin.NewManager(cfg.DefaultSkin, cfg.DefaultSkins, skin.WithLogger(ctx.Logger))
	}
	m := &Manager{
		ctx:    ctx,
		cfg:    cfg,
		skins:  skins,
		sorted: NewSortedIndex(),
		states: make(map[uuid.UUID]*viewerState),
	}
	for slot := 1; slot <= MaxSlots; slot++ {
		m.ids[slot] = SlotID(cfg.Direction, slot)
	}
	for _, def := range cfg.Layouts {
		m.patterns = append(m.patterns, m.buildPattern(def))
	}
	return m
}

func (m *Manager) buildPattern(def PatternDefinition) *Pattern {
	path := "layout.layouts." + def.Name
	pattern := newPattern(m, def.Name, m.parseCondition(path+".condition", def.Condition))
	for _, fixed := range def.FixedSlots {
		if err := pattern.AddFixedSlot(fixed.Slot, fixed.Text, fixed.Skin, fixed.Ping); err != nil {
			m.diagnose(path+".fixed-slots", strconv.Itoa(fixed.Slot), "skipped", err)
		}
	}
	for _, group := range def.Groups {
		gpath := path + ".groups." + group.Name
		cond := m.parseCondition(gpath+".condition", group.Condition)
		if err := pattern.AddGroup(group.Name, cond, group.Slots); err != nil {
			m.diagnose(gpath+".slots", fmt.Sprint(group.Slots), "invalid slots dropped", err)
		}
	}
	return pattern
}

func (m *Manager) parseCondition(path, expr string) condition.Condition {
	cond, err := m.ctx.Conditions.Parse(expr)
	if err != nil {
		m.diagnose(path, expr, "always met", err)
		return nil
	}
	return cond
}

func (m *Manager) diagnose(path, value, fallback string, err error) {
	m.ctx.Logger.Printf("layout config %s=%q: %v (using %s)", path, value, err, fallback)
	logginglayout.ConfigDiagnostic(context.Background(), m.ctx.Publisher, logginglayout.ConfigDiagnosticPayload{
		Path:     path,
		Value:    value,
		Fallback: fallback,
		Reason:   err.Error(),
	})
}

func (m *Manager) Name() string {
	return FeatureName
}

func (m *Manager) RefreshDisplayName() string {
	return "Switching layouts"
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) Skins() *skin.Manager {
	return m.skins
}

func (m *Manager) Sorted() *SortedIndex {
	return m.sorted
}

// SlotID returns the identity of slot under the configured direction.
func (m *Manager) SlotID(slot int) uuid.UUID {
	if !ValidSlot(slot) {
		return uuid.Nil
	}
	return m.ids[slot]
}

// Patterns returns the configured patterns in priority order.
func (m *Manager) Patterns() []*Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Pattern(nil), m.patterns...)
}

// Pattern returns the configured pattern named name, or nil.
func (m *Manager) Pattern(name string) *Pattern {
	for _, p := range m.Patterns() {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Active reports whether the feature is loaded.
func (m *Manager) Active() bool {
	return m.active.Load()
}

func (m *Manager) state(viewer *player.Player) *viewerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[viewer.ID()]
	if !ok {
		s = &viewerState{}
		m.states[viewer.ID()] = s
	}
	return s
}

// withView runs fn with the current view of viewer while holding its lock.
func (m *Manager) withView(viewer *player.Player, fn func(*View)) {
	s := m.state(viewer)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.view)
}

// View returns the view currently shown to viewer, or nil.
func (m *Manager) View(viewer *player.Player) *View {
	var view *View
	m.withView(viewer, func(v *View) { view = v })
	return view
}

// highest returns the forced pattern, else the first configured pattern whose
// condition holds for viewer.
func (m *Manager) highest(s *viewerState, viewer *player.Player) *Pattern {
	if s.forced != nil {
		return s.forced
	}
	for _, p := range m.Patterns() {
		if p.IsConditionMet(viewer) {
			return p
		}
	}
	return nil
}

func (m *Manager) Load() {
	m.active.Store(true)
	features := m.ctx.Features
	if spoof, ok := feature.Lookup[*pingspoof.PingSpoof](features, pingspoof.Key); ok {
		m.spoof.Store(spoof)
	} else {
		features.Register(LatencyKey, newLatencyRefresher(m))
	}
	if m.cfg.HideRealPlayers {
		hide := newHideRealPlayers(m.ctx)
		features.Register(HideRealPlayersKey, hide)
		hide.Load()
	}
	for _, p := range m.ctx.Players.Online() {
		m.OnJoin(p)
	}
}

// Unload removes the slot entries of every viewer.
func (m *Manager) Unload() {
	m.active.Store(false)
	m.mu.Lock()
	states := m.states
	m.states = make(map[uuid.UUID]*viewerState)
	m.mu.Unlock()
	for _, p := range m.ctx.Players.Online() {
		s, ok := states[p.ID()]
		if !ok {
			continue
		}
		s.mu.Lock()
		if s.view != nil {
			s.view.Destroy()
			s.view = nil
		}
		s.mu.Unlock()
	}
	m.skins.Unload()
}

func (m *Manager) OnJoin(p *player.Player) {
	m.sorted.Insert(p, p.SortKey())
	s := m.state(p)
	s.mu.Lock()
	highest := m.highest(s, p)
	if highest != nil {
		view := newView(m, highest, p)
		view.Send(nil)
		s.view = view
	}
	s.mu.Unlock()
	m.TickAll()

	if highest == nil {
		return
	}
	// Real entries may still carry formatting meant for the plain tab list.
	for _, other := range m.ctx.Players.Online() {
		p.TabList().UpdateDisplayName(other.TabListID(), nil)
	}
}

// OnQuit removes the slot entries of the leaving viewer and re-ticks the
// views of everyone else.
func (m *Manager) OnQuit(p *player.Player) {
	m.sorted.Remove(p)
	m.mu.Lock()
	s, ok := m.states[p.ID()]
	delete(m.states, p.ID())
	m.mu.Unlock()
	if ok {
		s.mu.Lock()
		if s.view != nil {
			s.view.Destroy()
			s.view = nil
		}
		s.mu.Unlock()
	}
	m.TickAll()
}

// OnVanishStatusChange re-selects the pattern of p, whose conditions may
// depend on it, and re-ticks every view.
func (m *Manager) OnVanishStatusChange(p *player.Player) {
	m.Refresh(p, false)
	m.TickAll()
}

// OnGroupChange repositions p under its current sort key.
func (m *Manager) OnGroupChange(p *player.Player) {
	m.UpdateSortKey(p, p.SortKey())
}

// OnTabListClear re-sends the whole view after the client dropped it.
func (m *Manager) OnTabListClear(viewer *player.Player) {
	m.withView(viewer, func(view *View) {
		if view != nil {
			view.Send(nil)
		}
	})
}

// Refresh switches viewer to its highest pattern when it changed.
func (m *Manager) Refresh(viewer *player.Player, _ bool) {
	if !viewer.Online() {
		return
	}
	s := m.state(viewer)
	s.mu.Lock()
	highest := m.highest(s, viewer)
	current := s.view
	if samePattern(highest, current) {
		s.mu.Unlock()
		return
	}
	if highest != nil {
		view := newView(m, highest, viewer)
		view.Send(current)
		s.view = view
	} else {
		current.Destroy()
		s.view = nil
	}
	forced := s.forced != nil
	s.mu.Unlock()

	logginglayout.PatternSwitched(context.Background(), m.ctx.Publisher, logging.PlayerRef(viewer.Name()), logginglayout.PatternSwitchedPayload{
		From:   viewName(current),
		To:     patternName(highest),
		Forced: forced,
	})
}

// TickAll re-assigns the group slots of every live view.
func (m *Manager) TickAll() {
	for _, p := range m.ctx.Players.Online() {
		if !p.Online() {
			continue
		}
		m.withView(p, func(view *View) {
			if view != nil {
				view.Tick()
			}
		})
	}
}

// UpdateSortKey moves p to key in the player order and re-ticks every view.
func (m *Manager) UpdateSortKey(p *player.Player, key string) {
	p.SetSortKey(key)
	if m.sorted.Reposition(p, key) {
		m.TickAll()
	}
}

// CreateLayout returns a new empty pattern for SendLayout. It is not added to
// the configured patterns.
func (m *Manager) CreateLayout(name string) (*Pattern, error) {
	if !m.Active() {
		return nil, ErrNotActive
	}
	return newPattern(m, name, nil), nil
}

// SendLayout forces pattern on viewer regardless of conditions. A nil pattern
// drops the override like ResetLayout.
func (m *Manager) SendLayout(viewer *player.Player, pattern *Pattern) error {
	if !m.Active() {
		return ErrNotActive
	}
	s := m.state(viewer)
	s.mu.Lock()
	s.forced = pattern
	s.mu.Unlock()
	m.Refresh(viewer, false)
	return nil
}

// ResetLayout drops the forced pattern of viewer.
func (m *Manager) ResetLayout(viewer *player.Player) error {
	return m.SendLayout(viewer, nil)
}

// samePattern reports whether current already shows pattern. Patterns are
// compared by identity so a created layout sharing a configured name still
// switches.
func samePattern(pattern *Pattern, current *View) bool {
	if current == nil {
		return pattern == nil
	}
	return current.pattern == pattern
}

func patternName(p *Pattern) string {
	if p == nil {
		return ""
	}
	return p.name
}

func viewName(v *View) string {
	if v == nil {
		return ""
	}
	return v.pattern.name
}
