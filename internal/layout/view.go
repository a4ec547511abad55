package layout

import (
	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/tablist"
)

// View is the live instance of a pattern for one viewer.
type View struct {
	manager     *Manager
	pattern     *Pattern
	viewer      *player.Player
	fixed       []*FixedSlot
	groups      []*ParentGroup
	emptySlots  []int
	highestSlot int
}

func newView(m *Manager, pattern *Pattern, viewer *player.Player) *View {
	v := &View{
		manager: m,
		pattern: pattern,
		viewer:  viewer,
		fixed:   pattern.FixedSlots(),
	}
	claimed := make(map[int]bool)
	for _, slot := range v.fixed {
		claimed[slot.slot] = true
		v.highestSlot = max(v.highestSlot, slot.slot)
	}
	for _, def := range pattern.Groups() {
		for _, slot := range def.Slots {
			claimed[slot] = true
			v.highestSlot = max(v.highestSlot, slot)
		}
		v.groups = append(v.groups, newParentGroup(v, def))
	}
	if rem := v.highestSlot % SlotsPerColumn; rem != 0 {
		v.highestSlot += SlotsPerColumn - rem
	}
	for slot := 1; slot <= MaxSlots; slot++ {
		if claimed[slot] {
			continue
		}
		if v.ignoreEmptySlots() && slot > v.highestSlot {
			continue
		}
		v.emptySlots = append(v.emptySlots, slot)
	}
	return v
}

func (v *View) Pattern() *Pattern {
	return v.pattern
}

func (v *View) Viewer() *player.Player {
	return v.viewer
}

// EmptySlots lists the slots shown blank, in ascending order.
func (v *View) EmptySlots() []int {
	return append([]int(nil), v.emptySlots...)
}

// HighestSlot is the highest claimed slot rounded up to a full column.
func (v *View) HighestSlot() int {
	return v.highestSlot
}

func (v *View) Groups() []*ParentGroup {
	return append([]*ParentGroup(nil), v.groups...)
}

func (v *View) FixedSlots() []*FixedSlot {
	return append([]*FixedSlot(nil), v.fixed...)
}

// ignoreEmptySlots only applies when real players are hidden, since otherwise
// their entries would fill the trimmed columns.
func (v *View) ignoreEmptySlots() bool {
	cfg := v.manager.cfg
	return cfg.IgnoreEmptySlots && cfg.HideRealPlayers
}

// Send makes the viewer show this view. With a previous view of the same
// viewer only the slots whose content differs are re-sent.
func (v *View) Send(previous *View) {
	tl := v.viewer.TabList()
	for _, g := range v.groups {
		g.sendSlots(previous)
	}
	for _, slot := range v.fixed {
		if slot.updateEntry(v.viewer, previous) {
			continue
		}
		tl.RemoveEntryIfPresent(slot.id)
		tl.AddEntry(slot.createEntry(v.viewer))
	}
	var previousEmpty map[int]bool
	if previous != nil {
		previousEmpty = make(map[int]bool, len(previous.emptySlots))
		for _, slot := range previous.emptySlots {
			previousEmpty[slot] = true
		}
	}
	for _, slot := range v.emptySlots {
		id := v.manager.SlotID(slot)
		if previousEmpty[slot] && tl.ContainsEntry(id) {
			continue
		}
		tl.RemoveEntryIfPresent(id)
		tl.AddEntry(v.emptyEntry(slot))
	}
	if v.ignoreEmptySlots() {
		for slot := v.highestSlot + 1; slot <= MaxSlots; slot++ {
			tl.RemoveEntryIfPresent(v.manager.SlotID(slot))
		}
	}
	v.Tick()
}

func (v *View) emptyEntry(slot int) tablist.Entry {
	m := v.manager
	return tablist.Entry{
		ID:          m.SlotID(slot),
		Name:        m.cfg.Direction.EntryName(slot),
		Skin:        m.skins.DefaultSkin(slot),
		Listed:      true,
		Latency:     m.cfg.EmptySlotPing,
		DisplayName: tablist.NewComponent(""),
	}
}

// Destroy removes every slot entry the viewer still has.
func (v *View) Destroy() {
	tl := v.viewer.TabList()
	for slot := 1; slot <= MaxSlots; slot++ {
		tl.RemoveEntryIfPresent(v.manager.SlotID(slot))
	}
}

// Tick re-assigns group slots from the current player order.
func (v *View) Tick() {
	if len(v.groups) == 0 {
		return
	}
	var visible []*player.Player
	for _, p := range v.manager.sorted.Snapshot() {
		if p.Online() && v.manager.ctx.CanSee(v.viewer, p) {
			visible = append(visible, p)
		}
	}
	for _, g := range v.groups {
		visible = g.tick(visible)
	}
}

// SlotFor returns the group slot currently showing target.
func (v *View) SlotFor(target *player.Player) *PlayerSlot {
	for _, g := range v.groups {
		if s, ok := g.players[target]; ok {
			return s
		}
	}
	return nil
}

func (v *View) fixedSlot(slot int) *FixedSlot {
	if v == nil {
		return nil
	}
	for _, s := range v.fixed {
		if s.slot == slot {
			return s
		}
	}
	return nil
}

func (v *View) groupSlot(slot int) *PlayerSlot {
	if v == nil {
		return nil
	}
	for _, g := range v.groups {
		if s, ok := g.bySlot[slot]; ok {
			return s
		}
	}
	return nil
}
