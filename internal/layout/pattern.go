package layout

import (
	"fmt"
	"sort"
	"sync"

	"tab-overlay/server/internal/condition"
	"tab-overlay/server/internal/player"
)

// GroupPattern is one dynamic group of a pattern: players meeting Condition
// fill Slots in order.
type GroupPattern struct {
	Name      string
	Condition condition.Condition
	Slots     []int
}

// Pattern is a named layout definition. Views copy its slots when created, so
// later edits only affect views created afterwards.
type Pattern struct {
	manager *Manager
	name    string

	mu        sync.RWMutex
	condition condition.Condition
	fixed     map[int]*FixedSlot
	groups    []GroupPattern
}

func newPattern(m *Manager, name string, cond condition.Condition) *Pattern {
	return &Pattern{
		manager:   m,
		name:      name,
		condition: cond,
		fixed:     make(map[int]*FixedSlot),
	}
}

func (p *Pattern) Name() string {
	return p.name
}

func (p *Pattern) Condition() condition.Condition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// SetCondition replaces the display condition. Nil means always shown.
func (p *Pattern) SetCondition(c condition.Condition) {
	p.mu.Lock()
	p.condition = c
	p.mu.Unlock()
}

// IsConditionMet reports whether the pattern may be shown to viewer.
func (p *Pattern) IsConditionMet(viewer *player.Player) bool {
	return condition.Met(p.Condition(), viewer)
}

// AddFixedSlot binds static text to a slot, replacing an earlier definition
// and taking the slot away from any group. Empty skin uses the slot's default
// skin and a nil ping uses the empty slot ping.
func (p *Pattern) AddFixedSlot(slot int, text, skin string, ping *int) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("fixed slot %d of layout %s: %w", slot, p.name, ErrInvalidSlot)
	}
	if skin == "" {
		skin = p.manager.skins.DefaultDefinition(slot)
	}
	latency := p.manager.cfg.EmptySlotPing
	if ping != nil {
		latency = *ping
	}
	fixed := &FixedSlot{
		manager:      p.manager,
		pattern:      p,
		slot:         slot,
		id:           p.manager.SlotID(slot),
		text:         text,
		textProperty: fmt.Sprintf("Layout-%s-SLOT-%d", p.name, slot),
		skin:         skin,
		skinProperty: fmt.Sprintf("Layout-%s-SLOT-%d-skin", p.name, slot),
		ping:         latency,
	}

	p.mu.Lock()
	p.fixed[slot] = fixed
	for i := range p.groups {
		p.groups[i].Slots = without(p.groups[i].Slots, slot)
	}
	p.mu.Unlock()

	key := fixedSlotKey(p.name, slot)
	if text == "" {
		p.manager.ctx.Features.Unregister(key)
	} else {
		p.manager.ctx.Features.Register(key, fixed)
	}
	return nil
}

// AddGroup appends a group. Slots outside 1..80, repeated slots and slots
// already claimed by a fixed slot or an earlier group are dropped.
func (p *Pattern) AddGroup(name string, cond condition.Condition, slots []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	claimed := make(map[int]bool)
	for slot := range p.fixed {
		claimed[slot] = true
	}
	for _, g := range p.groups {
		for _, slot := range g.Slots {
			claimed[slot] = true
		}
	}
	var kept []int
	var rejected []int
	for _, slot := range slots {
		if !ValidSlot(slot) {
			rejected = append(rejected, slot)
			continue
		}
		if claimed[slot] {
			continue
		}
		claimed[slot] = true
		kept = append(kept, slot)
	}
	p.groups = append(p.groups, GroupPattern{Name: name, Condition: cond, Slots: kept})
	if len(rejected) > 0 {
		return fmt.Errorf("group %s of layout %s: slots %v: %w", name, p.name, rejected, ErrInvalidSlot)
	}
	return nil
}

// FixedSlots returns the fixed slots ordered by slot number.
func (p *Pattern) FixedSlots() []*FixedSlot {
	p.mu.RLock()
	out := make([]*FixedSlot, 0, len(p.fixed))
	for _, slot := range p.fixed {
		out = append(out, slot)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].slot < out[j].slot })
	return out
}

// Groups returns a copy of the group definitions in declaration order.
func (p *Pattern) Groups() []GroupPattern {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]GroupPattern, len(p.groups))
	for i, g := range p.groups {
		g.Slots = append([]int(nil), g.Slots...)
		out[i] = g
	}
	return out
}

func fixedSlotKey(pattern string, slot int) string {
	return fmt.Sprintf("layout-slot-%s-%d", pattern, slot)
}

func without(slots []int, slot int) []int {
	out := slots[:0:0]
	for _, s := range slots {
		if s != slot {
			out = append(out, s)
		}
	}
	return out
}
