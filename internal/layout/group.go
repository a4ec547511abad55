package layout

import (
	"strconv"
	"strings"

	"tab-overlay/server/internal/condition"
	"tab-overlay/server/internal/player"
)

// ParentGroup fills the slots of one group pattern for one viewer.
type ParentGroup struct {
	view      *View
	name      string
	condition condition.Condition
	slots     []int
	bySlot    map[int]*PlayerSlot
	players   map[*player.Player]*PlayerSlot
}

func newParentGroup(view *View, def GroupPattern) *ParentGroup {
	g := &ParentGroup{
		view:      view,
		name:      def.Name,
		condition: def.Condition,
		slots:     def.Slots,
		bySlot:    make(map[int]*PlayerSlot, len(def.Slots)),
		players:   make(map[*player.Player]*PlayerSlot),
	}
	for _, slot := range def.Slots {
		g.bySlot[slot] = &PlayerSlot{view: view, slot: slot, id: view.manager.SlotID(slot)}
	}
	return g
}

func (g *ParentGroup) Name() string {
	return g.name
}

// Slots returns the slot numbers in fill order.
func (g *ParentGroup) Slots() []int {
	return append([]int(nil), g.slots...)
}

// PlayerSlot returns the state of one slot of the group.
func (g *ParentGroup) PlayerSlot(slot int) *PlayerSlot {
	return g.bySlot[slot]
}

// Players maps every player shown by the group to its slot.
func (g *ParentGroup) Players() map[*player.Player]*PlayerSlot {
	out := make(map[*player.Player]*PlayerSlot, len(g.players))
	for p, s := range g.players {
		out[p] = s
	}
	return out
}

// tick assigns the players of remaining meeting the group condition to its
// slots in order and returns the players left for later groups.
func (g *ParentGroup) tick(remaining []*player.Player) []*player.Player {
	clear(g.players)
	var meeting, rest []*player.Player
	for _, p := range remaining {
		if condition.Met(g.condition, p) {
			meeting = append(meeting, p)
		} else {
			rest = append(rest, p)
		}
	}
	cfg := g.view.manager.cfg
	for index, slot := range g.slots {
		ps := g.bySlot[slot]
		if cfg.RemainingPlayersTextEnabled && index == len(g.slots)-1 && len(g.slots) < len(meeting) {
			ps.SetText(overflowText(cfg.RemainingPlayersText, len(meeting)-len(g.slots)+1))
			break
		}
		if index < len(meeting) {
			p := meeting[index]
			ps.SetPlayer(p)
			g.players[p] = ps
		} else {
			ps.SetText("")
		}
	}
	return rest
}

// sendSlots makes the viewer show every slot of the group. Slots the previous
// view already showed as a group slot keep their state and are not re-sent.
func (g *ParentGroup) sendSlots(previous *View) {
	tl := g.view.viewer.TabList()
	for _, slot := range g.slots {
		ps := g.bySlot[slot]
		if prev := previous.groupSlot(slot); prev != nil && tl.ContainsEntry(ps.id) {
			ps.player, ps.text = prev.player, prev.text
			continue
		}
		tl.RemoveEntryIfPresent(ps.id)
		tl.AddEntry(ps.Entry())
	}
}

func overflowText(template string, count int) string {
	return strings.ReplaceAll(template, "%s", strconv.Itoa(count))
}
