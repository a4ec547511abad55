package layout

import (
	"github.com/google/uuid"

	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/tablist"
)

// PlayerSlot is one slot of a group, showing either a player or plain text.
type PlayerSlot struct {
	view   *View
	slot   int
	id     uuid.UUID
	player *player.Player
	text   string
}

func (s *PlayerSlot) Slot() int { return s.slot }
func (s *PlayerSlot) ID() uuid.UUID { return s.id }
func (s *PlayerSlot) Player() *player.Player { return s.player }
func (s *PlayerSlot) Text() string { return s.text }

// Entry builds what the viewer should see in this slot.
func (s *PlayerSlot) Entry() tablist.Entry {
	m := s.view.manager
	entry := tablist.Entry{
		ID:     s.id,
		Name:   m.cfg.Direction.EntryName(s.slot),
		Listed: true,
	}
	if target := s.player; target != nil {
		entry.Skin = target.Skin()
		entry.Latency = target.Latency()
		if spoof := m.spoof.Load(); spoof != nil {
			entry.Latency = spoof.Value()
		}
		entry.DisplayName = tablist.NewComponent(target.Name())
		return entry
	}
	entry.Skin = m.skins.DefaultSkin(s.slot)
	entry.Latency = m.cfg.EmptySlotPing
	entry.DisplayName = tablist.NewComponent(s.text)
	return entry
}

// SetPlayer shows target in the slot, re-creating the entry when it changes.
func (s *PlayerSlot) SetPlayer(target *player.Player) {
	if s.player == target {
		return
	}
	s.player = target
	if target != nil {
		s.text = ""
	}
	tl := s.view.viewer.TabList()
	tl.RemoveEntry(s.id)
	tl.AddEntry(s.Entry())
}

// SetText shows text in the slot. A slot showing a player is re-created,
// otherwise only the display name changes.
func (s *PlayerSlot) SetText(text string) {
	if s.text == text && s.player == nil {
		return
	}
	s.text = text
	if s.player != nil {
		s.SetPlayer(nil)
		return
	}
	s.view.viewer.TabList().UpdateDisplayName(s.id, tablist.NewComponent(text))
}
