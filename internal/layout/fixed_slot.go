package layout

import (
	"github.com/google/uuid"

	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/tablist"
)

// FixedSlot binds one slot of a pattern to static text, skin and ping. Text
// and skin are resolved per viewer through player properties.
type FixedSlot struct {
	manager      *Manager
	pattern      *Pattern
	slot         int
	id           uuid.UUID
	text         string
	textProperty string
	skin         string
	skinProperty string
	ping         int
}

func (s *FixedSlot) Name() string {
	return FeatureName
}

func (s *FixedSlot) RefreshDisplayName() string {
	return "Updating fixed slots"
}

func (s *FixedSlot) Slot() int { return s.slot }
func (s *FixedSlot) ID() uuid.UUID { return s.id }
func (s *FixedSlot) Text() string { return s.text }
func (s *FixedSlot) Skin() string { return s.skin }
func (s *FixedSlot) Ping() int { return s.ping }
func (s *FixedSlot) TextProperty() string { return s.textProperty }
func (s *FixedSlot) SkinProperty() string { return s.skinProperty }

// Refresh re-resolves the slot for a viewer currently shown its pattern. A
// skin change re-creates the entry; a text change updates it in place.
func (s *FixedSlot) Refresh(viewer *player.Player, force bool) {
	s.manager.withView(viewer, func(view *View) {
		if view == nil || view.pattern != s.pattern {
			return
		}
		skinProp := viewer.Property(s.skinProperty)
		textProp := viewer.Property(s.textProperty)
		if skinProp == nil || textProp == nil {
			return
		}
		tl := viewer.TabList()
		if skinProp.Update() {
			tl.RemoveEntry(s.id)
			tl.AddEntry(s.createEntry(viewer))
			return
		}
		if textProp.Update() {
			tl.UpdateDisplayName(s.id, tablist.NewComponent(textProp.Get()))
		}
	})
}

// createEntry binds the slot properties of viewer and builds the entry.
func (s *FixedSlot) createEntry(viewer *player.Player) tablist.Entry {
	text := viewer.SetProperty(FeatureName, s.textProperty, s.text)
	skin := viewer.SetProperty(FeatureName, s.skinProperty, s.skin)
	return tablist.Entry{
		ID:          s.id,
		Name:        s.manager.cfg.Direction.EntryName(s.slot),
		Skin:        s.manager.skins.GetSkin(skin.UpdateAndGet()),
		Listed:      true,
		Latency:     s.ping,
		DisplayName: tablist.NewComponent(text.UpdateAndGet()),
	}
}

// updateEntry patches the entry the previous view left behind. It fails when
// the viewer lost the entry or the previous slot had a different skin, since
// skins cannot change in place.
func (s *FixedSlot) updateEntry(viewer *player.Player, previous *View) bool {
	if previous == nil || !viewer.TabList().ContainsEntry(s.id) {
		return false
	}
	prev := previous.fixedSlot(s.slot)
	if prev == nil || prev.skin != s.skin {
		return false
	}
	tl := viewer.TabList()
	text := viewer.SetProperty(FeatureName, s.textProperty, s.text)
	viewer.SetProperty(FeatureName, s.skinProperty, s.skin).Get()
	text.Update()
	// The property may still hold this pattern's text from an earlier view;
	// compare against what the viewer has instead.
	want := tablist.NewComponent(text.Get())
	if entry, ok := tl.Entry(s.id); !ok || !entry.DisplayName.Equal(want) {
		tl.UpdateDisplayName(s.id, want)
	}
	if prev.ping != s.ping {
		tl.UpdateLatency(s.id, s.ping)
	}
	return true
}
