package feature

import (
	"github.com/google/uuid"

	"tab-overlay/server/internal/player"
	"tab-overlay/server/internal/tablist"
)

// Hooks binds the packet rewrite chains to one viewer, for installation on
// that viewer's tracked tab list.
func (m *Manager) Hooks(viewer *player.Player) tablist.PacketHooks {
	return viewerHooks{manager: m, viewer: viewer}
}

type viewerHooks struct {
	manager *Manager
	viewer  *player.Player
}

func (h viewerHooks) OnEntryAdd(id uuid.UUID, name string) {
	h.manager.OnEntryAdd(h.viewer, id, name)
}

func (h viewerHooks) OnLatencyChange(id uuid.UUID, latency int) int {
	return h.manager.OnLatencyChange(h.viewer, id, latency)
}

func (h viewerHooks) ShouldHideEntry(id uuid.UUID, listed bool) bool {
	return h.manager.ShouldHideEntry(h.viewer, id, listed)
}
