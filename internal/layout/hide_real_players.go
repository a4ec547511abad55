package layout

import (
	"github.com/google/uuid"

	"tab-overlay/server/internal/core"
	"tab-overlay/server/internal/player"
)

// HideRealPlayers unlists the entries of real players so only slot entries
// are visible.
type HideRealPlayers struct {
	ctx *core.Context
}

func newHideRealPlayers(ctx *core.Context) *HideRealPlayers {
	return &HideRealPlayers{ctx: ctx}
}

func (h *HideRealPlayers) Name() string {
	return "Layout (Hide Players)"
}

// ShouldHideEntry unlists every entry belonging to an online player.
func (h *HideRealPlayers) ShouldHideEntry(_ *player.Player, id uuid.UUID, listed bool) bool {
	if h.ctx.Players.ByTabListID(id) != nil {
		return false
	}
	return listed
}

func (h *HideRealPlayers) Load() {
	h.updateAll(false)
}

func (h *HideRealPlayers) Unload() {
	h.updateAll(true)
}

func (h *HideRealPlayers) OnJoin(connected *player.Player) {
	for _, other := range h.ctx.Players.Online() {
		connected.TabList().UpdateListed(other.TabListID(), false)
		if other != connected {
			other.TabList().UpdateListed(connected.TabListID(), false)
		}
	}
}

func (h *HideRealPlayers) updateAll(listed bool) {
	online := h.ctx.Players.Online()
	for _, viewer := range online {
		for _, target := range online {
			viewer.TabList().UpdateListed(target.TabListID(), listed)
		}
	}
}
