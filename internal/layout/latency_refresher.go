package layout

import (
	"tab-overlay/server/internal/feature"
	"tab-overlay/server/internal/player"
)

// LatencyRefresher keeps the latency of group slots in line with the players
// they show. It is only registered when latency is not spoofed.
type LatencyRefresher struct {
	manager *Manager
	thread  *feature.Thread
}

func newLatencyRefresher(m *Manager) *LatencyRefresher {
	return &LatencyRefresher{manager: m, thread: feature.NewThread("Layout latency")}
}

func (r *LatencyRefresher) Name() string {
	return FeatureName
}

func (r *LatencyRefresher) RefreshDisplayName() string {
	return "Updating latency"
}

func (r *LatencyRefresher) Thread() *feature.Thread {
	return r.thread
}

// Refresh pushes the latency of target to every viewer showing it in a slot.
func (r *LatencyRefresher) Refresh(target *player.Player, _ bool) {
	latency := target.Latency()
	for _, viewer := range r.manager.ctx.Players.Online() {
		r.manager.withView(viewer, func(view *View) {
			if view == nil {
				return
			}
			slot := view.SlotFor(target)
			if slot == nil {
				return
			}
			tl := viewer.TabList()
			if entry, ok := tl.Entry(slot.id); ok && entry.Latency == latency {
				return
			}
			tl.UpdateLatency(slot.id, latency)
		})
	}
}
