// Package pingspoof shows every real player with the same configured latency.
package pingspoof

import (
	"github.com/google/uuid"

	"tab-overlay/server/internal/player"
)

// Key is the registration name of the feature.
const Key = "ping-spoof"

// PingSpoof rewrites the latency of real player entries to a fixed value.
type PingSpoof struct {
	players *player.Registry
	value   int
}

func New(players *player.Registry, value int) *PingSpoof {
	return &PingSpoof{players: players, value: value}
}

func (f *PingSpoof) Name() string {
	return "Ping spoof"
}

// Value is the latency every entry is shown with.
func (f *PingSpoof) Value() int {
	return f.value
}

func (f *PingSpoof) OnLatencyChange(_ *player.Player, _ uuid.UUID, _ int) int {
	return f.value
}

func (f *PingSpoof) Load() {
	f.sendAll(func(*player.Player) int { return f.value })
}

// Unload restores the real latency of every player.
func (f *PingSpoof) Unload() {
	f.sendAll((*player.Player).Latency)
}

func (f *PingSpoof) OnJoin(connected *player.Player) {
	for _, other := range f.players.Online() {
		other.TabList().UpdateLatency(connected.TabListID(), f.value)
		if other != connected {
			connected.TabList().UpdateLatency(other.TabListID(), f.value)
		}
	}
}

func (f *PingSpoof) sendAll(latency func(*player.Player) int) {
	online := f.players.Online()
	for _, viewer := range online {
		for _, target := range online {
			viewer.TabList().UpdateLatency(target.TabListID(), latency(target))
		}
	}
}
