package tablist

import "github.com/google/uuid"

// Action is one field group carried by a player info packet.
type Action uint8

const (
	ActionAddPlayer Action = 1 << iota
	ActionUpdateGameMode
	ActionUpdateListed
	ActionUpdateLatency
	ActionUpdateDisplayName
)

// ActionsAll is the action set of a full entry add.
const ActionsAll = ActionAddPlayer | ActionUpdateGameMode | ActionUpdateListed | ActionUpdateLatency | ActionUpdateDisplayName

// Has reports whether the set contains the action.
func (a Action) Has(action Action) bool {
	return a&action != 0
}

// PlayerInfo is a vendor-originated roster packet on its way to a viewer.
// Remove packets carry only IDs.
type PlayerInfo struct {
	Actions Action
	Remove  bool
	Records []Entry
}

// PacketHooks receives the records of an inbound packet for one viewer. The
// returned values replace the record fields before the packet is forwarded.
type PacketHooks interface {
	OnEntryAdd(id uuid.UUID, name string)
	OnLatencyChange(id uuid.UUID, latency int) int
	ShouldHideEntry(id uuid.UUID, listed bool) bool
}

type nopHooks struct{}

func (nopHooks) OnEntryAdd(uuid.UUID, string) {}

func (nopHooks) OnLatencyChange(_ uuid.UUID, latency int) int {
	return latency
}

func (nopHooks) ShouldHideEntry(_ uuid.UUID, listed bool) bool {
	return listed
}
