package tablist

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Tracked decorates a platform TabList with the canonical record of what one
// connection currently sees. Every outbound mutation and every inbound packet
// rewrite runs under the same mutex, so operations on an identity are applied
// and acknowledged in call order.
type Tracked struct {
	mu       sync.Mutex
	platform TabList
	hooks    PacketHooks
	entries  map[uuid.UUID]Entry
	expected map[uuid.UUID]*Component
	sent     uint64
}

// NewTracked wraps the platform tab list of one connection.
func NewTracked(platform TabList) *Tracked {
	if platform == nil {
		platform = Discard{}
	}
	return &Tracked{
		platform: platform,
		hooks:    nopHooks{},
		entries:  make(map[uuid.UUID]Entry),
		expected: make(map[uuid.UUID]*Component),
	}
}

// SetHooks installs the rewrite hooks consulted by OnPacketSend.
func (t *Tracked) SetHooks(hooks PacketHooks) {
	if hooks == nil {
		hooks = nopHooks{}
	}
	t.mu.Lock()
	t.hooks = hooks
	t.mu.Unlock()
}

func (t *Tracked) AddEntry(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entry.ID] = entry
	t.sent++
	t.platform.AddEntry(entry)
}

func (t *Tracked) RemoveEntry(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
	t.sent++
	t.platform.RemoveEntry(id)
}

// RemoveEntryIfPresent removes id only when the viewer currently has it and
// reports whether a removal was sent.
func (t *Tracked) RemoveEntryIfPresent(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	t.sent++
	t.platform.RemoveEntry(id)
	return true
}

// UpdateDisplayName changes the display name and records it as the expected
// value, so vendor packets carrying a different one get overridden.
func (t *Tracked) UpdateDisplayName(id uuid.UUID, displayName *Component) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if displayName == nil {
		delete(t.expected, id)
	} else {
		t.expected[id] = displayName
	}
	if entry, ok := t.entries[id]; ok {
		entry.DisplayName = displayName
		t.entries[id] = entry
	}
	t.sent++
	t.platform.UpdateDisplayName(id, displayName)
}

func (t *Tracked) UpdateLatency(id uuid.UUID, latency int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[id]; ok {
		entry.Latency = latency
		t.entries[id] = entry
	}
	t.sent++
	t.platform.UpdateLatency(id, latency)
}

func (t *Tracked) UpdateGameMode(id uuid.UUID, gameMode int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[id]; ok {
		entry.GameMode = gameMode
		t.entries[id] = entry
	}
	t.sent++
	t.platform.UpdateGameMode(id, gameMode)
}

func (t *Tracked) UpdateListed(id uuid.UUID, listed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[id]; ok {
		entry.Listed = listed
		t.entries[id] = entry
	}
	t.sent++
	t.platform.UpdateListed(id, listed)
}

// ContainsEntry reports whether the viewer currently has an entry with the id.
func (t *Tracked) ContainsEntry(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// Entry returns the tracked entry for id.
func (t *Tracked) Entry(id uuid.UUID) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	return entry, ok
}

// Entries returns a copy of every tracked entry ordered by id.
func (t *Tracked) Entries() []Entry {
	t.mu.Lock()
	entries := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	t.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].ID[:], entries[j].ID[:]) < 0
	})
	return entries
}

// Len reports the number of tracked entries.
func (t *Tracked) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// MutationsSent reports how many outbound mutations passed through.
func (t *Tracked) MutationsSent() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

// Clear forgets every entry after the client dropped its whole tab list.
// Expected display names survive since they describe desired state.
func (t *Tracked) Clear() {
	t.mu.Lock()
	t.entries = make(map[uuid.UUID]Entry)
	t.mu.Unlock()
}

// RemoveExpectedDisplayName drops the override for an identity that left.
func (t *Tracked) RemoveExpectedDisplayName(id uuid.UUID) {
	t.mu.Lock()
	delete(t.expected, id)
	t.mu.Unlock()
}

// ExpectedDisplayName returns the override recorded for id, if any.
func (t *Tracked) ExpectedDisplayName(id uuid.UUID) *Component {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expected[id]
}

// OnPacketSend rewrites an inbound vendor packet in place and records its
// effect. The caller forwards the packet afterwards.
func (t *Tracked) OnPacketSend(packet *PlayerInfo) {
	if packet == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rewriteLocked(packet)
}

// Deliver rewrites a vendor packet and forwards it to the platform while still
// holding the connection lock.
func (t *Tracked) Deliver(packet *PlayerInfo) {
	if packet == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rewriteLocked(packet)
	t.forwardLocked(packet)
}

func (t *Tracked) rewriteLocked(packet *PlayerInfo) {
	if packet.Remove {
		for _, record := range packet.Records {
			delete(t.entries, record.ID)
		}
		return
	}
	for i := range packet.Records {
		record := &packet.Records[i]
		if packet.Actions.Has(ActionUpdateDisplayName) {
			if expected, ok := t.expected[record.ID]; ok {
				record.DisplayName = expected
			}
		}
		if packet.Actions.Has(ActionUpdateLatency) {
			record.Latency = t.hooks.OnLatencyChange(record.ID, record.Latency)
		}
		if packet.Actions.Has(ActionAddPlayer) {
			t.hooks.OnEntryAdd(record.ID, record.Name)
		}
		if packet.Actions.Has(ActionUpdateListed) {
			record.Listed = t.hooks.ShouldHideEntry(record.ID, record.Listed)
		}
		t.applyLocked(packet.Actions, *record)
	}
}

func (t *Tracked) applyLocked(actions Action, record Entry) {
	if actions.Has(ActionAddPlayer) {
		t.entries[record.ID] = record
		return
	}
	entry, ok := t.entries[record.ID]
	if !ok {
		return
	}
	if actions.Has(ActionUpdateDisplayName) {
		entry.DisplayName = record.DisplayName
	}
	if actions.Has(ActionUpdateLatency) {
		entry.Latency = record.Latency
	}
	if actions.Has(ActionUpdateGameMode) {
		entry.GameMode = record.GameMode
	}
	if actions.Has(ActionUpdateListed) {
		entry.Listed = record.Listed
	}
	t.entries[record.ID] = entry
}

func (t *Tracked) forwardLocked(packet *PlayerInfo) {
	for _, record := range packet.Records {
		switch {
		case packet.Remove:
			t.platform.RemoveEntry(record.ID)
		case packet.Actions.Has(ActionAddPlayer):
			t.platform.AddEntry(record)
		default:
			if packet.Actions.Has(ActionUpdateDisplayName) {
				t.platform.UpdateDisplayName(record.ID, record.DisplayName)
			}
			if packet.Actions.Has(ActionUpdateLatency) {
				t.platform.UpdateLatency(record.ID, record.Latency)
			}
			if packet.Actions.Has(ActionUpdateGameMode) {
				t.platform.UpdateGameMode(record.ID, record.GameMode)
			}
			if packet.Actions.Has(ActionUpdateListed) {
				t.platform.UpdateListed(record.ID, record.Listed)
			}
		}
	}
}
