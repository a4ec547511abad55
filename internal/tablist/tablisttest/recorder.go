// Package tablisttest provides a recording tablist.TabList for tests.
package tablisttest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tab-overlay/server/internal/tablist"
)

// Op names a recorded mutation.
type Op string

const (
	OpAdd         Op = "add"
	OpRemove      Op = "remove"
	OpDisplayName Op = "displayName"
	OpLatency     Op = "latency"
	OpGameMode    Op = "gameMode"
	OpListed      Op = "listed"
)

// Call is one recorded mutation.
type Call struct {
	Op          Op
	ID          uuid.UUID
	Entry       tablist.Entry
	DisplayName *tablist.Component
	Latency     int
	GameMode    int
	Listed      bool
}

func (c Call) String() string {
	switch c.Op {
	case OpAdd:
		return fmt.Sprintf("add(%s,%q)", c.ID, c.Entry.DisplayName.String())
	case OpDisplayName:
		return fmt.Sprintf("displayName(%s,%q)", c.ID, c.DisplayName.String())
	case OpLatency:
		return fmt.Sprintf("latency(%s,%d)", c.ID, c.Latency)
	case OpListed:
		return fmt.Sprintf("listed(%s,%t)", c.ID, c.Listed)
	default:
		return fmt.Sprintf("%s(%s)", c.Op, c.ID)
	}
}

// Recorder records every mutation it receives.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(call Call) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *Recorder) AddEntry(entry tablist.Entry) {
	r.record(Call{Op: OpAdd, ID: entry.ID, Entry: entry})
}

func (r *Recorder) RemoveEntry(id uuid.UUID) {
	r.record(Call{Op: OpRemove, ID: id})
}

func (r *Recorder) UpdateDisplayName(id uuid.UUID, displayName *tablist.Component) {
	r.record(Call{Op: OpDisplayName, ID: id, DisplayName: displayName})
}

func (r *Recorder) UpdateLatency(id uuid.UUID, latency int) {
	r.record(Call{Op: OpLatency, ID: id, Latency: latency})
}

func (r *Recorder) UpdateGameMode(id uuid.UUID, gameMode int) {
	r.record(Call{Op: OpGameMode, ID: id, GameMode: gameMode})
}

func (r *Recorder) UpdateListed(id uuid.UUID, listed bool) {
	r.record(Call{Op: OpListed, ID: id, Listed: listed})
}

// Calls returns a copy of the recorded mutations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsFor returns the recorded mutations touching id.
func (r *Recorder) CallsFor(id uuid.UUID) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, call := range r.calls {
		if call.ID == id {
			out = append(out, call)
		}
	}
	return out
}

// Count returns how many mutations of kind op were recorded.
func (r *Recorder) Count(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, call := range r.calls {
		if call.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets every recorded mutation.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
