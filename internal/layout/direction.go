package layout

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxSlots is the number of addressable slots in the overlay.
	MaxSlots = 80
	// SlotsPerColumn is the height of one column, and the page size used
	// when rounding the highest occupied slot.
	SlotsPerColumn = 20
	columns        = MaxSlots / SlotsPerColumn
)

// Direction decides whether slot numbers run down columns or across rows.
type Direction int

const (
	Columns Direction = iota
	Rows
)

func (d Direction) String() string {
	if d == Rows {
		return "ROWS"
	}
	return "COLUMNS"
}

// ParseDirection accepts COLUMNS or ROWS in any case.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COLUMNS":
		return Columns, nil
	case "ROWS":
		return Rows, nil
	default:
		return Columns, fmt.Errorf("unknown layout direction %q", raw)
	}
}

// TranslateSlot maps a configured slot number to the position the client
// sorts it at.
func (d Direction) TranslateSlot(slot int) int {
	if d == Rows {
		return (slot-1)%columns*SlotsPerColumn + (slot-((slot-1)%columns))/columns + 1
	}
	return slot
}

// EntryName is the profile name of a slot entry. Clients order entries by
// name, so it encodes the translated slot.
func (d Direction) EntryName(slot int) string {
	return fmt.Sprintf("|slot_%d", 10+d.TranslateSlot(slot))
}

// SlotID derives the synthetic identity of a slot. The high half is zero,
// which random participant ids never are.
func SlotID(d Direction, slot int) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], uint64(d.TranslateSlot(slot)))
	return id
}

// IsSlotID reports whether id lies in the synthetic slot partition.
func IsSlotID(id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	return binary.BigEndian.Uint64(id[:8]) == 0
}

// ValidSlot reports whether slot is addressable.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= MaxSlots
}
