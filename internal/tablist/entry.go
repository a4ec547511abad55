package tablist

import "github.com/google/uuid"

// TexturesProperty is the profile property name carrying skin data.
const TexturesProperty = "textures"

// Skin is a texture blob plus its signature. Signatures are passed through
// untouched; verifying them is the client's business.
type Skin struct {
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// Equal reports whether two optional skins carry the same texture.
func (s *Skin) Equal(other *Skin) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Value == other.Value && s.Signature == other.Signature
}

// Component is an opaque, already resolved rich-text handle.
type Component struct {
	Text string `json:"text"`
}

// NewComponent wraps resolved display text.
func NewComponent(text string) *Component {
	return &Component{Text: text}
}

// String returns the wrapped text, or an empty string for nil.
func (c *Component) String() string {
	if c == nil {
		return ""
	}
	return c.Text
}

// Equal compares two optional components by text.
func (c *Component) Equal(other *Component) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Text == other.Text
}

// Entry is a single row a viewer sees in the tab list.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Skin        *Skin      `json:"skin,omitempty"`
	Listed      bool       `json:"listed"`
	Latency     int        `json:"latency"`
	GameMode    int        `json:"gameMode"`
	DisplayName *Component `json:"displayName,omitempty"`
}

// TabList is the platform capability that actually delivers entry mutations to
// one connection. Implementations never need to track state; Tracked does.
type TabList interface {
	AddEntry(entry Entry)
	RemoveEntry(id uuid.UUID)
	UpdateDisplayName(id uuid.UUID, displayName *Component)
	UpdateLatency(id uuid.UUID, latency int)
	UpdateGameMode(id uuid.UUID, gameMode int)
	UpdateListed(id uuid.UUID, listed bool)
}

// Discard is a TabList that drops every mutation.
type Discard struct{}

func (Discard) AddEntry(Entry) {}
func (Discard) RemoveEntry(uuid.UUID) {}
func (Discard) UpdateDisplayName(uuid.UUID, *Component) {}
func (Discard) UpdateLatency(uuid.UUID, int) {}
func (Discard) UpdateGameMode(uuid.UUID, int) {}
func (Discard) UpdateListed(uuid.UUID, bool) {}
