// Package skin resolves configured skin definitions into textures for layout
// slots.
package skin

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"tab-overlay/server/internal/tablist"
	"tab-overlay/server/internal/telemetry"
)

// ErrUnknownSource is returned for definitions without a known prefix.
var ErrUnknownSource = errors.New("skin: unknown source")

// Source loads the skin described by the text after its prefix.
type Source interface {
	Prefix() string
	Load(value string) (*tablist.Skin, error)
}

// SignedTexture reads "texture;signature" values.
type SignedTexture struct{}

func (SignedTexture) Prefix() string { return "signed_texture" }

func (SignedTexture) Load(value string) (*tablist.Skin, error) {
	texture, signature, _ := strings.Cut(value, ";")
	if texture == "" {
		return nil, fmt.Errorf("signed texture %q: missing texture", value)
	}
	return &tablist.Skin{Value: texture, Signature: signature}, nil
}

// Texture reads an unsigned texture value.
type Texture struct{}

func (Texture) Prefix() string { return "texture" }

func (Texture) Load(value string) (*tablist.Skin, error) {
	if value == "" {
		return nil, errors.New("texture: empty value")
	}
	return &tablist.Skin{Value: value}, nil
}

// PlayerLookup returns the skin of a connected player by name.
type PlayerLookup func(name string) *tablist.Skin

// Players copies the skin of an online player.
type Players struct {
	Lookup PlayerLookup
}

func (Players) Prefix() string { return "player" }

func (s Players) Load(value string) (*tablist.Skin, error) {
	if s.Lookup == nil {
		return nil, fmt.Errorf("player %q: no lookup configured", value)
	}
	found := s.Lookup(value)
	if found == nil {
		return nil, fmt.Errorf("player %q: not online", value)
	}
	copied := *found
	return &copied, nil
}

// Range assigns a default skin definition to slots From..To inclusive.
type Range struct {
	From int
	To   int
	Skin string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSource registers an additional source, replacing one with the same
// prefix.
func WithSource(source Source) Option {
	return func(m *Manager) {
		m.sources[source.Prefix()] = source
	}
}

// WithLogger reports definitions that failed to load.
func WithLogger(logger telemetry.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager caches loaded skins by definition. Failed definitions are cached
// too so they are reported once.
type Manager struct {
	defaultSkin string
	ranges      []Range
	sources     map[string]Source
	logger      telemetry.Logger

	mu      sync.RWMutex
	cache   map[string]*tablist.Skin
	invalid map[string]error
	loads   singleflight.Group
}

// NewManager creates a manager whose fallback definition is defaultSkin and
// whose per-slot defaults come from ranges.
func NewManager(defaultSkin string, ranges []Range, opts ...Option) *Manager {
	m := &Manager{
		defaultSkin: defaultSkin,
		ranges:      append([]Range(nil), ranges...),
		sources:     make(map[string]Source),
		logger:      telemetry.LoggerFunc(nil),
		cache:       make(map[string]*tablist.Skin),
		invalid:     make(map[string]error),
	}
	for _, source := range []Source{SignedTexture{}, Texture{}} {
		m.sources[source.Prefix()] = source
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// DefaultDefinition returns the skin definition a slot falls back to.
func (m *Manager) DefaultDefinition(slot int) string {
	for _, r := range m.ranges {
		if slot >= r.From && slot <= r.To {
			return r.Skin
		}
	}
	return m.defaultSkin
}

// DefaultSkin returns the loaded fallback skin of a slot.
func (m *Manager) DefaultSkin(slot int) *tablist.Skin {
	return m.GetSkin(m.DefaultDefinition(slot))
}

// GetSkin loads "source:value" or returns nil when the definition is empty or
// cannot be loaded.
func (m *Manager) GetSkin(definition string) *tablist.Skin {
	definition = strings.TrimSpace(definition)
	if definition == "" {
		return nil
	}
	m.mu.RLock()
	skin, cached := m.cache[definition]
	_, failed := m.invalid[definition]
	m.mu.RUnlock()
	if cached {
		return skin
	}
	if failed {
		return nil
	}

	value, err, _ := m.loads.Do(definition, func() (any, error) {
		return m.load(definition)
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if _, seen := m.invalid[definition]; !seen {
			m.invalid[definition] = err
			m.logger.Printf("invalid skin definition %q: %v", definition, err)
		}
		return nil
	}
	skin = value.(*tablist.Skin)
	m.cache[definition] = skin
	return skin
}

func (m *Manager) load(definition string) (*tablist.Skin, error) {
	prefix, value, ok := strings.Cut(definition, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, definition)
	}
	source, ok := m.sources[prefix]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, prefix)
	}
	return source.Load(value)
}

// Invalid lists definitions that failed to load.
func (m *Manager) Invalid() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]error, len(m.invalid))
	for definition, err := range m.invalid {
		out[definition] = err
	}
	return out
}

// Unload forgets every cached skin.
func (m *Manager) Unload() {
	m.mu.Lock()
	m.cache = make(map[string]*tablist.Skin)
	m.invalid = make(map[string]error)
	m.mu.Unlock()
}
