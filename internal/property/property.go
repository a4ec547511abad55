// Package property holds per-viewer text values whose resolved form is cached
// so callers can ask whether it changed since the last look.
package property

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Resolver turns raw configured text into the string shown to one viewer.
type Resolver interface {
	Resolve(viewer uuid.UUID, raw string) string
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(viewer uuid.UUID, raw string) string

func (f ResolverFunc) Resolve(viewer uuid.UUID, raw string) string {
	if f == nil {
		return raw
	}
	return f(viewer, raw)
}

// Identity returns raw text unchanged.
var Identity Resolver = ResolverFunc(func(_ uuid.UUID, raw string) string { return raw })

// Property is one raw value bound to a viewer, plus the last resolved output.
type Property struct {
	mu       sync.Mutex
	owner    string
	viewer   uuid.UUID
	raw      string
	resolver Resolver
	last     string
	resolved bool
}

// New creates a property. A nil resolver leaves raw text unchanged.
func New(owner string, viewer uuid.UUID, raw string, resolver Resolver) *Property {
	if resolver == nil {
		resolver = Identity
	}
	return &Property{owner: owner, viewer: viewer, raw: raw, resolver: resolver}
}

// Owner names the feature that created the property.
func (p *Property) Owner() string {
	return p.owner
}

// Raw returns the unresolved text.
func (p *Property) Raw() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raw
}

// SetRaw replaces the raw text and reports whether it differed. The cached
// value is kept so the next Update reports the visible change.
func (p *Property) SetRaw(owner, raw string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = owner
	if p.raw == raw {
		return false
	}
	p.raw = raw
	return true
}

// Get returns the last resolved value, resolving once if needed.
func (p *Property) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.resolved {
		p.updateLocked()
	}
	return p.last
}

// Update re-resolves the value and reports whether it changed.
func (p *Property) Update() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateLocked()
}

// UpdateAndGet forces re-resolution and returns the fresh value.
func (p *Property) UpdateAndGet() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateLocked()
	return p.last
}

func (p *Property) updateLocked() bool {
	value := p.resolver.Resolve(p.viewer, p.raw)
	changed := !p.resolved || value != p.last
	p.last = value
	p.resolved = true
	return changed
}

// Values is a Resolver substituting %key% tokens from a shared table. It
// stands in for a full placeholder engine.
type Values struct {
	mu     sync.RWMutex
	global map[string]string
	viewer map[uuid.UUID]map[string]string
}

// NewValues returns an empty table.
func NewValues() *Values {
	return &Values{
		global: make(map[string]string),
		viewer: make(map[uuid.UUID]map[string]string),
	}
}

// Set stores a value shared by every viewer.
func (v *Values) Set(key, value string) {
	v.mu.Lock()
	v.global[key] = value
	v.mu.Unlock()
}

// SetFor stores a value seen by one viewer only. It shadows Set.
func (v *Values) SetFor(viewer uuid.UUID, key, value string) {
	v.mu.Lock()
	values, ok := v.viewer[viewer]
	if !ok {
		values = make(map[string]string)
		v.viewer[viewer] = values
	}
	values[key] = value
	v.mu.Unlock()
}

// Forget drops the viewer-specific values.
func (v *Values) Forget(viewer uuid.UUID) {
	v.mu.Lock()
	delete(v.viewer, viewer)
	v.mu.Unlock()
}

func (v *Values) Resolve(viewer uuid.UUID, raw string) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	own := v.viewer[viewer]
	var out strings.Builder
	rest := raw
	for {
		start := strings.IndexByte(rest, '%')
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+1:], '%')
		if end < 0 {
			out.WriteString(rest)
			break
		}
		key := rest[start+1 : start+1+end]
		out.WriteString(rest[:start])
		if value, ok := own[key]; ok {
			out.WriteString(value)
		} else if value, ok := v.global[key]; ok {
			out.WriteString(value)
		} else {
			out.WriteString(rest[start : start+end+2])
		}
		rest = rest[start+end+2:]
	}
	return out.String()
}
