package player

import (
	"sync"

	"github.com/google/uuid"
)

// Registry keeps online players in join order.
type Registry struct {
	mu      sync.RWMutex
	order   []*Player
	byID    map[uuid.UUID]*Player
	byTabID map[uuid.UUID]*Player
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[uuid.UUID]*Player),
		byTabID: make(map[uuid.UUID]*Player),
	}
}

// Add registers p. Adding a player twice is a no-op.
func (r *Registry) Add(p *Player) bool {
	if p == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID()]; ok {
		return false
	}
	r.order = append(r.order, p)
	r.byID[p.ID()] = p
	r.byTabID[p.TabListID()] = p
	return true
}

// Remove unregisters p and reports whether it was present.
func (r *Registry) Remove(p *Player) bool {
	if p == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID()]; !ok {
		return false
	}
	delete(r.byID, p.ID())
	delete(r.byTabID, p.TabListID())
	for i, candidate := range r.order {
		if candidate == p {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(id uuid.UUID) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// ByTabListID resolves the player whose roster entry carries id.
func (r *Registry) ByTabListID(id uuid.UUID) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byTabID[id]
}

// Online returns a join-ordered snapshot.
func (r *Registry) Online() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Player(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
