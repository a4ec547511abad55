package layout

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"tab-overlay/server/internal/player"
)

type sortedItem struct {
	key    string
	player *player.Player
}

func lessSorted(a, b sortedItem) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	ida, idb := a.player.ID(), b.player.ID()
	return bytes.Compare(ida[:], idb[:]) < 0
}

// SortedIndex keeps online players ordered by sort key. Equal keys are ordered
// by player id so the order is total.
type SortedIndex struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[sortedItem]
	keys map[*player.Player]string
}

func NewSortedIndex() *SortedIndex {
	return &SortedIndex{
		tree: btree.NewG(16, lessSorted),
		keys: make(map[*player.Player]string),
	}
}

// Insert adds p under key, repositioning it if already present.
func (s *SortedIndex) Insert(p *player.Player, key string) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(p, key)
}

// Reposition moves p to key. It reports false when p is not indexed.
func (s *SortedIndex) Reposition(p *player.Player, key string) bool {
	if p == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[p]; !ok {
		return false
	}
	s.putLocked(p, key)
	return true
}

func (s *SortedIndex) putLocked(p *player.Player, key string) {
	if old, ok := s.keys[p]; ok {
		if old == key {
			return
		}
		s.tree.Delete(sortedItem{key: old, player: p})
	}
	s.keys[p] = key
	s.tree.ReplaceOrInsert(sortedItem{key: key, player: p})
}

// Remove drops p and reports whether it was indexed.
func (s *SortedIndex) Remove(p *player.Player) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[p]
	if !ok {
		return false
	}
	delete(s.keys, p)
	s.tree.Delete(sortedItem{key: key, player: p})
	return true
}

// Snapshot returns the players in order. The slice is owned by the caller.
func (s *SortedIndex) Snapshot() []*player.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*player.Player, 0, s.tree.Len())
	s.tree.Ascend(func(item sortedItem) bool {
		out = append(out, item.player)
		return true
	})
	return out
}

// Key returns the key p is indexed under.
func (s *SortedIndex) Key(p *player.Player) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[p]
	return key, ok
}

func (s *SortedIndex) Contains(p *player.Player) bool {
	_, ok := s.Key(p)
	return ok
}

func (s *SortedIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}
