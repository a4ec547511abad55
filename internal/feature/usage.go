package feature

import (
	"sort"
	"sync"
	"time"
)

// Usage accumulates handler time per feature and category.
type Usage struct {
	mu      sync.Mutex
	samples map[usageKey]*usageTotal
}

type usageKey struct {
	feature  string
	category Category
}

type usageTotal struct {
	total time.Duration
	calls uint64
}

// UsageSample is one row of a usage snapshot.
type UsageSample struct {
	Feature  string        `json:"feature"`
	Category Category      `json:"category"`
	Total    time.Duration `json:"totalNanos"`
	Calls    uint64        `json:"calls"`
}

func NewUsage() *Usage {
	return &Usage{samples: make(map[usageKey]*usageTotal)}
}

func (u *Usage) Add(feature string, category Category, elapsed time.Duration) {
	if u == nil {
		return
	}
	key := usageKey{feature: feature, category: category}
	u.mu.Lock()
	total, ok := u.samples[key]
	if !ok {
		total = &usageTotal{}
		u.samples[key] = total
	}
	total.total += elapsed
	total.calls++
	u.mu.Unlock()
}

// Snapshot returns every sample ordered by feature then category.
func (u *Usage) Snapshot() []UsageSample {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	out := make([]UsageSample, 0, len(u.samples))
	for key, total := range u.samples {
		out = append(out, UsageSample{Feature: key.feature, Category: key.category, Total: total.total, Calls: total.calls})
	}
	u.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Feature != out[j].Feature {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Reset forgets every sample.
func (u *Usage) Reset() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.samples = make(map[usageKey]*usageTotal)
	u.mu.Unlock()
}
