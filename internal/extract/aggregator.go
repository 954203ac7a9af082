package extract

import (
	"sort"
	"sync"
)

// Aggregator collects candidates from all pages into a set. It is safe for
// concurrent use.
type Aggregator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{seen: make(map[string]struct{})}
}

// Add inserts candidates; duplicates collapse silently
func (a *Aggregator) Add(candidates ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range candidates {
		a.seen[c] = struct{}{}
	}
}

// Len returns the number of unique candidates
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// Finalize returns the unique candidates in ascending order
func (a *Aggregator) Finalize() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.seen))
	for c := range a.seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
