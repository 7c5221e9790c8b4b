package cache

import "time"

// Policy controls when a cached value may be served without re-fetching and
// when an unreferenced entry may be evicted.
type Policy struct {
	// StaleAfter is how long a ready value stays fresh. Zero means every lookup refetches
	// (concurrent lookups are still coalesced). Ignored when NeverStale is set.
	StaleAfter time.Duration
	// NeverStale keeps a ready value fresh for the lifetime of the entry.
	NeverStale bool
	// Retention is how long an entry without observers is kept after its last access.
	// Zero disables eviction.
	Retention time.Duration
}

func (p Policy) fresh(e entryState, now time.Time) bool {
	if e.Status != StatusReady || !e.HasValue {
		return false
	}
	if p.NeverStale {
		return true
	}
	return now.Sub(e.UpdatedAt) < p.StaleAfter
}

// entryState is the subset of an entry the policy looks at.
type entryState struct {
	Status    Status
	HasValue  bool
	UpdatedAt time.Time
}
