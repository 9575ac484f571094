package auth

import (
	"sync"
	"time"
)

// revocationList remembers logged-out token ids until their expiry
type revocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{entries: make(map[string]time.Time)}
}

// revoke adds id and drops entries whose tokens have already expired
func (r *revocationList) revoke(id string, until, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, exp := range r.entries {
		if !exp.After(now) {
			delete(r.entries, k)
		}
	}
	r.entries[id] = until
}

func (r *revocationList) contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[id]
	return ok
}

func (r *revocationList) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
