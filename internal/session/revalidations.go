package session

import "sync"

// Revalidations records the clients whose remembered token the backend
// issued or confirmed during this process. A store that tracks it skips the
// /auth/me round trip after the first one.
type Revalidations struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewRevalidations() *Revalidations {
	return &Revalidations{seen: make(map[string]struct{})}
}

func (r *Revalidations) mark(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[clientID] = struct{}{}
}

func (r *Revalidations) forget(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.seen, clientID)
}

func (r *Revalidations) has(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[clientID]
	return ok
}

// Len reports how many clients are marked.
func (r *Revalidations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
