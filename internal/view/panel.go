package view

import (
	"errors"
	"sync"

	"homestay/internal/domain"
)

var (
	ErrDetached   = errors.New("view is no longer mounted")
	ErrBusy       = errors.New("another action is in progress")
	ErrNotAllowed = errors.New("action is not available in the current state")
)

// Panel is the state of one mounted booking view. Server responses are the
// only input: Apply replaces the booking and recomputes the projection.
type Panel struct {
	mu         sync.Mutex
	booking    domain.Booking
	projection Projection
	admin      bool
	busy       bool
	detached   bool
}

func NewPanel(b domain.Booking, admin bool) *Panel {
	p := &Panel{admin: admin}
	p.set(b)
	return p
}

func (p *Panel) set(b domain.Booking) {
	p.booking = b
	if p.admin {
		p.projection = ProjectForAdmin(b)
	} else {
		p.projection = Project(b)
	}
}

// Apply takes a server-confirmed booking. It reports false when the view was
// detached or the booking is a different one; the result is then dropped.
func (p *Panel) Apply(b domain.Booking) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached || b.ID != p.booking.ID {
		return false
	}
	p.set(b)
	return true
}

// Begin marks action as in flight. A second Begin before Finish fails, which
// is what keeps a double click from firing twice.
func (p *Panel) Begin(action Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.detached:
		return ErrDetached
	case p.busy:
		return ErrBusy
	}
	allowed := false
	for _, a := range p.projection.Actions {
		if a == action {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrNotAllowed
	}
	p.busy = true
	return nil
}

// Finish ends the in-flight action and applies the server result, if any.
func (p *Panel) Finish(result *domain.Booking) bool {
	p.mu.Lock()
	p.busy = false
	p.mu.Unlock()
	if result == nil {
		return false
	}
	return p.Apply(*result)
}

func (p *Panel) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached = true
}

func (p *Panel) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.detached
}

func (p *Panel) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

func (p *Panel) Booking() domain.Booking {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.booking
}

func (p *Panel) Projection() Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projection
}
