package admin

import (
	"context"
	"sync"
	"time"

	"homestay/internal/domain"
	"homestay/internal/modules/payment"
	"homestay/internal/view"
)

// Queue is one administrator's review screen: the fetched list, the filter
// text and the selected booking. A decided booking leaves the list only
// once the server has returned its new state.
type Queue struct {
	mu       sync.Mutex
	reviewer Reviewer
	actor    domain.User
	query    Query
	items    []domain.Booking
	filter   string
	selected *view.Panel
	lastUsed time.Time
}

func NewQueue(reviewer Reviewer, actor domain.User) *Queue {
	return &Queue{reviewer: reviewer, actor: actor, lastUsed: time.Now()}
}

// Refresh replaces the list with a fresh read for q.
func (q *Queue) Refresh(ctx context.Context, query Query) error {
	q.mu.Lock()
	reviewer, actor := q.reviewer, q.actor
	q.mu.Unlock()

	list, err := reviewer.List(ctx, actor, query)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.query = query
	q.items = list
	return nil
}

// Items is the list after the current filter.
func (q *Queue) Items() []domain.Booking {
	q.mu.Lock()
	defer q.mu.Unlock()
	return FilterBookings(q.items, q.filter)
}

func (q *Queue) Filter(text string) []domain.Booking {
	q.mu.Lock()
	q.filter = text
	q.mu.Unlock()
	return q.Items()
}

// Select loads the full booking and makes it the one decisions apply to.
// The previous selection is detached so its late results are dropped.
func (q *Queue) Select(ctx context.Context, id domain.ID) (*view.Panel, error) {
	q.mu.Lock()
	reviewer, actor := q.reviewer, q.actor
	q.mu.Unlock()

	b, err := reviewer.Detail(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	panel := view.NewPanel(*b, true)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.selected != nil {
		q.selected.Detach()
	}
	q.selected = panel
	return panel, nil
}

func (q *Queue) Selected() *view.Panel {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.selected
}

func (q *Queue) Approve(ctx context.Context, notes string) (*domain.Booking, error) {
	return q.decide(ctx, view.ActionApprovePayment, payment.Decision{Approved: true, Notes: notes})
}

// Reject needs a reason; without one nothing is sent.
func (q *Queue) Reject(ctx context.Context, reason string) (*domain.Booking, error) {
	return q.decide(ctx, view.ActionRejectPayment, payment.Decision{Notes: reason})
}

func (q *Queue) decide(ctx context.Context, action view.Action, d payment.Decision) (*domain.Booking, error) {
	q.mu.Lock()
	panel, reviewer, actor := q.selected, q.reviewer, q.actor
	q.mu.Unlock()
	if panel == nil {
		return nil, ErrNotSelected
	}
	if err := panel.Begin(action); err != nil {
		return nil, err
	}

	result, err := reviewer.Decide(ctx, actor, panel.Booking(), d)
	panel.Finish(result)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.settle(*result)
	q.mu.Unlock()
	return result, nil
}

// settle updates the row of a decided booking, dropping it once it no longer
// belongs to the current query.
func (q *Queue) settle(b domain.Booking) {
	want := q.query.Status
	if want == "" {
		want = domain.PaymentPendingVerification
	}
	for i := range q.items {
		if q.items[i].ID != b.ID {
			continue
		}
		if b.PaymentStatus != want {
			q.items = append(q.items[:i], q.items[i+1:]...)
		} else {
			q.items[i] = b
		}
		return
	}
}

// Close detaches the selected booking and clears the selection.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.selected != nil {
		q.selected.Detach()
		q.selected = nil
	}
}

func (q *Queue) bind(reviewer Reviewer, actor domain.User, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reviewer = reviewer
	q.actor = actor
	q.lastUsed = now
}

func (q *Queue) idleSince(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return now.Sub(q.lastUsed)
}

// Queues keeps the review screen of every admin client between requests.
type Queues struct {
	mu     sync.Mutex
	queues map[string]*Queue
	idle   time.Duration
	now    func() time.Time
}

func NewQueues(idle time.Duration) *Queues {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Queues{queues: make(map[string]*Queue), idle: idle, now: time.Now}
}

// Get returns the queue of clientID bound to this request's reviewer.
// Queues idle for longer than the configured time are closed on the way.
func (qs *Queues) Get(clientID string, reviewer Reviewer, actor domain.User) *Queue {
	now := qs.now()
	qs.mu.Lock()
	defer qs.mu.Unlock()

	for id, q := range qs.queues {
		if id != clientID && q.idleSince(now) > qs.idle {
			q.Close()
			delete(qs.queues, id)
		}
	}

	q, ok := qs.queues[clientID]
	if !ok || q.actor.ID != actor.ID {
		if ok {
			q.Close()
		}
		q = NewQueue(reviewer, actor)
		qs.queues[clientID] = q
	}
	q.bind(reviewer, actor, now)
	return q
}

func (qs *Queues) Drop(clientID string) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if q, ok := qs.queues[clientID]; ok {
		q.Close()
		delete(qs.queues, clientID)
	}
}

func (qs *Queues) Len() int {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return len(qs.queues)
}
