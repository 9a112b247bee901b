package memory

import (
	"cmp"
	"slices"
	"sync"

	"hypertension/internal/domain"
)

type event struct {
	docs []domain.Document
	err  error
}

// subscription delivers queued events on its own goroutine, one at a time and
// in the order they were queued.
type subscription struct {
	query   domain.Query
	onSnap  domain.SnapshotFunc
	onError domain.ErrorFunc

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []event
	closed bool
}

func newSubscription(q domain.Query, onSnap domain.SnapshotFunc, onError domain.ErrorFunc) *subscription {
	s := &subscription{query: q, onSnap: onSnap, onError: onError}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) push(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
}

func (s *subscription) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if e.err != nil {
			if s.onError != nil {
				s.onError(e.err)
			}
			continue
		}
		s.onSnap(e.docs)
	}
}

func sortBySeq(recs []*record) {
	slices.SortFunc(recs, func(a, b *record) int { return cmp.Compare(a.seq, b.seq) })
}
