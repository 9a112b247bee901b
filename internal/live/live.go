// Package live maintains standing queries against the document store and
// delivers decoded result sets to a consumer.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"hypertension/internal/domain"
)

// ErrClosed is reported when a subscription is used after Close.
var ErrClosed = errors.New("subscription closed")

// DecodeFunc maps a raw document to a record.
type DecodeFunc[T any] func(domain.Document) (T, error)

// Handler receives the output of a subscription. OnError may be nil.
type Handler[T any] struct {
	OnSnapshot func([]T)
	OnError    func(error)
}

// Subscription is a standing query. Every delivery is the complete current
// result set; a snapshot containing an undecodable record is reported as an
// error and the previous set stays current.
type Subscription[T any] struct {
	collection string
	decode     DecodeFunc[T]
	handler    Handler[T]

	closed     atomic.Bool
	inCallback atomic.Bool
	deliver    sync.Mutex

	mu      sync.Mutex
	last    []T
	hasLast bool
	cancel  func()
	stopCtx func() bool
	once    sync.Once
}

// Subscribe starts q against store. The subscription ends when Close is
// called or ctx is done.
func Subscribe[T any](ctx context.Context, store domain.DocumentStore, q domain.Query, decode DecodeFunc[T], h Handler[T]) (*Subscription[T], error) {
	if h.OnSnapshot == nil {
		return nil, errors.New("live: nil snapshot handler")
	}
	s := &Subscription[T]{collection: q.Collection, decode: decode, handler: h}

	cancel, err := store.Subscribe(ctx, q, s.onSnapshot, s.onError)
	if err != nil {
		s.closed.Store(true)
		return nil, &domain.SubscriptionError{Collection: q.Collection, Err: err}
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	if s.closed.Load() {
		// Closed from inside the initial delivery.
		cancel()
		return s, nil
	}

	s.mu.Lock()
	s.stopCtx = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()
	return s, nil
}

// Collection is the name of the queried collection.
func (s *Subscription[T]) Collection() string { return s.collection }

// Last returns a copy of the last delivered result set. ok is false until the
// first successful delivery.
func (s *Subscription[T]) Last() (items []T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.last...), s.hasLast
}

// Closed reports whether Close has been called.
func (s *Subscription[T]) Closed() bool { return s.closed.Load() }

// Close cancels the subscription. It is idempotent and may be called from
// inside a handler. Once it returns no further handler call starts. A
// handler call already running when Close is invoked, whether on the
// closing goroutine or another one, may still be finishing.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		cancel, stop := s.cancel, s.stopCtx
		s.last, s.hasLast = nil, false
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		if cancel != nil {
			cancel()
		}
	})
	if !s.inCallback.Load() {
		s.deliver.Lock()
		s.deliver.Unlock() //nolint:staticcheck // wait for a delivery that passed the closed check
	}
}

func (s *Subscription[T]) onSnapshot(docs []domain.Document) {
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		item, err := s.decode(d)
		if err != nil {
			s.onError(fmt.Errorf("decode %s/%s: %w", s.collection, d.ID, err))
			return
		}
		items = append(items, item)
	}

	s.run(func() {
		s.mu.Lock()
		s.last, s.hasLast = items, true
		s.mu.Unlock()
		s.handler.OnSnapshot(append([]T(nil), items...))
	})
}

func (s *Subscription[T]) onError(err error) {
	var subErr *domain.SubscriptionError
	if !errors.As(err, &subErr) {
		subErr = &domain.SubscriptionError{Collection: s.collection, Err: err}
	}
	if s.handler.OnError == nil {
		return
	}
	s.run(func() { s.handler.OnError(subErr) })
}

func (s *Subscription[T]) run(fn func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	if s.closed.Load() {
		return
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
}
