package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"hypertension/internal/domain"
)

const (
	pingInterval = 90 * time.Second
	queryTimeout = 10 * time.Second
)

// subscription re-runs its query whenever it is marked dirty. Refreshes are
// coalesced; each one reads the current state, so no change is lost.
type subscription struct {
	db      *DB
	query   domain.Query
	onSnap  domain.SnapshotFunc
	onError domain.ErrorFunc

	dirty chan struct{}
	errs  chan error
	ctx   context.Context
	stop  context.CancelFunc
}

// Subscribe runs q now and again after every change to its collection.
func (d *DB) Subscribe(ctx context.Context, q domain.Query, onSnapshot domain.SnapshotFunc, onError domain.ErrorFunc) (func(), error) {
	if q.Collection == "" {
		return nil, domain.NewStoreError("subscribe", domain.StoreUnknown, errors.New("empty collection"))
	}
	select {
	case <-d.done:
		return nil, domain.NewStoreError("subscribe", domain.StoreNetwork, errors.New("store closed"))
	default:
	}

	sctx, stop := context.WithCancel(ctx)
	s := &subscription{
		db:      d,
		query:   q,
		onSnap:  onSnapshot,
		onError: onError,
		dirty:   make(chan struct{}, 1),
		errs:    make(chan error, 1),
		ctx:     sctx,
		stop:    stop,
	}

	d.mu.Lock()
	d.subs[s] = struct{}{}
	d.mu.Unlock()

	s.markDirty()
	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, s)
			d.mu.Unlock()
			s.stop()
		})
	}, nil
}

func (s *subscription) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *subscription) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *subscription) run() {
	defer func() {
		s.db.mu.Lock()
		delete(s.db.subs, s)
		s.db.mu.Unlock()
	}()
	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-s.errs:
			if s.onError != nil {
				s.onError(err)
			}
		case <-s.dirty:
			ctx, cancel := context.WithTimeout(s.ctx, queryTimeout)
			docs, err := s.db.query(ctx, s.query)
			cancel()
			if s.ctx.Err() != nil {
				return
			}
			if err != nil {
				s.db.log.Warn().Err(err).Str("collection", s.query.Collection).Msg("subscription refresh failed")
				if s.onError != nil {
					s.onError(err)
				}
				continue
			}
			s.onSnap(docs)
		}
	}
}

// dispatch fans notifications out to the affected subscriptions.
func (d *DB) dispatch() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case n, ok := <-d.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected: notifications may have been missed.
				d.each(func(s *subscription) { s.markDirty() })
				continue
			}
			collection := n.Extra
			d.each(func(s *subscription) {
				if s.query.Collection == collection {
					s.markDirty()
				}
			})
		case <-time.After(pingInterval):
			go func() { _ = d.listener.Ping() }()
		}
	}
}

func (d *DB) each(fn func(*subscription)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.subs {
		fn(s)
	}
}

func (d *DB) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		d.log.Debug().Msg("listener connected")
	case pq.ListenerEventReconnected:
		d.log.Info().Msg("listener reconnected")
	case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
		d.log.Warn().Err(err).Msg("listener connection lost")
		serr := domain.NewStoreError("listen", domain.StoreNetwork, err)
		d.each(func(s *subscription) { s.fail(serr) })
	}
}
