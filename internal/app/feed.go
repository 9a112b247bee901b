package app

import (
	"context"
	"sync"
	"sync/atomic"

	"hypertension/internal/domain"
	"hypertension/internal/live"
)

// Feed is a running live view. Each update replaces the previous one; Close
// releases the underlying subscriptions and no update starts after Close
// returns, including results of enrichment still in flight. An emit already
// running when Close is invoked may still be finishing.
type Feed struct {
	ctx    context.Context
	cancel context.CancelFunc

	gen      atomic.Uint64
	closed   atomic.Bool
	inEmit   atomic.Bool
	emitMu   sync.Mutex
	closers  []func()
	closeMu  sync.Mutex
	onError  func(error)
	closeOne sync.Once
}

func newFeed(ctx context.Context, onError func(error)) *Feed {
	fctx, cancel := context.WithCancel(ctx)
	f := &Feed{ctx: fctx, cancel: cancel, onError: onError}
	context.AfterFunc(fctx, f.Close)
	return f
}

// Close stops the feed. It is idempotent and may be called from an update
// callback.
func (f *Feed) Close() {
	f.closeOne.Do(func() {
		f.closed.Store(true)
		f.cancel()
		f.closeMu.Lock()
		closers := f.closers
		f.closers = nil
		f.closeMu.Unlock()
		for _, c := range closers {
			c()
		}
	})
	if !f.inEmit.Load() {
		f.emitMu.Lock()
		f.emitMu.Unlock() //nolint:staticcheck // wait out an emit that passed the closed check
	}
}

// Done is closed when the feed stops.
func (f *Feed) Done() <-chan struct{} { return f.ctx.Done() }

func (f *Feed) addCloser(c func()) {
	f.closeMu.Lock()
	if f.closed.Load() {
		f.closeMu.Unlock()
		c()
		return
	}
	f.closers = append(f.closers, c)
	f.closeMu.Unlock()
}

// next starts a new generation; results tagged with an older one are dropped.
func (f *Feed) next() uint64 { return f.gen.Add(1) }

func (f *Feed) publish(gen uint64, fn func()) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	if f.closed.Load() || gen != f.gen.Load() {
		return
	}
	f.inEmit.Store(true)
	defer f.inEmit.Store(false)
	fn()
}

// now publishes fn under a fresh generation.
func (f *Feed) now(fn func()) { f.publish(f.next(), fn) }

func (f *Feed) fail(err error) {
	if f.onError == nil {
		return
	}
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	if f.closed.Load() {
		return
	}
	f.inEmit.Store(true)
	defer f.inEmit.Store(false)
	f.onError(err)
}

// watch binds a live subscription to the feed.
func watch[T any](f *Feed, store domain.DocumentStore, q domain.Query, decode live.DecodeFunc[T], onSnapshot func([]T)) error {
	sub, err := live.Subscribe(f.ctx, store, q, decode, live.Handler[T]{
		OnSnapshot: onSnapshot,
		OnError:    f.fail,
	})
	if err != nil {
		return err
	}
	f.addCloser(sub.Close)
	return nil
}

// watchAsync is watch for views whose projection does I/O. project runs off
// the delivery goroutine; its result is emitted only if no newer snapshot has
// arrived and the feed is still open.
func watchAsync[T, V any](f *Feed, store domain.DocumentStore, q domain.Query, decode live.DecodeFunc[T], project func(context.Context, []T) V, emit func(V)) error {
	return watch(f, store, q, decode, func(items []T) {
		gen := f.next()
		go func() {
			v := project(f.ctx, items)
			f.publish(gen, func() { emit(v) })
		}()
	})
}
