// Package memory implements an in-memory document store for development and
// testing.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"hypertension/internal/domain"
)

type record struct {
	seq  uint64
	data map[string]any
}

// DB implements domain.DocumentStore in memory. Subscriptions receive a new
// snapshot after every write to their collection.
type DB struct {
	mu          sync.Mutex
	collections map[string]map[string]*record
	subs        map[*subscription]struct{}
	seq         uint64
	now         func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used to resolve server timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// New creates a new in-memory database.
func New(opts ...Option) *DB {
	db := &DB{
		collections: make(map[string]map[string]*record),
		subs:        make(map[*subscription]struct{}),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

var _ domain.DocumentStore = (*DB)(nil)

// Subscribe registers q and queues its initial snapshot.
func (db *DB) Subscribe(ctx context.Context, q domain.Query, onSnapshot domain.SnapshotFunc, onError domain.ErrorFunc) (func(), error) {
	if q.Collection == "" {
		return nil, domain.NewStoreError("subscribe", domain.StoreUnknown, errors.New("empty collection"))
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("subscribe", domain.StoreNetwork, err)
	}

	s := newSubscription(q, onSnapshot, onError)

	db.mu.Lock()
	db.subs[s] = struct{}{}
	s.push(event{docs: db.snapshotLocked(q)})
	db.mu.Unlock()

	go s.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			db.mu.Lock()
			delete(db.subs, s)
			db.mu.Unlock()
			s.close()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}, nil
}

// Get returns a single document.
func (db *DB) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := db.collections[collection][id]
	if !ok {
		return domain.Document{}, domain.NewStoreError("get", domain.StoreNotFound, nil)
	}
	return domain.Document{ID: id, Data: maps.Clone(rec.data)}, nil
}

// Create inserts a document under a generated id.
func (db *DB) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()

	db.mu.Lock()
	defer db.mu.Unlock()

	db.putLocked(collection, id, domain.ResolveServerTimestamps(fields, db.now()))
	db.notifyLocked(collection)
	return id, nil
}

// Update merges fields into an existing document.
func (db *DB) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := db.collections[collection][id]
	if !ok {
		return domain.NewStoreError("update", domain.StoreNotFound, nil)
	}
	maps.Copy(rec.data, domain.ResolveServerTimestamps(fields, db.now()))
	db.notifyLocked(collection)
	return nil
}

// Upsert writes a document under id. With merge, existing fields not named in
// fields are kept.
func (db *DB) Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	resolved := domain.ResolveServerTimestamps(fields, db.now())
	if rec, ok := db.collections[collection][id]; ok && merge {
		maps.Copy(rec.data, resolved)
	} else if ok {
		rec.data = resolved
	} else {
		db.putLocked(collection, id, resolved)
	}
	db.notifyLocked(collection)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.collections[collection][id]; !ok {
		return nil
	}
	delete(db.collections[collection], id)
	db.notifyLocked(collection)
	return nil
}

// Fail reports err to every subscription on collection, simulating a broken
// stream. Subscriptions stay registered.
func (db *DB) Fail(collection string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for s := range db.subs {
		if s.query.Collection == collection {
			s.push(event{err: err})
		}
	}
}

func (db *DB) putLocked(collection, id string, data map[string]any) {
	coll, ok := db.collections[collection]
	if !ok {
		coll = make(map[string]*record)
		db.collections[collection] = coll
	}
	db.seq++
	coll[id] = &record{seq: db.seq, data: data}
}

func (db *DB) notifyLocked(collection string) {
	for s := range db.subs {
		if s.query.Collection == collection {
			s.push(event{docs: db.snapshotLocked(s.query)})
		}
	}
}

// snapshotLocked evaluates q in insertion order.
func (db *DB) snapshotLocked(q domain.Query) []domain.Document {
	coll := db.collections[q.Collection]
	recs := make([]*record, 0, len(coll))
	ids := make(map[*record]string, len(coll))
	for id, rec := range coll {
		recs = append(recs, rec)
		ids[rec] = id
	}
	sortBySeq(recs)

	docs := make([]domain.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, domain.Document{ID: ids[rec], Data: maps.Clone(rec.data)})
	}
	return q.Apply(docs)
}
