package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"hypertension/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock ports (function-fields pattern)
// ---------------------------------------------------------------------------

type mockStore struct {
	subscribeFn func(ctx context.Context, q domain.Query, on domain.SnapshotFunc, onErr domain.ErrorFunc) (func(), error)
	getFn       func(ctx context.Context, collection, id string) (domain.Document, error)
	createFn    func(ctx context.Context, collection string, fields map[string]any) (string, error)
	updateFn    func(ctx context.Context, collection, id string, fields map[string]any) error
	upsertFn    func(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	deleteFn    func(ctx context.Context, collection, id string) error
}

func (m *mockStore) Subscribe(ctx context.Context, q domain.Query, on domain.SnapshotFunc, onErr domain.ErrorFunc) (func(), error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, q, on, onErr)
	}
	return func() {}, nil
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, collection, id)
	}
	return domain.Document{}, domain.NewStoreError("get", domain.StoreNotFound, nil)
}

func (m *mockStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, collection, fields)
	}
	return "new-id", nil
}

func (m *mockStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, collection, id, fields)
	}
	return nil
}

func (m *mockStore) Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, id, fields, merge)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, collection, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, collection, id)
	}
	return nil
}

type mockAuth struct {
	signUpFn  func(ctx context.Context, email, password string) (domain.Principal, error)
	signInFn  func(ctx context.Context, email, password string) (domain.Principal, error)
	signOutFn func(ctx context.Context, p domain.Principal) error
}

func (m *mockAuth) SignUp(ctx context.Context, email, password string) (domain.Principal, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return domain.Principal{UID: "uid-1", Email: email}, nil
}

func (m *mockAuth) SignIn(ctx context.Context, email, password string) (domain.Principal, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return domain.Principal{UID: "uid-1", Email: email}, nil
}

func (m *mockAuth) SignOut(ctx context.Context, p domain.Principal) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, p)
	}
	return nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, s domain.Session) error
	getByTokenFn    func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s domain.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

type mockScheduler struct {
	scheduleFn func(ctx context.Context, at domain.DailyTime, r domain.Reminder) error
}

func (m *mockScheduler) ScheduleRecurring(ctx context.Context, at domain.DailyTime, r domain.Reminder) error {
	if m.scheduleFn != nil {
		return m.scheduleFn(ctx, at, r)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Stream helpers
// ---------------------------------------------------------------------------

// streams records subscriptions by collection so tests can push snapshots.
type streams struct {
	mu   sync.Mutex
	subs map[string][]domain.SnapshotFunc
	errs map[string][]domain.ErrorFunc
	q    map[string]domain.Query
}

func newStreams() *streams {
	return &streams{
		subs: map[string][]domain.SnapshotFunc{},
		errs: map[string][]domain.ErrorFunc{},
		q:    map[string]domain.Query{},
	}
}

func (s *streams) subscribe(_ context.Context, q domain.Query, on domain.SnapshotFunc, onErr domain.ErrorFunc) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[q.Collection] = append(s.subs[q.Collection], on)
	s.errs[q.Collection] = append(s.errs[q.Collection], onErr)
	s.q[q.Collection] = q
	return func() {}, nil
}

func (s *streams) push(collection string, docs ...domain.Document) {
	s.mu.Lock()
	subs := append([]domain.SnapshotFunc(nil), s.subs[collection]...)
	s.mu.Unlock()
	for _, on := range subs {
		on(docs)
	}
}

func (s *streams) fail(collection string, err error) {
	s.mu.Lock()
	errs := append([]domain.ErrorFunc(nil), s.errs[collection]...)
	s.mu.Unlock()
	for _, on := range errs {
		on(err)
	}
}

func (s *streams) query(collection string) domain.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q[collection]
}

// recorder collects feed updates.
type recorder[V any] struct {
	mu    sync.Mutex
	views []V
	errs  []error
}

func (r *recorder[V]) emit(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recorder[V]) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[V]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recorder[V]) last(t *testing.T) V {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		t.Fatal("no view emitted")
	}
	return r.views[len(r.views)-1]
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func patient(uid string) *domain.Session {
	return &domain.Session{Token: "t-" + uid, UID: uid, Email: uid + "@example.com", Role: domain.RolePatient}
}

func doctor(uid string) *domain.Session {
	return &domain.Session{Token: "t-" + uid, UID: uid, Email: uid + "@clinic.example.com", Role: domain.RoleDoctor}
}

func doc(id string, data map[string]any) domain.Document {
	return domain.Document{ID: id, Data: data}
}

var t0 = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
