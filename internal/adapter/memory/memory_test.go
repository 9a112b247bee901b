package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hypertension/internal/domain"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func subscribe(t *testing.T, db *DB, q domain.Query) (<-chan []domain.Document, <-chan error, func()) {
	t.Helper()
	snaps := make(chan []domain.Document, 16)
	errs := make(chan error, 4)
	cancel, err := db.Subscribe(context.Background(), q,
		func(docs []domain.Document) { snaps <- docs },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	t.Cleanup(cancel)
	return snaps, errs, cancel
}

func next(t *testing.T, ch <-chan []domain.Document) []domain.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func docIDs(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestDocumentLifecycle(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	db := New(WithClock(fixedClock(start)))
	ctx := context.Background()

	id, err := db.Create(ctx, domain.CollectionReadings, domain.ReadingFields("u1", 150, 95))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := db.Get(ctx, domain.CollectionReadings, id)
	require.NoError(t, err)
	created, ok := doc.Time("createdAt")
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Minute), created)

	r, err := domain.DecodeReading(doc)
	require.NoError(t, err)
	assert.Equal(t, 150, r.Systolic)

	require.NoError(t, db.Update(ctx, domain.CollectionReadings, id, map[string]any{"systolic": 140}))
	doc, _ = db.Get(ctx, domain.CollectionReadings, id)
	assert.Equal(t, 140, doc.Data["systolic"])
	assert.Equal(t, 95, doc.Data["diastolic"])

	require.NoError(t, db.Delete(ctx, domain.CollectionReadings, id))
	_, err = db.Get(ctx, domain.CollectionReadings, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, db.Delete(ctx, domain.CollectionReadings, id))
}

func TestUpdateMissing(t *testing.T) {
	db := New()
	err := db.Update(context.Background(), domain.CollectionTips, "nope", map[string]any{"title": "x"})

	var se *domain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StoreNotFound, se.Kind)
}

func TestUpsertMergeAndReplace(t *testing.T) {
	db := New()
	ctx := context.Background()

	require.NoError(t, db.Upsert(ctx, domain.CollectionUsers, "u1", map[string]any{"email": "a@example.com", "role": "doctor"}, false))
	require.NoError(t, db.Upsert(ctx, domain.CollectionUsers, "u1", map[string]any{"fullName": "Dr. A"}, true))

	doc, err := db.Get(ctx, domain.CollectionUsers, "u1")
	require.NoError(t, err)
	u := domain.DecodeUser(doc)
	assert.Equal(t, "Dr. A", u.FullName)
	assert.Equal(t, domain.RoleDoctor, u.Role)

	require.NoError(t, db.Upsert(ctx, domain.CollectionUsers, "u1", map[string]any{"email": "b@example.com"}, false))
	doc, _ = db.Get(ctx, domain.CollectionUsers, "u1")
	assert.False(t, doc.Has("role"))
}

func TestSubscribe_FilteredOrderedSnapshots(t *testing.T) {
	db := New(WithClock(fixedClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))))
	ctx := context.Background()

	q := domain.Query{
		Collection: domain.CollectionReadings,
		Filters:    []domain.Filter{domain.Where("userId", domain.OpEq, "u1")},
		Order:      &domain.OrderBy{Field: "createdAt", Desc: true},
	}
	snaps, _, _ := subscribe(t, db, q)
	assert.Empty(t, next(t, snaps))

	first, err := db.Create(ctx, domain.CollectionReadings, domain.ReadingFields("u1", 120, 80))
	require.NoError(t, err)
	assert.Equal(t, []string{first}, docIDs(next(t, snaps)))

	_, err = db.Create(ctx, domain.CollectionReadings, domain.ReadingFields("u2", 120, 80))
	require.NoError(t, err)
	assert.Equal(t, []string{first}, docIDs(next(t, snaps)), "other owners are filtered out")

	second, err := db.Create(ctx, domain.CollectionReadings, domain.ReadingFields("u1", 130, 85))
	require.NoError(t, err)
	assert.Equal(t, []string{second, first}, docIDs(next(t, snaps)))
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	db := New()
	snaps, _, cancel := subscribe(t, db, domain.Query{Collection: domain.CollectionTips})
	next(t, snaps)

	cancel()
	cancel()
	_, err := db.Create(context.Background(), domain.CollectionTips, map[string]any{"title": "Walk"})
	require.NoError(t, err)

	select {
	case docs := <-snaps:
		t.Fatalf("unexpected snapshot after cancel: %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
	db.mu.Lock()
	assert.Empty(t, db.subs)
	db.mu.Unlock()
}

func TestSubscribe_ContextCancel(t *testing.T) {
	db := New()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := db.Subscribe(ctx, domain.Query{Collection: domain.CollectionTips}, func([]domain.Document) {}, nil)
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		return len(db.subs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestFail_ReportsStreamError(t *testing.T) {
	db := New()
	snaps, errs, _ := subscribe(t, db, domain.Query{Collection: domain.CollectionReadings})
	next(t, snaps)

	boom := errors.New("stream reset")
	db.Fail(domain.CollectionReadings, boom)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}

	_, err := db.Create(context.Background(), domain.CollectionReadings, domain.ReadingFields("u1", 120, 80))
	require.NoError(t, err)
	assert.Len(t, next(t, snaps), 1)
}

func TestAuthenticator(t *testing.T) {
	a := NewAuthenticator(bcrypt.MinCost)
	ctx := context.Background()

	p, err := a.SignUp(ctx, "Pat@Example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, p.UID)
	assert.Equal(t, "pat@example.com", p.Email)

	_, err = a.SignUp(ctx, "pat@example.com", "another")
	assert.ErrorIs(t, err, domain.ErrEmailInUse)

	_, err = a.SignUp(ctx, "short@example.com", "123")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	got, err := a.SignIn(ctx, "pat@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = a.SignIn(ctx, "pat@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = a.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestSessionRepo(t *testing.T) {
	r := NewSessionRepo()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, domain.Session{Token: "live", UID: "u1", Role: domain.RolePatient, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, r.Create(ctx, domain.Session{Token: "stale", UID: "u2", ExpiresAt: time.Now().Add(-time.Hour)}))

	s, err := r.GetByToken(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.UID)
	assert.False(t, s.CreatedAt.IsZero())

	s, err = r.GetByToken(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, r.DeleteExpired(ctx))
	require.NoError(t, r.Delete(ctx, "live"))
	s, _ = r.GetByToken(ctx, "live")
	assert.Nil(t, s)
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	ctx := context.Background()

	r := domain.Reminder{Title: "Medication Reminder", Body: "It's time to take your Lisinopril."}
	require.NoError(t, s.ScheduleRecurring(ctx, domain.DailyTime{Hour: 8, Minute: 30}, r))
	assert.Error(t, s.ScheduleRecurring(ctx, domain.DailyTime{Hour: 24}, r))

	got := s.Scheduled()
	require.Len(t, got, 1)
	assert.Equal(t, "08:30", got[0].At.String())
	assert.Equal(t, r, got[0].Reminder)
}
