package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/app"
	"hypertension/internal/domain"
)

func medicationStore(s *streams) *mockStore {
	return &mockStore{
		subscribeFn: s.subscribe,
		getFn: func(_ context.Context, coll, id string) (domain.Document, error) {
			if coll == domain.CollectionMedications && id == "lisinopril" {
				return doc(id, map[string]any{"userId": "u1", "name": "Lisinopril", "dosage": "10mg"}), nil
			}
			return domain.Document{}, domain.NewStoreError("get", domain.StoreNotFound, nil)
		},
	}
}

func TestAddMedication_Validation(t *testing.T) {
	called := false
	store := &mockStore{createFn: func(context.Context, string, map[string]any) (string, error) {
		called = true
		return "", nil
	}}
	svc := app.NewMedicationService(store, &mockScheduler{}, zerolog.Nop())

	for _, tc := range []struct{ name, dosage string }{{"", "10mg"}, {"Lisinopril", "  "}} {
		err := svc.Add(context.Background(), patient("u1"), tc.name, tc.dosage)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%q/%q: expected validation error, got %v", tc.name, tc.dosage, err)
		}
	}
	if called {
		t.Error("store must not be called")
	}

	if err := svc.Add(context.Background(), patient("u1"), "Lisinopril", "10mg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected create")
	}
}

func TestMarkTaken_NotDeduplicated(t *testing.T) {
	s := newStreams()
	store := medicationStore(s)
	var logged []map[string]any
	store.createFn = func(_ context.Context, coll string, fields map[string]any) (string, error) {
		if coll != domain.CollectionMedicationLog {
			t.Errorf("unexpected collection %q", coll)
		}
		logged = append(logged, fields)
		return "log", nil
	}
	svc := app.NewMedicationService(store, &mockScheduler{}, zerolog.Nop())

	for range 2 {
		if err := svc.MarkTaken(context.Background(), patient("u1"), "lisinopril"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(logged) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(logged))
	}
	if logged[0]["medicationName"] != "Lisinopril" || logged[0]["takenAt"] != domain.ServerTimestamp {
		t.Errorf("unexpected log fields %v", logged[0])
	}
}

func TestMarkTaken_OtherOwner(t *testing.T) {
	svc := app.NewMedicationService(medicationStore(newStreams()), &mockScheduler{}, zerolog.Nop())

	err := svc.MarkTaken(context.Background(), patient("u2"), "lisinopril")
	if !errors.Is(err, app.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	err = svc.MarkTaken(context.Background(), patient("u1"), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScheduleReminder(t *testing.T) {
	var (
		at  domain.DailyTime
		got domain.Reminder
	)
	sched := &mockScheduler{scheduleFn: func(_ context.Context, t domain.DailyTime, r domain.Reminder) error {
		at, got = t, r
		return nil
	}}
	svc := app.NewMedicationService(medicationStore(newStreams()), sched, zerolog.Nop())

	if err := svc.ScheduleReminder(context.Background(), patient("u1"), "lisinopril", domain.DailyTime{Hour: 8, Minute: 15}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if at.String() != "08:15" {
		t.Errorf("unexpected time %s", at)
	}
	if got.Title != "Medication Reminder" || got.Body != "It's time to take your Lisinopril." {
		t.Errorf("unexpected reminder %+v", got)
	}

	err := svc.ScheduleReminder(context.Background(), patient("u1"), "lisinopril", domain.DailyTime{Hour: 8, Minute: 60})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWatchMedications_TakenToday(t *testing.T) {
	s := newStreams()
	svc := app.NewMedicationService(medicationStore(s), &mockScheduler{}, zerolog.Nop())
	var rec recorder[app.MedicationsView]

	feed, err := svc.WatchMedications(context.Background(), patient("u1"), rec.emit, rec.fail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer feed.Close()

	logQuery := s.query(domain.CollectionMedicationLog)
	if len(logQuery.Filters) != 3 {
		t.Errorf("expected owner and day-range filters, got %+v", logQuery.Filters)
	}

	now := time.Now()
	s.push(domain.CollectionMedicationLog,
		doc("l1", map[string]any{"userId": "u1", "medicationId": "m1", "takenAt": now}),
	)
	if rec.count() != 0 {
		t.Fatal("nothing may render before medications arrive")
	}

	s.push(domain.CollectionMedications,
		doc("m2", map[string]any{"userId": "u1", "name": "Amlodipine", "dosage": "5mg", "createdAt": now}),
		doc("m1", map[string]any{"userId": "u1", "name": "Lisinopril", "dosage": "10mg", "createdAt": now.Add(-time.Hour)}),
		doc("m3", map[string]any{"userId": "u1", "name": "Aspirin", "dosage": "81mg", "createdAt": now.Add(-2 * time.Hour)}),
	)
	assertTaken(t, rec.last(t), map[string]bool{"m1": true, "m2": false, "m3": false})

	s.push(domain.CollectionMedicationLog,
		doc("l1", map[string]any{"userId": "u1", "medicationId": "m1", "takenAt": now}),
		doc("l2", map[string]any{"userId": "u1", "medicationId": "m1", "takenAt": now}),
		doc("l3", map[string]any{"userId": "u1", "medicationId": "m2", "takenAt": now}),
	)
	assertTaken(t, rec.last(t), map[string]bool{"m1": true, "m2": true, "m3": false})
}

func assertTaken(t *testing.T, v app.MedicationsView, want map[string]bool) {
	t.Helper()
	if len(v.Medications) != len(want) {
		t.Fatalf("expected %d medications, got %d", len(want), len(v.Medications))
	}
	for _, m := range v.Medications {
		if m.TakenToday != want[m.ID] {
			t.Errorf("%s: expected taken=%v", m.ID, want[m.ID])
		}
	}
}
