package app_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/app"
	"hypertension/internal/domain"
)

func TestRecordWeight(t *testing.T) {
	var got map[string]any
	store := &mockStore{createFn: func(_ context.Context, coll string, fields map[string]any) (string, error) {
		if coll != domain.CollectionWeightLog {
			t.Errorf("unexpected collection %q", coll)
		}
		got = fields
		return "w1", nil
	}}
	svc := app.NewWeightService(store, app.DefaultFeedOptions(), zerolog.Nop())

	if err := svc.RecordWeight(context.Background(), patient("u1"), "176.37", "lb"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kg, _ := got["weight"].(float64)
	if math.Abs(kg-80) > 0.01 {
		t.Errorf("expected ~80kg stored, got %v", got["weight"])
	}
	if got["userId"] != "u1" || got["createdAt"] != domain.ServerTimestamp {
		t.Errorf("unexpected fields %v", got)
	}
}

func TestRecordWeight_Invalid(t *testing.T) {
	store := &mockStore{createFn: func(context.Context, string, map[string]any) (string, error) {
		t.Error("store must not be called")
		return "", nil
	}}
	svc := app.NewWeightService(store, app.DefaultFeedOptions(), zerolog.Nop())

	tests := []struct{ value, unit string }{
		{"", "kg"},
		{"-3", "kg"},
		{"heavy", "kg"},
		{"NaN", "kg"},
		{"+Inf", "lb"},
		{"80", "stone"},
	}
	for _, tc := range tests {
		err := svc.RecordWeight(context.Background(), patient("u1"), tc.value, tc.unit)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%q %q: expected validation error, got %v", tc.value, tc.unit, err)
		}
	}
	if err := svc.RecordWeight(context.Background(), doctor("d1"), "80", "kg"); !errors.Is(err, app.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestWatchWeight_ConvertsAndCharts(t *testing.T) {
	s := newStreams()
	svc := app.NewWeightService(&mockStore{subscribeFn: s.subscribe}, app.DefaultFeedOptions(), zerolog.Nop())
	var rec recorder[app.WeightView]

	if _, err := svc.WatchHistory(context.Background(), patient("u1"), "stone", rec.emit, rec.fail); err == nil {
		t.Fatal("expected unit error")
	}

	feed, err := svc.WatchHistory(context.Background(), patient("u1"), "lb", rec.emit, rec.fail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer feed.Close()

	s.push(domain.CollectionWeightLog,
		doc("w1", map[string]any{"userId": "u1", "weight": 80.0, "createdAt": t0}),
		doc("w2", map[string]any{"userId": "u1", "weight": 79.0, "createdAt": t0.Add(24 * time.Hour)}),
	)
	v := rec.last(t)
	if v.Unit != "lb" || len(v.Entries) != 2 || v.Entries[0].ID != "w2" {
		t.Fatalf("unexpected view %+v", v)
	}
	if math.Abs(v.Entries[1].Weight-176.37) > 0.01 {
		t.Errorf("expected ~176.37lb, got %v", v.Entries[1].Weight)
	}
	if v.Chart == nil || len(v.Chart.Series) != 1 || len(v.Chart.Series[0]) != 2 {
		t.Fatalf("unexpected chart %+v", v.Chart)
	}
	if v.Chart.Series[0][0] != v.Entries[1].Weight {
		t.Errorf("chart must run oldest to newest, got %v", v.Chart.Series[0])
	}
}
