package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
)

func readingAt(id string, at time.Time, sys, dia int) domain.Reading {
	return domain.Reading{ID: id, Systolic: sys, Diastolic: dia, CreatedAt: at}
}

func createdAt(r domain.Reading) time.Time { return r.CreatedAt }

func ids(rs []domain.Reading) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

var base = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func TestSortNewestFirst(t *testing.T) {
	in := []domain.Reading{
		readingAt("old", base, 120, 80),
		readingAt("pending", time.Time{}, 120, 80),
		readingAt("new", base.Add(2*time.Hour), 120, 80),
		readingAt("tie-a", base.Add(time.Hour), 120, 80),
		readingAt("tie-b", base.Add(time.Hour), 120, 80),
	}

	got := aggregate.SortNewestFirst(in, createdAt)

	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old", "pending"}, ids(got))
	assert.Equal(t, ids(got), ids(aggregate.SortNewestFirst(got, createdAt)), "sorting is idempotent")
	assert.Equal(t, "old", in[0].ID, "input is not modified")
}

func TestBuildChart_TooFewPoints(t *testing.T) {
	sys := func(r domain.Reading) float64 { return float64(r.Systolic) }
	opts := aggregate.DefaultChartOptions()

	_, ok := aggregate.BuildChart(nil, createdAt, opts, sys)
	assert.False(t, ok)

	_, ok = aggregate.BuildChart([]domain.Reading{readingAt("a", base, 120, 80)}, createdAt, opts, sys)
	assert.False(t, ok)

	_, ok = aggregate.BuildChart([]domain.Reading{
		readingAt("a", base, 120, 80),
		readingAt("pending", time.Time{}, 130, 85),
	}, createdAt, opts, sys)
	assert.False(t, ok, "untimestamped records do not count")
}

func TestBuildChart_WindowAndLabels(t *testing.T) {
	var in []domain.Reading
	// Newest first, as delivered by the subscription.
	for i := 19; i >= 0; i-- {
		in = append(in, readingAt(string(rune('a'+i)), base.AddDate(0, 0, i), 100+i, 60+i))
	}
	opts := aggregate.ChartOptions{Window: 15, LabelEvery: 3, Location: time.UTC}

	c, ok := aggregate.BuildChart(in, createdAt, opts,
		func(r domain.Reading) float64 { return float64(r.Systolic) },
		func(r domain.Reading) float64 { return float64(r.Diastolic) },
	)

	require.True(t, ok)
	require.Len(t, c.Labels, 15)
	require.Len(t, c.Series, 2)
	assert.Len(t, c.Series[0], 15)
	assert.Len(t, c.Series[1], 15)

	assert.Equal(t, 105.0, c.Series[0][0], "oldest kept point is the 6th reading")
	assert.Equal(t, 119.0, c.Series[0][14])
	assert.Equal(t, 79.0, c.Series[1][14])

	assert.Equal(t, "Mar 6", c.Labels[0])
	assert.Empty(t, c.Labels[1])
	assert.Empty(t, c.Labels[2])
	assert.Equal(t, "Mar 9", c.Labels[3])
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	start, end := aggregate.DayBounds(time.Date(2024, time.March, 1, 17, 42, 0, 0, loc))

	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, time.March, 1, 23, 59, 59, 999_000_000, loc), end)
	assert.True(t, aggregate.InDay(end, start, end))
	assert.False(t, aggregate.InDay(end.Add(time.Millisecond), start, end))
	assert.False(t, aggregate.InDay(time.Time{}, start, end))
}

func TestTakenToday(t *testing.T) {
	start, end := aggregate.DayBounds(base)
	entries := []domain.MedicationLogEntry{
		{ID: "1", MedicationID: "lisinopril", TakenAt: base},
		{ID: "2", MedicationID: "lisinopril", TakenAt: base.Add(time.Hour)},
		{ID: "3", MedicationID: "amlodipine", TakenAt: base.Add(2 * time.Hour)},
		{ID: "4", MedicationID: "yesterday", TakenAt: base.AddDate(0, 0, -1)},
		{ID: "5", MedicationID: "pending"},
	}

	taken := aggregate.TakenToday(entries, start, end)

	assert.Equal(t, map[string]bool{"lisinopril": true, "amlodipine": true}, taken)
}
