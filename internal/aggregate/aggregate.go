// Package aggregate derives view models from live result sets: newest-first
// lists, bounded chart series and same-day membership.
package aggregate

import (
	"slices"
	"time"

	"hypertension/internal/domain"
)

// Chart defaults.
const (
	DefaultWindow     = 15
	DefaultLabelEvery = 3
	LabelLayout       = "Jan 2"
)

// SortNewestFirst returns a copy of items ordered by descending timestamp.
// Items without a timestamp yet sort last. Ties keep their input order.
func SortNewestFirst[T any](items []T, at func(T) time.Time) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		ta, tb := at(a), at(b)
		switch {
		case ta.IsZero() && tb.IsZero():
			return 0
		case ta.IsZero():
			return 1
		case tb.IsZero():
			return -1
		}
		return tb.Compare(ta)
	})
	return out
}

// Chart is a label row with one or more value series aligned by index.
type Chart struct {
	Labels []string    `json:"labels"`
	Series [][]float64 `json:"series"`
}

// ChartOptions bounds and labels a chart.
type ChartOptions struct {
	Window     int
	LabelEvery int
	Location   *time.Location
}

// DefaultChartOptions shows the last 15 points labelled every third point in
// local time.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Window: DefaultWindow, LabelEvery: DefaultLabelEvery, Location: time.Local}
}

// BuildChart plots the most recent timestamped items in ascending time order.
// Items without a timestamp are skipped. ok is false when fewer than two
// points remain, in which case the caller shows a textual fallback.
func BuildChart[T any](items []T, at func(T) time.Time, opts ChartOptions, series ...func(T) float64) (c Chart, ok bool) {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.LabelEvery <= 0 {
		opts.LabelEvery = DefaultLabelEvery
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	stamped := make([]T, 0, len(items))
	for _, it := range items {
		if !at(it).IsZero() {
			stamped = append(stamped, it)
		}
	}
	if len(stamped) < 2 {
		return Chart{}, false
	}
	slices.SortStableFunc(stamped, func(a, b T) int { return at(a).Compare(at(b)) })
	if len(stamped) > opts.Window {
		stamped = stamped[len(stamped)-opts.Window:]
	}

	c.Labels = make([]string, len(stamped))
	c.Series = make([][]float64, len(series))
	for s := range series {
		c.Series[s] = make([]float64, len(stamped))
	}
	for i, it := range stamped {
		if i%opts.LabelEvery == 0 {
			c.Labels[i] = at(it).In(opts.Location).Format(LabelLayout)
		}
		for s, value := range series {
			c.Series[s][i] = value(it)
		}
	}
	return c, true
}

// DayBounds returns the first and last millisecond of t's calendar day in
// t's location.
func DayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}

// InDay reports whether t lies within [start, end].
func InDay(t, start, end time.Time) bool {
	return !t.IsZero() && !t.Before(start) && !t.After(end)
}

// TakenToday returns the distinct medication ids logged within [start, end].
// Repeated entries for one medication collapse to a single id.
func TakenToday(entries []domain.MedicationLogEntry, start, end time.Time) map[string]bool {
	taken := make(map[string]bool)
	for _, e := range entries {
		if e.MedicationID != "" && InDay(e.TakenAt, start, end) {
			taken[e.MedicationID] = true
		}
	}
	return taken
}
