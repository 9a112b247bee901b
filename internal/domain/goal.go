package domain

import (
	"context"
	"fmt"
)

// HealthGoal holds a patient's targets, keyed by owner. A nil field is
// explicitly unset.
type HealthGoal struct {
	OwnerID   string   `json:"ownerId"`
	Systolic  *int     `json:"systolic"`
	Diastolic *float64 `json:"diastolic"`
	Weight    *float64 `json:"weight"`
}

// Fields builds the merge-upsert document for g. Unset targets are written
// as explicit nulls.
func (g HealthGoal) Fields() map[string]any {
	f := map[string]any{"systolic": nil, "diastolic": nil, "weight": nil}
	if g.Systolic != nil {
		f["systolic"] = *g.Systolic
	}
	if g.Diastolic != nil {
		f["diastolic"] = *g.Diastolic
	}
	if g.Weight != nil {
		f["weight"] = *g.Weight
	}
	return f
}

// DecodeHealthGoal maps a health_goals document.
func DecodeHealthGoal(d Document) HealthGoal {
	g := HealthGoal{OwnerID: d.ID}
	if v, ok := d.Int("systolic"); ok {
		g.Systolic = &v
	}
	if v, ok := d.Float("diastolic"); ok {
		g.Diastolic = &v
	}
	if v, ok := d.Float("weight"); ok {
		g.Weight = &v
	}
	return g
}

// DailyTime is a wall-clock time of day.
type DailyTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Validate checks the hour and minute ranges.
func (t DailyTime) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return Invalid("hour", "must be within [0, 23]")
	}
	if t.Minute < 0 || t.Minute > 59 {
		return Invalid("minute", "must be within [0, 59]")
	}
	return nil
}

func (t DailyTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Reminder is the payload of a recurring local notification.
type Reminder struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

// ReminderScheduler is the port to the device notification scheduler.
type ReminderScheduler interface {
	ScheduleRecurring(ctx context.Context, at DailyTime, r Reminder) error
}
