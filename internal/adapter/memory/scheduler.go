package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"hypertension/internal/domain"
)

// ScheduledReminder is a reminder accepted by the Scheduler.
type ScheduledReminder struct {
	At       domain.DailyTime `json:"at"`
	Reminder domain.Reminder  `json:"reminder"`
}

// Scheduler records recurring reminders and logs them. It stands in for a
// device notification service.
type Scheduler struct {
	log zerolog.Logger

	mu        sync.Mutex
	scheduled []ScheduledReminder
}

// NewScheduler returns an empty scheduler.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

var _ domain.ReminderScheduler = (*Scheduler)(nil)

// ScheduleRecurring records a daily reminder.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, at domain.DailyTime, r domain.Reminder) error {
	if err := at.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.scheduled = append(s.scheduled, ScheduledReminder{At: at, Reminder: r})
	s.mu.Unlock()

	s.log.Info().Str("at", at.String()).Str("title", r.Title).Msg("reminder scheduled")
	return nil
}

// Scheduled returns every reminder recorded so far.
func (s *Scheduler) Scheduled() []ScheduledReminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.scheduled)
}
