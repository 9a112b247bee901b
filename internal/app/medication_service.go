package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

// Reminder payload.
const (
	ReminderTitle = "Medication Reminder"
	reminderBody  = "It's time to take your %s."
)

// MedicationStatus is a medication with its taken-today flag.
type MedicationStatus struct {
	domain.Medication
	TakenToday bool `json:"takenToday"`
}

// MedicationsView lists the user's medications, newest first.
type MedicationsView struct {
	Medications []MedicationStatus `json:"medications"`
}

// MedicationService manages medications, intake logging and reminders.
type MedicationService struct {
	store     domain.DocumentStore
	scheduler domain.ReminderScheduler
	log       zerolog.Logger
	gates     gates
	now       func() time.Time
}

// NewMedicationService creates a MedicationService.
func NewMedicationService(store domain.DocumentStore, scheduler domain.ReminderScheduler, log zerolog.Logger) *MedicationService {
	return &MedicationService{store: store, scheduler: scheduler, log: log, now: time.Now}
}

// Add validates and stores a new medication.
func (s *MedicationService) Add(ctx context.Context, sess *domain.Session, name, dosage string) error {
	if err := requirePatient(sess); err != nil {
		return err
	}
	return s.gates.run(ctx, sess.UID, "medication",
		func() (err error) {
			if name, err = mutate.Required("name", name); err != nil {
				return err
			}
			dosage, err = mutate.Required("dosage", dosage)
			return err
		},
		func(ctx context.Context) error {
			_, err := s.store.Create(ctx, domain.CollectionMedications, domain.MedicationFields(sess.UID, name, dosage))
			return err
		},
	)
}

// MarkTaken appends an intake entry for the medication. Repeated calls on the
// same day each add an entry.
func (s *MedicationService) MarkTaken(ctx context.Context, sess *domain.Session, medicationID string) error {
	if err := requirePatient(sess); err != nil {
		return err
	}
	var med domain.Medication
	return s.gates.run(ctx, sess.UID, "taken/"+medicationID,
		func() (err error) {
			med, err = s.owned(ctx, sess, medicationID)
			return err
		},
		func(ctx context.Context) error {
			_, err := s.store.Create(ctx, domain.CollectionMedicationLog, domain.MedicationLogFields(sess.UID, med))
			if err == nil {
				s.log.Debug().Str("uid", sess.UID).Str("medication", med.ID).Msg("medication taken")
			}
			return err
		},
	)
}

// ScheduleReminder registers a daily reminder for the medication.
func (s *MedicationService) ScheduleReminder(ctx context.Context, sess *domain.Session, medicationID string, at domain.DailyTime) error {
	if err := requirePatient(sess); err != nil {
		return err
	}
	if err := at.Validate(); err != nil {
		return err
	}
	med, err := s.owned(ctx, sess, medicationID)
	if err != nil {
		return err
	}
	return s.scheduler.ScheduleRecurring(ctx, at, domain.Reminder{
		Title: ReminderTitle,
		Body:  fmt.Sprintf(reminderBody, med.Name),
		Sound: "default",
	})
}

// WatchMedications streams the user's medications with taken-today flags.
// "Today" is fixed to the local calendar day on which the feed started.
func (s *MedicationService) WatchMedications(ctx context.Context, sess *domain.Session, emit func(MedicationsView), onError func(error)) (*Feed, error) {
	if err := requirePatient(sess); err != nil {
		return nil, err
	}
	start, end := aggregate.DayBounds(s.now())

	var (
		meds    []domain.Medication
		haveMed bool
		taken   = map[string]bool{}
	)
	render := func() {
		if !haveMed {
			return
		}
		view := MedicationsView{Medications: make([]MedicationStatus, len(meds))}
		for i, m := range meds {
			view.Medications[i] = MedicationStatus{Medication: m, TakenToday: taken[m.ID]}
		}
		emit(view)
	}

	f := newFeed(ctx, onError)
	err := watch(f, s.store, domain.Query{
		Collection: domain.CollectionMedications,
		Filters:    []domain.Filter{ownedBy(sess.UID)},
		Order:      newestFirst("createdAt"),
	}, domain.DecodeMedication, func(ms []domain.Medication) {
		ms = aggregate.SortNewestFirst(ms, func(m domain.Medication) time.Time { return m.CreatedAt })
		f.now(func() {
			meds, haveMed = ms, true
			render()
		})
	})
	if err == nil {
		err = watch(f, s.store, domain.Query{
			Collection: domain.CollectionMedicationLog,
			Filters: []domain.Filter{
				ownedBy(sess.UID),
				domain.Where("takenAt", domain.OpGe, start),
				domain.Where("takenAt", domain.OpLe, end),
			},
		}, domain.DecodeMedicationLogEntry, func(entries []domain.MedicationLogEntry) {
			t := aggregate.TakenToday(entries, start, end)
			f.now(func() {
				taken = t
				render()
			})
		})
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (s *MedicationService) owned(ctx context.Context, sess *domain.Session, id string) (domain.Medication, error) {
	if id == "" {
		return domain.Medication{}, domain.Invalid("medicationId", "is required")
	}
	doc, err := s.store.Get(ctx, domain.CollectionMedications, id)
	if err != nil {
		return domain.Medication{}, err
	}
	med, err := domain.DecodeMedication(doc)
	if err != nil {
		return domain.Medication{}, err
	}
	if med.OwnerID != sess.UID {
		return domain.Medication{}, ErrForbidden
	}
	return med, nil
}
