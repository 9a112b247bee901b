package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"hypertension/internal/domain"
)

// PatientsView is the doctor's patient roster.
type PatientsView struct {
	Patients []domain.User `json:"patients"`
	Count    int           `json:"count"`
}

// PatientDetailView is one patient's profile with their reading history.
type PatientDetailView struct {
	Patient domain.User `json:"patient"`
	ReadingsView
}

// PatientService serves doctor-facing patient views and user profiles.
type PatientService struct {
	store    domain.DocumentStore
	readings *ReadingService
	log      zerolog.Logger
	gates    gates
}

// NewPatientService creates a PatientService.
func NewPatientService(store domain.DocumentStore, readings *ReadingService, log zerolog.Logger) *PatientService {
	return &PatientService{store: store, readings: readings, log: log}
}

// WatchPatients streams every user with the patient role.
func (s *PatientService) WatchPatients(ctx context.Context, sess *domain.Session, emit func(PatientsView), onError func(error)) (*Feed, error) {
	if err := requireDoctor(sess); err != nil {
		return nil, err
	}
	f := newFeed(ctx, onError)
	q := domain.Query{
		Collection: domain.CollectionUsers,
		Filters:    []domain.Filter{domain.Where("role", domain.OpEq, string(domain.RolePatient))},
	}
	err := watch(f, s.store, q, decodeUser, func(users []domain.User) {
		f.now(func() { emit(PatientsView{Patients: users, Count: len(users)}) })
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WatchPatient streams one patient's readings together with their profile.
func (s *PatientService) WatchPatient(ctx context.Context, sess *domain.Session, patientID string, emit func(PatientDetailView), onError func(error)) (*Feed, error) {
	if err := requireDoctor(sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.Invalid("patientId", "is required")
	}
	doc, err := s.store.Get(ctx, domain.CollectionUsers, patientID)
	if err != nil {
		return nil, err
	}
	patient := domain.DecodeUser(doc)
	if patient.Role != domain.RolePatient {
		return nil, domain.NewStoreError("get patient", domain.StoreNotFound, nil)
	}
	return s.readings.watchOwner(ctx, patientID, func(v ReadingsView) {
		emit(PatientDetailView{Patient: patient, ReadingsView: v})
	}, onError)
}

// Profile returns the session user's profile.
func (s *PatientService) Profile(ctx context.Context, sess *domain.Session) (domain.User, error) {
	if sess == nil {
		return domain.User{}, ErrForbidden
	}
	doc, err := s.store.Get(ctx, domain.CollectionUsers, sess.UID)
	if err != nil {
		return domain.User{}, err
	}
	return domain.DecodeUser(doc), nil
}

// UpdateProfile sets the doctor's full name and specialty. Blank values
// clear the field.
func (s *PatientService) UpdateProfile(ctx context.Context, sess *domain.Session, fullName, specialty string) error {
	if err := requireDoctor(sess); err != nil {
		return err
	}
	return s.gates.run(ctx, sess.UID, "profile", nil, func(ctx context.Context) error {
		return s.store.Update(ctx, domain.CollectionUsers, sess.UID, map[string]any{
			"fullName":  strings.TrimSpace(fullName),
			"specialty": strings.TrimSpace(specialty),
		})
	})
}

func decodeUser(d domain.Document) (domain.User, error) {
	return domain.DecodeUser(d), nil
}
