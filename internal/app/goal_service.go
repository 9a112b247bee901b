package app

import (
	"context"
	"errors"

	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

// GoalService reads and saves a patient's health targets.
type GoalService struct {
	store domain.DocumentStore
	gates gates
}

// NewGoalService creates a GoalService.
func NewGoalService(store domain.DocumentStore) *GoalService {
	return &GoalService{store: store}
}

// Get returns the current goals. A patient without goals gets an empty set.
func (s *GoalService) Get(ctx context.Context, sess *domain.Session) (domain.HealthGoal, error) {
	if err := requirePatient(sess); err != nil {
		return domain.HealthGoal{}, err
	}
	doc, err := s.store.Get(ctx, domain.CollectionHealthGoals, sess.UID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.HealthGoal{OwnerID: sess.UID}, nil
	}
	if err != nil {
		return domain.HealthGoal{}, err
	}
	return domain.DecodeHealthGoal(doc), nil
}

// Save merges the targets into the stored goals. Blank or unparseable input
// clears a target.
func (s *GoalService) Save(ctx context.Context, sess *domain.Session, systolic, diastolic, weight string) (domain.HealthGoal, error) {
	if err := requirePatient(sess); err != nil {
		return domain.HealthGoal{}, err
	}
	goal := domain.HealthGoal{
		OwnerID:   sess.UID,
		Systolic:  mutate.OptionalInt(systolic),
		Diastolic: mutate.OptionalFloat(diastolic),
		Weight:    mutate.OptionalFloat(weight),
	}
	err := s.gates.run(ctx, sess.UID, "goals", nil, func(ctx context.Context) error {
		return s.store.Upsert(ctx, domain.CollectionHealthGoals, sess.UID, goal.Fields(), true)
	})
	if err != nil {
		return domain.HealthGoal{}, err
	}
	return goal, nil
}
