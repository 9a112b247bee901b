package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

// RecommendationsView lists a patient's recommendations, newest first.
type RecommendationsView struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// RecommendationService delivers doctors' notes to patients.
type RecommendationService struct {
	store domain.DocumentStore
	log   zerolog.Logger
	gates gates
}

// NewRecommendationService creates a RecommendationService.
func NewRecommendationService(store domain.DocumentStore, log zerolog.Logger) *RecommendationService {
	return &RecommendationService{store: store, log: log}
}

// Send stores a recommendation for patientID signed with the doctor's
// display name.
func (s *RecommendationService) Send(ctx context.Context, sess *domain.Session, patientID, text string) error {
	if err := requireDoctor(sess); err != nil {
		return err
	}
	return s.gates.run(ctx, sess.UID, "recommendation/"+patientID,
		func() (err error) {
			if patientID, err = mutate.Required("patientId", patientID); err != nil {
				return err
			}
			text, err = mutate.Required("text", text)
			return err
		},
		func(ctx context.Context) error {
			doctor := domain.User{ID: sess.UID, Email: sess.Email}
			doc, err := s.store.Get(ctx, domain.CollectionUsers, sess.UID)
			switch {
			case err == nil:
				doctor = domain.DecodeUser(doc)
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
			if doctor.Email == "" {
				doctor.Email = sess.Email
			}
			_, err = s.store.Create(ctx, domain.CollectionRecommendations, map[string]any{
				"patientId":  patientID,
				"text":       text,
				"doctorName": doctor.DisplayName(),
				"createdAt":  domain.ServerTimestamp,
			})
			return err
		},
	)
}

// WatchRecommendations streams the session patient's recommendations.
func (s *RecommendationService) WatchRecommendations(ctx context.Context, sess *domain.Session, emit func(RecommendationsView), onError func(error)) (*Feed, error) {
	if err := requirePatient(sess); err != nil {
		return nil, err
	}
	f := newFeed(ctx, onError)
	q := domain.Query{
		Collection: domain.CollectionRecommendations,
		Filters:    []domain.Filter{domain.Where("patientId", domain.OpEq, sess.UID)},
		Order:      newestFirst("createdAt"),
	}
	err := watch(f, s.store, q, domain.DecodeRecommendation, func(recs []domain.Recommendation) {
		recs = aggregate.SortNewestFirst(recs, func(r domain.Recommendation) time.Time { return r.CreatedAt })
		f.now(func() { emit(RecommendationsView{Recommendations: recs}) })
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
