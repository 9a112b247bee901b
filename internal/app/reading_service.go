package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
	"hypertension/internal/enrich"
	"hypertension/internal/mutate"
)

// EnrichedReading is a reading labelled with its owner.
type EnrichedReading struct {
	domain.Reading
	OwnerLabel string `json:"ownerLabel"`
}

// ReadingsView is a newest-first reading list with an optional trend chart.
// Chart is nil when there are fewer than two timestamped readings.
type ReadingsView struct {
	Readings []domain.Reading `json:"readings"`
	Chart    *aggregate.Chart `json:"chart"`
}

// AllReadingsView is the doctor's cross-patient reading list.
type AllReadingsView struct {
	Readings []EnrichedReading `json:"readings"`
	Chart    *aggregate.Chart  `json:"chart"`
}

// ReadingService logs blood-pressure readings and serves reading feeds.
type ReadingService struct {
	store    domain.DocumentStore
	opts     FeedOptions
	log      zerolog.Logger
	gates    gates
	enricher *enrich.Enricher[EnrichedReading]
}

// NewReadingService creates a ReadingService backed by the given store.
func NewReadingService(store domain.DocumentStore, opts FeedOptions, log zerolog.Logger) *ReadingService {
	return &ReadingService{
		store: store,
		opts:  opts,
		log:   log,
		enricher: &enrich.Enricher[EnrichedReading]{
			Key:    func(r EnrichedReading) string { return r.OwnerID },
			Lookup: ownerLabel(store),
			Apply: func(r EnrichedReading, label string) EnrichedReading {
				r.OwnerLabel = label
				return r
			},
			Limit:  opts.EnrichLimit,
			Logger: log,
		},
	}
}

// Log validates and stores a reading for the session's user and classifies it.
func (s *ReadingService) Log(ctx context.Context, sess *domain.Session, systolic, diastolic string) (domain.Classification, error) {
	if err := requirePatient(sess); err != nil {
		return "", err
	}
	var (
		sys, dia int
		class    domain.Classification
	)
	err := s.gates.run(ctx, sess.UID, "reading",
		func() (err error) {
			if sys, err = mutate.PositiveInt("systolic", systolic); err != nil {
				return err
			}
			dia, err = mutate.PositiveInt("diastolic", diastolic)
			return err
		},
		func(ctx context.Context) error {
			if _, err := s.store.Create(ctx, domain.CollectionReadings, domain.ReadingFields(sess.UID, sys, dia)); err != nil {
				return err
			}
			class = domain.ClassifyReading(sys, dia)
			return nil
		},
	)
	if err != nil {
		return "", err
	}
	s.log.Debug().Str("uid", sess.UID).Str("class", string(class)).Msg("reading logged")
	return class, nil
}

// WatchHistory streams the session user's own readings.
func (s *ReadingService) WatchHistory(ctx context.Context, sess *domain.Session, emit func(ReadingsView), onError func(error)) (*Feed, error) {
	if err := requirePatient(sess); err != nil {
		return nil, err
	}
	return s.watchOwner(ctx, sess.UID, emit, onError)
}

// WatchAll streams every reading, labelled with the owner's email local part.
func (s *ReadingService) WatchAll(ctx context.Context, sess *domain.Session, emit func(AllReadingsView), onError func(error)) (*Feed, error) {
	if err := requireDoctor(sess); err != nil {
		return nil, err
	}
	f := newFeed(ctx, onError)
	q := domain.Query{Collection: domain.CollectionReadings, Order: newestFirst("createdAt")}
	err := watchAsync(f, s.store, q, domain.DecodeReading,
		func(ctx context.Context, rs []domain.Reading) AllReadingsView {
			rs = aggregate.SortNewestFirst(rs, readingTime)
			in := make([]EnrichedReading, len(rs))
			for i, r := range rs {
				in[i] = EnrichedReading{Reading: r}
			}
			return AllReadingsView{Readings: s.enricher.Enrich(ctx, in), Chart: s.chart(rs)}
		},
		emit,
	)
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (s *ReadingService) watchOwner(ctx context.Context, uid string, emit func(ReadingsView), onError func(error)) (*Feed, error) {
	f := newFeed(ctx, onError)
	q := domain.Query{
		Collection: domain.CollectionReadings,
		Filters:    []domain.Filter{ownedBy(uid)},
		Order:      newestFirst("createdAt"),
	}
	err := watch(f, s.store, q, domain.DecodeReading, func(rs []domain.Reading) {
		rs = aggregate.SortNewestFirst(rs, readingTime)
		view := ReadingsView{Readings: rs, Chart: s.chart(rs)}
		f.now(func() { emit(view) })
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (s *ReadingService) chart(rs []domain.Reading) *aggregate.Chart {
	c, ok := aggregate.BuildChart(rs, readingTime, s.opts.Chart,
		func(r domain.Reading) float64 { return float64(r.Systolic) },
		func(r domain.Reading) float64 { return float64(r.Diastolic) },
	)
	if !ok {
		return nil
	}
	return &c
}

func readingTime(r domain.Reading) time.Time { return r.CreatedAt }

// ownerLabel resolves a user id to the local part of the user's email.
func ownerLabel(store domain.DocumentStore) enrich.LookupFunc {
	return func(ctx context.Context, id string) (string, error) {
		doc, err := store.Get(ctx, domain.CollectionUsers, id)
		if err != nil {
			return "", err
		}
		label := domain.EmailLocalPart(doc.String("email"))
		if label == "" {
			return "", fmt.Errorf("user %s has no email: %w", id, domain.ErrNotFound)
		}
		return label, nil
	}
}
