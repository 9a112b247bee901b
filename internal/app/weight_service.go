package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

// WeightView is a newest-first weight history in the requested unit.
type WeightView struct {
	Unit    string               `json:"unit"`
	Entries []domain.WeightEntry `json:"entries"`
	Chart   *aggregate.Chart     `json:"chart"`
}

// WeightService encapsulates weight-tracking use cases. Weights are stored
// in kilograms.
type WeightService struct {
	store domain.DocumentStore
	opts  FeedOptions
	log   zerolog.Logger
	gates gates
}

// NewWeightService creates a WeightService backed by the given store.
func NewWeightService(store domain.DocumentStore, opts FeedOptions, log zerolog.Logger) *WeightService {
	return &WeightService{store: store, opts: opts, log: log}
}

// RecordWeight validates and stores a weight measurement given in unit
// ("kg" when empty).
func (s *WeightService) RecordWeight(ctx context.Context, sess *domain.Session, value, unit string) error {
	if err := requirePatient(sess); err != nil {
		return err
	}
	var kg float64
	return s.gates.run(ctx, sess.UID, "weight",
		func() error {
			u, err := normalizeUnit(unit)
			if err != nil {
				return err
			}
			v, err := mutate.PositiveFloat("weight", value)
			if err != nil {
				return err
			}
			kg = domain.ConvertWeight(v, u, domain.UnitKg)
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.store.Create(ctx, domain.CollectionWeightLog, domain.WeightFields(sess.UID, kg))
			return err
		},
	)
}

// WatchHistory streams the session user's weight entries converted to unit.
func (s *WeightService) WatchHistory(ctx context.Context, sess *domain.Session, unit string, emit func(WeightView), onError func(error)) (*Feed, error) {
	if err := requirePatient(sess); err != nil {
		return nil, err
	}
	u, err := normalizeUnit(unit)
	if err != nil {
		return nil, err
	}

	f := newFeed(ctx, onError)
	q := domain.Query{
		Collection: domain.CollectionWeightLog,
		Filters:    []domain.Filter{ownedBy(sess.UID)},
		Order:      newestFirst("createdAt"),
	}
	err = watch(f, s.store, q, domain.DecodeWeightEntry, func(entries []domain.WeightEntry) {
		entries = aggregate.SortNewestFirst(entries, weightTime)
		for i := range entries {
			entries[i].Weight = domain.ConvertWeight(entries[i].Weight, domain.UnitKg, u)
		}
		view := WeightView{Unit: u, Entries: entries}
		if c, ok := aggregate.BuildChart(entries, weightTime, s.opts.Chart,
			func(e domain.WeightEntry) float64 { return e.Weight },
		); ok {
			view.Chart = &c
		}
		f.now(func() { emit(view) })
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func normalizeUnit(unit string) (string, error) {
	switch unit {
	case "", domain.UnitKg:
		return domain.UnitKg, nil
	case domain.UnitLb:
		return domain.UnitLb, nil
	}
	return "", domain.Invalid("unit", `must be "kg" or "lb"`)
}

func weightTime(e domain.WeightEntry) time.Time { return e.CreatedAt }
