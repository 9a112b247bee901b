package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

// TipsView lists lifestyle tips, newest first.
type TipsView struct {
	Tips []domain.LifestyleTip `json:"tips"`
}

// TipService manages doctor-authored lifestyle tips.
type TipService struct {
	store domain.DocumentStore
	log   zerolog.Logger
	gates gates
}

// NewTipService creates a TipService.
func NewTipService(store domain.DocumentStore, log zerolog.Logger) *TipService {
	return &TipService{store: store, log: log}
}

// Create publishes a new tip.
func (s *TipService) Create(ctx context.Context, sess *domain.Session, title, content string) error {
	if err := requireDoctor(sess); err != nil {
		return err
	}
	return s.gates.run(ctx, sess.UID, "tip",
		func() error { return validateTip(&title, &content) },
		func(ctx context.Context) error {
			_, err := s.store.Create(ctx, domain.CollectionTips, map[string]any{
				"title":     title,
				"content":   content,
				"createdAt": domain.ServerTimestamp,
			})
			return err
		},
	)
}

// Update replaces the title and content of an existing tip.
func (s *TipService) Update(ctx context.Context, sess *domain.Session, id, title, content string) error {
	if err := requireDoctor(sess); err != nil {
		return err
	}
	return s.gates.run(ctx, sess.UID, "tip/"+id,
		func() error { return validateTip(&title, &content) },
		func(ctx context.Context) error {
			return s.store.Update(ctx, domain.CollectionTips, id, map[string]any{
				"title":   title,
				"content": content,
			})
		},
	)
}

// Delete removes a tip.
func (s *TipService) Delete(ctx context.Context, sess *domain.Session, id string) error {
	if err := requireDoctor(sess); err != nil {
		return err
	}
	return s.gates.run(ctx, sess.UID, "tip/"+id, nil, func(ctx context.Context) error {
		return s.store.Delete(ctx, domain.CollectionTips, id)
	})
}

// Get loads one tip for editing.
func (s *TipService) Get(ctx context.Context, id string) (domain.LifestyleTip, error) {
	doc, err := s.store.Get(ctx, domain.CollectionTips, id)
	if err != nil {
		return domain.LifestyleTip{}, err
	}
	return domain.DecodeTip(doc)
}

// WatchTips streams every tip. Any signed-in user may watch.
func (s *TipService) WatchTips(ctx context.Context, emit func(TipsView), onError func(error)) (*Feed, error) {
	f := newFeed(ctx, onError)
	q := domain.Query{Collection: domain.CollectionTips, Order: newestFirst("createdAt")}
	err := watch(f, s.store, q, domain.DecodeTip, func(tips []domain.LifestyleTip) {
		tips = aggregate.SortNewestFirst(tips, func(t domain.LifestyleTip) time.Time { return t.CreatedAt })
		f.now(func() { emit(TipsView{Tips: tips}) })
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func validateTip(title, content *string) (err error) {
	if *title, err = mutate.Required("title", *title); err != nil {
		return err
	}
	*content, err = mutate.Required("content", *content)
	return err
}
