// Package enrich decorates records with a label resolved from a related
// collection.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hypertension/internal/domain"
)

// Sentinel labels.
const (
	Anonymous = "Anonymous"
	Unknown   = "Unknown"
)

// lookupTimeout bounds a single shared lookup.
const lookupTimeout = 10 * time.Second

// LookupFunc resolves the label for a foreign id. A miss is reported as an
// error matching domain.ErrNotFound.
type LookupFunc func(ctx context.Context, id string) (string, error)

// Enricher joins records against a related collection. Output always has the
// same length and order as the input. Lookups never fail the batch: a record
// without a foreign id is labelled Anonymous and a record whose lookup misses
// or fails is labelled Unknown.
type Enricher[T any] struct {
	Key    func(T) string
	Lookup LookupFunc
	Apply  func(T, string) T
	// Limit bounds concurrent lookups. Zero means unbounded.
	Limit  int
	Logger zerolog.Logger

	flight singleflight.Group
}

// Enrich resolves labels for items concurrently and returns once every
// lookup has completed.
func (e *Enricher[T]) Enrich(ctx context.Context, items []T) []T {
	out := make([]T, len(items))
	byID := make(map[string][]int)
	var ids []string
	for i, item := range items {
		id := e.Key(item)
		if id == "" {
			out[i] = e.Apply(item, Anonymous)
			continue
		}
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], i)
	}

	var g errgroup.Group
	if e.Limit > 0 {
		g.SetLimit(e.Limit)
	}
	for _, id := range ids {
		idx := byID[id]
		g.Go(func() error {
			label := e.resolve(ctx, id)
			for _, i := range idx {
				out[i] = e.Apply(items[i], label)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolve shares one lookup per id across concurrent batches. The shared
// lookup is detached from any single caller's cancellation; each caller
// stops waiting when its own ctx ends.
func (e *Enricher[T]) resolve(ctx context.Context, id string) string {
	ch := e.flight.DoChan(id, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return e.Lookup(lctx, id)
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	label, _ := v.(string)
	if err == nil && label != "" {
		return label
	}
	ev := e.Logger.Debug().Str("id", id)
	if errors.Is(err, domain.ErrNotFound) {
		ev.Msg("enrichment miss")
	} else {
		ev.Err(err).Msg("enrichment lookup failed")
	}
	return Unknown
}
