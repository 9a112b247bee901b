// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"sync"

	"hypertension/internal/aggregate"
	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

var (
	// ErrForbidden indicates that the session's role may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// gates hands out one mutation gateway per user and action, so a repeated
// tap while a write is outstanding is rejected instead of duplicated. An
// entry lives only while some call holds it.
type gates struct {
	mu sync.Mutex
	m  map[string]*gate
}

type gate struct {
	gw   mutate.Gateway
	refs int
}

func (g *gates) run(ctx context.Context, uid, action string, validate func() error, submit func(context.Context) error) error {
	key := uid + "/" + action
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*gate)
	}
	e, ok := g.m[key]
	if !ok {
		e = &gate{}
		g.m[key] = e
	}
	e.refs++
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if e.refs--; e.refs == 0 {
			delete(g.m, key)
		}
		g.mu.Unlock()
	}()
	return e.gw.Run(ctx, validate, submit)
}

func (g *gates) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

func requireDoctor(s *domain.Session) error {
	if s == nil || !s.IsDoctor() {
		return ErrForbidden
	}
	return nil
}

func requirePatient(s *domain.Session) error {
	if s == nil || s.Role != domain.RolePatient {
		return ErrForbidden
	}
	return nil
}

func ownedBy(uid string) domain.Filter {
	return domain.Where("userId", domain.OpEq, uid)
}

func newestFirst(field string) *domain.OrderBy {
	return &domain.OrderBy{Field: field, Desc: true}
}

// FeedOptions tunes live views.
type FeedOptions struct {
	Chart       aggregate.ChartOptions
	EnrichLimit int
}

// DefaultFeedOptions returns the standard chart window and an enrichment
// fan-out of 16.
func DefaultFeedOptions() FeedOptions {
	return FeedOptions{Chart: aggregate.DefaultChartOptions(), EnrichLimit: 16}
}
