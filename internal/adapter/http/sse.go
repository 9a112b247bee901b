package adapthttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"hypertension/internal/app"
)

type event struct {
	name string
	data any
}

// mailbox buffers feed output for the writer loop. Updates coalesce: a view
// not yet written is replaced by a newer one. Pushing never blocks.
type mailbox struct {
	mu     sync.Mutex
	events []event
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(ev event) {
	m.mu.Lock()
	if ev.name == "update" {
		for i, pending := range m.events {
			if pending.name == "update" {
				m.events = append(m.events[:i], m.events[i+1:]...)
				break
			}
		}
	}
	m.events = append(m.events, ev)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events
	m.events = nil
	return evs
}

// stream serves a live feed as Server-Sent Events. The feed lives as long
// as the request; the client disconnecting closes it.
func stream[V any](s *Server, w http.ResponseWriter, r *http.Request, start func(ctx context.Context, emit func(V), onError func(error)) (*app.Feed, error)) {
	ctx := r.Context()
	box := newMailbox()
	feed, err := start(ctx,
		func(v V) { box.push(event{name: "update", data: v}) },
		func(err error) { box.push(event{name: "error", data: map[string]string{"error": err.Error()}}) },
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer feed.Close()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Error().Err(err).Msg("stream flush")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-feed.Done():
			return
		case <-box.signal:
			for _, ev := range box.drain() {
				if err := writeEvent(w, ev); err != nil {
					s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("stream write")
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev event) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
