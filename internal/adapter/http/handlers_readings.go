package adapthttp

import (
	"context"
	"net/http"

	"hypertension/internal/app"
)

func (s *Server) handleLogReading(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Systolic  string `json:"systolic"`
		Diastolic string `json:"diastolic"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	class, err := s.Readings.Log(r.Context(), sessionFrom(r), body.Systolic, body.Diastolic)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"classification": class})
}

func (s *Server) handleReadingsStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	stream(s, w, r, func(ctx context.Context, emit func(app.ReadingsView), onError func(error)) (*app.Feed, error) {
		return s.Readings.WatchHistory(ctx, sess, emit, onError)
	})
}

func (s *Server) handleAllReadingsStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	stream(s, w, r, func(ctx context.Context, emit func(app.AllReadingsView), onError func(error)) (*app.Feed, error) {
		return s.Readings.WatchAll(ctx, sess, emit, onError)
	})
}
