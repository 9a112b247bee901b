package adapthttp

import (
	"context"
	"net/http"

	"hypertension/internal/app"
)

func (s *Server) handleRecordWeight(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
		Unit  string `json:"unit"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Weight.RecordWeight(r.Context(), sessionFrom(r), body.Value, body.Unit); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleWeightStream(w http.ResponseWriter, r *http.Request) {
	sess, unit := sessionFrom(r), r.URL.Query().Get("unit")
	stream(s, w, r, func(ctx context.Context, emit func(app.WeightView), onError func(error)) (*app.Feed, error) {
		return s.Weight.WatchHistory(ctx, sess, unit, emit, onError)
	})
}

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	goal, err := s.Goals.Get(r.Context(), sessionFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleSaveGoals(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Systolic  string `json:"systolic"`
		Diastolic string `json:"diastolic"`
		Weight    string `json:"weight"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	goal, err := s.Goals.Save(r.Context(), sessionFrom(r), body.Systolic, body.Diastolic, body.Weight)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
