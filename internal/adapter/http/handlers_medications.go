package adapthttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hypertension/internal/app"
	"hypertension/internal/domain"
)

func (s *Server) handleAddMedication(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string `json:"name"`
		Dosage string `json:"dosage"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Medications.Add(r.Context(), sessionFrom(r), body.Name, body.Dosage); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleMarkTaken(w http.ResponseWriter, r *http.Request) {
	if err := s.Medications.MarkTaken(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleScheduleReminder(w http.ResponseWriter, r *http.Request) {
	var at domain.DailyTime
	if err := parseJSON(r, &at); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Medications.ScheduleReminder(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), at); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "at": at.String()})
}

func (s *Server) handleMedicationsStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	stream(s, w, r, func(ctx context.Context, emit func(app.MedicationsView), onError func(error)) (*app.Feed, error) {
		return s.Medications.WatchMedications(ctx, sess, emit, onError)
	})
}
