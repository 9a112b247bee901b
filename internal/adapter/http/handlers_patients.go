package adapthttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hypertension/internal/app"
)

func (s *Server) handlePatientsStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	stream(s, w, r, func(ctx context.Context, emit func(app.PatientsView), onError func(error)) (*app.Feed, error) {
		return s.Patients.WatchPatients(ctx, sess, emit, onError)
	})
}

func (s *Server) handlePatientStream(w http.ResponseWriter, r *http.Request) {
	sess, id := sessionFrom(r), chi.URLParam(r, "id")
	stream(s, w, r, func(ctx context.Context, emit func(app.PatientDetailView), onError func(error)) (*app.Feed, error) {
		return s.Patients.WatchPatient(ctx, sess, id, emit, onError)
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.Patients.Profile(r.Context(), sessionFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName  string `json:"fullName"`
		Specialty string `json:"specialty"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Patients.UpdateProfile(r.Context(), sessionFrom(r), body.FullName, body.Specialty); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
