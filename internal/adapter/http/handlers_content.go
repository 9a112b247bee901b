package adapthttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hypertension/internal/app"
)

type tipBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleCreateTip(w http.ResponseWriter, r *http.Request) {
	var body tipBody
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Tips.Create(r.Context(), sessionFrom(r), body.Title, body.Content); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleGetTip(w http.ResponseWriter, r *http.Request) {
	tip, err := s.Tips.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tip)
}

func (s *Server) handleUpdateTip(w http.ResponseWriter, r *http.Request) {
	var body tipBody
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Tips.Update(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body.Title, body.Content); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteTip(w http.ResponseWriter, r *http.Request) {
	if err := s.Tips.Delete(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTipsStream(w http.ResponseWriter, r *http.Request) {
	stream(s, w, r, s.Tips.WatchTips)
}

func (s *Server) handleSendRecommendation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PatientID string `json:"patientId"`
		Text      string `json:"text"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Recommendations.Send(r.Context(), sessionFrom(r), body.PatientID, body.Text); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleRecommendationsStream(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	stream(s, w, r, func(ctx context.Context, emit func(app.RecommendationsView), onError func(error)) (*app.Feed, error) {
		return s.Recommendations.WatchRecommendations(ctx, sess, emit, onError)
	})
}
