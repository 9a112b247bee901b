// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"hypertension/internal/app"
)

// Services groups the application services the adapter routes to.
type Services struct {
	Auth            *app.AuthService
	Readings        *app.ReadingService
	Weight          *app.WeightService
	Medications     *app.MedicationService
	Goals           *app.GoalService
	Tips            *app.TipService
	Recommendations *app.RecommendationService
	Patients        *app.PatientService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	Services
	log zerolog.Logger
}

// New creates a Server wired to the given application services.
func New(svc Services, log zerolog.Logger) *Server {
	return &Server{Services: svc, log: log}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware, withNoCache)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})

		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/signout", s.handleSignOut)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/me", s.handleProfile)
			r.Put("/me", s.handleUpdateProfile)

			r.Post("/readings", s.handleLogReading)
			r.Get("/readings/stream", s.handleReadingsStream)
			r.Get("/readings/all/stream", s.handleAllReadingsStream)

			r.Post("/weight", s.handleRecordWeight)
			r.Get("/weight/stream", s.handleWeightStream)

			r.Get("/goals", s.handleGetGoals)
			r.Put("/goals", s.handleSaveGoals)

			r.Post("/medications", s.handleAddMedication)
			r.Get("/medications/stream", s.handleMedicationsStream)
			r.Post("/medications/{id}/taken", s.handleMarkTaken)
			r.Post("/medications/{id}/reminder", s.handleScheduleReminder)

			r.Post("/tips", s.handleCreateTip)
			r.Get("/tips/stream", s.handleTipsStream)
			r.Get("/tips/{id}", s.handleGetTip)
			r.Put("/tips/{id}", s.handleUpdateTip)
			r.Delete("/tips/{id}", s.handleDeleteTip)

			r.Post("/recommendations", s.handleSendRecommendation)
			r.Get("/recommendations/stream", s.handleRecommendationsStream)

			r.Get("/patients/stream", s.handlePatientsStream)
			r.Get("/patients/{id}/stream", s.handlePatientStream)
		})
	})
	return r
}
