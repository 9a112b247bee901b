package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hypertension/internal/app"
	"hypertension/internal/domain"
	"hypertension/internal/mutate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// statusFor maps an application error to a response status.
func statusFor(err error) int {
	var (
		ve    *domain.ValidationError
		rm    *domain.RoleMismatchError
		store *domain.StoreError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &rm),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, app.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mutate.ErrInFlight), errors.Is(err, domain.ErrEmailInUse):
		return http.StatusConflict
	case errors.As(err, &store):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Server-side failures are logged
// and not echoed to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, errors.New(http.StatusText(status)))
		return
	}
	writeError(w, status, err)
}
