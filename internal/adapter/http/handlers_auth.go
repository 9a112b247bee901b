package adapthttp

import (
	"net/http"
	"time"

	"hypertension/internal/app"
	"hypertension/internal/domain"
)

type credentials struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, landing, err := s.Auth.SignUp(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSession(w, http.StatusCreated, sess, landing)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sess, landing, err := s.Auth.SignIn(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, sess, landing)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if c, err := r.Cookie(sessionCookie); token == "" && err == nil {
		token = c.Value
	}
	if token != "" {
		if err := s.Auth.SignOut(r.Context(), token); err != nil {
			s.log.Warn().Err(err).Msg("sign out")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeSession(w http.ResponseWriter, status int, sess *domain.Session, landing app.Landing) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
	})
	writeJSON(w, status, map[string]any{
		"token":   sess.Token,
		"landing": landing,
		"session": sess,
	})
}
