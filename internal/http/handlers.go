package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/domain/errs"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
)

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	const op = "http.handleSignup"
	log := s.log.With(slog.String("op", op))

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if errors.Is(err, errs.ErrUserAlreadyExists) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "user already exists"})
		return
	}
	if err != nil {
		log.Error("signup failed", sl.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "http.handleLogin"
	log := s.log.With(slog.String("op", op))

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	// A valid existing session is renewed in place, so the same browser keeps
	// one session id across logins.
	var prev *domain.Session
	if credential, ok := s.cookies.Value(r); ok {
		result, err := s.auth.Authenticate(r.Context(), credential)
		if err != nil {
			log.Error("previous session lookup failed", sl.Err(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		if result.Authenticated {
			prev = result.Session
		}
	}

	credential, user, err := s.auth.Login(r.Context(), req.Email, req.Password, prev)
	if errors.Is(err, errs.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	s.cookies.Attach(w.Header(), credential.Cookie)
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	const op = "http.handleLogout"
	log := s.log.With(slog.String("op", op))

	// The client's copy is overwritten no matter what happens to the stored
	// record.
	s.cookies.Attach(w.Header(), s.auth.RevokeCookie())

	credential, ok := s.cookies.Value(r)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.auth.Revoke(r.Context(), credential); err != nil {
		log.Error("logout failed", sl.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(domain.UserCtxKey{}).(*domain.User)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
