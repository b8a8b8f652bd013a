package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
)

// Authenticated resolves the session credential and injects the user into
// the request context. A bad credential is a 401; an unreachable store is a
// 503, never an authentication denial.
func (s *Server) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "http.Authenticated"
		log := s.log.With(slog.String("op", op))

		credential, _ := s.cookies.Value(r)

		result, err := s.auth.Authenticate(r.Context(), credential)
		if err != nil {
			log.Error("authentication failed", sl.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})
			return
		}
		if !result.Authenticated {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), domain.UserCtxKey{}, result.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
