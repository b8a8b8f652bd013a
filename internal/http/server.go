package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/pkg/cookie"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
)

// AuthProvider is the session service surface the handlers need.
type AuthProvider interface {
	Authenticate(ctx context.Context, credential string) (domain.AuthResult, error)
	Register(ctx context.Context, email, name, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string, prev *domain.Session) (domain.Credential, *domain.User, error)
	Revoke(ctx context.Context, credential string) error
	RevokeCookie() string
}

type Server struct {
	log *slog.Logger

	addr           string
	requestTimeout time.Duration

	auth    AuthProvider
	cookies *cookie.Transport

	server    *http.Server
	isRunning bool
}

func New(options ...func(*Server)) *Server {
	server := &Server{}
	for _, option := range options {
		option(server)
	}
	return server
}

func WithLogger(log *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.log = log
	}
}

func WithAddr(addr string) func(*Server) {
	return func(s *Server) {
		s.addr = addr
	}
}

func WithRequestTimeout(timeout time.Duration) func(*Server) {
	return func(s *Server) {
		s.requestTimeout = timeout
	}
}

func WithAuth(auth AuthProvider, cookies *cookie.Transport) func(*Server) {
	return func(s *Server) {
		s.auth = auth
		s.cookies = cookies
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.Authenticated)
			r.Get("/me", s.handleMe)
		})
	})

	return r
}

func (s *Server) Start() {
	const op = "http.Start"
	log := s.log.With(slog.String("op", op))

	if s.isRunning {
		log.Error("http server is already running")
		return
	}

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}
	s.isRunning = true

	log.Info("http server is running", slog.String("addr", s.addr))

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error("error during start http server", sl.Err(err))
		}
	}()
}

func (s *Server) Stop() {
	const op = "http.Stop"
	log := s.log.With(slog.String("op", op))

	log.Info("http is stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error("error during shutdown http server", sl.Err(err))
	}
	s.isRunning = false
}
