package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/domain/errs"
	"github.com/oof2win2/library-review-site/internal/pkg/cookie"
	"github.com/oof2win2/library-review-site/internal/pkg/jwt"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
	"github.com/oof2win2/library-review-site/internal/pkg/metrics"
	"github.com/oof2win2/library-review-site/internal/storage"
)

type SessionStorage interface {
	CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	UpsertSession(ctx context.Context, session domain.Session) (*domain.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

type UserStorage interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
}

// EventRecorder feeds the audit outbox. Optional: a nil recorder disables
// auditing without touching the authentication paths.
type EventRecorder interface {
	CreateSessionEvent(ctx context.Context, event domain.SessionEvent) error
}

type SessionParams struct {
	TTL    time.Duration
	Secret []byte
}

// SessionService reconciles signed-token validity with store-backed
// revocability. The store record, never the token's own exp claim, decides
// whether a session is alive.
type SessionService struct {
	log *slog.Logger

	sessions SessionStorage
	users    UserStorage
	events   EventRecorder
	cookies  *cookie.Transport
	params   SessionParams

	now func() time.Time
}

func NewSessionService(log *slog.Logger, sessions SessionStorage, users UserStorage, cookies *cookie.Transport, params SessionParams) *SessionService {
	return &SessionService{
		log:      log,
		sessions: sessions,
		users:    users,
		cookies:  cookies,
		params:   params,
		now:      time.Now,
	}
}

// WithEvents attaches an audit outbox recorder.
func (s *SessionService) WithEvents(events EventRecorder) *SessionService {
	s.events = events
	return s
}

// WithClock overrides the time source. Tests use it to cross expiry
// boundaries without sleeping.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Authenticate resolves a presented credential to a user. Every invalid
// credential collapses to an unauthenticated result with a nil error, so
// callers cannot tell which check failed; an error is returned only when the
// store itself is unreachable.
func (s *SessionService) Authenticate(ctx context.Context, credential string) (domain.AuthResult, error) {
	const op = "auth.Authenticate"
	log := s.log.With(slog.String("op", op))

	raw, ok := s.cookies.Decode(credential)
	if !ok {
		// No credential or wrong scheme: rejected without touching the store.
		log.Debug("credential rejected", sl.Err(errs.ErrMalformedCredential))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		return domain.AuthResult{}, nil
	}

	claims, err := jwt.Verify(raw, s.params.Secret)
	if errors.Is(err, jwt.ErrBadSignature) {
		log.Debug("credential rejected", sl.Err(errs.ErrBadSignature))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		return domain.AuthResult{}, nil
	}
	if err != nil {
		log.Debug("credential rejected", sl.Err(errs.ErrMalformedCredential))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		return domain.AuthResult{}, nil
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		log.Debug("credential rejected", sl.Err(errs.ErrSessionNotFound))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		return domain.AuthResult{}, nil
	}
	if err != nil {
		log.Error("session lookup failed", sl.Err(err))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.AuthResult{}, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	// The stored expiry is checked, not the token's claim: revocation and
	// renewal both live in the store.
	if session.ExpiresAt.Before(s.now()) {
		if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
			log.Error("expired session cleanup failed", sl.Err(err))
			metrics.AuthAttempts.WithLabelValues(metrics.OutcomeError).Inc()
			return domain.AuthResult{}, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
		}
		s.recordEvent(ctx, domain.EventExpired, *session)
		log.Debug("credential rejected", sl.Err(errs.ErrSessionExpired))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeExpired).Inc()
		return domain.AuthResult{}, nil
	}

	user, err := s.users.GetUserByID(ctx, session.SubjectID)
	if errors.Is(err, storage.ErrUserNotFound) {
		// Subject deleted out from under the session.
		log.Debug("credential rejected", sl.Err(errs.ErrSubjectNotFound))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		return domain.AuthResult{}, nil
	}
	if err != nil {
		log.Error("subject lookup failed", sl.Err(err))
		metrics.AuthAttempts.WithLabelValues(metrics.OutcomeError).Inc()
		return domain.AuthResult{}, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	metrics.AuthAttempts.WithLabelValues(metrics.OutcomeAuthenticated).Inc()
	return domain.AuthResult{Authenticated: true, User: user, Session: session}, nil
}

// IssueOrRenew persists a session record and signs a credential for it. With
// a previous session the record is renewed under the same id, keeping its
// original issue time and extending expiry; otherwise a fresh id is created.
// The claims are always signed from the stored row, never from the inputs.
func (s *SessionService) IssueOrRenew(ctx context.Context, subjectID int64, prev *domain.Session) (domain.Credential, error) {
	const op = "auth.IssueOrRenew"
	log := s.log.With(slog.String("op", op))

	now := s.now().Truncate(time.Second)
	session := domain.Session{
		SubjectID: subjectID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.params.TTL),
	}

	var (
		saved *domain.Session
		err   error
		event string
	)
	if prev != nil {
		session.ID = prev.ID
		saved, err = s.sessions.UpsertSession(ctx, session)
		event = domain.EventRenewed
	} else {
		session.ID = uuid.New()
		saved, err = s.sessions.CreateSession(ctx, session)
		event = domain.EventLogin
	}
	if err != nil {
		log.Error("failed to save session", sl.Err(err))
		return domain.Credential{}, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	token, err := jwt.Sign(jwt.Claims{
		SessionID: saved.ID,
		SubjectID: saved.SubjectID,
		IssuedAt:  saved.IssuedAt,
		ExpiresAt: saved.ExpiresAt,
	}, s.params.Secret)
	if err != nil {
		log.Error("failed to sign token", sl.Err(err))
		return domain.Credential{}, fmt.Errorf("%s: %w", op, err)
	}

	s.recordEvent(ctx, event, *saved)

	return domain.Credential{
		Cookie:    s.cookies.Encode(token, saved.Lifetime()),
		SessionID: saved.ID,
	}, nil
}

// Revoke deletes the session a credential points at. Unverifiable
// credentials mean there is nothing to revoke, which counts as success; the
// caller overwrites the client's cookie either way.
func (s *SessionService) Revoke(ctx context.Context, credential string) error {
	const op = "auth.Revoke"
	log := s.log.With(slog.String("op", op))

	raw, ok := s.cookies.Decode(credential)
	if !ok {
		return nil
	}

	claims, err := jwt.Verify(raw, s.params.Secret)
	if err != nil {
		return nil
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		log.Error("session lookup failed", sl.Err(err))
		return fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		log.Error("failed to delete session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	s.recordEvent(ctx, domain.EventLogout, *session)
	return nil
}

// RevokeCookie is the Set-Cookie value that expires the credential
// client-side. Emitted on logout even when Revoke itself failed.
func (s *SessionService) RevokeCookie() string {
	return s.cookies.Revoke()
}

// Register creates a user with a bcrypt password hash.
func (s *SessionService) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	const op = "auth.Register"
	log := s.log.With(slog.String("op", op))

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, errs.ErrUserAlreadyExists
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		log.Error("user lookup failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.CreateUser(ctx, domain.User{Email: email, Name: name, PasswordHash: passHash})
	if errors.Is(err, storage.ErrUserAlreadyExists) {
		// Lost a race with a concurrent signup for the same email.
		return nil, errs.ErrUserAlreadyExists
	}
	if err != nil {
		log.Error("failed to save user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	return user, nil
}

// Login checks the password and issues a credential. A previous session is
// renewed only when it belongs to the same user logging in.
func (s *SessionService) Login(ctx context.Context, email, password string, prev *domain.Session) (domain.Credential, *domain.User, error) {
	const op = "auth.Login"
	log := s.log.With(slog.String("op", op))

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return domain.Credential{}, nil, errs.ErrInvalidCredentials
	}
	if err != nil {
		log.Error("user lookup failed", sl.Err(err))
		return domain.Credential{}, nil, fmt.Errorf("%s: %w", op, errs.ErrStoreUnavailable)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return domain.Credential{}, nil, errs.ErrInvalidCredentials
	}

	if prev != nil && prev.SubjectID != user.ID {
		prev = nil
	}

	credential, err := s.IssueOrRenew(ctx, user.ID, prev)
	if err != nil {
		return domain.Credential{}, nil, err
	}

	return credential, user, nil
}

func (s *SessionService) recordEvent(ctx context.Context, eventType string, session domain.Session) {
	if s.events == nil {
		return
	}

	event := domain.SessionEvent{
		Type:       eventType,
		SessionID:  session.ID,
		SubjectID:  session.SubjectID,
		OccurredAt: s.now(),
	}
	if err := s.events.CreateSessionEvent(ctx, event); err != nil {
		// Auditing is best effort, authentication outcomes never depend on it.
		s.log.Warn("failed to record session event", sl.Err(err))
	}
}
