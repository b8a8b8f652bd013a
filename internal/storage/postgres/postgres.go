package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
	"github.com/oof2win2/library-review-site/internal/storage"
)

type Postgres struct {
	log *slog.Logger
	db  *sql.DB
}

type ConnectOptions struct {
	Host     string
	Port     string
	User     string
	Password string
	DBname   string
}

var (
	ErrNoConnection = errors.New("can't establish connection to db")
	ErrInternal     = errors.New("internal error")
)

const (
	usersTable    = "users"
	sessionsTable = "sessions"
	outboxTable   = "outbox_session_events"
)

func New(log *slog.Logger, db *sql.DB) *Postgres {
	return &Postgres{log, db}
}

func NewWithOptions(log *slog.Logger, opt ConnectOptions) (*Postgres, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		opt.Host,
		opt.Port,
		opt.User,
		opt.Password,
		opt.DBname)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("can't open Postgres DB: %w", ErrNoConnection)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("can't ping Postgres DB: %w", ErrNoConnection)
	}

	return &Postgres{log: log, db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// Session mirrors the sessions table row. Timestamps are stored as epoch
// seconds, matching the claims inside the signed token.
type Session struct {
	Jti       uuid.UUID `pg:"jti"`
	Subject   int64     `pg:"subject"`
	IssuedAt  int64     `pg:"issued_at"`
	ExpiresAt int64     `pg:"expires_at"`
}

type User struct {
	ID           int64  `pg:"id"`
	Email        string `pg:"email"`
	Name         string `pg:"name"`
	PasswordHash []byte `pg:"password"`
	AuthLevel    int    `pg:"auth_level"`
}

type txKey struct{}

func injectTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func (p *Postgres) extractTx(ctx context.Context) (tx *sql.Tx, closeTx func(err error), err error) {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx, func(err error) {}, nil
	}

	tx, err = p.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	return tx, func(err error) {
		if err != nil {
			errRollback := tx.Rollback()
			if errRollback != nil {
				p.log.Error("error according rollback transaction in DB", sl.Err(errRollback))
			}
			return
		}
		errCommit := tx.Commit()
		if errCommit != nil {
			p.log.Error("error according commit transaction in DB", sl.Err(errCommit))
		}
	}, nil
}

func (p *Postgres) WithTx(ctx context.Context, tFunc func(ctx context.Context) error) error {
	op := "postgres.WithTx"
	log := p.log.With(slog.String("op", op))

	tx, beginError := p.db.Begin()
	if beginError != nil {
		log.Error("error with Start transaction", sl.Err(beginError))
		return ErrInternal
	}

	ctxTx := injectTx(ctx, tx)

	fnError := tFunc(ctxTx)

	if fnError != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("error with Rollback transaction", sl.Err(rollbackErr))
			return ErrInternal
		}
		return fnError
	}

	if commitError := tx.Commit(); commitError != nil {
		log.Error("error with Commit transaction", sl.Err(commitError))
		return ErrInternal
	}

	return nil
}

func (p *Postgres) CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	const op = "postgres.CreateSession"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	row := Session{Jti: session.ID, Subject: session.SubjectID, IssuedAt: session.IssuedAt.Unix(), ExpiresAt: session.ExpiresAt.Unix()}

	query := fmt.Sprintf("INSERT INTO %s (jti, subject, issued_at, expires_at) VALUES ($1,$2,$3,$4)", sessionsTable)
	_, err = tx.Exec(query, row.Jti, row.Subject, row.IssuedAt, row.ExpiresAt)
	closeTx(err)

	if err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &session, nil
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	const op = "postgres.GetSession"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	row := Session{}

	query := fmt.Sprintf("SELECT jti, subject, issued_at, expires_at FROM %s WHERE jti = $1", sessionsTable)
	err = tx.QueryRow(query, id).Scan(&row.Jti, &row.Subject, &row.IssuedAt, &row.ExpiresAt)
	closeTx(err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &domain.Session{ID: row.Jti, SubjectID: row.Subject, IssuedAt: time.Unix(row.IssuedAt, 0), ExpiresAt: time.Unix(row.ExpiresAt, 0)}, nil
}

// UpsertSession extends an existing session in place, keeping jti and
// issued_at, or creates the record when it does not exist yet. The stored row
// is returned so the caller signs exactly what the database holds.
func (p *Postgres) UpsertSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	const op = "postgres.UpsertSession"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	row := Session{}

	query := fmt.Sprintf(`INSERT INTO %s (jti, subject, issued_at, expires_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (jti) DO UPDATE SET subject = $2, expires_at = $4
		RETURNING jti, subject, issued_at, expires_at`, sessionsTable)
	err = tx.QueryRow(query, session.ID, session.SubjectID, session.IssuedAt.Unix(), session.ExpiresAt.Unix()).
		Scan(&row.Jti, &row.Subject, &row.IssuedAt, &row.ExpiresAt)
	closeTx(err)

	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &domain.Session{ID: row.Jti, SubjectID: row.Subject, IssuedAt: time.Unix(row.IssuedAt, 0), ExpiresAt: time.Unix(row.ExpiresAt, 0)}, nil
}

func (p *Postgres) DeleteSession(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.DeleteSession"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE jti = $1", sessionsTable)
	_, err = tx.Exec(query, id)
	closeTx(err)

	if err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}

	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	const op = "postgres.CreateUser"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	query := fmt.Sprintf("INSERT INTO %s (email, name, password, auth_level) VALUES ($1,$2,$3,$4) RETURNING id", usersTable)
	err = tx.QueryRow(query, user.Email, user.Name, user.PasswordHash, user.AuthLevel).Scan(&user.ID)
	closeTx(err)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return nil, storage.ErrUserAlreadyExists
	}
	if err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &user, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.GetUserByEmail"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	row := User{}

	query := fmt.Sprintf("SELECT id, email, name, password, auth_level FROM %s WHERE email = $1", usersTable)
	err = tx.QueryRow(query, email).Scan(&row.ID, &row.Email, &row.Name, &row.PasswordHash, &row.AuthLevel)
	closeTx(err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &domain.User{ID: row.ID, Email: row.Email, Name: row.Name, PasswordHash: row.PasswordHash, AuthLevel: row.AuthLevel}, nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	const op = "postgres.GetUserByID"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	row := User{}

	query := fmt.Sprintf("SELECT id, email, name, password, auth_level FROM %s WHERE id = $1", usersTable)
	err = tx.QueryRow(query, id).Scan(&row.ID, &row.Email, &row.Name, &row.PasswordHash, &row.AuthLevel)
	closeTx(err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &domain.User{ID: row.ID, Email: row.Email, Name: row.Name, PasswordHash: row.PasswordHash, AuthLevel: row.AuthLevel}, nil
}

func (p *Postgres) CreateSessionEvent(ctx context.Context, event domain.SessionEvent) error {
	const op = "postgres.CreateSessionEvent"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}

	query := fmt.Sprintf("INSERT INTO %s (type, session_jti, subject, occurred_at) VALUES ($1,$2,$3,$4)", outboxTable)
	_, err = tx.Exec(query, event.Type, event.SessionID, event.SubjectID, event.OccurredAt.Unix())
	closeTx(err)

	if err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}

	return nil
}

func (p *Postgres) GetNextSessionEvent(ctx context.Context) (*domain.SessionEvent, error) {
	const op = "postgres.GetNextSessionEvent"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	event := domain.SessionEvent{}
	var occurredAt int64

	query := fmt.Sprintf("SELECT id, type, session_jti, subject, occurred_at FROM %s WHERE sent_at IS NULL ORDER BY id LIMIT 1", outboxTable)
	err = tx.QueryRow(query).Scan(&event.ID, &event.Type, &event.SessionID, &event.SubjectID, &occurredAt)
	closeTx(err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNoOutboxEvents
	}
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	event.OccurredAt = time.Unix(occurredAt, 0)
	return &event, nil
}

func (p *Postgres) ConfirmSessionEventSent(ctx context.Context, eventID int64) error {
	const op = "postgres.ConfirmSessionEventSent"
	log := p.log.With(slog.String("op", op))

	tx, closeTx, err := p.extractTx(ctx)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}

	query := fmt.Sprintf(`UPDATE %s SET sent_at = $1 WHERE id = $2`, outboxTable)
	_, err = tx.Exec(query, time.Now(), eventID)
	closeTx(err)

	if err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}
	return nil
}
