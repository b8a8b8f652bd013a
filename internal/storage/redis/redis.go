package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/pkg/logger/sl"
	"github.com/oof2win2/library-review-site/internal/storage"
)

type Redis struct {
	log *slog.Logger
	db  *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var (
	ErrNoConnection = errors.New("can't establish connection to db")
	ErrInternal     = errors.New("internal error")
)

func NewRedis(log *slog.Logger, opt RedisOptions) (*Redis, error) {
	db := redis.NewClient(&redis.Options{Addr: opt.Addr, Password: opt.Password, DB: opt.DB})

	_, err := db.Ping(context.Background()).Result()
	if err != nil {
		return nil, fmt.Errorf("can't ping Redis DB: %w", ErrNoConnection)
	}
	return &Redis{log: log, db: db}, nil
}

func NewWithClient(log *slog.Logger, client *redis.Client) *Redis {
	return &Redis{log: log, db: client}
}

func (r *Redis) Close() error {
	return r.db.Close()
}

// Session is the hash layout under "session:<jti>". Timestamps are epoch
// seconds like the token claims. The key also carries a redis TTL mirroring
// expires_at, but the session service still checks the stored value: the TTL
// is cleanup, not the authority.
type Session struct {
	Jti       string `redis:"jti"`
	Subject   int64  `redis:"subject"`
	IssuedAt  int64  `redis:"issued_at"`
	ExpiresAt int64  `redis:"expires_at"`
}

func sessionKey(id uuid.UUID) string {
	return "session:" + id.String()
}

func (r *Redis) CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	const op = "redis.CreateSession"
	log := r.log.With(slog.String("op", op))

	row := Session{Jti: session.ID.String(), Subject: session.SubjectID, IssuedAt: session.IssuedAt.Unix(), ExpiresAt: session.ExpiresAt.Unix()}

	if err := r.db.HSet(ctx, sessionKey(session.ID), row).Err(); err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}
	if err := r.db.ExpireAt(ctx, sessionKey(session.ID), session.ExpiresAt).Err(); err != nil {
		log.Error("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &session, nil
}

func (r *Redis) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	const op = "redis.GetSession"
	log := r.log.With(slog.String("op", op))

	res := r.db.HGetAll(ctx, sessionKey(id))
	if err := res.Err(); err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}
	if len(res.Val()) == 0 {
		return nil, storage.ErrSessionNotFound
	}

	var row Session
	if err := res.Scan(&row); err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	jti, err := uuid.Parse(row.Jti)
	if err != nil {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return &domain.Session{ID: jti, SubjectID: row.Subject, IssuedAt: time.Unix(row.IssuedAt, 0), ExpiresAt: time.Unix(row.ExpiresAt, 0)}, nil
}

func (r *Redis) UpsertSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	const op = "redis.UpsertSession"
	log := r.log.With(slog.String("op", op))

	stored, err := r.GetSession(ctx, session.ID)
	if err == nil {
		// Renewal keeps the original issue timestamp.
		session.IssuedAt = stored.IssuedAt
	} else if !errors.Is(err, storage.ErrSessionNotFound) {
		log.Info("error: ", sl.Err(err))
		return nil, ErrInternal
	}

	return r.CreateSession(ctx, session)
}

func (r *Redis) DeleteSession(ctx context.Context, id uuid.UUID) error {
	const op = "redis.DeleteSession"
	log := r.log.With(slog.String("op", op))

	if err := r.db.Del(ctx, sessionKey(id)).Err(); err != nil {
		log.Info("error: ", sl.Err(err))
		return ErrInternal
	}
	return nil
}
