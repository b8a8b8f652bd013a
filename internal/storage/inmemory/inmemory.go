package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/oof2win2/library-review-site/internal/domain"
	"github.com/oof2win2/library-review-site/internal/storage"
)

// Inmemory keeps everything in process memory. It backs the local
// environment and the service-level tests.
type Inmemory struct {
	log *slog.Logger

	mu         sync.RWMutex
	sessions   map[uuid.UUID]domain.Session
	users      map[int64]domain.User
	events     []domain.SessionEvent
	nextUserID int64
	nextEvent  int64
}

func New(log *slog.Logger) *Inmemory {
	return &Inmemory{
		log:      log,
		sessions: make(map[uuid.UUID]domain.Session),
		users:    make(map[int64]domain.User),
	}
}

func (i *Inmemory) CreateSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sessions[session.ID] = session
	return &session, nil
}

func (i *Inmemory) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	session, ok := i.sessions[id]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	return &session, nil
}

func (i *Inmemory) UpsertSession(ctx context.Context, session domain.Session) (*domain.Session, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if stored, ok := i.sessions[session.ID]; ok {
		// Renewal keeps the original issue timestamp.
		session.IssuedAt = stored.IssuedAt
	}
	i.sessions[session.ID] = session
	return &session, nil
}

func (i *Inmemory) DeleteSession(ctx context.Context, id uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.sessions, id)
	return nil
}

func (i *Inmemory) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, stored := range i.users {
		if stored.Email == user.Email {
			return nil, storage.ErrUserAlreadyExists
		}
	}

	i.nextUserID++
	user.ID = i.nextUserID
	i.users[user.ID] = user
	return &user, nil
}

func (i *Inmemory) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, user := range i.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (i *Inmemory) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	user, ok := i.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

func (i *Inmemory) CreateSessionEvent(ctx context.Context, event domain.SessionEvent) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.nextEvent++
	event.ID = i.nextEvent
	i.events = append(i.events, event)
	return nil
}

func (i *Inmemory) GetNextSessionEvent(ctx context.Context) (*domain.SessionEvent, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.events) == 0 {
		return nil, storage.ErrNoOutboxEvents
	}
	event := i.events[0]
	return &event, nil
}

func (i *Inmemory) ConfirmSessionEventSent(ctx context.Context, eventID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for key := range i.events {
		if i.events[key].ID == eventID {
			i.events = append(i.events[:key], i.events[key+1:]...)
			return nil
		}
	}
	return nil
}
