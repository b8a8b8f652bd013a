package storage

import "errors"

var (
	ErrNoConnection = errors.New("can't establish connection to db")

	ErrInternal = errors.New("internal error")

	ErrSessionNotFound   = errors.New("session is not found")
	ErrUserNotFound      = errors.New("user is not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrNoOutboxEvents = errors.New("have no outbox events to send")
)
