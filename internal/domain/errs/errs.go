package errs

import "errors"

var (
	ErrMalformedCredential = errors.New("credential is malformed")
	ErrBadSignature        = errors.New("token signature mismatch")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExpired      = errors.New("session expired")
	ErrSubjectNotFound     = errors.New("subject not found")

	// ErrStoreUnavailable is the only authentication failure that reaches
	// callers as an error: it means infrastructure, not a bad credential.
	ErrStoreUnavailable = errors.New("session store unavailable")

	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
