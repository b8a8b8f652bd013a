package domain

// User is the principal a session is bound to. User lifecycle belongs to the
// user-management side of the site; sessions only reference it by ID.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	AuthLevel    int
}

type UserCtxKey struct {
}
