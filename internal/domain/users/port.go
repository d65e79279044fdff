package users

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, u *User) error
	// GetByEmail returns nil, nil when no user has that email.
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer signs and validates time-limited bearer tokens carrying a user id.
type TokenIssuer interface {
	Issue(userID UserID) (string, error)
	Validate(token string) (UserID, error)
}
