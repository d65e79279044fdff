package users

import "time"

// UserID identifier type
type UserID string

// User is an account that owns projects. It is never mutated after creation.
type User struct {
	ID           UserID    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
