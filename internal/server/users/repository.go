// Package users implements the durable credential store: one record per
// registered username, loaded on login and created on registration.
package users

import (
	"context"
)

// Repository is the persistence contract for user records. Create must be
// atomic with respect to concurrent Create calls for the same username:
// exactly one of two racing registrations may succeed, the other receives
// common.ErrAlreadyExists.
type Repository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *User) (*User, error)
	Count(ctx context.Context) (int, error)
}
