package user

import (
	"context"

	"github.com/xraph/stockwise/id"
)

// Store persists users. User names and emails are unique.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	// GetUser looks a user up by user name.
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, userID id.UserID) error
}
