// Package user defines accounts.
package user

import (
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/types"
)

// User is an account. Hashes never leave the process in JSON.
type User struct {
	types.Entity
	ID                 id.UserID `json:"id"`
	UserID             string    `json:"userid"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	SecurityQuestion   string    `json:"securityQuestion"`
	SecurityAnswerHash string    `json:"-"`
}

// Clone returns a copy.
func (u *User) Clone() *User {
	c := *u
	return &c
}
