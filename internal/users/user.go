package users

import (
	"errors"

	"github.com/2beens/travelblog/internal/auth"
)

var (
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
}

func (u *User) Identity() *auth.Identity {
	return &auth.Identity{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
	}
}
