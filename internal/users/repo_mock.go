package users

import (
	"context"
	"sync"
)

var _ usersRepo = (*repoMock)(nil)

type repoMock struct {
	Users map[int]*User
	mutex sync.Mutex
}

func newRepoMock() *repoMock {
	return &repoMock{
		Users: make(map[int]*User),
	}
}

func (r *repoMock) Add(_ context.Context, user *User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range r.Users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}

	user.ID = len(r.Users) + 1
	stored := *user
	r.Users[user.ID] = &stored
	return nil
}

func (r *repoMock) ByEmail(_ context.Context, email string) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range r.Users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *repoMock) ByID(_ context.Context, id int) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *u
	return &found, nil
}
