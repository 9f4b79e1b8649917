package inmemdb

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var errUserNotFound = core.NewNotFoundError("user")

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func cloneUser(u user.User) user.User {
	u.PasswordHash = slices.Clone(u.PasswordHash)
	u.SecurityQuestions = slices.Clone(u.SecurityQuestions)
	return u
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, "CreateUser", func(t *tables) error {
		for _, u := range t.users {
			if u.Email == usr.Email {
				return user.ErrEmailExists
			}
		}
		t.users[usr.ID] = cloneUser(usr)
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	var (
		usr user.User
		ok  bool
	)
	repo.db.read(func(t *tables) { usr, ok = t.users[id] })
	if !ok {
		return user.User{}, errUserNotFound
	}
	return cloneUser(usr), nil
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	var (
		usr   user.User
		found bool
	)
	repo.db.read(func(t *tables) {
		for _, u := range t.users {
			if u.Email == email {
				usr, found = u, true
				return
			}
		}
	})
	if !found {
		return user.User{}, errUserNotFound
	}
	return cloneUser(usr), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	filter.Clean()
	users := make([]user.User, 0)
	repo.db.read(func(t *tables) {
		for _, u := range t.users {
			if filter.Match(u) {
				users = append(users, cloneUser(u))
			}
		}
	})
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].FullName) < strings.ToLower(users[j].FullName)
	})
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, "UpdateUser", func(t *tables) error {
		if _, ok := t.users[usr.ID]; !ok {
			return errUserNotFound
		}
		for _, u := range t.users {
			if u.Email == usr.Email && u.ID != usr.ID {
				return user.ErrEmailExists
			}
		}
		t.users[usr.ID] = cloneUser(usr)
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteUser", func(t *tables) error {
		if _, ok := t.users[id]; !ok {
			return errUserNotFound
		}
		delete(t.users, id)
		return nil
	})
}

func (repo *userRepository) DeleteUserByEmail(ctx context.Context, email string) error {
	return repo.db.write(ctx, "DeleteUserByEmail", func(t *tables) error {
		for id, u := range t.users {
			if u.Email == email {
				delete(t.users, id)
				return nil
			}
		}
		return errUserNotFound
	})
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	var exists bool
	repo.db.read(func(t *tables) {
		for _, u := range t.users {
			if u.Email == email && !isExcluded(u, excludedUsers) {
				exists = true
				return
			}
		}
	})
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CountUsers(_ context.Context) (int, error) {
	var n int
	repo.db.read(func(t *tables) { n = len(t.users) })
	return n, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}
