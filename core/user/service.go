package user

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

var (
	// errors
	ErrEmailExists = errors.New("a user with this email already exists")
)

// Repository stores users. Lookups of absent users return a *core.NotFoundError.
type Repository interface {
	CreateUser(ctx context.Context, usr User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// QueryUsers applies AND operation on available QueryFilter fields.
	QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
	UpdateUser(ctx context.Context, usr User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteUserByEmail(ctx context.Context, email string) error
	// CheckEmailUniqueness returns ErrEmailExists when a user other than excludedUsers owns email.
	CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
	CountUsers(ctx context.Context) (int, error)
}

// CheckEmailUniqueness turns ErrEmailExists into a validation error on field.
func CheckEmailUniqueness(ctx context.Context, repo Repository, field, email string, excludedUsers ...User) error {
	err := repo.CheckEmailUniqueness(ctx, email, excludedUsers...)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmailExists) {
		return DuplicateEmailError(field)
	}
	return errors.Wrap(err, "checking email uniqueness")
}

// DuplicateEmailError is the field-level error reported when email is already registered.
func DuplicateEmailError(field string) error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: field, Error: "ya existe un usuario con este correo"})
}

// IsDuplicateEmail reports whether err is (or wraps) ErrEmailExists.
func IsDuplicateEmail(err error) bool {
	return errors.Is(err, ErrEmailExists)
}
