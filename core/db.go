package core

import "context"

type (
	// Transactor runs fn so that every write it issues through the repositories
	// succeeds or fails as a whole. Repositories must be called with the ctx
	// handed to fn for their writes to join the transaction.
	Transactor interface {
		WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}

	// TransactorFunc adapts a plain function to a Transactor.
	TransactorFunc func(ctx context.Context, fn func(ctx context.Context) error) error
)

func (f TransactorFunc) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTransaction runs fn directly: writes are issued sequentially with no rollback.
var NoTransaction Transactor = TransactorFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
