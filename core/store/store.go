// Package store groups every repository with the transactor that spans them.
package store

import (
	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

// Store is the explicit handle on the database passed to every service.
// Writes issued with the ctx given by Tx.WithinTransaction join that transaction.
type Store struct {
	Tx       core.Transactor
	Users    user.Repository
	Messages message.Repository
	school.Repositories
}
