package mongodb

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var errUserNotFound = core.NewNotFoundError("user")

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil)

// userError maps a duplicate key (the unique email index) to user.ErrEmailExists.
func userError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return user.ErrEmailExists
	}
	return persistenceError(op, err, errUserNotFound)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if _, err := repo.coll.InsertOne(ctx, usr); err != nil {
		return user.User{}, userError("CreateUser", err)
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return findOne[user.User](ctx, "GetUserByID", repo.coll, bson.M{"id": id}, errUserNotFound)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return findOne[user.User](ctx, "GetUserByEmail", repo.coll, bson.M{"email": email}, errUserNotFound)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	filter.Clean()
	q := bson.M{}
	if len(filter.Roles) > 0 {
		q["role"] = bson.M{"$in": filter.Roles}
	}
	if filter.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
		q["$or"] = bson.A{bson.M{"fullName": pattern}, bson.M{"email": pattern}}
	}
	return findAll[user.User](ctx, "QueryUsers", repo.coll, q, byName("fullName"))
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"id": usr.ID}, usr)
	if err != nil {
		return user.User{}, userError("UpdateUser", err)
	}
	if res.MatchedCount == 0 {
		return user.User{}, errUserNotFound
	}
	return usr, nil
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteUser", repo.coll, id, errUserNotFound)
}

func (repo *userRepository) DeleteUserByEmail(ctx context.Context, email string) error {
	res, err := repo.coll.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return core.NewPersistenceError("DeleteUserByEmail", err)
	}
	if res.DeletedCount == 0 {
		return errUserNotFound
	}
	return nil
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := bson.M{"email": email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q["id"] = bson.M{"$nin": ids}
	}
	n, err := count(ctx, "CheckEmailUniqueness", repo.coll, q)
	if err != nil {
		return err
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CountUsers(ctx context.Context) (int, error) {
	return count(ctx, "CountUsers", repo.coll, bson.M{})
}
