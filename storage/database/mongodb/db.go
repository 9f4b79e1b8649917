// Package mongodb stores every collection in a MongoDB database.
package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
)

// Collections
const (
	usersColl           = "users"
	teachersColl        = "teachers"
	studentsColl        = "students"
	areasColl           = "areas"
	classroomsColl      = "classrooms"
	activityLogsColl    = "activityLogs"
	progressReportsColl = "progressReports"
	eventsColl          = "events"
	messagesColl        = "messages"
	conversationsColl   = "conversations"
)

// DB is an open connection to the configured database.
type DB struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
}

var _ core.Transactor = (*DB)(nil)

// Open connects to conf.Database.URI and waits for the server to answer.
func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetConnectTimeout(conf.Database.ConnectTimeout).
		SetAppName(conf.AppName)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	if err := ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &DB{
		client:       client,
		db:           client.Database(conf.Database.Name),
		transactions: conf.Database.Transactions,
	}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = client.Ping(ctx, readpref.Primary()); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) coll(name string) *mongo.Collection {
	return db.db.Collection(name)
}

// NewStore returns the Store backed by db.
func NewStore(db *DB) *store.Store {
	var tx core.Transactor = db
	if !db.transactions {
		tx = core.NoTransaction
	}
	return &store.Store{
		Tx:       tx,
		Users:    &userRepository{coll: db.coll(usersColl)},
		Messages: &messageRepository{messages: db.coll(messagesColl), conversations: db.coll(conversationsColl)},
		Repositories: school.Repositories{
			Teachers:        &teacherRepository{coll: db.coll(teachersColl)},
			Students:        &studentRepository{coll: db.coll(studentsColl)},
			Areas:           &areaRepository{coll: db.coll(areasColl)},
			Classrooms:      &classroomRepository{coll: db.coll(classroomsColl)},
			ActivityLogs:    &activityLogRepository{coll: db.coll(activityLogsColl)},
			ProgressReports: &progressReportRepository{coll: db.coll(progressReportsColl)},
			Events:          &eventRepository{coll: db.coll(eventsColl)},
		},
	}
}

// WithinTransaction runs fn in a multi-document transaction.
// Repositories join it through the session carried by the ctx handed to fn.
func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil { // nested: join the running transaction
		return fn(ctx)
	}

	sess, err := db.client.StartSession()
	if err != nil {
		return core.NewPersistenceError("StartSession", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

var indexes = map[string][]mongo.IndexModel{
	usersColl: {
		uniqueIndex("id"),
		uniqueIndex("email"),
		index("role"),
	},
	teachersColl: {
		uniqueIndex("id"),
		index("email"),
	},
	studentsColl: {
		uniqueIndex("id"),
		index("representative.email"),
		index("representativeUserId"),
	},
	areasColl: {
		uniqueIndex("id"),
		index("teacherIds"),
		index("studentIds"),
	},
	classroomsColl: {
		uniqueIndex("id"),
		index("schedule.areaId"),
	},
	activityLogsColl: {
		uniqueIndex("id"),
		index("studentId"),
		{Keys: bson.D{{Key: "date", Value: -1}}},
	},
	progressReportsColl: {
		uniqueIndex("id"),
		index("studentId"),
		{Keys: bson.D{{Key: "date", Value: -1}}},
	},
	eventsColl: {
		uniqueIndex("id"),
		index("date"),
	},
	messagesColl: {
		uniqueIndex("id"),
		{Keys: bson.D{{Key: "recipient.type", Value: 1}, {Key: "recipient.id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	},
	conversationsColl: {
		uniqueIndex("id"),
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	},
}

func index(field string) mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}}
}

func uniqueIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}, Options: options.Index().SetUnique(true)}
}

// EnsureIndexes creates the indexes every collection needs. Existing indexes are kept.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	for name, models := range indexes {
		if _, err := db.coll(name).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "creating %s indexes", name)
		}
	}
	return nil
}

// Query helpers

var nameCollation = &options.Collation{Locale: "es", Strength: 2}

func byName(field string) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: field, Value: 1}}).SetCollation(nameCollation)
}

func newestFirst(field string, limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: field, Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// persistenceError converts err: a missing document becomes notFound, anything else a *core.PersistenceError.
func persistenceError(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound
	default:
		return core.NewPersistenceError(op, err)
	}
}

func findAll[T any](ctx context.Context, op string, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, core.NewPersistenceError(op, err)
	}
	list := make([]T, 0)
	if err := cur.All(ctx, &list); err != nil {
		return nil, core.NewPersistenceError(op, err)
	}
	return list, nil
}

func findOne[T any](ctx context.Context, op string, coll *mongo.Collection, filter interface{}, notFound error) (T, error) {
	var v T
	err := coll.FindOne(ctx, filter).Decode(&v)
	if err != nil {
		var zero T
		return zero, persistenceError(op, err, notFound)
	}
	return v, nil
}

func insert(ctx context.Context, op string, coll *mongo.Collection, doc interface{}) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return core.NewPersistenceError(op, err)
	}
	return nil
}

// replace overwrites the document holding id.
func replace(ctx context.Context, op string, coll *mongo.Collection, id string, doc interface{}, notFound error) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"id": id}, doc)
	if err != nil {
		return core.NewPersistenceError(op, err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func deleteByID(ctx context.Context, op string, coll *mongo.Collection, id string, notFound error) error {
	res, err := coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return core.NewPersistenceError(op, err)
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}

func count(ctx context.Context, op string, coll *mongo.Collection, filter interface{}) (int, error) {
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, core.NewPersistenceError(op, err)
	}
	return int(n), nil
}

// idsFilter adds an $in clause on field when ids is not nil.
func idsFilter(filter bson.M, field string, ids []string) {
	if ids != nil {
		filter[field] = bson.M{"$in": nonNil(ids)}
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
