// Package inmemdb keeps every collection in memory. It backs the tests and the "memory" engine.
package inmemdb

import (
	"context"
	"sync"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

type (
	// DB holds the tables behind one RWMutex.
	// Transactions are serialised by txMu and roll back by restoring a snapshot of the tables.
	// Writes issued outside a transaction wait for the running one to finish;
	// reads do not, and may observe uncommitted writes.
	DB struct {
		mu     sync.RWMutex
		txMu   sync.Mutex
		tables tables

		failMu   sync.Mutex
		failures map[string]error
	}

	tables struct {
		users           map[string]user.User
		teachers        map[string]school.Teacher
		students        map[string]school.Student
		areas           map[string]school.Area
		classrooms      map[string]school.Classroom
		activityLogs    map[string]school.ActivityLog
		progressReports map[string]school.ProgressReport
		events          map[string]school.Event
		messages        map[string]message.Message
		conversations   map[string]message.Conversation
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{
		tables:   newTables(),
		failures: make(map[string]error),
	}
}

func newTables() tables {
	return tables{
		users:           make(map[string]user.User),
		teachers:        make(map[string]school.Teacher),
		students:        make(map[string]school.Student),
		areas:           make(map[string]school.Area),
		classrooms:      make(map[string]school.Classroom),
		activityLogs:    make(map[string]school.ActivityLog),
		progressReports: make(map[string]school.ProgressReport),
		events:          make(map[string]school.Event),
		messages:        make(map[string]message.Message),
		conversations:   make(map[string]message.Conversation),
	}
}

// clone copies the maps. Stored values are never mutated in place, so values are shared.
func (t tables) clone() tables {
	return tables{
		users:           cloneMap(t.users),
		teachers:        cloneMap(t.teachers),
		students:        cloneMap(t.students),
		areas:           cloneMap(t.areas),
		classrooms:      cloneMap(t.classrooms),
		activityLogs:    cloneMap(t.activityLogs),
		progressReports: cloneMap(t.progressReports),
		events:          cloneMap(t.events),
		messages:        cloneMap(t.messages),
		conversations:   cloneMap(t.conversations),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	c := make(map[string]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// NewStore returns the Store backed by db.
func NewStore(db *DB) *store.Store {
	return &store.Store{
		Tx:       db,
		Users:    &userRepository{db: db},
		Messages: &messageRepository{db: db},
		Repositories: school.Repositories{
			Teachers:        &teacherRepository{db: db},
			Students:        &studentRepository{db: db},
			Areas:           &areaRepository{db: db},
			Classrooms:      &classroomRepository{db: db},
			ActivityLogs:    &activityLogRepository{db: db},
			ProgressReports: &progressReportRepository{db: db},
			Events:          &eventRepository{db: db},
		},
	}
}

// WithinTransaction runs fn; when it returns an error every write it issued is undone.
func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) { // nested: join the running transaction
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *DB) inTx(ctx context.Context) bool {
	txDB, ok := ctx.Value(txKey{}).(*DB)
	return ok && txDB == db
}

// FailOn makes the next write named op (e.g. "CreateTeacher") return err.
func (db *DB) FailOn(op string, err error) {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	db.failures[op] = err
}

func (db *DB) failure(op string) error {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	err, ok := db.failures[op]
	if !ok {
		return nil
	}
	delete(db.failures, op)
	return core.NewPersistenceError(op, err)
}

// write runs fn under the write lock, after any running transaction the caller is not part of.
func (db *DB) write(ctx context.Context, op string, fn func(t *tables) error) error {
	if err := db.failure(op); err != nil {
		return err
	}
	if !db.inTx(ctx) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(&db.tables)
}

func (db *DB) read(fn func(t *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(&db.tables)
}
