package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
)

var (
	errActivityLogNotFound    = core.NewNotFoundError("activity log")
	errProgressReportNotFound = core.NewNotFoundError("progress report")
	errEventNotFound          = core.NewNotFoundError("event")
)

type (
	activityLogRepository struct {
		coll *mongo.Collection
	}

	progressReportRepository struct {
		coll *mongo.Collection
	}

	eventRepository struct {
		coll *mongo.Collection
	}
)

var (
	_ school.ActivityLogRepository    = (*activityLogRepository)(nil)
	_ school.ProgressReportRepository = (*progressReportRepository)(nil)
	_ school.EventRepository          = (*eventRepository)(nil)
)

func recordQuery(filter school.RecordFilter) bson.M {
	q := bson.M{}
	idsFilter(q, "studentId", filter.StudentIDs)
	date := bson.M{}
	if !filter.Since.IsZero() {
		date["$gte"] = filter.Since
	}
	if !filter.Until.IsZero() {
		date["$lt"] = filter.Until
	}
	if len(date) > 0 {
		q["date"] = date
	}
	return q
}

// timezone names loc the way $dateToString expects it.
// time.Local has no IANA name, so its current UTC offset is used instead.
func timezone(loc *time.Location) string {
	if loc == nil {
		return "UTC"
	}
	if name := loc.String(); name != "Local" && name != "" {
		return name
	}
	_, offset := time.Now().In(loc).Zone()
	sign := '+'
	if offset < 0 {
		sign, offset = '-', -offset
	}
	return fmt.Sprintf("%c%02d:%02d", sign, offset/3600, offset%3600/60)
}

// Activity logs

func (repo *activityLogRepository) CreateActivityLog(ctx context.Context, l school.ActivityLog) (school.ActivityLog, error) {
	if err := insert(ctx, "CreateActivityLog", repo.coll, l); err != nil {
		return school.ActivityLog{}, err
	}
	return l, nil
}

func (repo *activityLogRepository) GetActivityLogByID(ctx context.Context, id string) (school.ActivityLog, error) {
	return findOne[school.ActivityLog](ctx, "GetActivityLogByID", repo.coll, bson.M{"id": id}, errActivityLogNotFound)
}

func (repo *activityLogRepository) QueryActivityLogs(ctx context.Context, filter school.RecordFilter) ([]school.ActivityLog, error) {
	return findAll[school.ActivityLog](ctx, "QueryActivityLogs", repo.coll, recordQuery(filter), newestFirst("date", filter.Limit))
}

func (repo *activityLogRepository) CountActivityLogs(ctx context.Context, filter school.RecordFilter) (int, error) {
	return count(ctx, "CountActivityLogs", repo.coll, recordQuery(filter))
}

func (repo *activityLogRepository) CountActivityLogsPerDay(ctx context.Context, since time.Time, loc *time.Location) ([]school.DayCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"date": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     "$date",
				"timezone": timezone(loc),
			}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, core.NewPersistenceError("CountActivityLogsPerDay", err)
	}
	days := make([]school.DayCount, 0)
	if err := cur.All(ctx, &days); err != nil {
		return nil, core.NewPersistenceError("CountActivityLogsPerDay", err)
	}
	return days, nil
}

func (repo *activityLogRepository) DeleteActivityLog(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteActivityLog", repo.coll, id, errActivityLogNotFound)
}

func (repo *activityLogRepository) DeleteActivityLogsByStudent(ctx context.Context, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	_, err := repo.coll.DeleteMany(ctx, bson.M{"studentId": bson.M{"$in": studentIDs}})
	return persistenceError("DeleteActivityLogsByStudent", err, nil)
}

// Progress reports

func (repo *progressReportRepository) CreateProgressReport(ctx context.Context, r school.ProgressReport) (school.ProgressReport, error) {
	if err := insert(ctx, "CreateProgressReport", repo.coll, r); err != nil {
		return school.ProgressReport{}, err
	}
	return r, nil
}

func (repo *progressReportRepository) GetProgressReportByID(ctx context.Context, id string) (school.ProgressReport, error) {
	return findOne[school.ProgressReport](ctx, "GetProgressReportByID", repo.coll, bson.M{"id": id}, errProgressReportNotFound)
}

func (repo *progressReportRepository) QueryProgressReports(ctx context.Context, filter school.RecordFilter) ([]school.ProgressReport, error) {
	return findAll[school.ProgressReport](ctx, "QueryProgressReports", repo.coll, recordQuery(filter), newestFirst("date", filter.Limit))
}

func (repo *progressReportRepository) CountProgressReports(ctx context.Context, filter school.RecordFilter) (int, error) {
	return count(ctx, "CountProgressReports", repo.coll, recordQuery(filter))
}

func (repo *progressReportRepository) DeleteProgressReport(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteProgressReport", repo.coll, id, errProgressReportNotFound)
}

func (repo *progressReportRepository) DeleteProgressReportsByStudent(ctx context.Context, studentIDs ...string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	_, err := repo.coll.DeleteMany(ctx, bson.M{"studentId": bson.M{"$in": studentIDs}})
	return persistenceError("DeleteProgressReportsByStudent", err, nil)
}

// Events

func (repo *eventRepository) CreateEvent(ctx context.Context, e school.Event) (school.Event, error) {
	if err := insert(ctx, "CreateEvent", repo.coll, e); err != nil {
		return school.Event{}, err
	}
	return e, nil
}

func (repo *eventRepository) QueryEvents(ctx context.Context, filter school.EventFilter) ([]school.Event, error) {
	q := bson.M{}
	if !filter.From.IsZero() {
		q["date"] = bson.M{"$gte": filter.From}
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return findAll[school.Event](ctx, "QueryEvents", repo.coll, q, opts)
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id string) error {
	return deleteByID(ctx, "DeleteEvent", repo.coll, id, errEventNotFound)
}
