package inmemdb

import (
	"context"
	"sort"
	"time"

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
		db *DB
	}

	progressReportRepository struct {
		db *DB
	}

	eventRepository struct {
		db *DB
	}
)

var (
	_ school.ActivityLogRepository    = (*activityLogRepository)(nil)
	_ school.ProgressReportRepository = (*progressReportRepository)(nil)
	_ school.EventRepository          = (*eventRepository)(nil)
)

func matchRecord(studentID string, date time.Time, filter school.RecordFilter) bool {
	if filter.StudentIDs != nil && !core.ContainsString(filter.StudentIDs, studentID) {
		return false
	}
	if !filter.Since.IsZero() && date.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && !date.Before(filter.Until) {
		return false
	}
	return true
}

func limit[T any](list []T, n int) []T {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}

// Activity logs

func (repo *activityLogRepository) CreateActivityLog(ctx context.Context, l school.ActivityLog) (school.ActivityLog, error) {
	err := repo.db.write(ctx, "CreateActivityLog", func(t *tables) error {
		t.activityLogs[l.ID] = l
		return nil
	})
	if err != nil {
		return school.ActivityLog{}, err
	}
	return l, nil
}

func (repo *activityLogRepository) GetActivityLogByID(_ context.Context, id string) (school.ActivityLog, error) {
	var (
		l  school.ActivityLog
		ok bool
	)
	repo.db.read(func(t *tables) { l, ok = t.activityLogs[id] })
	if !ok {
		return school.ActivityLog{}, errActivityLogNotFound
	}
	return l, nil
}

func (repo *activityLogRepository) query(filter school.RecordFilter) []school.ActivityLog {
	logs := make([]school.ActivityLog, 0)
	repo.db.read(func(t *tables) {
		for _, l := range t.activityLogs {
			if matchRecord(l.StudentID, l.Date, filter) {
				logs = append(logs, l)
			}
		}
	})
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date.After(logs[j].Date) })
	return logs
}

func (repo *activityLogRepository) QueryActivityLogs(_ context.Context, filter school.RecordFilter) ([]school.ActivityLog, error) {
	return limit(repo.query(filter), filter.Limit), nil
}

func (repo *activityLogRepository) CountActivityLogs(_ context.Context, filter school.RecordFilter) (int, error) {
	return len(repo.query(filter)), nil
}

func (repo *activityLogRepository) CountActivityLogsPerDay(_ context.Context, since time.Time, loc *time.Location) ([]school.DayCount, error) {
	counts := make(map[string]int)
	for _, l := range repo.query(school.RecordFilter{Since: since}) {
		counts[l.Date.In(loc).Format("2006-01-02")]++
	}
	days := make([]school.DayCount, 0, len(counts))
	for day, n := range counts {
		days = append(days, school.DayCount{Day: day, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

func (repo *activityLogRepository) DeleteActivityLog(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteActivityLog", func(t *tables) error {
		if _, ok := t.activityLogs[id]; !ok {
			return errActivityLogNotFound
		}
		delete(t.activityLogs, id)
		return nil
	})
}

func (repo *activityLogRepository) DeleteActivityLogsByStudent(ctx context.Context, studentIDs ...string) error {
	return repo.db.write(ctx, "DeleteActivityLogsByStudent", func(t *tables) error {
		for id, l := range t.activityLogs {
			if core.ContainsString(studentIDs, l.StudentID) {
				delete(t.activityLogs, id)
			}
		}
		return nil
	})
}

// Progress reports

func (repo *progressReportRepository) CreateProgressReport(ctx context.Context, r school.ProgressReport) (school.ProgressReport, error) {
	err := repo.db.write(ctx, "CreateProgressReport", func(t *tables) error {
		t.progressReports[r.ID] = r
		return nil
	})
	if err != nil {
		return school.ProgressReport{}, err
	}
	return r, nil
}

func (repo *progressReportRepository) GetProgressReportByID(_ context.Context, id string) (school.ProgressReport, error) {
	var (
		r  school.ProgressReport
		ok bool
	)
	repo.db.read(func(t *tables) { r, ok = t.progressReports[id] })
	if !ok {
		return school.ProgressReport{}, errProgressReportNotFound
	}
	return r, nil
}

func (repo *progressReportRepository) query(filter school.RecordFilter) []school.ProgressReport {
	reports := make([]school.ProgressReport, 0)
	repo.db.read(func(t *tables) {
		for _, r := range t.progressReports {
			if matchRecord(r.StudentID, r.Date, filter) {
				reports = append(reports, r)
			}
		}
	})
	sort.Slice(reports, func(i, j int) bool { return reports[i].Date.After(reports[j].Date) })
	return reports
}

func (repo *progressReportRepository) QueryProgressReports(_ context.Context, filter school.RecordFilter) ([]school.ProgressReport, error) {
	return limit(repo.query(filter), filter.Limit), nil
}

func (repo *progressReportRepository) CountProgressReports(_ context.Context, filter school.RecordFilter) (int, error) {
	return len(repo.query(filter)), nil
}

func (repo *progressReportRepository) DeleteProgressReport(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteProgressReport", func(t *tables) error {
		if _, ok := t.progressReports[id]; !ok {
			return errProgressReportNotFound
		}
		delete(t.progressReports, id)
		return nil
	})
}

func (repo *progressReportRepository) DeleteProgressReportsByStudent(ctx context.Context, studentIDs ...string) error {
	return repo.db.write(ctx, "DeleteProgressReportsByStudent", func(t *tables) error {
		for id, r := range t.progressReports {
			if core.ContainsString(studentIDs, r.StudentID) {
				delete(t.progressReports, id)
			}
		}
		return nil
	})
}

// Events

func (repo *eventRepository) CreateEvent(ctx context.Context, e school.Event) (school.Event, error) {
	err := repo.db.write(ctx, "CreateEvent", func(t *tables) error {
		t.events[e.ID] = e
		return nil
	})
	if err != nil {
		return school.Event{}, err
	}
	return e, nil
}

func (repo *eventRepository) QueryEvents(_ context.Context, filter school.EventFilter) ([]school.Event, error) {
	events := make([]school.Event, 0)
	repo.db.read(func(t *tables) {
		for _, e := range t.events {
			if filter.From.IsZero() || !e.Date.Before(filter.From) {
				events = append(events, e)
			}
		}
	})
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return limit(events, filter.Limit), nil
}

func (repo *eventRepository) DeleteEvent(ctx context.Context, id string) error {
	return repo.db.write(ctx, "DeleteEvent", func(t *tables) error {
		if _, ok := t.events[id]; !ok {
			return errEventNotFound
		}
		delete(t.events, id)
		return nil
	})
}
