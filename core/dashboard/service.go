// Package dashboard computes the figures shown on the admin dashboard.
// Every figure is an independent read; they are not taken from one snapshot.
package dashboard

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
)

const defaultRecentLimit = 5

type (
	Summary struct {
		Students                int                    `json:"students"`
		Teachers                int                    `json:"teachers"`
		ActivityLogsLast24h     int                    `json:"activityLogsLast24h"`
		ProgressReportsThisWeek int                    `json:"progressReportsThisWeek"`
		RecentConversations     []message.Conversation `json:"recentConversations"`
		UpcomingEvents          []school.Event         `json:"upcomingEvents"`
	}

	Options struct {
		Store       *store.Store
		RecentLimit int
		Location    *time.Location // calendar of weeks and days; time.Local when nil
	}

	Service struct {
		opts Options
		now  func() time.Time
	}
)

func NewService(opts Options) *Service {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = defaultRecentLimit
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{opts: opts, now: time.Now}
}

// StartOfWeek returns Sunday 00:00 of the week holding t, in t's location.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfDay returns 00:00 of the day holding t, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (svc *Service) Summary(ctx context.Context) (Summary, error) {
	st := svc.opts.Store
	now := svc.now().In(svc.opts.Location)

	var (
		sum Summary
		err error
	)
	if sum.Students, err = st.Students.CountStudents(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting students")
	}
	if sum.Teachers, err = st.Teachers.CountTeachers(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting teachers")
	}
	sum.ActivityLogsLast24h, err = st.ActivityLogs.CountActivityLogs(ctx, school.RecordFilter{
		Since: now.Add(-24 * time.Hour),
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting activity logs")
	}
	sum.ProgressReportsThisWeek, err = st.ProgressReports.CountProgressReports(ctx, school.RecordFilter{
		Since: StartOfWeek(now),
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting progress reports")
	}
	if sum.RecentConversations, err = st.Messages.RecentConversations(ctx, svc.opts.RecentLimit); err != nil {
		return Summary{}, errors.Wrap(err, "querying conversations")
	}
	sum.UpcomingEvents, err = st.Events.QueryEvents(ctx, school.EventFilter{
		From:  StartOfDay(now),
		Limit: svc.opts.RecentLimit,
	})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying events")
	}
	return sum, nil
}

// ActivityPerDay counts the activity logs of each of the last days calendar days,
// today included, oldest first. Days without logs count zero.
func (svc *Service) ActivityPerDay(ctx context.Context, days int) ([]school.DayCount, error) {
	switch {
	case days <= 0:
		days = 7
	case days > 366:
		days = 366
	}
	loc := svc.opts.Location
	first := StartOfDay(svc.now().In(loc)).AddDate(0, 0, -(days - 1))

	found, err := svc.opts.Store.ActivityLogs.CountActivityLogsPerDay(ctx, first, loc)
	if err != nil {
		return nil, errors.Wrap(err, "counting activity logs per day")
	}
	counts := make(map[string]int, len(found))
	for _, dc := range found {
		counts[dc.Day] = dc.Count
	}

	out := make([]school.DayCount, 0, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, school.DayCount{Day: day, Count: counts[day]})
	}
	return out, nil
}
