// Package access computes what a session may read.
//
// Admins read everything. Teachers read the areas listing them and what hangs off
// those areas: their students, the classrooms scheduling them, and the messages
// addressed to all teachers or to them. Representatives read their own students,
// what hangs off the areas of those students, and the messages addressed to all
// representatives or to their email.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/session"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var (
	errStudentNotFound        = core.NewNotFoundError("student")
	errActivityLogNotFound    = core.NewNotFoundError("activity log")
	errProgressReportNotFound = core.NewNotFoundError("progress report")
)

type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Messages lists the messages addressed to id, newest first.
// For a representative, every listed message is marked read by their email.
func (svc *Service) Messages(ctx context.Context, id session.Identity) ([]message.Message, error) {
	var filter message.Filter
	switch id.Role {
	case user.RoleAdmin:
	case user.RoleTeacher:
		filter.Recipients = []message.Recipient{{Kind: message.AllTeachers}}
		if id.TeacherID != "" {
			filter.Recipients = append(filter.Recipients, message.Recipient{Kind: message.ToTeacher, ID: id.TeacherID})
		}
	case user.RoleRepresentative:
		filter.Recipients = []message.Recipient{
			{Kind: message.AllReps},
			{Kind: message.ToRep, ID: id.Email},
		}
	default:
		return nil, core.ErrForbidden
	}

	msgs, err := svc.store.Messages.QueryMessages(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	if id.IsRepresentative() {
		if err := svc.markRead(ctx, id.Email, msgs); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (svc *Service) markRead(ctx context.Context, email string, msgs []message.Message) error {
	var unread []string
	for i := range msgs {
		if !msgs[i].IsReadBy(email) {
			unread = append(unread, msgs[i].ID)
		}
	}
	if len(unread) == 0 {
		return nil
	}
	if err := svc.store.Messages.MarkRead(ctx, email, unread...); err != nil {
		return errors.Wrap(err, "marking messages read")
	}
	for i := range msgs {
		if !msgs[i].IsReadBy(email) {
			msgs[i].ReadBy = append(msgs[i].ReadBy, email)
		}
	}
	return nil
}

// Students lists the students id may read, by name.
func (svc *Service) Students(ctx context.Context, id session.Identity, search string) ([]school.Student, error) {
	switch id.Role {
	case user.RoleAdmin:
		students, err := svc.store.Students.QueryStudents(ctx, school.StudentFilter{Search: search})
		return students, errors.Wrap(err, "querying students")
	case user.RoleTeacher:
		areas, err := svc.teacherAreas(ctx, id)
		if err != nil {
			return nil, err
		}
		students, err := svc.store.Students.QueryStudents(ctx, school.StudentFilter{
			IDs:    studentIDsOf(areas),
			Search: search,
		})
		return students, errors.Wrap(err, "querying students")
	case user.RoleRepresentative:
		return svc.representedStudents(ctx, id, search)
	default:
		return nil, core.ErrForbidden
	}
}

// RepresentativeStudent returns the student represented by id.
// When several are, the first by name is returned.
func (svc *Service) RepresentativeStudent(ctx context.Context, id session.Identity) (school.Student, error) {
	if !id.IsRepresentative() {
		return school.Student{}, core.ErrForbidden
	}
	students, err := svc.representedStudents(ctx, id, "")
	if err != nil {
		return school.Student{}, err
	}
	if len(students) == 0 {
		return school.Student{}, errStudentNotFound
	}
	return students[0], nil
}

func (svc *Service) representedStudents(ctx context.Context, id session.Identity, search string) ([]school.Student, error) {
	candidates, err := svc.store.Students.QueryStudents(ctx, school.StudentFilter{
		RepresentativeUserID: id.UserID,
		RepresentativeEmail:  id.Email,
		Search:               search,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := candidates[:0]
	for _, s := range candidates {
		if s.RepresentedBy(id.UserID, id.Email) {
			students = append(students, s)
		}
	}
	return students, nil
}

// Student returns studentID if id may read it. Students out of reach are not found.
func (svc *Service) Student(ctx context.Context, id session.Identity, studentID string) (school.Student, error) {
	s, err := svc.store.Students.GetStudentByID(ctx, studentID)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "getting student")
	}
	ok, err := svc.CanReachStudent(ctx, id, s)
	if err != nil {
		return school.Student{}, err
	}
	if !ok {
		return school.Student{}, errStudentNotFound
	}
	return s, nil
}

// CanReachStudent reports whether id may read s and its records.
func (svc *Service) CanReachStudent(ctx context.Context, id session.Identity, s school.Student) (bool, error) {
	switch id.Role {
	case user.RoleAdmin:
		return true, nil
	case user.RoleTeacher:
		if id.TeacherID == "" {
			return false, nil
		}
		areas, err := svc.store.Areas.QueryAreas(ctx, school.AreaFilter{TeacherID: id.TeacherID, StudentID: s.ID})
		if err != nil {
			return false, errors.Wrap(err, "querying areas")
		}
		return len(areas) > 0, nil
	case user.RoleRepresentative:
		return s.RepresentedBy(id.UserID, id.Email), nil
	default:
		return false, nil
	}
}

// Areas lists the areas id may read, by name.
func (svc *Service) Areas(ctx context.Context, id session.Identity) ([]school.Area, error) {
	switch id.Role {
	case user.RoleAdmin:
		areas, err := svc.store.Areas.QueryAreas(ctx, school.AreaFilter{})
		return areas, errors.Wrap(err, "querying areas")
	case user.RoleTeacher:
		return svc.teacherAreas(ctx, id)
	case user.RoleRepresentative:
		return svc.representativeAreas(ctx, id)
	default:
		return nil, core.ErrForbidden
	}
}

func (svc *Service) teacherAreas(ctx context.Context, id session.Identity) ([]school.Area, error) {
	if id.TeacherID == "" {
		return []school.Area{}, nil
	}
	areas, err := svc.store.Areas.QueryAreas(ctx, school.AreaFilter{TeacherID: id.TeacherID})
	return areas, errors.Wrap(err, "querying areas")
}

func (svc *Service) representativeAreas(ctx context.Context, id session.Identity) ([]school.Area, error) {
	students, err := svc.representedStudents(ctx, id, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	areas := make([]school.Area, 0)
	for _, s := range students {
		found, err := svc.store.Areas.QueryAreas(ctx, school.AreaFilter{StudentID: s.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying areas")
		}
		for _, a := range found {
			if !seen[a.ID] {
				seen[a.ID] = true
				areas = append(areas, a)
			}
		}
	}
	return areas, nil
}

// Teachers lists the teachers id may read, by name: a teacher reads their own profile.
func (svc *Service) Teachers(ctx context.Context, id session.Identity) ([]school.Teacher, error) {
	switch id.Role {
	case user.RoleAdmin:
		teachers, err := svc.store.Teachers.QueryTeachers(ctx, school.TeacherFilter{})
		return teachers, errors.Wrap(err, "querying teachers")
	case user.RoleTeacher:
		ids := []string{}
		if id.TeacherID != "" {
			ids = append(ids, id.TeacherID)
		}
		teachers, err := svc.store.Teachers.QueryTeachers(ctx, school.TeacherFilter{IDs: ids})
		return teachers, errors.Wrap(err, "querying teachers")
	case user.RoleRepresentative:
		areas, err := svc.representativeAreas(ctx, id)
		if err != nil {
			return nil, err
		}
		ids := []string{}
		for _, a := range areas {
			ids = append(ids, a.TeacherIDs...)
		}
		teachers, err := svc.store.Teachers.QueryTeachers(ctx, school.TeacherFilter{IDs: core.UniqueStrings(ids)})
		return teachers, errors.Wrap(err, "querying teachers")
	default:
		return nil, core.ErrForbidden
	}
}

// Classrooms lists the classrooms id may read, by name: those scheduling one of their areas.
func (svc *Service) Classrooms(ctx context.Context, id session.Identity) ([]school.Classroom, error) {
	var filter school.ClassroomFilter
	if !id.IsAdmin() {
		areas, err := svc.Areas(ctx, id)
		if err != nil {
			return nil, err
		}
		filter.AreaIDs = make([]string, 0, len(areas))
		for _, a := range areas {
			filter.AreaIDs = append(filter.AreaIDs, a.ID)
		}
	}
	rooms, err := svc.store.Classrooms.QueryClassrooms(ctx, filter)
	return rooms, errors.Wrap(err, "querying classrooms")
}

// ActivityLogs lists the logs of studentID, newest first.
func (svc *Service) ActivityLogs(ctx context.Context, id session.Identity, studentID string) ([]school.ActivityLog, error) {
	if _, err := svc.Student(ctx, id, studentID); err != nil {
		return nil, err
	}
	logs, err := svc.store.ActivityLogs.QueryActivityLogs(ctx, school.RecordFilter{StudentIDs: []string{studentID}})
	return logs, errors.Wrap(err, "querying activity logs")
}

// ActivityLog returns logID if id may read its student.
func (svc *Service) ActivityLog(ctx context.Context, id session.Identity, logID string) (school.ActivityLog, error) {
	l, err := svc.store.ActivityLogs.GetActivityLogByID(ctx, logID)
	if err != nil {
		return school.ActivityLog{}, errors.Wrap(err, "getting activity log")
	}
	if _, err := svc.Student(ctx, id, l.StudentID); err != nil {
		if core.IsNotFound(err) {
			return school.ActivityLog{}, errActivityLogNotFound
		}
		return school.ActivityLog{}, err
	}
	return l, nil
}

// ProgressReports lists the reports of studentID, newest first.
func (svc *Service) ProgressReports(ctx context.Context, id session.Identity, studentID string) ([]school.ProgressReport, error) {
	if _, err := svc.Student(ctx, id, studentID); err != nil {
		return nil, err
	}
	reports, err := svc.store.ProgressReports.QueryProgressReports(ctx, school.RecordFilter{StudentIDs: []string{studentID}})
	return reports, errors.Wrap(err, "querying progress reports")
}

// ProgressReport returns reportID if id may read its student.
func (svc *Service) ProgressReport(ctx context.Context, id session.Identity, reportID string) (school.ProgressReport, error) {
	r, err := svc.store.ProgressReports.GetProgressReportByID(ctx, reportID)
	if err != nil {
		return school.ProgressReport{}, errors.Wrap(err, "getting progress report")
	}
	if _, err := svc.Student(ctx, id, r.StudentID); err != nil {
		if core.IsNotFound(err) {
			return school.ProgressReport{}, errProgressReportNotFound
		}
		return school.ProgressReport{}, err
	}
	return r, nil
}

func studentIDsOf(areas []school.Area) []string {
	ids := []string{}
	for _, a := range areas {
		ids = append(ids, a.StudentIDs...)
	}
	return core.UniqueStrings(ids)
}
