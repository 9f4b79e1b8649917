package school

import (
	"context"
	"time"
)

type (
	// TeacherFilter selects teachers. A nil IDs does not restrict the result.
	TeacherFilter struct {
		IDs []string
	}

	// StudentFilter selects students; set fields are ANDed.
	// A nil IDs does not restrict the result. When both representative fields are set,
	// a student matches either of them.
	StudentFilter struct {
		IDs                  []string
		RepresentativeUserID string
		RepresentativeEmail  string
		Search               string // case-insensitive match on the student or representative name
	}

	// AreaFilter selects areas; set fields are ANDed. A nil IDs does not restrict the result.
	AreaFilter struct {
		IDs       []string
		TeacherID string
		StudentID string
	}

	// ClassroomFilter selects classrooms. A nil AreaIDs does not restrict the result,
	// otherwise classrooms with a schedule entry in one of AreaIDs are returned.
	ClassroomFilter struct {
		AreaIDs []string
	}

	// RecordFilter selects activity logs or progress reports; set fields are ANDed.
	// Since is inclusive, Until exclusive.
	RecordFilter struct {
		StudentIDs []string
		Since      time.Time
		Until      time.Time
		Limit      int
	}

	// EventFilter selects events dated from From on, soonest first.
	EventFilter struct {
		From  time.Time
		Limit int
	}
)

// Every repository returns a *core.NotFoundError for lookups, updates and deletes of absent records.
type (
	TeacherRepository interface {
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacherByID(ctx context.Context, id string) (Teacher, error)
		GetTeacherByEmail(ctx context.Context, email string) (Teacher, error)
		QueryTeachers(ctx context.Context, filter TeacherFilter) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeacher(ctx context.Context, id string) error
		CountTeachers(ctx context.Context) (int, error)
	}

	StudentRepository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		// RenameRepresentative sets representative.name on every student whose
		// representative.email is email, and returns how many were changed.
		RenameRepresentative(ctx context.Context, email, name string) (int, error)
		// ReassignRepresentativeEmail replaces representative.email oldEmail by newEmail.
		ReassignRepresentativeEmail(ctx context.Context, oldEmail, newEmail string) (int, error)
		CountStudents(ctx context.Context) (int, error)
	}

	AreaRepository interface {
		CreateArea(ctx context.Context, a Area) (Area, error)
		GetAreaByID(ctx context.Context, id string) (Area, error)
		QueryAreas(ctx context.Context, filter AreaFilter) ([]Area, error)
		UpdateArea(ctx context.Context, a Area) (Area, error)
		DeleteArea(ctx context.Context, id string) error
		RemoveTeacherFromAreas(ctx context.Context, teacherID string) error
		RemoveStudentsFromAreas(ctx context.Context, studentIDs ...string) error
	}

	ClassroomRepository interface {
		CreateClassroom(ctx context.Context, c Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, c Classroom) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string) error
		// RemoveAreaFromSchedules drops every schedule entry of areaID.
		RemoveAreaFromSchedules(ctx context.Context, areaID string) error
	}

	// ActivityLogRepository lists logs newest first.
	ActivityLogRepository interface {
		CreateActivityLog(ctx context.Context, l ActivityLog) (ActivityLog, error)
		GetActivityLogByID(ctx context.Context, id string) (ActivityLog, error)
		QueryActivityLogs(ctx context.Context, filter RecordFilter) ([]ActivityLog, error)
		CountActivityLogs(ctx context.Context, filter RecordFilter) (int, error)
		// CountActivityLogsPerDay groups logs dated from since on by calendar day in loc, oldest first.
		CountActivityLogsPerDay(ctx context.Context, since time.Time, loc *time.Location) ([]DayCount, error)
		DeleteActivityLog(ctx context.Context, id string) error
		DeleteActivityLogsByStudent(ctx context.Context, studentIDs ...string) error
	}

	// ProgressReportRepository lists reports newest first.
	ProgressReportRepository interface {
		CreateProgressReport(ctx context.Context, r ProgressReport) (ProgressReport, error)
		GetProgressReportByID(ctx context.Context, id string) (ProgressReport, error)
		QueryProgressReports(ctx context.Context, filter RecordFilter) ([]ProgressReport, error)
		CountProgressReports(ctx context.Context, filter RecordFilter) (int, error)
		DeleteProgressReport(ctx context.Context, id string) error
		DeleteProgressReportsByStudent(ctx context.Context, studentIDs ...string) error
	}

	EventRepository interface {
		CreateEvent(ctx context.Context, e Event) (Event, error)
		QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
		DeleteEvent(ctx context.Context, id string) error
	}

	// Repositories groups the school collections.
	Repositories struct {
		Teachers        TeacherRepository
		Students        StudentRepository
		Areas           AreaRepository
		Classrooms      ClassroomRepository
		ActivityLogs    ActivityLogRepository
		ProgressReports ProgressReportRepository
		Events          EventRepository
	}
)
