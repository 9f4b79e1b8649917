package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

// Service handles the writes that touch a single collection.
// Cross-collection operations live in the registry package.
type Service struct {
	validate *validator.Validate
	repos    Repositories
	now      func() time.Time
}

func NewService(validate *validator.Validate, repos Repositories) *Service {
	return &Service{
		validate: validate,
		repos:    repos,
		now:      time.Now,
	}
}

// Areas

func (svc *Service) CreateArea(ctx context.Context, in AreaInput) (Area, error) {
	if err := in.Validate(svc.validate); err != nil {
		return Area{}, err
	}
	if err := svc.checkMembers(ctx, in); err != nil {
		return Area{}, err
	}

	now := svc.now().UTC()
	area, err := svc.repos.Areas.CreateArea(ctx, Area{
		ID:          core.NewID(),
		Name:        in.Name,
		Description: in.Description,
		TeacherIDs:  in.TeacherIDs,
		StudentIDs:  in.StudentIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return area, errors.Wrap(err, "creating area")
}

func (svc *Service) UpdateArea(ctx context.Context, id string, in AreaInput) (Area, error) {
	orig, err := svc.repos.Areas.GetAreaByID(ctx, id)
	if err != nil {
		return Area{}, errors.Wrap(err, "getting area")
	}
	if err := in.Validate(svc.validate); err != nil {
		return Area{}, err
	}
	if err := svc.checkMembers(ctx, in); err != nil {
		return Area{}, err
	}

	orig.Name = in.Name
	orig.Description = in.Description
	orig.TeacherIDs = in.TeacherIDs
	orig.StudentIDs = in.StudentIDs
	orig.UpdatedAt = svc.now().UTC()
	area, err := svc.repos.Areas.UpdateArea(ctx, orig)
	return area, errors.Wrap(err, "updating area")
}

// checkMembers reports the teacher and student ids of in that do not exist.
func (svc *Service) checkMembers(ctx context.Context, in AreaInput) error {
	var fldErrs []core.FieldError
	if len(in.TeacherIDs) > 0 {
		teachers, err := svc.repos.Teachers.QueryTeachers(ctx, TeacherFilter{IDs: in.TeacherIDs})
		if err != nil {
			return errors.Wrap(err, "querying teachers")
		}
		if len(teachers) != len(in.TeacherIDs) {
			fldErrs = append(fldErrs, core.FieldError{Field: "teacherIds", Error: "uno o más docentes no existen"})
		}
	}
	if len(in.StudentIDs) > 0 {
		students, err := svc.repos.Students.QueryStudents(ctx, StudentFilter{IDs: in.StudentIDs})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		if len(students) != len(in.StudentIDs) {
			fldErrs = append(fldErrs, core.FieldError{Field: "studentIds", Error: "uno o más estudiantes no existen"})
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

// Classrooms

func (svc *Service) CreateClassroom(ctx context.Context, in ClassroomInput) (Classroom, error) {
	if err := svc.validateClassroom(ctx, &in); err != nil {
		return Classroom{}, err
	}

	now := svc.now().UTC()
	room, err := svc.repos.Classrooms.CreateClassroom(ctx, Classroom{
		ID:        core.NewID(),
		Name:      in.Name,
		Building:  in.Building,
		Schedule:  in.Schedule,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return room, errors.Wrap(err, "creating classroom")
}

func (svc *Service) UpdateClassroom(ctx context.Context, id string, in ClassroomInput) (Classroom, error) {
	orig, err := svc.repos.Classrooms.GetClassroomByID(ctx, id)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "getting classroom")
	}
	if err := svc.validateClassroom(ctx, &in); err != nil {
		return Classroom{}, err
	}

	orig.Name = in.Name
	orig.Building = in.Building
	orig.Schedule = in.Schedule
	orig.UpdatedAt = svc.now().UTC()
	room, err := svc.repos.Classrooms.UpdateClassroom(ctx, orig)
	return room, errors.Wrap(err, "updating classroom")
}

func (svc *Service) DeleteClassroom(ctx context.Context, id string) error {
	return errors.Wrap(svc.repos.Classrooms.DeleteClassroom(ctx, id), "deleting classroom")
}

// validateClassroom validates in, checks that every scheduled area exists and assigns ids to new entries.
func (svc *Service) validateClassroom(ctx context.Context, in *ClassroomInput) error {
	if err := in.Validate(svc.validate); err != nil {
		return err
	}
	if len(in.Schedule) == 0 {
		return nil
	}

	areaIDs := make([]string, 0, len(in.Schedule))
	for _, e := range in.Schedule {
		areaIDs = append(areaIDs, e.AreaID)
	}
	areas, err := svc.repos.Areas.QueryAreas(ctx, AreaFilter{IDs: core.UniqueStrings(areaIDs)})
	if err != nil {
		return errors.Wrap(err, "querying areas")
	}
	known := make(map[string]bool, len(areas))
	for _, a := range areas {
		known[a.ID] = true
	}

	var fldErrs []core.FieldError
	for i := range in.Schedule {
		if !known[in.Schedule[i].AreaID] {
			fldErrs = append(fldErrs, core.FieldError{Field: scheduleField(i, "areaId"), Error: "el área no existe"})
		}
		if in.Schedule[i].ID == "" {
			in.Schedule[i].ID = core.NewID()
		}
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

// Activity logs & progress reports

// CreateActivityLog records a log for studentID signed with the author's name.
func (svc *Service) CreateActivityLog(ctx context.Context, studentID, author string, in NewActivityLog) (ActivityLog, error) {
	if err := in.Validate(svc.validate); err != nil {
		return ActivityLog{}, err
	}
	if _, err := svc.repos.Students.GetStudentByID(ctx, studentID); err != nil {
		return ActivityLog{}, errors.Wrap(err, "getting student")
	}

	log, err := svc.repos.ActivityLogs.CreateActivityLog(ctx, ActivityLog{
		ID:           core.NewID(),
		StudentID:    studentID,
		Date:         in.Date.UTC(),
		Teacher:      author,
		Achievements: in.Achievements,
		Challenges:   in.Challenges,
		Observations: in.Observations,
		CreatedAt:    svc.now().UTC(),
	})
	return log, errors.Wrap(err, "creating activity log")
}

func (svc *Service) DeleteActivityLog(ctx context.Context, id string) error {
	return errors.Wrap(svc.repos.ActivityLogs.DeleteActivityLog(ctx, id), "deleting activity log")
}

func (svc *Service) CreateProgressReport(ctx context.Context, studentID string, in NewProgressReport) (ProgressReport, error) {
	if err := in.Validate(svc.validate); err != nil {
		return ProgressReport{}, err
	}
	if _, err := svc.repos.Students.GetStudentByID(ctx, studentID); err != nil {
		return ProgressReport{}, errors.Wrap(err, "getting student")
	}

	report, err := svc.repos.ProgressReports.CreateProgressReport(ctx, ProgressReport{
		ID:        core.NewID(),
		StudentID: studentID,
		Date:      in.Date.UTC(),
		Content:   in.Content,
		Type:      in.Type,
		CreatedAt: svc.now().UTC(),
	})
	return report, errors.Wrap(err, "creating progress report")
}

func (svc *Service) DeleteProgressReport(ctx context.Context, id string) error {
	return errors.Wrap(svc.repos.ProgressReports.DeleteProgressReport(ctx, id), "deleting progress report")
}

// Events

func (svc *Service) CreateEvent(ctx context.Context, in NewEvent) (Event, error) {
	if err := in.Validate(svc.validate); err != nil {
		return Event{}, err
	}

	evt, err := svc.repos.Events.CreateEvent(ctx, Event{
		ID:          core.NewID(),
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date.UTC(),
		Location:    in.Location,
		CreatedAt:   svc.now().UTC(),
	})
	return evt, errors.Wrap(err, "creating event")
}

// Events lists the events dated from `from` on, soonest first.
func (svc *Service) Events(ctx context.Context, from time.Time, limit int) ([]Event, error) {
	evts, err := svc.repos.Events.QueryEvents(ctx, EventFilter{From: from, Limit: limit})
	return evts, errors.Wrap(err, "querying events")
}

func (svc *Service) DeleteEvent(ctx context.Context, id string) error {
	return errors.Wrap(svc.repos.Events.DeleteEvent(ctx, id), "deleting event")
}
