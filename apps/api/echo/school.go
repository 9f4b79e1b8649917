package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/access"
	"github.com/ja-viss/caipa-connect-sub000/core/dashboard"
	"github.com/ja-viss/caipa-connect-sub000/core/registry"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
)

// maximum number of events listed at once
const maxEvents = 100

type schoolApi struct {
	opts     *Options
	access   *access.Service
	registry *registry.Service
	school   *school.Service
}

func newSchoolApi(opts *Options) *schoolApi {
	return &schoolApi{
		opts:     opts,
		access:   opts.AccessSvc,
		registry: opts.RegistrySvc,
		school:   opts.SchoolSvc,
	}
}

// Teachers

func registerTeacherAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := newSchoolApi(opts)

	g := e.Group("/teachers", authed)
	g.GET("", api.queryTeachers)
	g.POST("", api.createTeacher, admin)
	g.GET("/:id", api.retrieveTeacher)
	g.PUT("/:id", api.updateTeacher, admin)
	g.DELETE("/:id", api.destroyTeacher, admin)
}

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.access.Teachers(ctx.Request().Context(), mustIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) retrieveTeacher(ctx echo.Context) error {
	teachers, err := api.access.Teachers(ctx.Request().Context(), mustIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	for _, t := range teachers {
		if t.ID == ctx.Param("id") {
			return ctx.JSON(http.StatusOK, t)
		}
	}
	return errHttpNotFound
}

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data school.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	t, err := api.registry.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *schoolApi) updateTeacher(ctx echo.Context) error {
	var data school.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	t, err := api.registry.UpdateTeacher(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *schoolApi) destroyTeacher(ctx echo.Context) error {
	if err := api.registry.DeleteTeacher(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func registerStudentAPI(e *echo.Echo, authed, admin, staff echo.MiddlewareFunc, opts *Options) {
	api := newSchoolApi(opts)

	g := e.Group("/students", authed)
	g.GET("", api.queryStudents)
	g.POST("", api.createStudent, admin)
	g.GET("/mine", api.representativeStudent, requireRole(representativeRole))
	g.GET("/:id", api.retrieveStudent)
	g.PUT("/:id", api.updateStudent, admin)
	g.DELETE("/:id", api.destroyStudent, admin)

	g.GET("/:id/activity-logs", api.queryActivityLogs)
	g.POST("/:id/activity-logs", api.createActivityLog, staff)
	g.GET("/:id/progress-reports", api.queryProgressReports)
	g.POST("/:id/progress-reports", api.createProgressReport, staff)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	students, err := api.access.Students(ctx.Request().Context(), mustIdentity(ctx), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) representativeStudent(ctx echo.Context) error {
	s, err := api.access.RepresentativeStudent(ctx.Request().Context(), mustIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "getting representative student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	s, err := api.access.Student(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.StudentInput
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	s, err := api.registry.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	var data school.StudentInput
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	s, err := api.registry.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	if err := api.registry.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Activity logs & progress reports

func registerRecordAPI(e *echo.Echo, authed, staff echo.MiddlewareFunc, opts *Options) {
	api := newSchoolApi(opts)

	lg := e.Group("/activity-logs", authed)
	lg.GET("/:id", api.retrieveActivityLog)
	lg.DELETE("/:id", api.destroyActivityLog, staff)

	rg := e.Group("/progress-reports", authed)
	rg.GET("/:id", api.retrieveProgressReport)
	rg.DELETE("/:id", api.destroyProgressReport, staff)
}

func (api *schoolApi) queryActivityLogs(ctx echo.Context) error {
	logs, err := api.access.ActivityLogs(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying activity logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *schoolApi) createActivityLog(ctx echo.Context) error {
	var data school.NewActivityLog
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	id := mustIdentity(ctx)
	s, err := api.access.Student(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	log, err := api.school.CreateActivityLog(ctx.Request().Context(), s.ID, id.FullName, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, log)
}

func (api *schoolApi) retrieveActivityLog(ctx echo.Context) error {
	log, err := api.access.ActivityLog(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting activity log")
	}
	return ctx.JSON(http.StatusOK, log)
}

func (api *schoolApi) destroyActivityLog(ctx echo.Context) error {
	log, err := api.access.ActivityLog(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting activity log")
	}
	if err := api.school.DeleteActivityLog(ctx.Request().Context(), log.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryProgressReports(ctx echo.Context) error {
	reports, err := api.access.ProgressReports(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying progress reports")
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *schoolApi) createProgressReport(ctx echo.Context) error {
	var data school.NewProgressReport
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	s, err := api.access.Student(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	report, err := api.school.CreateProgressReport(ctx.Request().Context(), s.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, report)
}

func (api *schoolApi) retrieveProgressReport(ctx echo.Context) error {
	report, err := api.access.ProgressReport(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *schoolApi) destroyProgressReport(ctx echo.Context) error {
	report, err := api.access.ProgressReport(ctx.Request().Context(), mustIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress report")
	}
	if err := api.school.DeleteProgressReport(ctx.Request().Context(), report.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Areas

func registerAreaAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := newSchoolApi(opts)

	g := e.Group("/areas", authed)
	g.GET("", api.queryAreas)
	g.POST("", api.createArea, admin)
	g.PUT("/:id", api.updateArea, admin)
	g.DELETE("/:id", api.destroyArea, admin)
}

func (api *schoolApi) queryAreas(ctx echo.Context) error {
	areas, err := api.access.Areas(ctx.Request().Context(), mustIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "querying areas")
	}
	return ctx.JSON(http.StatusOK, areas)
}

func (api *schoolApi) createArea(ctx echo.Context) error {
	var data school.AreaInput
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	area, err := api.school.CreateArea(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, area)
}

func (api *schoolApi) updateArea(ctx echo.Context) error {
	var data school.AreaInput
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	area, err := api.school.UpdateArea(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, area)
}

func (api *schoolApi) destroyArea(ctx echo.Context) error {
	if err := api.registry.DeleteArea(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Classrooms

func registerClassroomAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := newSchoolApi(opts)

	g := e.Group("/classrooms", authed)
	g.GET("", api.queryClassrooms)
	g.POST("", api.createClassroom, admin)
	g.PUT("/:id", api.updateClassroom, admin)
	g.DELETE("/:id", api.destroyClassroom, admin)
}

func (api *schoolApi) queryClassrooms(ctx echo.Context) error {
	rooms, err := api.access.Classrooms(ctx.Request().Context(), mustIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *schoolApi) createClassroom(ctx echo.Context) error {
	var data school.ClassroomInput
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	room, err := api.school.CreateClassroom(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *schoolApi) updateClassroom(ctx echo.Context) error {
	var data school.ClassroomInput
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	room, err := api.school.UpdateClassroom(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *schoolApi) destroyClassroom(ctx echo.Context) error {
	if err := api.school.DeleteClassroom(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Events

func registerEventAPI(e *echo.Echo, authed, admin echo.MiddlewareFunc, opts *Options) {
	api := newSchoolApi(opts)

	g := e.Group("/events", authed)
	g.GET("", api.queryEvents)
	g.POST("", api.createEvent, admin)
	g.DELETE("/:id", api.destroyEvent, admin)
}

// queryEvents lists the events from today on, soonest first.
func (api *schoolApi) queryEvents(ctx echo.Context) error {
	limit := maxEvents
	if err := echo.QueryParamsBinder(ctx).Int("limit", &limit).BindError(); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "limit", Error: "debe ser un número entero"})
	}
	if limit <= 0 || limit > maxEvents {
		limit = maxEvents
	}

	today := dashboard.StartOfDay(timeNow().In(api.opts.Location))
	evts, err := api.school.Events(ctx.Request().Context(), today, limit)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	return ctx.JSON(http.StatusOK, evts)
}

func (api *schoolApi) createEvent(ctx echo.Context) error {
	var data school.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errBadRequest
	}
	evt, err := api.school.CreateEvent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *schoolApi) destroyEvent(ctx echo.Context) error {
	if err := api.school.DeleteEvent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
