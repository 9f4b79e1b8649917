package school_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
	testutil "github.com/ja-viss/caipa-connect-sub000/tests"
)

func setup() (*store.Store, *school.Service) {
	st, _ := testutil.NewStore()
	validate, _ := testutil.NewValidator()
	return st, school.NewService(validate, st.Repositories)
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v; want a *core.ValidationError", err)
	}
	flds := make([]string, 0, len(vErr.Fields))
	for _, f := range vErr.Fields {
		flds = append(flds, f.Field)
	}
	return flds
}

func fieldsOfValidator(t *testing.T, err error) []string {
	t.Helper()
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		t.Fatalf("error = %v; want validator.ValidationErrors", err)
	}
	flds := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		flds = append(flds, core.FieldName(fe))
	}
	return flds
}

func TestService_CreateArea(t *testing.T) {
	st, svc := setup()
	ctx := context.Background()
	tch, _ := testutil.CreateTeacher(t, st, "Ana Pérez", "ana@caipa.com", "secret1")
	s := testutil.CreateStudent(t, st, "Carlos Díaz", "Rosa Díaz", "rosa@caipa.com", user.User{})

	t.Run("unknown members", func(t *testing.T) {
		_, err := svc.CreateArea(ctx, school.AreaInput{
			Name:       "Lenguaje",
			TeacherIDs: []string{tch.ID, "nope"},
			StudentIDs: []string{"nope"},
		})
		assert.ElementsMatch(t, []string{"teacherIds", "studentIds"}, fieldsOf(t, err))
	})

	t.Run("duplicated members", func(t *testing.T) {
		area, err := svc.CreateArea(ctx, school.AreaInput{
			Name:       "  Lenguaje ",
			TeacherIDs: []string{tch.ID, tch.ID},
			StudentIDs: []string{s.ID, s.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, "Lenguaje", area.Name)
		assert.Equal(t, []string{tch.ID}, area.TeacherIDs)
		assert.Equal(t, []string{s.ID}, area.StudentIDs)

		got, err := st.Areas.GetAreaByID(ctx, area.ID)
		require.NoError(t, err)
		assert.Equal(t, area, got)
	})
}

func TestService_UpdateArea_notFound(t *testing.T) {
	_, svc := setup()
	_, err := svc.UpdateArea(context.Background(), "nope", school.AreaInput{Name: "Lenguaje"})
	assert.True(t, core.IsNotFound(err))
}

func TestService_CreateClassroom(t *testing.T) {
	st, svc := setup()
	ctx := context.Background()
	area := testutil.CreateArea(t, st, "Lenguaje", nil, nil)

	entry := func(day, start, end, areaID string) school.ScheduleEntry {
		return school.ScheduleEntry{Day: day, StartTime: start, EndTime: end, AreaID: areaID}
	}
	tests := []struct {
		name       string
		schedule   []school.ScheduleEntry
		wantFields []string
	}{
		{
			name:       "unknown area",
			schedule:   []school.ScheduleEntry{entry("Lunes", "08:00", "09:00", "nope")},
			wantFields: []string{"schedule[0].areaId"},
		},
		{
			name:       "end before start",
			schedule:   []school.ScheduleEntry{entry("Lunes", "09:00", "08:00", area.ID)},
			wantFields: []string{"schedule[0].endTime"},
		},
		{
			name: "overlap",
			schedule: []school.ScheduleEntry{
				entry("Lunes", "08:00", "09:00", area.ID),
				entry("Lunes", "08:30", "10:00", area.ID),
			},
			wantFields: []string{"schedule[1].startTime"},
		},
		{
			name: "back to back",
			schedule: []school.ScheduleEntry{
				entry("Lunes", "08:00", "09:00", area.ID),
				entry("Lunes", "09:00", "10:00", area.ID),
				entry("Martes", "08:00", "09:00", area.ID),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := svc.CreateClassroom(ctx, school.ClassroomInput{Name: "Aula 1", Building: "A", Schedule: tt.schedule})
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, fieldsOf(t, err))
				return
			}
			require.NoError(t, err)
			for _, e := range room.Schedule {
				assert.NotEmpty(t, e.ID, "schedule entries get an id")
			}
		})
	}

	_, err := svc.CreateClassroom(ctx, school.ClassroomInput{
		Name: "Aula 2", Building: "A", Schedule: []school.ScheduleEntry{entry("Funday", "08:00", "09:00", area.ID)},
	})
	assert.Equal(t, []string{"schedule[0].day"}, fieldsOfValidator(t, err))
}

func TestService_records(t *testing.T) {
	st, svc := setup()
	ctx := context.Background()
	s := testutil.CreateStudent(t, st, "Carlos Díaz", "Rosa Díaz", "rosa@caipa.com", user.User{})
	date := time.Date(2024, 3, 4, 15, 0, 0, 0, time.FixedZone("VET", -4*3600))

	_, err := svc.CreateActivityLog(ctx, "nope", "Ana", school.NewActivityLog{Date: date, Achievements: "Leyó"})
	assert.True(t, core.IsNotFound(err))

	log, err := svc.CreateActivityLog(ctx, s.ID, "Ana Pérez", school.NewActivityLog{Date: date, Achievements: " Leyó un cuento "})
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", log.Teacher)
	assert.Equal(t, "Leyó un cuento", log.Achievements)
	assert.Equal(t, time.UTC, log.Date.Location())
	assert.True(t, log.Date.Equal(date))

	_, err = svc.CreateProgressReport(ctx, s.ID, school.NewProgressReport{Date: date})
	assert.ElementsMatch(t, []string{"content", "type"}, fieldsOfValidator(t, err))

	report, err := svc.CreateProgressReport(ctx, s.ID, school.NewProgressReport{Date: date, Content: "Avanza", Type: "Trimestral"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteActivityLog(ctx, log.ID))
	require.NoError(t, svc.DeleteProgressReport(ctx, report.ID))
	assert.True(t, core.IsNotFound(svc.DeleteProgressReport(ctx, report.ID)))
}

func TestService_Events(t *testing.T) {
	_, svc := setup()
	ctx := context.Background()
	now := time.Now()

	for i, d := range []int{-1, 3, 1, 2} {
		_, err := svc.CreateEvent(ctx, school.NewEvent{Title: "Evento " + string(rune('A'+i)), Date: now.AddDate(0, 0, d)})
		require.NoError(t, err)
	}

	evts, err := svc.Events(ctx, now, 2)
	require.NoError(t, err)
	if assert.Len(t, evts, 2) {
		assert.Equal(t, "Evento C", evts[0].Title)
		assert.Equal(t, "Evento D", evts[1].Title)
	}

	require.NoError(t, svc.DeleteEvent(ctx, evts[0].ID))
	assert.True(t, core.IsNotFound(svc.DeleteEvent(ctx, evts[0].ID)))
}
