package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

func newUser(name, email string, role user.Role) user.User {
	return user.User{ID: core.NewID(), FullName: name, Email: email, Role: role}
}

func TestDB_WithinTransaction(t *testing.T) {
	db := Open()
	st := NewStore(db)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := st.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := st.Users.CreateUser(ctx, newUser("Ana", "ana@caipa.com", user.RoleAdmin)); err != nil {
			return err
		}
		// nested calls join the running transaction
		return st.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := st.Users.CreateUser(ctx, newUser("Luis", "luis@caipa.com", user.RoleAdmin)); err != nil {
				return err
			}
			return errBoom
		})
	})
	assert.Equal(t, errBoom, err)
	n, _ := st.Users.CountUsers(ctx)
	assert.Zero(t, n, "every write is undone")

	err = st.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := st.Users.CreateUser(ctx, newUser("Ana", "ana@caipa.com", user.RoleAdmin))
		return err
	})
	require.NoError(t, err)
	n, _ = st.Users.CountUsers(ctx)
	assert.Equal(t, 1, n)
}

func TestDB_FailOn(t *testing.T) {
	db := Open()
	st := NewStore(db)
	ctx := context.Background()

	db.FailOn("CreateUser", errors.New("connection reset"))
	_, err := st.Users.CreateUser(ctx, newUser("Ana", "ana@caipa.com", user.RoleAdmin))
	var pErr *core.PersistenceError
	if assert.True(t, errors.As(err, &pErr)) {
		assert.Equal(t, "CreateUser", pErr.Op)
	}

	_, err = st.Users.CreateUser(ctx, newUser("Ana", "ana@caipa.com", user.RoleAdmin))
	assert.NoError(t, err, "a failure is injected once")
}

func TestUserRepository(t *testing.T) {
	st := NewStore(Open())
	ctx := context.Background()
	ana, err := st.Users.CreateUser(ctx, newUser("Ana Pérez", "ana@caipa.com", user.RoleTeacher))
	require.NoError(t, err)
	rosa, err := st.Users.CreateUser(ctx, newUser("rosa Díaz", "rosa@caipa.com", user.RoleRepresentative))
	require.NoError(t, err)

	_, err = st.Users.CreateUser(ctx, newUser("Otra Ana", "ana@caipa.com", user.RoleAdmin))
	assert.True(t, user.IsDuplicateEmail(err))

	assert.True(t, user.IsDuplicateEmail(st.Users.CheckEmailUniqueness(ctx, "ana@caipa.com")))
	assert.NoError(t, st.Users.CheckEmailUniqueness(ctx, "ana@caipa.com", ana))

	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []user.User
	}{
		{name: "all, by name", want: []user.User{ana, rosa}},
		{name: "by role", filter: user.QueryFilter{Roles: []user.Role{user.RoleRepresentative}}, want: []user.User{rosa}},
		{name: "search email", filter: user.QueryFilter{Search: "ROSA@"}, want: []user.User{rosa}},
		{name: "search name", filter: user.QueryFilter{Search: "pérez"}, want: []user.User{ana}},
		{name: "no match", filter: user.QueryFilter{Search: "zzz"}, want: []user.User{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.Users.QueryUsers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, st.Users.DeleteUserByEmail(ctx, "rosa@caipa.com"))
	_, err = st.Users.GetUserByID(ctx, rosa.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestStudentRepository_representatives(t *testing.T) {
	st := NewStore(Open())
	ctx := context.Background()
	create := func(name, repEmail, repUserID string) school.Student {
		s, err := st.Students.CreateStudent(ctx, school.Student{
			ID:                   core.NewID(),
			Name:                 name,
			Representative:       school.Representative{Name: "Rep " + name, Email: repEmail},
			RepresentativeUserID: repUserID,
		})
		require.NoError(t, err)
		return s
	}
	carlos := create("Carlos", "rosa@caipa.com", "")
	maria := create("María", "pedro@caipa.com", "u-rosa")
	create("Luis", "luisa@caipa.com", "")

	got, err := st.Students.QueryStudents(ctx, school.StudentFilter{RepresentativeUserID: "u-rosa", RepresentativeEmail: "rosa@caipa.com"})
	require.NoError(t, err)
	assert.Equal(t, []school.Student{carlos, maria}, got, "linked by user id or by email")

	got, err = st.Students.QueryStudents(ctx, school.StudentFilter{IDs: []string{maria.ID, "nope", maria.ID}})
	require.NoError(t, err)
	assert.Equal(t, []school.Student{maria}, got)

	n, err := st.Students.ReassignRepresentativeEmail(ctx, "rosa@caipa.com", "rosa.diaz@caipa.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = st.Students.RenameRepresentative(ctx, "rosa.diaz@caipa.com", "Rosa Díaz")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := st.Students.GetStudentByID(ctx, carlos.ID)
	require.NoError(t, err)
	assert.Equal(t, school.Representative{Name: "Rosa Díaz", Email: "rosa.diaz@caipa.com"}, s.Representative)
}

func TestActivityLogRepository_CountActivityLogsPerDay(t *testing.T) {
	st := NewStore(Open())
	ctx := context.Background()
	caracas := time.FixedZone("VET", -4*3600)

	for _, date := range []time.Time{
		time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC),  // Mar 3rd in Caracas
		time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC), // Mar 4th
		time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), // Mar 4th
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), // before since
	} {
		_, err := st.ActivityLogs.CreateActivityLog(ctx, school.ActivityLog{ID: core.NewID(), StudentID: "s", Date: date})
		require.NoError(t, err)
	}

	got, err := st.ActivityLogs.CountActivityLogsPerDay(ctx, time.Date(2024, 3, 3, 0, 0, 0, 0, caracas), caracas)
	require.NoError(t, err)
	assert.Equal(t, []school.DayCount{{Day: "2024-03-03", Count: 1}, {Day: "2024-03-04", Count: 2}}, got)
}

func TestAreaRepository_removals(t *testing.T) {
	st := NewStore(Open())
	ctx := context.Background()
	area, err := st.Areas.CreateArea(ctx, school.Area{ID: core.NewID(), Name: "Lenguaje", TeacherIDs: []string{"t1", "t2"}, StudentIDs: []string{"s1", "s2", "s3"}})
	require.NoError(t, err)
	room, err := st.Classrooms.CreateClassroom(ctx, school.Classroom{ID: core.NewID(), Name: "Aula", Schedule: []school.ScheduleEntry{
		{ID: "e1", AreaID: area.ID}, {ID: "e2", AreaID: "other"},
	}})
	require.NoError(t, err)

	require.NoError(t, st.Areas.RemoveTeacherFromAreas(ctx, "t1"))
	require.NoError(t, st.Areas.RemoveStudentsFromAreas(ctx, "s1", "s3"))
	require.NoError(t, st.Classrooms.RemoveAreaFromSchedules(ctx, area.ID))

	got, err := st.Areas.GetAreaByID(ctx, area.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, got.TeacherIDs)
	assert.Equal(t, []string{"s2"}, got.StudentIDs)

	gotRoom, err := st.Classrooms.GetClassroomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []school.ScheduleEntry{{ID: "e2", AreaID: "other"}}, gotRoom.Schedule)

	// stored values are not shared with callers
	area.TeacherIDs[0] = "changed"
	got, _ = st.Areas.GetAreaByID(ctx, area.ID)
	assert.Equal(t, []string{"t2"}, got.TeacherIDs)
}

func TestMessageRepository_MarkRead(t *testing.T) {
	st := NewStore(Open())
	ctx := context.Background()
	now := time.Now().UTC()
	older, err := st.Messages.CreateMessage(ctx, message.Message{ID: core.NewID(), Recipient: message.Recipient{Kind: message.AllReps}, Timestamp: now.Add(-time.Hour)})
	require.NoError(t, err)
	newer, err := st.Messages.CreateMessage(ctx, message.Message{ID: core.NewID(), Recipient: message.Recipient{Kind: message.ToRep, ID: "rosa@caipa.com"}, Timestamp: now})
	require.NoError(t, err)
	_, err = st.Messages.CreateMessage(ctx, message.Message{ID: core.NewID(), Recipient: message.Recipient{Kind: message.ToRep, ID: "pedro@caipa.com"}, Timestamp: now})
	require.NoError(t, err)

	filter := message.Filter{Recipients: []message.Recipient{{Kind: message.AllReps}, {Kind: message.ToRep, ID: "rosa@caipa.com"}}}
	require.NoError(t, st.Messages.MarkRead(ctx, "rosa@caipa.com", older.ID, newer.ID))
	require.NoError(t, st.Messages.MarkRead(ctx, "rosa@caipa.com", older.ID))

	msgs, err := st.Messages.QueryMessages(ctx, filter)
	require.NoError(t, err)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, newer.ID, msgs[0].ID, "newest first")
		assert.Equal(t, []string{"rosa@caipa.com"}, msgs[1].ReadBy, "marked once")
	}

	msgs, err = st.Messages.QueryMessages(ctx, message.Filter{Recipients: []message.Recipient{}})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
