// Package testutil builds the collaborators shared by the tests of several packages.
package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/ja-viss/caipa-connect-sub000/assets"
	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
	emailsvc "github.com/ja-viss/caipa-connect-sub000/services/email"
	logsvc "github.com/ja-viss/caipa-connect-sub000/services/logger"
	"github.com/ja-viss/caipa-connect-sub000/storage/database/inmemdb"
)

var (
	templatesOnce sync.Once
	templatesErr  error
)

func init() {
	user.PasswordCost = bcrypt.MinCost
}

// NewValidator returns a validator with every custom validation and its Spanish texts.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator("es")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate)
	message.InitValidators(validate, translator)
	return validate, translator
}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), &core.Config{Env: "TEST", TestMode: true})
}

// NewStore returns a store on a fresh in-memory database.
func NewStore() (*store.Store, *inmemdb.DB) {
	db := inmemdb.Open()
	return inmemdb.NewStore(db), db
}

// NewMailer returns a mailer recording the rendered messages.
func NewMailer(t testing.TB) *emailsvc.ConsoleServiceMock {
	t.Helper()
	templatesOnce.Do(func() {
		templatesErr = core.ParseEmailTemplates(assets.FS, true)
	})
	if templatesErr != nil {
		t.Fatalf("NewMailer() failed: %v", templatesErr)
	}
	return emailsvc.NewConsoleServiceMock(emailsvc.Options{
		AppName:         "CAIPA Connect",
		FrontendBaseURL: "http://localhost:3000",
		Logger:          NewLogger(),
	})
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, role user.Role, teacherID ...string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:        core.NewID(),
		FullName:  name,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(teacherID) > 0 {
		usr.TeacherID = teacherID[0]
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTeacher creates a Teacher profile and its linked User.
func CreateTeacher(t *testing.T, st *store.Store, name, email, pwd string) (school.Teacher, user.User) {
	t.Helper()
	now := time.Now().UTC()
	tch, err := st.Teachers.CreateTeacher(context.Background(), school.Teacher{
		ID:             core.NewID(),
		FullName:       name,
		CI:             "V-12345678",
		Email:          email,
		Phone:          "0414-1234567",
		Specialization: "Lenguaje",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tch, CreateUser(t, st.Users, name, email, pwd, user.RoleTeacher, tch.ID)
}

// CreateStudent creates a Student represented by rep. rep may be a zero User for a
// student linked by email only.
func CreateStudent(t *testing.T, st *store.Store, name, repName, repEmail string, rep user.User) school.Student {
	t.Helper()
	now := time.Now().UTC()
	s, err := st.Students.CreateStudent(context.Background(), school.Student{
		ID:     core.NewID(),
		Name:   name,
		DOB:    time.Date(2015, 5, 17, 0, 0, 0, 0, time.UTC),
		Gender: "M",
		EmergencyContact: school.EmergencyContact{
			Name: repName, Phone: "0414-7654321", Relation: "Madre",
		},
		Representative: school.Representative{
			Name: repName, CI: "V-87654321", Relation: "Madre", Phone: "0414-7654321", Email: repEmail,
		},
		RepresentativeUserID: rep.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// CreateArea creates an Area with the given members.
func CreateArea(t *testing.T, st *store.Store, name string, teacherIDs, studentIDs []string) school.Area {
	t.Helper()
	now := time.Now().UTC()
	a, err := st.Areas.CreateArea(context.Background(), school.Area{
		ID:         core.NewID(),
		Name:       name,
		TeacherIDs: teacherIDs,
		StudentIDs: studentIDs,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateArea() failed: %v", err)
	}
	return a
}

// CreateActivityLog creates a log of studentID dated date.
func CreateActivityLog(t *testing.T, st *store.Store, studentID string, date time.Time) school.ActivityLog {
	t.Helper()
	l, err := st.ActivityLogs.CreateActivityLog(context.Background(), school.ActivityLog{
		ID:           core.NewID(),
		StudentID:    studentID,
		Date:         date,
		Teacher:      "Ana Pérez",
		Achievements: "Completó la actividad",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateActivityLog() failed: %v", err)
	}
	return l
}

// CreateProgressReport creates a report of studentID dated date.
func CreateProgressReport(t *testing.T, st *store.Store, studentID string, date time.Time) school.ProgressReport {
	t.Helper()
	r, err := st.ProgressReports.CreateProgressReport(context.Background(), school.ProgressReport{
		ID:        core.NewID(),
		StudentID: studentID,
		Date:      date,
		Content:   "Avances del trimestre",
		Type:      "trimestral",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateProgressReport() failed: %v", err)
	}
	return r
}

// CreateMessage stores a message as if sent by senderID.
func CreateMessage(t *testing.T, st *store.Store, senderID string, to message.Recipient, subject string, at time.Time) message.Message {
	t.Helper()
	m, err := st.Messages.CreateMessage(context.Background(), message.Message{
		ID:        core.NewID(),
		SenderID:  senderID,
		Recipient: to,
		Subject:   subject,
		Body:      "Contenido",
		Timestamp: at.UTC(),
		ReadBy:    []string{},
	})
	if err != nil {
		t.Fatalf("CreateMessage() failed: %v", err)
	}
	return m
}
