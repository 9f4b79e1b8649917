// Package registry holds the writes that span several collections: people and their
// accounts, and the records hanging off them.
//
// Every operation runs inside one transaction of the store. Emails are only sent
// once that transaction committed.
package registry

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

// generated passwords length
const passwordLength = 12

type (
	Options struct {
		Validate *validator.Validate
		Store    *store.Store
		Mailer   core.EmailService
		Logger   core.Logger
	}

	Service struct {
		opts Options
		now  func() time.Time
	}
)

func NewService(opts Options) *Service {
	return &Service{opts: opts, now: time.Now}
}

func (svc *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return svc.opts.Store.Tx.WithinTransaction(ctx, fn)
}

func (svc *Service) send(msgs ...*core.EmailMessage) {
	var out []*core.EmailMessage
	for _, m := range msgs {
		if m != nil {
			out = append(out, m)
		}
	}
	if len(out) > 0 {
		svc.opts.Mailer.SendMessages(out...)
	}
}

// welcomeMessage greets usr. password is only shown when it was generated for them.
func welcomeMessage(usr user.User, password string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Bienvenido a CAIPA Connect",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"FullName":  usr.FullName,
			"RoleLabel": usr.Role.Label(),
			"Email":     usr.Email,
			"Password":  password,
		},
	}
}

// newUser builds a User of role with password hashed.
func (svc *Service) newUser(fullName, email, password string, role user.Role, now time.Time) (user.User, error) {
	usr := user.User{
		ID:        core.NewID(),
		FullName:  fullName,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(password); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// Students

// CreateStudent creates a Student and links it to its representative User.
// The User is provisioned when the representative email is unknown; an email owned
// by an admin or a teacher is a duplicate.
func (svc *Service) CreateStudent(ctx context.Context, in school.StudentInput) (school.Student, error) {
	if err := in.Validate(svc.opts.Validate); err != nil {
		return school.Student{}, err
	}

	now := svc.now().UTC()
	s := school.Student{
		ID:               core.NewID(),
		Name:             in.Name,
		DOB:              in.BirthDate(),
		Gender:           in.Gender,
		EmergencyContact: in.EmergencyContact,
		MedicalInfo:      in.MedicalInfo,
		PedagogicalInfo:  in.PedagogicalInfo,
		Representative:   in.Representative,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var welcome *core.EmailMessage
	err := svc.withinTx(ctx, func(ctx context.Context) error {
		rep, msg, err := svc.ensureRepresentative(ctx, in.Representative, in.RepresentativePassword, now)
		if err != nil {
			return err
		}
		welcome = msg
		s.RepresentativeUserID = rep.ID

		s, err = svc.opts.Store.Students.CreateStudent(ctx, s)
		return errors.Wrap(err, "creating student")
	})
	if err != nil {
		return school.Student{}, err
	}

	svc.send(welcome)
	return s, nil
}

// ensureRepresentative returns the representative User owning rep.Email, creating it
// when missing. The welcome message is nil for an existing User.
func (svc *Service) ensureRepresentative(
	ctx context.Context,
	rep school.Representative,
	password string,
	now time.Time,
) (user.User, *core.EmailMessage, error) {
	users := svc.opts.Store.Users

	usr, err := users.GetUserByEmail(ctx, rep.Email)
	if err == nil {
		if !usr.IsRepresentative() {
			return user.User{}, nil, user.DuplicateEmailError("representative.email")
		}
		return usr, nil, nil
	}
	if !core.IsNotFound(err) {
		return user.User{}, nil, errors.Wrap(err, "getting representative")
	}

	var generated string
	if password == "" {
		generated = core.RandomString(passwordLength)
		password = generated
	}
	if usr, err = svc.newUser(rep.Name, rep.Email, password, user.RoleRepresentative, now); err != nil {
		return user.User{}, nil, err
	}
	if usr, err = users.CreateUser(ctx, usr); err != nil {
		if user.IsDuplicateEmail(err) {
			return user.User{}, nil, user.DuplicateEmailError("representative.email")
		}
		return user.User{}, nil, errors.Wrap(err, "creating representative")
	}
	return usr, welcomeMessage(usr, generated), nil
}

// UpdateStudent replaces the data of studentID. A new representative email links the
// student to that representative, provisioning the User like CreateStudent does.
func (svc *Service) UpdateStudent(ctx context.Context, studentID string, in school.StudentInput) (school.Student, error) {
	if err := in.Validate(svc.opts.Validate); err != nil {
		return school.Student{}, err
	}

	var (
		s       school.Student
		welcome *core.EmailMessage
	)
	err := svc.withinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = svc.opts.Store.Students.GetStudentByID(ctx, studentID); err != nil {
			return errors.Wrap(err, "getting student")
		}

		now := svc.now().UTC()
		if in.Representative.Email != s.Representative.Email || s.RepresentativeUserID == "" {
			rep, msg, err := svc.ensureRepresentative(ctx, in.Representative, in.RepresentativePassword, now)
			if err != nil {
				return err
			}
			welcome = msg
			s.RepresentativeUserID = rep.ID
		}

		s.Name = in.Name
		s.DOB = in.BirthDate()
		s.Gender = in.Gender
		s.EmergencyContact = in.EmergencyContact
		s.MedicalInfo = in.MedicalInfo
		s.PedagogicalInfo = in.PedagogicalInfo
		s.Representative = in.Representative
		s.UpdatedAt = now

		s, err = svc.opts.Store.Students.UpdateStudent(ctx, s)
		return errors.Wrap(err, "updating student")
	})
	if err != nil {
		return school.Student{}, err
	}

	svc.send(welcome)
	return s, nil
}

// DeleteStudent deletes studentID with its activity logs and progress reports, and
// drops it from every area. The representative User goes too unless it still
// represents another student.
func (svc *Service) DeleteStudent(ctx context.Context, studentID string) error {
	return svc.withinTx(ctx, func(ctx context.Context) error {
		s, err := svc.opts.Store.Students.GetStudentByID(ctx, studentID)
		if err != nil {
			return errors.Wrap(err, "getting student")
		}
		if err := svc.deleteStudents(ctx, s); err != nil {
			return err
		}

		rep, err := svc.representativeOf(ctx, s)
		if err != nil || rep == nil {
			return err
		}
		others, err := svc.representedStudents(ctx, *rep)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			return nil
		}
		return errors.Wrap(svc.opts.Store.Users.DeleteUser(ctx, rep.ID), "deleting representative")
	})
}

// deleteStudents deletes students and everything referencing them.
func (svc *Service) deleteStudents(ctx context.Context, students ...school.Student) error {
	if len(students) == 0 {
		return nil
	}
	st := svc.opts.Store

	ids := make([]string, 0, len(students))
	for _, s := range students {
		if err := st.Students.DeleteStudent(ctx, s.ID); err != nil {
			return errors.Wrap(err, "deleting student")
		}
		ids = append(ids, s.ID)
	}
	if err := st.ActivityLogs.DeleteActivityLogsByStudent(ctx, ids...); err != nil {
		return errors.Wrap(err, "deleting activity logs")
	}
	if err := st.ProgressReports.DeleteProgressReportsByStudent(ctx, ids...); err != nil {
		return errors.Wrap(err, "deleting progress reports")
	}
	return errors.Wrap(st.Areas.RemoveStudentsFromAreas(ctx, ids...), "removing students from areas")
}

// representativeOf returns the representative User of s, or nil if there is none.
func (svc *Service) representativeOf(ctx context.Context, s school.Student) (*user.User, error) {
	users := svc.opts.Store.Users

	var (
		usr user.User
		err error
	)
	if s.RepresentativeUserID != "" {
		usr, err = users.GetUserByID(ctx, s.RepresentativeUserID)
	} else {
		usr, err = users.GetUserByEmail(ctx, s.Representative.Email)
	}
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting representative")
	}
	if !usr.IsRepresentative() {
		return nil, nil
	}
	return &usr, nil
}

func (svc *Service) representedStudents(ctx context.Context, rep user.User) ([]school.Student, error) {
	candidates, err := svc.opts.Store.Students.QueryStudents(ctx, school.StudentFilter{
		RepresentativeUserID: rep.ID,
		RepresentativeEmail:  rep.Email,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := candidates[:0]
	for _, s := range candidates {
		if s.RepresentedBy(rep.ID, rep.Email) {
			students = append(students, s)
		}
	}
	return students, nil
}

// Teachers

// CreateTeacher creates a teacher User, its Teacher profile, and links the former to the latter.
func (svc *Service) CreateTeacher(ctx context.Context, in school.NewTeacher) (school.Teacher, error) {
	if err := in.Validate(svc.opts.Validate); err != nil {
		return school.Teacher{}, err
	}

	now := svc.now().UTC()
	t := school.Teacher{
		ID:             core.NewID(),
		FullName:       in.FullName,
		CI:             in.CI,
		Email:          in.Email,
		Phone:          in.Phone,
		Specialization: in.Specialization,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	usr, err := svc.newUser(in.FullName, in.Email, in.Password, user.RoleTeacher, now)
	if err != nil {
		return school.Teacher{}, err
	}

	st := svc.opts.Store
	err = svc.withinTx(ctx, func(ctx context.Context) error {
		if err := svc.checkTeacherEmail(ctx, in.Email, ""); err != nil {
			return err
		}

		var err error
		if usr, err = st.Users.CreateUser(ctx, usr); err != nil {
			if user.IsDuplicateEmail(err) {
				return user.DuplicateEmailError("email")
			}
			return errors.Wrap(err, "creating user")
		}
		if t, err = st.Teachers.CreateTeacher(ctx, t); err != nil {
			return errors.Wrap(err, "creating teacher")
		}
		usr.TeacherID = t.ID
		usr, err = st.Users.UpdateUser(ctx, usr)
		return errors.Wrap(err, "linking user to teacher")
	})
	if err != nil {
		return school.Teacher{}, err
	}

	svc.send(welcomeMessage(usr, ""))
	return t, nil
}

// checkTeacherEmail fails with a duplicate email error when a User or a Teacher
// other than the teacher teacherID owns email.
func (svc *Service) checkTeacherEmail(ctx context.Context, email, teacherID string) error {
	st := svc.opts.Store

	var excluded []user.User
	if teacherID != "" {
		usrs, err := st.Users.QueryUsers(ctx, user.QueryFilter{Roles: []user.Role{user.RoleTeacher}})
		if err != nil {
			return errors.Wrap(err, "querying users")
		}
		for _, u := range usrs {
			if u.TeacherID == teacherID {
				excluded = append(excluded, u)
			}
		}
	}
	if err := user.CheckEmailUniqueness(ctx, st.Users, "email", email, excluded...); err != nil {
		return err
	}

	t, err := st.Teachers.GetTeacherByEmail(ctx, email)
	switch {
	case err == nil && t.ID != teacherID:
		return user.DuplicateEmailError("email")
	case err != nil && !core.IsNotFound(err):
		return errors.Wrap(err, "getting teacher")
	}
	return nil
}

// UpdateTeacher modifies teacherID and copies its name and email to the paired User.
func (svc *Service) UpdateTeacher(ctx context.Context, teacherID string, in school.UpdateTeacher) (school.Teacher, error) {
	st := svc.opts.Store

	var t school.Teacher
	err := svc.withinTx(ctx, func(ctx context.Context) error {
		var err error
		if t, err = st.Teachers.GetTeacherByID(ctx, teacherID); err != nil {
			return errors.Wrap(err, "getting teacher")
		}
		if err := in.Validate(svc.opts.Validate, t); err != nil {
			return err
		}
		if in.Email != t.Email {
			if err := svc.checkTeacherEmail(ctx, in.Email, t.ID); err != nil {
				return err
			}
		}

		usr, err := svc.teacherUser(ctx, t)
		if err != nil {
			return err
		}

		now := svc.now().UTC()
		t.FullName = in.FullName
		t.CI = in.CI
		t.Email = in.Email
		t.Phone = in.Phone
		t.Specialization = in.Specialization
		t.UpdatedAt = now
		if t, err = st.Teachers.UpdateTeacher(ctx, t); err != nil {
			return errors.Wrap(err, "updating teacher")
		}

		if usr == nil {
			return nil
		}
		usr.FullName = t.FullName
		usr.Email = t.Email
		usr.TeacherID = t.ID
		usr.UpdatedAt = now
		if _, err := st.Users.UpdateUser(ctx, *usr); err != nil {
			if user.IsDuplicateEmail(err) {
				return user.DuplicateEmailError("email")
			}
			return errors.Wrap(err, "updating user")
		}
		return nil
	})
	if err != nil {
		return school.Teacher{}, err
	}
	return t, nil
}

// teacherUser returns the User paired with t, or nil if there is none.
func (svc *Service) teacherUser(ctx context.Context, t school.Teacher) (*user.User, error) {
	usr, err := svc.opts.Store.Users.GetUserByEmail(ctx, t.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting user")
	}
	if !usr.IsTeacher() {
		return nil, nil
	}
	return &usr, nil
}

// DeleteTeacher deletes teacherID, its User and its area memberships.
func (svc *Service) DeleteTeacher(ctx context.Context, teacherID string) error {
	st := svc.opts.Store
	return svc.withinTx(ctx, func(ctx context.Context) error {
		t, err := st.Teachers.GetTeacherByID(ctx, teacherID)
		if err != nil {
			return errors.Wrap(err, "getting teacher")
		}
		usr, err := svc.teacherUser(ctx, t)
		if err != nil {
			return err
		}
		if err := svc.deleteTeacher(ctx, t); err != nil {
			return err
		}
		if usr == nil {
			return nil
		}
		return errors.Wrap(st.Users.DeleteUser(ctx, usr.ID), "deleting user")
	})
}

func (svc *Service) deleteTeacher(ctx context.Context, t school.Teacher) error {
	st := svc.opts.Store
	if err := st.Teachers.DeleteTeacher(ctx, t.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return errors.Wrap(st.Areas.RemoveTeacherFromAreas(ctx, t.ID), "removing teacher from areas")
}

// Users

// UpdateUser modifies userID and carries the change to the records copying its data:
// the Teacher profile of a teacher, the students of a representative.
func (svc *Service) UpdateUser(ctx context.Context, userID string, in user.UpdateUser) (user.User, error) {
	st := svc.opts.Store

	var usr user.User
	err := svc.withinTx(ctx, func(ctx context.Context) error {
		orig, err := st.Users.GetUserByID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "getting user")
		}
		if err := in.Validate(ctx, svc.opts.Validate, orig, st.Users); err != nil {
			return err
		}
		if in.Role != orig.Role {
			if err := svc.checkRoleChange(ctx, orig); err != nil {
				return err
			}
		}

		usr = orig
		usr.FullName = in.FullName
		usr.Email = in.Email
		usr.Role = in.Role
		usr.UpdatedAt = svc.now().UTC()
		if in.Password != "" {
			if err := usr.SetPassword(in.Password); err != nil {
				return err
			}
		}
		if usr, err = st.Users.UpdateUser(ctx, usr); err != nil {
			if user.IsDuplicateEmail(err) {
				return user.DuplicateEmailError("email")
			}
			return errors.Wrap(err, "updating user")
		}

		switch orig.Role {
		case user.RoleAdmin:
			return nil
		case user.RoleTeacher:
			return svc.propagateToTeacher(ctx, orig, usr)
		case user.RoleRepresentative:
			return svc.propagateToStudents(ctx, orig, usr)
		default:
			return nil
		}
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// checkRoleChange refuses to change the role of a user other records depend on.
func (svc *Service) checkRoleChange(ctx context.Context, orig user.User) error {
	inUse := core.NewValidationError(nil, core.FieldError{
		Field: "role",
		Error: "no se puede cambiar el rol de un usuario con registros asociados",
	})

	switch orig.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleTeacher:
		if orig.TeacherID != "" {
			return inUse
		}
		return nil
	case user.RoleRepresentative:
		students, err := svc.representedStudents(ctx, orig)
		if err != nil {
			return err
		}
		if len(students) > 0 {
			return inUse
		}
		return nil
	default:
		return nil
	}
}

func (svc *Service) propagateToTeacher(ctx context.Context, orig, usr user.User) error {
	if orig.TeacherID == "" || (orig.FullName == usr.FullName && orig.Email == usr.Email) {
		return nil
	}
	teachers := svc.opts.Store.Teachers

	t, err := teachers.GetTeacherByID(ctx, orig.TeacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "getting teacher")
	}
	t.FullName = usr.FullName
	t.Email = usr.Email
	t.UpdatedAt = usr.UpdatedAt
	_, err = teachers.UpdateTeacher(ctx, t)
	return errors.Wrap(err, "updating teacher")
}

func (svc *Service) propagateToStudents(ctx context.Context, orig, usr user.User) error {
	students := svc.opts.Store.Students
	if orig.FullName != usr.FullName {
		if _, err := students.RenameRepresentative(ctx, orig.Email, usr.FullName); err != nil {
			return errors.Wrap(err, "renaming representative")
		}
	}
	if orig.Email != usr.Email {
		if _, err := students.ReassignRepresentativeEmail(ctx, orig.Email, usr.Email); err != nil {
			return errors.Wrap(err, "changing representative email")
		}
		if _, err := svc.opts.Store.Messages.ReassignRepEmail(ctx, orig.Email, usr.Email); err != nil {
			return errors.Wrap(err, "changing messages recipient")
		}
	}
	return nil
}

// DeleteUser deletes userID and what depends on it: the Teacher profile of a teacher,
// or every student (with its records) of a representative.
func (svc *Service) DeleteUser(ctx context.Context, userID string) error {
	st := svc.opts.Store
	return svc.withinTx(ctx, func(ctx context.Context) error {
		usr, err := st.Users.GetUserByID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "getting user")
		}
		if err := st.Users.DeleteUser(ctx, usr.ID); err != nil {
			return errors.Wrap(err, "deleting user")
		}

		switch usr.Role {
		case user.RoleAdmin:
			return nil
		case user.RoleTeacher:
			t, err := svc.userTeacher(ctx, usr)
			if err != nil || t == nil {
				return err
			}
			return svc.deleteTeacher(ctx, *t)
		case user.RoleRepresentative:
			students, err := svc.representedStudents(ctx, usr)
			if err != nil {
				return err
			}
			return svc.deleteStudents(ctx, students...)
		default:
			return nil
		}
	})
}

// userTeacher returns the Teacher profile of usr, or nil if there is none.
func (svc *Service) userTeacher(ctx context.Context, usr user.User) (*school.Teacher, error) {
	teachers := svc.opts.Store.Teachers

	var (
		t   school.Teacher
		err error
	)
	if usr.TeacherID != "" {
		t, err = teachers.GetTeacherByID(ctx, usr.TeacherID)
	} else {
		t, err = teachers.GetTeacherByEmail(ctx, usr.Email)
	}
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting teacher")
	}
	return &t, nil
}

// Areas

// DeleteArea deletes areaID and its classroom schedule entries.
func (svc *Service) DeleteArea(ctx context.Context, areaID string) error {
	st := svc.opts.Store
	return svc.withinTx(ctx, func(ctx context.Context) error {
		if err := st.Areas.DeleteArea(ctx, areaID); err != nil {
			return errors.Wrap(err, "deleting area")
		}
		return errors.Wrap(st.Classrooms.RemoveAreaFromSchedules(ctx, areaID), "removing area from schedules")
	})
}
