package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

// Role is the closed set of portals a User can sign into.
type Role string

// Roles
const (
	RoleAdmin          Role = "admin"
	RoleTeacher        Role = "teacher"
	RoleRepresentative Role = "representative"
)

var (
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleRepresentative}

	// PasswordCost is the bcrypt cost used when hashing passwords and security answers.
	PasswordCost = bcrypt.DefaultCost // mockable

	errUnknownRole = errors.New("unknown role")
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleRepresentative:
		return true
	default:
		return false
	}
}

// Label is the Spanish name of the role shown to users.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "administrador"
	case RoleTeacher:
		return "docente"
	case RoleRepresentative:
		return "representante"
	default:
		return string(r)
	}
}

// ParseRole returns the Role matching s (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.Valid() {
		return "", errors.Wrap(errUnknownRole, s)
	}
	return r, nil
}

type SecurityQuestion struct {
	Question   string `bson:"question" json:"question"`
	AnswerHash []byte `bson:"answerHash" json:"-"`
}

type User struct {
	ID                string             `bson:"id" json:"id"`
	FullName          string             `bson:"fullName" json:"fullName"`
	Email             string             `bson:"email" json:"email"`
	PasswordHash      []byte             `bson:"passwordHash" json:"-"`
	Role              Role               `bson:"role" json:"role"`
	TeacherID         string             `bson:"teacherId,omitempty" json:"teacherId,omitempty"`
	SecurityQuestions []SecurityQuestion `bson:"securityQuestions,omitempty" json:"securityQuestions,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"` // UTC
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), PasswordCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool          { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool        { return u.Role == RoleTeacher }
func (u *User) IsRepresentative() bool { return u.Role == RoleRepresentative }

// SetSecurityQuestions replaces the user's questions, hashing every normalised answer.
func (u *User) SetSecurityQuestions(questions []NewSecurityQuestion) error {
	sqs := make([]SecurityQuestion, 0, len(questions))
	for _, q := range questions {
		hash, err := bcrypt.GenerateFromPassword([]byte(normaliseAnswer(q.Answer)), PasswordCost)
		if err != nil {
			return errors.Wrap(err, "hashing security answer")
		}
		sqs = append(sqs, SecurityQuestion{Question: core.CleanString(q.Question), AnswerHash: hash})
	}
	u.SecurityQuestions = sqs
	return nil
}

// CheckSecurityAnswers reports whether answers match every security question, in order.
func (u *User) CheckSecurityAnswers(answers []string) bool {
	if len(u.SecurityQuestions) == 0 || len(answers) != len(u.SecurityQuestions) {
		return false
	}
	ok := true
	for i, q := range u.SecurityQuestions {
		// no early return: timing must not tell which answer failed
		if bcrypt.CompareHashAndPassword(q.AnswerHash, []byte(normaliseAnswer(answers[i]))) != nil {
			ok = false
		}
	}
	return ok
}

// Questions returns the question texts.
func (u *User) Questions() []string {
	qs := make([]string, 0, len(u.SecurityQuestions))
	for _, q := range u.SecurityQuestions {
		qs = append(qs, q.Question)
	}
	return qs
}

func normaliseAnswer(answer string) string {
	return strings.Join(strings.Fields(strings.ToLower(answer)), " ")
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	FullName        string `json:"fullName" validate:"required,notblank,max=120"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"omitempty,eqfield=Password"`
	Role            Role   `json:"role" validate:"required,role"`
}

func (nu *NewUser) Clean() {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
}

// Validate cleans then validates nu, and checks that its email is not taken.
func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, repo Repository) error {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return CheckEmailUniqueness(ctx, repo, "email", nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields keep their current value.
type UpdateUser struct {
	FullName        string `json:"fullName" validate:"omitempty,notblank,max=120"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required_with=Password,eqfield=Password"`
}

// Validate fills the blanks of uu from origUsr, validates it, and checks that a new email is not taken.
func (uu *UpdateUser) Validate(ctx context.Context, validate *validator.Validate, origUsr User, repo Repository) error {
	if name := core.CleanString(uu.FullName); name != "" {
		uu.FullName = name
	} else {
		uu.FullName = origUsr.FullName
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if role := Role(core.CleanString(string(uu.Role), true /* lower */)); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return CheckEmailUniqueness(ctx, repo, "email", uu.Email, origUsr)
}

type NewSecurityQuestion struct {
	Question string `json:"question" validate:"required,notblank,max=200"`
	Answer   string `json:"answer" validate:"required,notblank,max=200"`
}

type SetSecurityQuestions struct {
	Questions []NewSecurityQuestion `json:"questions" validate:"required,min=1,max=5,dive"`
}

func (sq SetSecurityQuestions) Validate(validate *validator.Validate) error {
	return validate.Struct(sq)
}

type SecurityAnswers struct {
	Email   string   `json:"email" validate:"required,email"`
	Answers []string `json:"answers" validate:"required,min=1,dive,required"`
}

func (sa *SecurityAnswers) Validate(validate *validator.Validate) error {
	sa.Email = core.CleanString(sa.Email, true /* lower */)
	return validate.Struct(sa)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search string `query:"search"`
	Roles  []Role `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether usr satisfies every set field of qf.
// Search is a case-insensitive match on the name or the email.
func (qf *QueryFilter) Match(usr User) bool {
	if len(qf.Roles) > 0 {
		found := false
		for _, r := range qf.Roles {
			if usr.Role == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		return strings.Contains(strings.ToLower(usr.FullName), s) || strings.Contains(usr.Email, s)
	}
	return true
}
