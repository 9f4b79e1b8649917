// Package auth checks credentials, opens sessions and handles password recovery.
package auth

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/session"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var (
	// errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")

	dummyHash     []byte
	dummyHashOnce sync.Once
)

// Landing pages per role.
const (
	LandingAdmin          = "/dashboard"
	LandingTeacher        = "/dashboard/teacher"
	LandingRepresentative = "/dashboard/representative"
)

type (
	// AttemptLimiter counts failed logins per key.
	AttemptLimiter interface {
		// Blocked reports whether key reached the allowed number of failures.
		Blocked(ctx context.Context, key string) (bool, error)
		Fail(ctx context.Context, key string) error
		Reset(ctx context.Context, key string) error
	}

	Credentials struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// Session is an opened session: the cookie value and where to send the user.
	Session struct {
		Token     string           `json:"-"`
		ExpiresAt time.Time        `json:"expiresAt"`
		Identity  session.Identity `json:"user"`
		Landing   string           `json:"redirect"`
	}

	// ResetGrant lets the holder choose a new password for UID.
	ResetGrant struct {
		UID   string `json:"uid"`
		Token string `json:"token"`
	}

	Options struct {
		Validate   *validator.Validate
		Users      user.Repository
		Codec      *session.Codec
		SessionTTL time.Duration
		Limiter    AttemptLimiter
		Tokens     *user.TokenGenerator
		Mailer     core.EmailService
		Logger     core.Logger
	}

	Service struct {
		opts Options
	}
)

func NewService(opts Options) *Service {
	return &Service{opts: opts}
}

// Landing returns the dashboard of role.
func Landing(role user.Role) string {
	switch role {
	case user.RoleAdmin:
		return LandingAdmin
	case user.RoleTeacher:
		return LandingTeacher
	case user.RoleRepresentative:
		return LandingRepresentative
	default:
		return "/"
	}
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

// Login checks creds and opens a session.
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
func (svc *Service) Login(ctx context.Context, creds Credentials) (Session, error) {
	if err := creds.Validate(svc.opts.Validate); err != nil {
		return Session{}, err
	}

	key := creds.Email
	blocked, err := svc.opts.Limiter.Blocked(ctx, key)
	if err != nil {
		return Session{}, errors.Wrap(err, "checking login attempts")
	}
	if blocked {
		return Session{}, ErrTooManyAttempts
	}

	usr, err := svc.opts.Users.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		if !core.IsNotFound(err) {
			return Session{}, errors.Wrap(err, "getting user")
		}
		// same bcrypt work as for a known user
		_ = bcrypt.CompareHashAndPassword(getDummyHash(), []byte(creds.Password))
		return Session{}, svc.failLogin(ctx, key)
	}
	if err := usr.CheckPassword(creds.Password); err != nil {
		return Session{}, svc.failLogin(ctx, key)
	}

	if err := svc.opts.Limiter.Reset(ctx, key); err != nil {
		svc.opts.Logger.Warn("auth: resetting login attempts", err)
	}
	return svc.open(usr)
}

func (svc *Service) failLogin(ctx context.Context, key string) error {
	if err := svc.opts.Limiter.Fail(ctx, key); err != nil {
		svc.opts.Logger.Warn("auth: counting failed login", err)
	}
	return ErrInvalidCredentials
}

func (svc *Service) open(usr user.User) (Session, error) {
	id := session.IdentityOf(usr)
	token, expiresAt, err := svc.opts.Codec.Issue(id, svc.opts.SessionTTL)
	if err != nil {
		return Session{}, errors.Wrap(err, "issuing session")
	}
	return Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  id,
		Landing:   Landing(usr.Role),
	}, nil
}

// Session returns the identity of a session cookie value, refreshed from the stored user.
// Tokens of deleted users are rejected; a changed role or name applies at once.
func (svc *Service) Session(ctx context.Context, token string) (session.Identity, bool, error) {
	id, ok := svc.opts.Codec.Verify(token)
	if !ok {
		return session.Identity{}, false, nil
	}
	usr, err := svc.opts.Users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return session.Identity{}, false, nil
		}
		return session.Identity{}, false, errors.Wrap(err, "getting session user")
	}
	return session.IdentityOf(usr), true, nil
}

// Register creates a User.
func (svc *Service) Register(ctx context.Context, nu user.NewUser) (user.User, error) {
	if err := nu.Validate(ctx, svc.opts.Validate, svc.opts.Users); err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:        core.NewID(),
		FullName:  nu.FullName,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return user.User{}, err
	}

	usr, err := svc.opts.Users.CreateUser(ctx, usr)
	if err != nil {
		if user.IsDuplicateEmail(err) { // lost a race with another insert
			return user.User{}, user.DuplicateEmailError("email")
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// SecurityQuestions lists the questions of the user owning email.
// Unknown emails and users without questions yield an empty list.
func (svc *Service) SecurityQuestions(ctx context.Context, email string) ([]string, error) {
	usr, err := svc.opts.Users.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "getting user")
	}
	return usr.Questions(), nil
}

// SetSecurityQuestions replaces the questions of userID.
func (svc *Service) SetSecurityQuestions(ctx context.Context, userID string, in user.SetSecurityQuestions) error {
	if err := in.Validate(svc.opts.Validate); err != nil {
		return err
	}
	usr, err := svc.opts.Users.GetUserByID(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	if err := usr.SetSecurityQuestions(in.Questions); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.opts.Users.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// VerifySecurityAnswers returns a password reset grant when every answer matches.
// Failures are counted like failed logins.
func (svc *Service) VerifySecurityAnswers(ctx context.Context, in user.SecurityAnswers) (ResetGrant, error) {
	if err := in.Validate(svc.opts.Validate); err != nil {
		return ResetGrant{}, err
	}

	key := "recovery:" + in.Email
	blocked, err := svc.opts.Limiter.Blocked(ctx, key)
	if err != nil {
		return ResetGrant{}, errors.Wrap(err, "checking recovery attempts")
	}
	if blocked {
		return ResetGrant{}, ErrTooManyAttempts
	}

	usr, err := svc.opts.Users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if !core.IsNotFound(err) {
			return ResetGrant{}, errors.Wrap(err, "getting user")
		}
		return ResetGrant{}, svc.failLogin(ctx, key)
	}
	if !usr.CheckSecurityAnswers(in.Answers) {
		return ResetGrant{}, svc.failLogin(ctx, key)
	}

	if err := svc.opts.Limiter.Reset(ctx, key); err != nil {
		svc.opts.Logger.Warn("auth: resetting recovery attempts", err)
	}
	return ResetGrant{UID: user.EncodeUID(usr), Token: svc.opts.Tokens.MakeToken(usr)}, nil
}

// ResetPassword sets a new password for the user named by a reset grant.
func (svc *Service) ResetPassword(ctx context.Context, in user.ResetUserPassword) error {
	if err := in.Validate(svc.opts.Validate); err != nil {
		return err
	}

	uid, err := user.DecodeUID(in.UID)
	if err != nil {
		return invalidGrantError(err)
	}
	usr, err := svc.opts.Users.GetUserByID(ctx, uid)
	if err != nil {
		if core.IsNotFound(err) {
			return invalidGrantError(user.ErrInvalidToken)
		}
		return errors.Wrap(err, "getting user")
	}
	if err := svc.opts.Tokens.VerifyToken(usr, in.Token); err != nil {
		return invalidGrantError(err)
	}

	if err := usr.SetPassword(in.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if usr, err = svc.opts.Users.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}

	svc.opts.Mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Su contraseña fue restablecida",
		TemplateName: "password_changed",
		TemplateData: map[string]interface{}{"FullName": usr.FullName},
	})
	return nil
}

func invalidGrantError(err error) error {
	return core.NewValidationError(err, core.FieldError{
		Field: "token",
		Error: "el enlace de recuperación no es válido o ha expirado",
	})
}

func getDummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("caipa-dummy-password"), user.PasswordCost)
	})
	return dummyHash
}
