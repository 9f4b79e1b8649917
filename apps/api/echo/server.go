// Package echoapi exposes the school services over HTTP.
package echoapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/access"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/core/dashboard"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/registry"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
)

type (
	Options struct {
		Address        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		AppName        string

		CookieName   string
		CookieSecure bool
		Location     *time.Location // calendar of "today" for events; time.Local when nil

		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Store      *store.Store

		AuthSvc      *auth.Service
		AccessSvc    *access.Service
		RegistrySvc  *registry.Service
		SchoolSvc    *school.Service
		MessageSvc   *message.Service
		DashboardSvc *dashboard.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		metrics  *metrics
		shutdown chan<- error
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. A *core.shutdown error raised by a handler is sent on shutdown.
func NewServer(opts *Options, shutdown chan<- error) Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &server{
		opts:     opts,
		app:      echo.New(),
		metrics:  newMetrics(),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware())
	s.app.Use(sessionMiddleware(s.opts.CookieName, s.opts.AuthSvc))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(s.metrics.handler()))

	authed := requireSession()
	admin := requireRole(adminRole)
	staff := requireRole(adminRole, teacherRole)

	registerAuthAPI(s.app, authed, s.opts, s.metrics)
	registerUserAPI(s.app, authed, admin, s.opts)
	registerTeacherAPI(s.app, authed, admin, s.opts)
	registerStudentAPI(s.app, authed, admin, staff, s.opts)
	registerRecordAPI(s.app, authed, staff, s.opts)
	registerAreaAPI(s.app, authed, admin, s.opts)
	registerClassroomAPI(s.app, authed, admin, s.opts)
	registerMessageAPI(s.app, authed, admin, s.opts)
	registerEventAPI(s.app, authed, admin, s.opts)
	registerDashboardAPI(s.app, authed, admin, s.opts)
}

func (s *server) signalShutdown(err error) {
	if s.shutdown == nil {
		return
	}
	select {
	case s.shutdown <- err:
	default: // already shutting down
	}
}

func (s *server) Start() error {
	err := s.app.Start(s.opts.Address)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "¡Bienvenido a la API de "+s.opts.AppName+"!")
}
