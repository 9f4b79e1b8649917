// Package di wires the API dependencies into a dig.Container.
package di

import (
	"context"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/ja-viss/caipa-connect-sub000/apps/api/echo"
	"github.com/ja-viss/caipa-connect-sub000/assets"
	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/access"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/core/dashboard"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/registry"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/session"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
	emailsvc "github.com/ja-viss/caipa-connect-sub000/services/email"
	logsvc "github.com/ja-viss/caipa-connect-sub000/services/logger"
	"github.com/ja-viss/caipa-connect-sub000/services/throttle"
	"github.com/ja-viss/caipa-connect-sub000/storage/database/inmemdb"
	"github.com/ja-viss/caipa-connect-sub000/storage/database/mongodb"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Database is the opened store and how to release it.
	Database struct {
		Store *store.Store
		Close func(ctx context.Context) error
	}

	// Shutdown receives the errors asking the API to stop.
	Shutdown chan error

	serverParams struct {
		dig.In

		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		DB           *Database
		Location     *time.Location
		Shutdown     Shutdown
		AuthSvc      *auth.Service
		AccessSvc    *access.Service
		RegistrySvc  *registry.Service
		SchoolSvc    *school.Service
		MessageSvc   *message.Service
		DashboardSvc *dashboard.Service
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newLocation(conf *core.Config) (*time.Location, error) {
	return conf.Location()
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*Database, error) {
	logger := loggerParam.Logger

	if conf.Database.Engine == core.EngineMemory {
		logger.Warn("using the in-memory database: data is lost on exit")
		return &Database{
			Store: inmemdb.NewStore(inmemdb.Open()),
			Close: func(context.Context) error { return nil },
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout+30*time.Second)
	defer cancel()

	db, err := mongodb.Open(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening mongodb")
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, errors.Wrap(err, "ensuring indexes")
	}
	logger.Info("connected to mongodb database " + conf.Database.Name)
	return &Database{Store: mongodb.NewStore(db), Close: db.Close}, nil
}

func newValidator(conf *core.Config) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator(conf.Locale)
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate)
	message.InitValidators(validate, translator)
	return validate, translator
}

func newEmailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	if err := core.ParseEmailTemplates(assets.FS, false); err != nil {
		return nil, errors.Wrap(err, "parsing email templates")
	}
	opts := emailsvc.OptionsFromConfig(conf, logger)
	if conf.Debug {
		return emailsvc.NewConsoleService(opts, log.New(os.Stdout, "MAIL : ", 0)), nil
	}
	return emailsvc.NewSendgridService(conf.SendgridApiKey, opts), nil
}

// newLimiter shares the login counters through redis when it is configured.
func newLimiter(conf *core.Config, logger core.Logger) (auth.AttemptLimiter, error) {
	if conf.Redis.Address == "" {
		return throttle.NewMemoryLimiter(conf.Login.MaxAttempts, conf.Login.Lockout), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, err := throttle.NewRedisClient(ctx, conf.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info("login attempts are counted in redis at " + conf.Redis.Address)
	return throttle.NewRedisLimiter(rdb, conf.Login.MaxAttempts, conf.Login.Lockout), nil
}

func newCodec(conf *core.Config) *session.Codec {
	return session.NewCodec([]byte(conf.SecretKey), conf.AppName)
}

func newTokenGenerator(conf *core.Config) *user.TokenGenerator {
	return user.NewTokenGenerator(conf.SecretKey, conf.PasswordResetTimeout)
}

func newAuthService(
	conf *core.Config,
	validate *validator.Validate,
	db *Database,
	codec *session.Codec,
	limiter auth.AttemptLimiter,
	tokens *user.TokenGenerator,
	mailer core.EmailService,
	logger core.Logger,
) *auth.Service {
	return auth.NewService(auth.Options{
		Validate:   validate,
		Users:      db.Store.Users,
		Codec:      codec,
		SessionTTL: conf.Session.TTL,
		Limiter:    limiter,
		Tokens:     tokens,
		Mailer:     mailer,
		Logger:     logger,
	})
}

func newAccessService(db *Database) *access.Service {
	return access.NewService(db.Store)
}

func newRegistryService(validate *validator.Validate, db *Database, mailer core.EmailService, logger core.Logger) *registry.Service {
	return registry.NewService(registry.Options{Validate: validate, Store: db.Store, Mailer: mailer, Logger: logger})
}

func newSchoolService(validate *validator.Validate, db *Database) *school.Service {
	return school.NewService(validate, db.Store.Repositories)
}

func newMessageService(validate *validator.Validate, db *Database) *message.Service {
	st := db.Store
	return message.NewService(validate, st.Tx, st.Messages, st.Users, st.Teachers)
}

func newDashboardService(conf *core.Config, db *Database, loc *time.Location) *dashboard.Service {
	return dashboard.NewService(dashboard.Options{
		Store:       db.Store,
		RecentLimit: conf.Dashboard.RecentLimit,
		Location:    loc,
	})
}

func newShutdown() Shutdown {
	return make(Shutdown, 1)
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:      p.Conf.Server.Address,
		Debug:        p.Conf.Debug,
		TestMode:     p.Conf.TestMode,
		AppName:      p.Conf.AppName,
		CookieName:   p.Conf.Session.CookieName,
		CookieSecure: p.Conf.Session.Secure,
		Location:     p.Location,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		Store:        p.DB.Store,
		AuthSvc:      p.AuthSvc,
		AccessSvc:    p.AccessSvc,
		RegistrySvc:  p.RegistrySvc,
		SchoolSvc:    p.SchoolSvc,
		MessageSvc:   p.MessageSvc,
		DashboardSvc: p.DashboardSvc,
	}, p.Shutdown)
}

type provider struct {
	ctor interface{}
	opts []dig.ProvideOption
}

// New returns the API container. conf is provided as is when not nil, and loaded
// with core.NewConfig otherwise.
func New(conf *core.Config) (*dig.Container, error) {
	c := dig.New()

	configProvider := provider{ctor: core.NewConfig}
	if conf != nil {
		configProvider = provider{ctor: func() *core.Config { return conf }}
	}

	providers := []provider{
		configProvider,
		{ctor: newLogger},
		{ctor: newDBLogger, opts: []dig.ProvideOption{dig.Name("dbLogger")}},
		{ctor: newLocation},
		{ctor: newDB},
		{ctor: newValidator},
		{ctor: newEmailService},
		{ctor: newLimiter},
		{ctor: newCodec},
		{ctor: newTokenGenerator},
		{ctor: newAuthService},
		{ctor: newAccessService},
		{ctor: newRegistryService},
		{ctor: newSchoolService},
		{ctor: newMessageService},
		{ctor: newDashboardService},
		{ctor: newShutdown},
		{ctor: newServer},
	}
	for _, p := range providers {
		if err := c.Provide(p.ctor, p.opts...); err != nil {
			return nil, errors.Wrap(err, "failed to provide dependency")
		}
	}
	return c, nil
}
