package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineMongoDB = "mongodb"
	EngineMemory  = "memory"
)

type (
	Config struct {
		Env                  string
		Build                string
		Debug                bool
		TestMode             bool
		AppName              string
		Locale               string
		Timezone             string // IANA name of the school calendar, or "Local"
		SecretKey            string
		FrontendBaseURL      string
		DefaultFromEmail     mail.Address
		RollbarToken         string
		SendgridApiKey       string
		PasswordResetTimeout time.Duration

		Server    ServerConfig
		Session   SessionConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Login     LoginConfig
		Dashboard DashboardConfig
	}

	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	SessionConfig struct {
		CookieName string
		TTL        time.Duration
		Secure     bool
	}

	DatabaseConfig struct {
		Engine         string
		URI            string
		Name           string
		Transactions   bool
		ConnectTimeout time.Duration
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	LoginConfig struct {
		MaxAttempts int
		Lockout     time.Duration
	}

	DashboardConfig struct {
		RecentLimit int
	}
)

// NewConfig loads the configuration from defaults, an optional dotenv file and the environment.
//
// ENV selects both the dotenv file (config/.env.<env>) and the prefix of the environment
// variables, e.g. with ENV=PROD the secret key is read from PROD_SECRETKEY and the
// database URI from PROD_DATABASE_URI.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "CAIPA Connect")
	v.SetDefault("locale", "es")
	v.SetDefault("timezone", "Local")
	v.SetDefault("secretKey", "x9!caipa-dev-only#q2v@7mz$kr4(u1w)np8e+h3")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "CAIPA Connect <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeout", 24*time.Hour)
	v.SetDefault("testMode", false)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("session.cookieName", "session")
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("database.engine", EngineMongoDB)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "school")
	v.SetDefault("database.transactions", true)
	v.SetDefault("database.connectTimeout", 10*time.Second)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("login.maxAttempts", 5)
	v.SetDefault("login.lockout", 15*time.Minute)

	v.SetDefault("dashboard.recentLimit", 5)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	confDir := os.Getenv("CAIPA_CONFIG_DIR")
	if confDir == "" {
		confDir = filepath.Join(Getwd(), "config")
	}
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:                  env,
		Build:                v.GetString("build"),
		Debug:                v.GetBool("debug"),
		TestMode:             v.GetBool("testMode"),
		AppName:              v.GetString("appName"),
		Locale:               v.GetString("locale"),
		Timezone:             v.GetString("timezone"),
		SecretKey:            v.GetString("secretKey"),
		FrontendBaseURL:      strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:         v.GetString("rollbarToken"),
		SendgridApiKey:       v.GetString("sendgridApiKey"),
		PasswordResetTimeout: v.GetDuration("passwordResetTimeout"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Session: SessionConfig{
			CookieName: v.GetString("session.cookieName"),
			TTL:        v.GetDuration("session.ttl"),
			Secure:     v.GetBool("session.secure"),
		},
		Database: DatabaseConfig{
			Engine:         strings.ToLower(v.GetString("database.engine")),
			URI:            v.GetString("database.uri"),
			Name:           v.GetString("database.name"),
			Transactions:   v.GetBool("database.transactions"),
			ConnectTimeout: v.GetDuration("database.connectTimeout"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Login: LoginConfig{
			MaxAttempts: v.GetInt("login.maxAttempts"),
			Lockout:     v.GetDuration("login.lockout"),
		},
		Dashboard: DashboardConfig{
			RecentLimit: v.GetInt("dashboard.recentLimit"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing defaultFromEmail")
	}
	conf.DefaultFromEmail = *from

	if !conf.Debug {
		conf.Session.Secure = true
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("config: secretKey is required")
	}
	if !c.Debug && len(c.SecretKey) < 32 {
		return errors.New("config: secretKey must be at least 32 characters outside debug mode")
	}
	switch c.Database.Engine {
	case EngineMongoDB, EngineMemory:
	default:
		return errors.Errorf("config: unknown database engine %q", c.Database.Engine)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session.ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return errors.New("config: session.cookieName is required")
	}
	if c.Login.MaxAttempts < 0 {
		return errors.New("config: login.maxAttempts cannot be negative")
	}
	return nil
}

// Location returns the time zone the school days and weeks are counted in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	return loc, errors.Wrapf(err, "config: unknown timezone %q", c.Timezone)
}
