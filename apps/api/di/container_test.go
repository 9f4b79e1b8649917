package di

import (
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/ja-viss/caipa-connect-sub000/apps/api/echo"
	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/services/throttle"
)

func testConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Debug:            true,
		TestMode:         true,
		AppName:          "CAIPA Connect",
		Locale:           "es",
		Timezone:         "America/Caracas",
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "CAIPA", Address: "noreply@caipa.test"},
		Session:          core.SessionConfig{CookieName: "session", TTL: time.Hour},
		Database:         core.DatabaseConfig{Engine: core.EngineMemory},
		Login:            core.LoginConfig{MaxAttempts: 5, Lockout: time.Minute},
	}
}

func TestNew(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)

	err = c.Invoke(func(server echoapi.Server, limiter auth.AttemptLimiter, loc *time.Location, db *Database) {
		assert.IsType(t, &throttle.MemoryLimiter{}, limiter, "memory limiter without redis")
		assert.Equal(t, "America/Caracas", loc.String())
		assert.NotNil(t, db.Store.Users)

		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	require.NoError(t, err)
}

func TestNew_badTimezone(t *testing.T) {
	conf := testConfig()
	conf.Timezone = "Mars/Olympus"
	c, err := New(conf)
	require.NoError(t, err)

	err = c.Invoke(func(*time.Location) {})
	assert.Error(t, err)
}
