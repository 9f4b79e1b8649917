package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ja-viss/caipa-connect-sub000/core/access"
	"github.com/ja-viss/caipa-connect-sub000/core/auth"
	"github.com/ja-viss/caipa-connect-sub000/core/dashboard"
	"github.com/ja-viss/caipa-connect-sub000/core/message"
	"github.com/ja-viss/caipa-connect-sub000/core/registry"
	"github.com/ja-viss/caipa-connect-sub000/core/school"
	"github.com/ja-viss/caipa-connect-sub000/core/session"
	"github.com/ja-viss/caipa-connect-sub000/core/store"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
	"github.com/ja-viss/caipa-connect-sub000/services/throttle"
	"github.com/ja-viss/caipa-connect-sub000/storage/database/inmemdb"
	testutil "github.com/ja-viss/caipa-connect-sub000/tests"
)

const cookieName = "session"

type app struct {
	Server
	st    *store.Store
	db    *inmemdb.DB
	codec *session.Codec
}

func setup(t *testing.T) *app {
	t.Helper()
	st, db := testutil.NewStore()
	validate, translator := testutil.NewValidator()
	logger := testutil.NewLogger()
	mailer := testutil.NewMailer(t)
	codec := session.NewCodec([]byte("test-secret"), "caipa-test")

	authSvc := auth.NewService(auth.Options{
		Validate:   validate,
		Users:      st.Users,
		Codec:      codec,
		SessionTTL: time.Hour,
		Limiter:    throttle.NewMemoryLimiter(5, 15*time.Minute),
		Tokens:     user.NewTokenGenerator("test-secret", time.Hour),
		Mailer:     mailer,
		Logger:     logger,
	})
	srv := NewServer(&Options{
		TestMode:       true,
		DisableReqLogs: true,
		AppName:        "CAIPA Connect",
		CookieName:     cookieName,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Store:          st,
		AuthSvc:        authSvc,
		AccessSvc:      access.NewService(st),
		RegistrySvc:    registry.NewService(registry.Options{Validate: validate, Store: st, Mailer: mailer, Logger: logger}),
		SchoolSvc:      school.NewService(validate, st.Repositories),
		MessageSvc:     message.NewService(validate, st.Tx, st.Messages, st.Users, st.Teachers),
		DashboardSvc:   dashboard.NewService(dashboard.Options{Store: st}),
	}, nil)

	return &app{Server: srv, st: st, db: db, codec: codec}
}

func (a *app) cookie(t *testing.T, usr user.User) string {
	t.Helper()
	token, _, err := a.codec.Issue(session.IdentityOf(usr), time.Hour)
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	return token
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	cookie   string
	wantCode int
	wantData interface{}
}

func (a *app) do(t *testing.T, method, path, cookie string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func (a *app) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := a.do(t, method, tt.path, tt.cookie, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v (body %s)", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	want, err := json.Marshal(tt.wantData)
	if err != nil {
		t.Fatalf("marshalling wantData: %v", err)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), want)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(want))
	}
}

func errBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

func TestHome(t *testing.T) {
	a := setup(t)
	rec := a.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CAIPA Connect")
}

func TestAuthApi_login(t *testing.T) {
	a := setup(t)
	testutil.CreateTeacher(t, a.st, "Ana Pérez", "ana@caipa.com", "secret1")

	t.Run("invalid credentials", func(t *testing.T) {
		for _, body := range []auth.Credentials{
			{Email: "ana@caipa.com", Password: "wrong1"},
			{Email: "nadie@caipa.com", Password: "secret1"},
		} {
			rec := a.do(t, http.MethodPost, "/auth/login", "", body)
			checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: errBody(msgInvalidCredentials)}, rec)
			assert.Empty(t, rec.Result().Cookies(), "no session cookie is set")
		}
	})

	t.Run("validation", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/auth/login", "", auth.Credentials{Email: "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body errorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		assert.False(t, body.Success)
		assert.Contains(t, body.Errors, "email")
		assert.Contains(t, body.Errors, "password")
	})

	t.Run("success", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/auth/login", "", auth.Credentials{Email: " ANA@caipa.com", Password: "secret1"})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Success  bool             `json:"success"`
			User     session.Identity `json:"user"`
			Redirect string           `json:"redirect"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		assert.True(t, body.Success)
		assert.Equal(t, "/dashboard/teacher", body.Redirect)
		assert.Equal(t, "ana@caipa.com", body.User.Email)

		cookies := rec.Result().Cookies()
		if assert.Len(t, cookies, 1) {
			c := cookies[0]
			assert.Equal(t, cookieName, c.Name)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
			assert.WithinDuration(t, time.Now().Add(time.Hour), c.Expires, time.Minute)

			sess := a.do(t, http.MethodGet, "/auth/session", c.Value, nil)
			assert.Equal(t, http.StatusOK, sess.Code)
			assert.Contains(t, sess.Body.String(), "ana@caipa.com")
		}
	})
}

func TestAuthApi_session(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.st.Users, "Admin", "admin@caipa.com", "secret1", user.RoleAdmin)

	a.run(t, []httpTest{
		{name: "no cookie", path: "/auth/session", wantCode: http.StatusUnauthorized, wantData: errBody(msgUnauthorized)},
		{name: "forged cookie", path: "/auth/session", cookie: "not.a.token", wantCode: http.StatusUnauthorized},
		{
			name: "valid", path: "/auth/session", cookie: a.cookie(t, admin), wantCode: http.StatusOK,
			wantData: map[string]interface{}{"user": session.IdentityOf(admin), "redirect": "/dashboard"},
		},
	})

	rec := a.do(t, http.MethodPost, "/auth/logout", a.cookie(t, admin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	if cookies := rec.Result().Cookies(); assert.Len(t, cookies, 1) {
		assert.Empty(t, cookies[0].Value)
		assert.Negative(t, cookies[0].MaxAge)
	}

	t.Run("deleted user", func(t *testing.T) {
		gone := testutil.CreateUser(t, a.st.Users, "Luis", "luis@caipa.com", "", user.RoleAdmin)
		cookie := a.cookie(t, gone)
		if err := a.st.Users.DeleteUser(context.Background(), gone.ID); err != nil {
			t.Fatalf("DeleteUser() failed: %v", err)
		}
		rec := a.do(t, http.MethodGet, "/users", cookie, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserApi(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.st.Users, "Admin", "admin@caipa.com", "secret1", user.RoleAdmin)
	_, teacher := testutil.CreateTeacher(t, a.st, "Ana Pérez", "ana@caipa.com", "secret1")
	adminCookie, teacherCookie := a.cookie(t, admin), a.cookie(t, teacher)

	a.run(t, []httpTest{
		{name: "auth required", path: "/users", wantCode: http.StatusUnauthorized, wantData: errBody(msgUnauthorized)},
		{name: "admin required", path: "/users", cookie: teacherCookie, wantCode: http.StatusForbidden, wantData: errBody(msgForbidden)},
		{name: "list", path: "/users", cookie: adminCookie, wantCode: http.StatusOK, wantData: []user.User{admin, teacher}},
		{name: "list by role", path: "/users?role=teacher", cookie: adminCookie, wantCode: http.StatusOK, wantData: []user.User{teacher}},
		{name: "get self", path: "/users/" + teacher.ID, cookie: teacherCookie, wantCode: http.StatusOK, wantData: teacher},
		{name: "get other", path: "/users/" + admin.ID, cookie: teacherCookie, wantCode: http.StatusForbidden},
		{name: "get unknown", path: "/users/nope", cookie: adminCookie, wantCode: http.StatusNotFound, wantData: errBody(msgNotFound)},
		{
			name: "own role change", method: http.MethodPut, path: "/users/" + teacher.ID, cookie: teacherCookie,
			body:     user.UpdateUser{Role: user.RoleAdmin},
			wantCode: http.StatusBadRequest, wantData: errorResponse{Errors: map[string]string{"role": errNoPermsToSetRole}},
		},
		{
			name: "delete self", method: http.MethodDelete, path: "/users/" + admin.ID, cookie: adminCookie,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "create duplicate", method: http.MethodPost, path: "/users", cookie: adminCookie,
			body:     user.NewUser{FullName: "Otra", Email: "ana@caipa.com", Password: "secret1", Role: user.RoleAdmin},
			wantCode: http.StatusBadRequest, wantData: errorResponse{Errors: map[string]string{"email": "ya existe un usuario con este correo"}},
		},
	})

	t.Run("create then login", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/users", adminCookie, user.NewUser{
			FullName: "Luis Rojas", Email: "luis@caipa.com", Password: "secret1", Role: user.RoleRepresentative,
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "passwordHash")

		rec = a.do(t, http.MethodPost, "/auth/login", "", auth.Credentials{Email: "luis@caipa.com", Password: "secret1"})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/dashboard/representative")
	})

	t.Run("delete teacher user", func(t *testing.T) {
		rec := a.do(t, http.MethodDelete, "/users/"+teacher.ID, adminCookie, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		n, _ := a.st.Teachers.CountTeachers(context.Background())
		assert.Zero(t, n)
	})
}

func TestStudentApi_scope(t *testing.T) {
	a := setup(t)
	tch, teacher := testutil.CreateTeacher(t, a.st, "Ana Pérez", "ana@caipa.com", "secret1")
	rep := testutil.CreateUser(t, a.st.Users, "Rosa Díaz", "rosa@caipa.com", "secret1", user.RoleRepresentative)
	carlos := testutil.CreateStudent(t, a.st, "Carlos Díaz", "Rosa Díaz", "rosa@caipa.com", rep)
	maria := testutil.CreateStudent(t, a.st, "María Gil", "Pedro Gil", "pedro@caipa.com", user.User{})
	testutil.CreateArea(t, a.st, "Lenguaje", []string{tch.ID}, []string{maria.ID})
	log := testutil.CreateActivityLog(t, a.st, carlos.ID, time.Now().Add(-time.Hour))

	teacherCookie, repCookie := a.cookie(t, teacher), a.cookie(t, rep)

	a.run(t, []httpTest{
		{name: "teacher list", path: "/students", cookie: teacherCookie, wantCode: http.StatusOK, wantData: []school.Student{maria}},
		{name: "teacher out of scope", path: "/students/" + carlos.ID, cookie: teacherCookie, wantCode: http.StatusNotFound},
		{name: "rep list", path: "/students", cookie: repCookie, wantCode: http.StatusOK, wantData: []school.Student{carlos}},
		{name: "rep own", path: "/students/mine", cookie: repCookie, wantCode: http.StatusOK, wantData: carlos},
		{name: "mine for teachers", path: "/students/mine", cookie: teacherCookie, wantCode: http.StatusForbidden},
		{name: "rep other", path: "/students/" + maria.ID, cookie: repCookie, wantCode: http.StatusNotFound},
		{name: "rep logs", path: "/students/" + carlos.ID + "/activity-logs", cookie: repCookie, wantCode: http.StatusOK, wantData: []school.ActivityLog{log}},
		{name: "teacher log out of scope", path: "/activity-logs/" + log.ID, cookie: teacherCookie, wantCode: http.StatusNotFound},
		{name: "rep cannot write logs", method: http.MethodPost, path: "/students/" + carlos.ID + "/activity-logs", cookie: repCookie, body: school.NewActivityLog{}, wantCode: http.StatusForbidden},
		{name: "rep cannot delete", method: http.MethodDelete, path: "/students/" + carlos.ID, cookie: repCookie, wantCode: http.StatusForbidden},
	})

	t.Run("teacher writes a log", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/students/"+maria.ID+"/activity-logs", teacherCookie, school.NewActivityLog{
			Date: time.Now().UTC(), Achievements: "Leyó un cuento completo",
		})
		if assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
			var got school.ActivityLog
			_ = json.Unmarshal(rec.Body.Bytes(), &got)
			assert.Equal(t, "Ana Pérez", got.Teacher)
			assert.Equal(t, maria.ID, got.StudentID)
		}
	})
}

func TestMessageApi(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.st.Users, "Admin", "admin@caipa.com", "secret1", user.RoleAdmin)
	rep := testutil.CreateUser(t, a.st.Users, "Rosa Díaz", "rosa@caipa.com", "secret1", user.RoleRepresentative)
	adminCookie, repCookie := a.cookie(t, admin), a.cookie(t, rep)

	rec := a.do(t, http.MethodPost, "/messages", adminCookie, message.NewMessage{
		Recipient: message.Recipient{Kind: message.ToRep, ID: "rosa@caipa.com"},
		Subject:   "Reunión",
		Body:      "Le esperamos el lunes.",
	})
	if !assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String()) {
		return
	}

	t.Run("representatives cannot write to representatives", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/messages", repCookie, message.NewMessage{
			Recipient: message.Recipient{Kind: message.AllReps}, Subject: "Hola", Body: "Hola a todos",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "recipient.type")
	})

	t.Run("read on view", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/messages", repCookie, nil)
		var msgs []message.Message
		_ = json.Unmarshal(rec.Body.Bytes(), &msgs)
		if assert.Len(t, msgs, 1) {
			assert.Equal(t, []string{"rosa@caipa.com"}, msgs[0].ReadBy)
		}
	})
}

func TestErrorHandler_internal(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.st.Users, "Admin", "admin@caipa.com", "secret1", user.RoleAdmin)
	a.db.FailOn("CreateEvent", errors.New("connection reset by peer"))

	rec := a.do(t, http.MethodPost, "/events", a.cookie(t, admin), school.NewEvent{
		Title: "Feria de ciencias", Date: time.Now().Add(48 * time.Hour),
	})
	checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError, wantData: errBody(msgInternal)}, rec)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestEventApi_upcoming(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.st.Users, "Admin", "admin@caipa.com", "secret1", user.RoleAdmin)
	rep := testutil.CreateUser(t, a.st.Users, "Rosa Díaz", "rosa@caipa.com", "secret1", user.RoleRepresentative)
	adminCookie := a.cookie(t, admin)

	for _, d := range []time.Duration{-48 * time.Hour, 24 * time.Hour, 72 * time.Hour} {
		rec := a.do(t, http.MethodPost, "/events", adminCookie, school.NewEvent{Title: "Evento", Date: time.Now().Add(d)})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := a.do(t, http.MethodGet, "/events?limit=1", a.cookie(t, rep), nil)
	var evts []school.Event
	_ = json.Unmarshal(rec.Body.Bytes(), &evts)
	if assert.Len(t, evts, 1) {
		assert.True(t, evts[0].Date.After(time.Now()))
		assert.True(t, evts[0].Date.Before(time.Now().Add(48*time.Hour)))
	}

	rec = a.do(t, http.MethodGet, "/events?limit=x", adminCookie, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardApi(t *testing.T) {
	a := setup(t)
	admin := testutil.CreateUser(t, a.st.Users, "Admin", "admin@caipa.com", "secret1", user.RoleAdmin)
	_, teacher := testutil.CreateTeacher(t, a.st, "Ana Pérez", "ana@caipa.com", "secret1")
	s := testutil.CreateStudent(t, a.st, "Carlos Díaz", "Rosa Díaz", "rosa@caipa.com", user.User{})
	testutil.CreateActivityLog(t, a.st, s.ID, time.Now().Add(-time.Hour))
	testutil.CreateActivityLog(t, a.st, s.ID, time.Now().Add(-25*time.Hour))

	rec := a.do(t, http.MethodGet, "/dashboard", a.cookie(t, teacher), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/dashboard", a.cookie(t, admin), nil)
	var sum dashboard.Summary
	_ = json.Unmarshal(rec.Body.Bytes(), &sum)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sum.Students)
	assert.Equal(t, 1, sum.Teachers)
	assert.Equal(t, 1, sum.ActivityLogsLast24h)

	rec = a.do(t, http.MethodGet, "/dashboard/activity?days=3", a.cookie(t, admin), nil)
	var days []school.DayCount
	_ = json.Unmarshal(rec.Body.Bytes(), &days)
	assert.Len(t, days, 3)
}

func TestMetrics(t *testing.T) {
	a := setup(t)
	a.do(t, http.MethodGet, "/", "", nil)
	a.do(t, http.MethodPost, "/auth/login", "", auth.Credentials{Email: "nadie@caipa.com", Password: "secret1"})

	rec := a.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `caipa_http_requests_total{code="200",method="GET",route="/"} 1`), body)
	assert.Contains(t, body, `caipa_logins_total{outcome="invalid"} 1`)
}
