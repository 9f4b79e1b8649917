package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja-viss/caipa-connect-sub000/core/user"
	testutil "github.com/ja-viss/caipa-connect-sub000/tests"
)

type indexerMock struct {
	calls int
	err   error
}

func (m *indexerMock) EnsureIndexes(context.Context) error {
	m.calls++
	return m.err
}

func setup(t *testing.T) *commandLine {
	t.Helper()
	st, _ := testutil.NewStore()
	return &commandLine{store: st, out: &bytes.Buffer{}}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) run(t *testing.T, cli *commandLine) error {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(tt.pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })

	err := cli.run(context.Background(), append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
	return err
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
		{name: "indexes without mongodb", args: []string{"indexes"}, wantErr: errNoIndexes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, cli) })
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, cli.store.Users, "Rosa Díaz", "rosa@caipa.com", "secret1", user.RoleRepresentative)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-name", "Admin"}, pwd: "s3cr3t!", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-name", "Admin", "-email", "admin@caipa.com"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-name", "Admin", "-email", "admin@caipa.com"}, pwd: "123456", wantErrStr: "numeric"},
		{name: "not an admin", args: []string{"adduser", "-name", "Rosa", "-email", "rosa@caipa.com"}, pwd: "s3cr3t!", wantErrStr: "registered as representative"},
		{name: "create", args: []string{"adduser", "-name", "Admin", "-email", " ADMIN@caipa.com"}, pwd: "s3cr3t!"},
		{name: "update", args: []string{"adduser", "-name", "Jefa", "-email", "admin@caipa.com"}, pwd: "n3w-s3cr3t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, cli) })
	}

	usr, err := cli.store.Users.GetUserByEmail(context.Background(), "admin@caipa.com")
	require.NoError(t, err)
	assert.Equal(t, "Jefa", usr.FullName)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.NoError(t, usr.CheckPassword("n3w-s3cr3t"))

	n, err := cli.store.Users.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, cli.store.Users, "Ana Pérez", "ana@caipa.com", "secret1", user.RoleTeacher)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "ana@caipa.com"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@caipa.com"}, pwd: "s3cr3t!", wantErrStr: "not found"},
		{name: "too short", args: []string{"resetpassword", "-email", "ana@caipa.com"}, pwd: "abc", wantErrStr: "at least 6"},
		{name: "reset", args: []string{"resetpassword", "-email", "ANA@caipa.com"}, pwd: "s3cr3t!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, cli) })
	}

	refreshed, err := cli.store.Users.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("s3cr3t!"))
}

func Test_commandLine_indexes(t *testing.T) {
	cli := setup(t)
	idx := &indexerMock{}
	cli.indexer = idx

	cliTest{name: "ok", args: []string{"indexes"}}.run(t, cli)
	assert.Equal(t, 1, idx.calls)

	idx.err = errors.New("no primary")
	cliTest{name: "failure", args: []string{"indexes"}, wantErrStr: "no primary"}.run(t, cli)
	assert.Equal(t, 2, idx.calls)
}

var _ Indexer = (*indexerMock)(nil)
