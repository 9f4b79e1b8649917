package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var testIdentity = Identity{
	UserID:    "b1d7c1e4-6f3e-4a55-9d7e-0b8f43c2a001",
	FullName:  "Ana Pérez",
	Email:     "ana@x.com",
	Role:      user.RoleTeacher,
	TeacherID: "t-1",
}

func TestIssueVerify(t *testing.T) {
	codec := NewCodec([]byte("0123456789abcdef0123456789abcdef"), "caipa")

	for _, ttl := range []time.Duration{time.Second * 2, time.Minute, time.Hour, 24 * time.Hour} {
		token, expiresAt, err := codec.Issue(testIdentity, ttl)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		assert.WithinDuration(t, time.Now().Add(ttl), expiresAt, time.Second)

		got, ok := codec.Verify(token)
		if !ok {
			t.Fatalf("Verify() ok = false for ttl %v", ttl)
		}
		assert.Equal(t, testIdentity, got)
	}
}

func TestVerifyExpired(t *testing.T) {
	codec := NewCodec([]byte("secret"), "caipa")
	token, _, err := codec.Issue(testIdentity, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	codec.now = func() time.Time { return time.Now().Add(time.Hour + time.Minute) }
	if _, ok := codec.Verify(token); ok {
		t.Error("Verify() ok = true for an expired token")
	}
}

func TestIssueRejectsNonPositiveTTL(t *testing.T) {
	codec := NewCodec([]byte("secret"), "caipa")
	for _, ttl := range []time.Duration{0, -time.Second} {
		if _, _, err := codec.Issue(testIdentity, ttl); err == nil {
			t.Errorf("Issue(ttl=%v) error = nil", ttl)
		}
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	codec := NewCodec([]byte("secret"), "caipa")
	valid, _, err := codec.Issue(testIdentity, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	foreign, _, _ := NewCodec([]byte("other"), "caipa").Issue(testIdentity, time.Hour)
	otherIssuer, _, _ := NewCodec([]byte("secret"), "someone-else").Issue(testIdentity, time.Hour)

	// same claims, signed with "none"
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Identity: testIdentity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "caipa",
			Subject:   testIdentity.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	// no expiry
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Identity:         testIdentity,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "caipa", Subject: testIdentity.UserID},
	}).SignedString([]byte("secret"))

	// unknown role
	badRole := testIdentity
	badRole.Role = "student"
	badRoleToken, _, _ := codec.Issue(badRole, time.Hour)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "tampered payload", token: tampered},
		{name: "truncated signature", token: valid[:len(valid)-4]},
		{name: "other secret", token: foreign},
		{name: "other issuer", token: otherIssuer},
		{name: "alg none", token: unsigned},
		{name: "no expiry", token: noExp},
		{name: "unknown role", token: badRoleToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := codec.Verify(tt.token)
			if ok {
				t.Errorf("Verify() ok = true, identity %+v", got)
			}
			assert.Equal(t, Identity{}, got)
		})
	}
}

func TestIdentityOf(t *testing.T) {
	usr := user.User{
		ID:        testIdentity.UserID,
		FullName:  testIdentity.FullName,
		Email:     testIdentity.Email,
		Role:      testIdentity.Role,
		TeacherID: testIdentity.TeacherID,
	}
	assert.Equal(t, testIdentity, IdentityOf(usr))
}
