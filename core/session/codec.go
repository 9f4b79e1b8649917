// Package session signs and verifies the token kept in the session cookie.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

var errNonPositiveTTL = errors.New("session ttl must be positive")

// Identity is what a session tells about its user.
type Identity struct {
	UserID    string    `json:"uid"`
	FullName  string    `json:"name"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	TeacherID string    `json:"tid,omitempty"`
}

// IdentityOf returns the session identity of usr.
func IdentityOf(usr user.User) Identity {
	return Identity{
		UserID:    usr.ID,
		FullName:  usr.FullName,
		Email:     usr.Email,
		Role:      usr.Role,
		TeacherID: usr.TeacherID,
	}
}

func (id Identity) IsAdmin() bool          { return id.Role == user.RoleAdmin }
func (id Identity) IsTeacher() bool        { return id.Role == user.RoleTeacher }
func (id Identity) IsRepresentative() bool { return id.Role == user.RoleRepresentative }

type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// Codec issues and verifies HS256 session tokens.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewCodec(secret []byte, issuer string) *Codec {
	return &Codec{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue returns a token carrying id that expires after ttl.
func (c *Codec) Issue(id Identity, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errNonPositiveTTL
	}
	now := c.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "signing session token")
	}
	return token, expiresAt, nil
}

// Verify returns the identity carried by token.
// Any malformed, tampered, foreign or expired token yields false.
func (c *Codec) Verify(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, false
	}
	if claims.UserID == "" || claims.UserID != claims.Subject || !claims.Role.Valid() {
		return Identity{}, false
	}
	return claims.Identity, true
}
