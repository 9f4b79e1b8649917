package user

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestMakeVerifyToken(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	gen := NewTokenGenerator("secret", 3*24*time.Hour)

	now := time.Now()
	usr := User{
		ID:        "3f0a8c1e-0000-4000-8000-000000000001",
		FullName:  "T",
		Email:     "t@test.test",
		Role:      RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_ = usr.SetPassword("pwd")

	validToken := gen.MakeToken(usr)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	gen.now = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := gen.MakeToken(usr)
	gen.now = time.Now // reset

	// the password changed after the token was made
	usrNewPwd := usr
	_ = usrNewPwd.SetPassword("pwd2")

	otherGen := NewTokenGenerator("other-secret", 3*24*time.Hour)

	tests := []struct {
		name    string
		gen     *TokenGenerator
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", gen: gen, usr: usr, wantErr: ErrInvalidToken},
		{name: "invalid parts len", gen: gen, usr: usr, token: "lmaooolol", wantErr: ErrInvalidToken},
		{name: "invalid base32", gen: gen, usr: usr, token: "hahaha-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid timestamp", gen: gen, usr: usr, token: "NRXWY-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "invalid token", gen: gen, usr: usr, token: "HE4TS-sigsig-sig", wantErr: ErrInvalidToken},
		{name: "expired token", gen: gen, usr: usr, token: expiredToken, wantErr: ErrTokenExpired},
		{name: "password changed", gen: gen, usr: usrNewPwd, token: validToken, wantErr: ErrInvalidToken},
		{name: "other secret", gen: otherGen, usr: usr, token: validToken, wantErr: ErrInvalidToken},
		{name: "valid token", gen: gen, usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.gen.VerifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("VerifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "3f0a8c1e-0000-4000-8000-000000000001"}
	id, err := DecodeUID(EncodeUID(usr))
	if err != nil {
		t.Fatalf("DecodeUID() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("DecodeUID() = %q, want %q", id, usr.ID)
	}
	if _, err := DecodeUID("%%%"); err != ErrInvalidToken {
		t.Errorf("DecodeUID() error = %v, want %v", err, ErrInvalidToken)
	}
}
