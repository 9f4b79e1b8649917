package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/ja-viss/caipa-connect-sub000/core"
)

var (
	roleTag    = "role"
	roleTextEs = "rol inválido"
	roleTextEn = "invalid role"

	// password policy
	pwdMinLen       = 6
	pwdMinLenTag    = "pwdminlen"
	pwdMinLenTextEs = fmt.Sprintf("la contraseña debe tener al menos %d caracteres", pwdMinLen)
	pwdMinLenTextEn = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag    = "pwdnospace"
	pwdNoSpaceTextEs = "la contraseña no puede contener espacios"
	pwdNoSpaceTextEn = "password must not contain whitespace"

	pwdNotAllNumTag    = "pwdnotallnum"
	pwdNotAllNumTextEs = "la contraseña no puede ser solo numérica"
	pwdNotAllNumTextEn = "password cannot be entirely numeric"

	pwdMaxSim        = .7
	pwdAttrSimTag    = "pwdtoosim"
	pwdAttrSimTextEs = "la contraseña es demasiado parecida a sus datos personales"
	pwdAttrSimTextEn = "password cannot be similar to user attributes"
)

// InitValidators registers the user validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	esp := core.IsSpanish(translator)
	pick := func(esText, enText string) string {
		if esp {
			return esText
		}
		return enText
	}

	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, pick(roleTextEs, roleTextEn))

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pick(pwdMinLenTextEs, pwdMinLenTextEn))
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pick(pwdNoSpaceTextEs, pwdNoSpaceTextEn))
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pick(pwdNotAllNumTextEs, pwdNotAllNumTextEn))
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pick(pwdAttrSimTextEs, pwdAttrSimTextEn))
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case Role:
		return v.Valid()
	case string:
		return Role(v).Valid()
	default:
		return false
	}
}

// userStructValidation applies the password policy to NewUser, UpdateUser and ResetUserPassword.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.FullName, usr.Email)
		}
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, sl, usr.FullName, usr.Email)
		}
	case ResetUserPassword:
		if usr.Password != "" {
			validatePassword(usr.Password, sl)
		}
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 6
// - no whitespace
// - no all numeric
// - no user attrs similarity
func validatePassword(pwd string, sl validator.StructLevel, usrAttrs ...string) {
	ReportPasswordPolicy(sl, "password", "Password", pwd, usrAttrs...)
}

// ReportPasswordPolicy reports the first password rule pwd breaks on field.
// It lets other struct validations holding a password apply the same policy.
func ReportPasswordPolicy(sl validator.StructLevel, field, structField, pwd string, usrAttrs ...string) {
	if tag := checkPassword(pwd, usrAttrs...); tag != "" {
		sl.ReportError(pwd, field, structField, tag, "")
	}
}

// CheckPasswordPolicy returns the broken password rule as an error, in English.
func CheckPasswordPolicy(pwd string, usrAttrs ...string) error {
	texts := map[string]string{
		pwdMinLenTag:    pwdMinLenTextEn,
		pwdNoSpaceTag:   pwdNoSpaceTextEn,
		pwdNotAllNumTag: pwdNotAllNumTextEn,
		pwdAttrSimTag:   pwdAttrSimTextEn,
	}
	if tag := checkPassword(pwd, usrAttrs...); tag != "" {
		return errors.New(texts[tag])
	}
	return nil
}

// checkPassword returns the tag of the first broken rule, or "".
func checkPassword(pwd string, usrAttrs ...string) string {
	chars := []rune(pwd)
	if len(chars) < pwdMinLen {
		return pwdMinLenTag
	}

	var digitCount int
	for _, char := range chars {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len(chars) {
		return pwdNotAllNumTag
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range usrAttrs {
		attr = strings.ToLower(attr)
		if attr == "" {
			continue
		}
		if difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, "")).QuickRatio() >= pwdMaxSim {
			return pwdAttrSimTag
		}
		// also match the local part of emails
		if at := strings.IndexByte(attr, '@'); at > 0 {
			local := attr[:at]
			if difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(local, "")).QuickRatio() >= pwdMaxSim {
				return pwdAttrSimTag
			}
		}
	}
	return ""
}
