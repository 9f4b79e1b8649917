package school

import (
	"github.com/go-playground/validator/v10"

	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

// InitValidators applies the user password policy to the passwords of new teachers and representatives.
// user.InitValidators must have registered the policy translations.
func InitValidators(validate *validator.Validate) {
	validate.RegisterStructValidation(passwordStructValidation, NewTeacher{}, StudentInput{})
}

func passwordStructValidation(sl validator.StructLevel) {
	switch in := sl.Current().Interface().(type) {
	case NewTeacher:
		if in.Password != "" {
			user.ReportPasswordPolicy(sl, "password", "Password", in.Password, in.FullName, in.Email)
		}
	case StudentInput:
		if in.RepresentativePassword != "" {
			user.ReportPasswordPolicy(sl, "representativePassword", "RepresentativePassword",
				in.RepresentativePassword, in.Representative.Name, in.Representative.Email)
		}
	}
}
