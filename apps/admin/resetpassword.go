package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

// resetPassword sets the password of the user registered with email.
func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.store.Users.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	if err := user.CheckPasswordPolicy(pwd, usr.FullName, usr.Email); err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := cli.store.Users.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "saving user")
	}
	fmt.Fprintf(cli.out, "password of %s reset\n", usr.Email)
	return nil
}
