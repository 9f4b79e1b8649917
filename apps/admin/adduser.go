package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/core/user"
)

// addUser updates or creates an administrator.
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd string) error {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	if err := user.CheckPasswordPolicy(pwd, name, email); err != nil {
		return err
	}

	users := cli.store.Users
	now := time.Now().UTC()
	usr, err := users.GetUserByEmail(ctx, email)
	created := core.IsNotFound(err)
	switch {
	case created:
		usr = user.User{ID: core.NewID(), Email: email, CreatedAt: now}
	case err != nil:
		return errors.Wrap(err, "getting user")
	case !usr.IsAdmin():
		return errors.Errorf("%s is registered as %s", email, usr.Role)
	}

	usr.FullName = name
	usr.Role = user.RoleAdmin
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if created {
		_, err = users.CreateUser(ctx, usr)
	} else {
		_, err = users.UpdateUser(ctx, usr)
	}
	if err != nil {
		return errors.Wrap(err, "saving user")
	}
	fmt.Fprintf(cli.out, "administrator %s saved\n", email)
	return nil
}
