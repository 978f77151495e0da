package main

import (
	"context"
	"fmt"

	"github.com/trezcool/classfund/core/user"
)

func (cli *commandLine) addAdmin(name, email, pwd string) error {
	usr, err := cli.users.Create(context.Background(), user.NewUser{Name: name, Email: email, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "admin %q created (%s)\n", usr.Email, usr.ID)
	return nil
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.users.ResetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q updated\n", email)
	return nil
}
