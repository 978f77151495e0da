package main

import (
	"fmt"
	"time"

	echoapi "github.com/trezcool/classfund/apps/api/echo"
	"github.com/trezcool/classfund/core"
)

func (cli *commandLine) issueToken(name string, ttl time.Duration) error {
	ttl = ttlOrDefault(cli.conf, ttl)
	claims := echoapi.NewAdminClaims(cli.conf, core.Actor{Name: name}, ttl)
	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "token for %q (expires %s):\n%s\n", name, time.Now().Add(ttl).Format(time.RFC3339), token)
	return nil
}
