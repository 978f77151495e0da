package main

import (
	"context"
	"fmt"

	"github.com/trezcool/classfund/core/ledger"
)

func (cli *commandLine) clearData() error {
	if err := ledger.ClearAll(context.Background(), cli.store); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "all data cleared")
	return nil
}
