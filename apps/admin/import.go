package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/classfund/core/student"
)

func (cli *commandLine) importStudents(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer func() { _ = f.Close() }()

	rows, err := student.ParseRoster(f, path)
	if err != nil {
		return err
	}
	res, err := cli.students.Import(context.Background(), rows)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%d students imported, %d failed\n", res.Success, res.Failed)
	for _, rowErr := range res.Errors {
		fmt.Fprintf(cli.out, "  row %d (%s): %s\n", rowErr.Row, rowErr.RollNo, rowErr.Error)
	}
	return nil
}
