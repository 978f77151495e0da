package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/classfund/apps/api/echo"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/student"
	"github.com/trezcool/classfund/core/user"
	"github.com/trezcool/classfund/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	store := testutil.NewInmemStore()
	validate, _ := testutil.NewValidator()
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		conf:     testutil.TestConfig(),
		db:       new(sql.DB), // never touched: goose is mocked
		store:    store,
		students: student.NewService(store, validate, new(testutil.Logger)),
		users:    testutil.NewUserService(),
		out:      out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "import without file", args: []string{"import-students"}, wantErr: errHelp},
		{name: "token without name", args: []string{"token"}, wantErr: errHelp},
		{name: "token with blank name", args: []string{"token", "-name", "  "}, wantErr: errHelp},
		{name: "add-admin without email", args: []string{"add-admin", "-name", "Rep"}, wantErr: errHelp},
		{name: "reset-password without email", args: []string{"reset-password"}, wantErr: errHelp},
		{name: "bad ttl", args: []string{"token", "-name", "Rep", "-ttl", "forever"}, wantErrStr: `invalid value "forever" for flag -ttl: parse error`},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "receipts", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("in-memory engine", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_importStudents(t *testing.T) {
	cli, out := setup(t)

	roster := filepath.Join(t.TempDir(), "roster.csv")
	content := "Name,Roll No,Email,Class\n" +
		"Aarav Sharma,CS-01,aarav@school.test,CS-A\n" +
		"Diya Patel,CS-02,,CS-A\n" +
		"Kabir Rao,cs-01,,CS-A\n"
	require.NoError(t, os.WriteFile(roster, []byte(content), 0o600))

	require.NoError(t, cli.run([]string{"admin", "import-students", "-file", roster}))
	assert.Contains(t, out.String(), "2 students imported, 1 failed")
	assert.Contains(t, out.String(), "row 4 (cs-01)")

	students, err := cli.store.QueryStudents(context.Background(), ledger.StudentFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, students, 2)

	err = cli.run([]string{"admin", "import-students", "-file", filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func Test_commandLine_issueToken(t *testing.T) {
	cli, out := setup(t)

	require.NoError(t, cli.run([]string{"admin", "token", "-name", "Class Rep", "-ttl", "2h"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `token for "Class Rep"`)

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(lines[1], claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "Class Rep", claims.Name)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), time.Unix(claims.ExpiresAt, 0), time.Minute)
}

func Test_commandLine_clearData(t *testing.T) {
	type extra struct {
		terminal bool
		answer   string
	}
	tests := []cliTest{
		{name: "no terminal", args: []string{"clear-data"}, wantErr: errConfirmRequired},
		{name: "declined", args: []string{"clear-data"}, extra: extra{terminal: true, answer: "no\n"}, wantErr: errAborted},
		{name: "confirmed", args: []string{"clear-data"}, extra: extra{terminal: true, answer: "YES\n"}},
		{name: "forced", args: []string{"clear-data", "-yes"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			cli, _ := setup(t)
			std := testutil.CreateStudent(t, cli.store, "Aarav Sharma", "CS-01")
			evt := testutil.CreateEvent(t, cli.store, "Farewell", "500", []string{std.ID})
			testutil.CreatePayment(t, cli.store, std.ID, evt.ID, "500", ledger.MethodCash, ledger.StatusPaid)

			ex, _ := tt.extra.(extra)
			isTerminalFunc = func(int) bool { return ex.terminal }
			stdin = strings.NewReader(ex.answer)

			err := cli.run(args)
			tt.check(t, err)

			students, qErr := cli.store.QueryStudents(context.Background(), ledger.StudentFilter{}, nil)
			require.NoError(t, qErr)
			if err == nil {
				assert.Empty(t, students)
			} else {
				assert.Len(t, students, 1, "nothing is deleted without confirmation")
			}
		})
	}
}

func Test_commandLine_adminAccounts(t *testing.T) {
	cli, out := setup(t)
	defer func(f func(int) ([]byte, error)) { readPasswordFunc = f }(readPasswordFunc)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "add-admin without password", args: []string{"add-admin", "-name", "Rep", "-email", "rep@school.test"}, wantErr: errHelp},
		{name: "add-admin", args: []string{"add-admin", "-name", "Rep", "-email", "rep@school.test"}, extra: extra{pwd: "s3cret-pass"}},
		{name: "add-admin twice", args: []string{"add-admin", "-name", "Rep", "-email", "REP@school.test"}, extra: extra{pwd: "s3cret-pass"}, wantErrStr: user.ErrEmailExists.Error()},
		{name: "reset-password without password", args: []string{"reset-password", "-email", "rep@school.test"}, wantErr: errHelp},
		{name: "reset-password unknown admin", args: []string{"reset-password", "-email", "who@school.test"}, extra: extra{pwd: "new-s3cret"}, wantErr: user.ErrNotFound},
		{name: "reset-password", args: []string{"reset-password", "-email", "rep@school.test"}, extra: extra{pwd: "new-s3cret"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	assert.Contains(t, out.String(), `admin "rep@school.test" created`)
	assert.Contains(t, out.String(), `password of "rep@school.test" updated`)
	_, err := cli.users.Authenticate(context.Background(), user.Credentials{Email: "rep@school.test", Password: "new-s3cret"})
	assert.NoError(t, err)
}
