package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/student"
	"github.com/trezcool/classfund/core/user"
)

var (
	isTerminalFunc   = term.IsTerminal   // mockable
	readPasswordFunc = term.ReadPassword // mockable
	stdin            io.Reader = os.Stdin

	errHelp            = errors.New("help provided")
	errNoDatabase      = errors.New("migrate needs a postgres database (DATABASE_ENGINE=postgres)")
	errConfirmRequired = errors.New("refusing to clear data without confirmation: pass -yes")
	errAborted         = errors.New("aborted")
)

type commandLine struct {
	conf     *core.Config
	db       *sql.DB // nil with the in-memory engine
	store    ledger.Store
	students *student.Service
	users    *user.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]            - run a goose migration command (up, down, status, redo, version...)")
	fmt.Fprintln(cli.out, "  import-students -file ROSTER         - import students from a .csv or .xlsx roster")
	fmt.Fprintln(cli.out, "  token -name NAME [-ttl DURATION]     - issue an admin API token")
	fmt.Fprintln(cli.out, "  add-admin -name NAME -email EMAIL    - create an admin account (the password is prompted next)")
	fmt.Fprintln(cli.out, "  reset-password -email EMAIL          - reset an admin's password (the password is prompted next)")
	fmt.Fprintln(cli.out, "  clear-data [-yes]                    - delete every student, event, payment and print record")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import-students", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "Path to a .csv or .xlsx roster with name, roll_no, email and class columns.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenName := tokenCmd.String("name", "", "Name of the admin the token is issued to.")
	tokenTTL := tokenCmd.Duration("ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION_DELTA).")

	clearCmd := flag.NewFlagSet("clear-data", flag.ContinueOnError)
	clearYes := clearCmd.Bool("yes", false, "Skip the interactive confirmation.")

	addAdminCmd := flag.NewFlagSet("add-admin", flag.ContinueOnError)
	addAdminName := addAdminCmd.String("name", "", "The admin's name.")
	addAdminEmail := addAdminCmd.String("email", "", "The admin's email, used to log in. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The admin's email. The password will be prompted next.")

	for _, fs := range []*flag.FlagSet{importCmd, tokenCmd, clearCmd, addAdminCmd, resetPasswordCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "import-students":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importStudents(*importFile)

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if strings.TrimSpace(*tokenName) == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(*tokenName, *tokenTTL)

	case "add-admin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminName == "" || *addAdminEmail == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		return cli.addAdmin(*addAdminName, *addAdminEmail, pwd)

	case "reset-password":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "clear-data":
		if err := clearCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !*clearYes {
			if err := confirm(cli.out, "This deletes ALL students, events, payments and print records. Type \"yes\" to continue: "); err != nil {
				return err
			}
		}
		return cli.clearData()

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func confirm(out io.Writer, prompt string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errConfirmRequired
	}
	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
		return errAborted
	}
	return nil
}

func ttlOrDefault(conf *core.Config, ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return conf.Server.JWTExpirationDelta
}
