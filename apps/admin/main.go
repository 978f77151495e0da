package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/student"
	"github.com/trezcool/classfund/core/user"
	logsvc "github.com/trezcool/classfund/services/logger"
	"github.com/trezcool/classfund/storage/database"
	inmemdb "github.com/trezcool/classfund/storage/database/inmem"
	sqlxdb "github.com/trezcool/classfund/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	var (
		db      *sql.DB
		store   ledger.Store
		usrRepo user.Repository
	)
	if conf.Database.Engine == "memory" {
		memDB := inmemdb.NewDB()
		store = inmemdb.NewStore(memDB)
		usrRepo = inmemdb.NewUserRepository(memDB)
	} else {
		errAndDie(database.CreateIfNotExist(conf))
		sqlxDB, err := database.Open(conf)
		errAndDie(err)
		defer sqlxDB.Close()
		errAndDie(sqlxDB.Ping())
		db = sqlxDB.DB
		store = sqlxdb.NewStore(sqlxDB)
		usrRepo = sqlxdb.NewUserRepository(sqlxDB)
	}

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	ledger.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		store:    store,
		students: student.NewService(store, validate, logsvc.NewRollbarLogger(logger, conf)),
		users:    user.NewService(usrRepo, validate),
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
