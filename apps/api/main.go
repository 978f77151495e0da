package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/classfund/apps/api/echo"
	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/event"
	"github.com/trezcool/classfund/core/gateway"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
	"github.com/trezcool/classfund/core/report"
	"github.com/trezcool/classfund/core/student"
	"github.com/trezcool/classfund/core/user"
	appfs "github.com/trezcool/classfund/fs"
	emailsvc "github.com/trezcool/classfund/services/email"
	dummygw "github.com/trezcool/classfund/services/gateway/dummy"
	razorpaysvc "github.com/trezcool/classfund/services/gateway/razorpay"
	logsvc "github.com/trezcool/classfund/services/logger"
	"github.com/trezcool/classfund/storage/database"
	inmemdb "github.com/trezcool/classfund/storage/database/inmem"
	sqlxdb "github.com/trezcool/classfund/storage/database/sqlx"
)

const engineMemory = "memory"

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	store, usrRepo, db, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if db != nil {
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
	}

	// set up services
	mailSvc := emailsvc.New(conf, logger)
	gwClient := setUpGateway(conf, logger)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	ledger.InitValidators(validate, translator)

	engine := reconcile.NewEngine(store, gwClient, mailSvc, logger, conf)
	reports := report.NewService(store, engine)
	engine.AttachStatements(reports)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(appfs.EmailTemplates(), conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("gateway").Set(conf.Gateway.Provider)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			Engine:     engine,
			Students:   student.NewService(store, validate, logger),
			Events:     event.NewService(store, validate),
			Reports:    reports,
			Webhooks:   gateway.NewProcessor(engine, conf.Gateway.WebhookSecret, logger),
			Users:      user.NewService(usrRepo, validate),
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpStore opens the ledger store and the admin accounts; db is nil for the in-process store.
func setUpStore(conf *core.Config) (ledger.Store, user.Repository, *sqlx.DB, error) {
	if conf.Database.Engine == engineMemory {
		memDB := inmemdb.NewDB()
		return inmemdb.NewStore(memDB), inmemdb.NewUserRepository(memDB), nil, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, nil, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return sqlxdb.NewStore(db), sqlxdb.NewUserRepository(db), db, nil
}

// setUpGateway returns nil when Razorpay is selected but not configured: checkouts then fail with gateway.ErrNotConfigured.
func setUpGateway(conf *core.Config, logger core.Logger) gateway.Client {
	if conf.Gateway.Provider != "razorpay" {
		return dummygw.NewClient()
	}
	client, err := razorpaysvc.NewClient(conf, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("razorpay disabled: %v", err), err)
		return nil
	}
	return client
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
