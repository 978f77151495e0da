package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/user"
	inmemdb "github.com/trezcool/classfund/storage/database/inmem"
)

// TestConfig is a config that never reads the environment.
func TestConfig() *core.Config {
	return &core.Config{
		AppName:          "ClassFund",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "ClassFund", Address: "noreply@classfund.test"},
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
			ShutdownTimeout:    time.Second,
		},
		Gateway: core.GatewayConfig{
			Provider:      "dummy",
			KeyID:         "rzp_test_key",
			KeySecret:     "rzp_test_secret",
			WebhookSecret: "whsec_test",
			Currency:      "INR",
		},
		Lookup: core.LookupConfig{Limit: 20},
	}
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	ledger.InitValidators(validate, translator)
	return validate, translator
}

func NewInmemStore() ledger.Store {
	return inmemdb.NewStore(inmemdb.NewDB())
}

func NewUserService() *user.Service {
	validate, _ := NewValidator()
	return user.NewService(inmemdb.NewUserRepository(inmemdb.NewDB()), validate)
}

func CreateAdmin(t *testing.T, svc *user.Service, name, email, pwd string) user.User {
	usr, err := svc.Create(context.Background(), user.NewUser{Name: name, Email: email, Password: pwd})
	if err != nil {
		t.Fatalf("CreateAdmin() failed: %v", err)
	}
	return usr
}

// OpenDB connects to TEST_DATABASE_URL, skipping the test when it is unset.
func OpenDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = db.Ping(); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateStudent(t *testing.T, store ledger.Store, name, rollNo string, email ...string) ledger.Student {
	now := time.Now().UTC()
	std := ledger.Student{Name: name, RollNo: rollNo, Class: "CS-A", CreatedAt: now, UpdatedAt: now}
	if len(email) > 0 {
		std.Email = email[0]
	}
	std, err := store.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

type EventOption func(*ledger.Event)

func Draft() EventOption { return func(e *ledger.Event) { e.Status = ledger.EventDraft } }

func PrintEvent() EventOption { return func(e *ledger.Event) { e.Category = ledger.CategoryPrint } }

func Methods(methods ...ledger.PaymentMethod) EventOption {
	return func(e *ledger.Event) { e.PaymentOptions = methods }
}

// CreateEvent creates a published Normal event open to every payment method.
func CreateEvent(t *testing.T, store ledger.Store, name, cost string, participants []string, opts ...EventOption) ledger.Event {
	now := time.Now().UTC()
	evt := ledger.Event{
		Name:           name,
		Cost:           Amount(cost),
		Deadline:       now.Add(30 * 24 * time.Hour),
		Category:       ledger.CategoryNormal,
		Status:         ledger.EventPublished,
		ParticipantIDs: participants,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, opt := range opts {
		opt(&evt)
	}
	evt, err := store.CreateEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	return evt
}

func CreatePayment(
	t *testing.T,
	store ledger.Store,
	studentID, eventID, amount string,
	method ledger.PaymentMethod,
	status ledger.PaymentStatus,
	paidAt ...time.Time,
) ledger.Payment {
	tstamp := time.Now().UTC()
	if len(paidAt) > 0 {
		tstamp = paidAt[0].UTC()
	}
	pmt, err := store.CreatePayment(context.Background(), ledger.Payment{
		StudentID:   studentID,
		EventID:     eventID,
		Amount:      Amount(amount),
		Method:      method,
		Status:      status,
		PaymentDate: tstamp,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return pmt
}

type LogEntry struct {
	Level string
	Msg   string
}

// Logger records entries in memory.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg})
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { panic(fmt.Sprintf("fatal: %s", msg)) }

// Has reports whether an entry of level contains substr.
func (l *Logger) Has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

func (l *Logger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}
