package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/classfund/apps/api/echo"
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
	"github.com/trezcool/classfund/tests"
)

var (
	ctx = context.Background()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type fixture struct {
	app    *Server
	store  ledger.Store
	conf   *core.Config
	logger *testutil.Logger
	mailer *emailsvc.ConsoleServiceMock
	users  *user.Service
	token  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := testutil.TestConfig()
	logger := &testutil.Logger{}
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(appfs.EmailTemplates(), conf, logger)

	store := testutil.NewInmemStore()
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)
	engine := reconcile.NewEngine(store, dummygw.NewClient(), mailer, logger, conf)
	reports := report.NewService(store, engine)
	engine.AttachStatements(reports)
	users := testutil.NewUserService()

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Engine:         engine,
		Students:       student.NewService(store, validate, logger),
		Events:         event.NewService(store, validate),
		Reports:        reports,
		Webhooks:       gateway.NewProcessor(engine, conf.Gateway.WebhookSecret, logger),
		Users:          users,
		DisableReqLogs: true,
	})

	return fixture{
		app:    app,
		store:  store,
		conf:   conf,
		logger: logger,
		mailer: mailer,
		users:  users,
		token:  getToken(t, conf, true),
	}
}

// do serves a JSON request, authenticated when token is set.
func (f fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, admin bool) string {
	claims := NewAdminClaims(conf, core.Actor{ID: "admin-1", Name: "Class Rep"}, 0)
	claims.IsAdmin = admin
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
