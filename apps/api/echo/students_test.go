package echoapi_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
	"github.com/trezcool/classfund/core/student"
	"github.com/trezcool/classfund/tests"
)

func TestStudentAPI(t *testing.T) {
	f := setup(t)

	rec := f.do(http.MethodPost, "/v1/students", f.token, []byte(`{"name": " Aarav Sharma ", "roll_no": "CS-01", "email": "aarav@school.test"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var aarav ledger.Student
	decode(t, rec, &aarav)
	assert.Equal(t, "Aarav Sharma", aarav.Name)
	assert.NotEmpty(t, aarav.ID)

	tests := []httpTest{
		{
			name:     "duplicate roll number",
			method:   http.MethodPost,
			path:     "/v1/students",
			body:     []byte(`{"name": "Someone Else", "roll_no": "cs-01"}`),
			token:    f.token,
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: ledger.ErrRollNoExists.Error()}),
		},
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     "/v1/students/" + aarav.ID,
			token:    f.token,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, aarav),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     "/v1/students?search=aarav&ordering=-name",
			token:    f.token,
			wantCode: http.StatusOK,
			wantData: marshallObj(t, []ledger.Student{aarav}),
		},
		{
			name:     "bulk delete needs ids",
			method:   http.MethodDelete,
			path:     "/v1/students",
			body:     []byte(`{"ids": []}`),
			token:    f.token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ids": "this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, f.do(tt.method, tt.path, tt.token, tt.body))
		})
	}

	t.Run("statement", func(t *testing.T) {
		evt := testutil.CreateEvent(t, f.store, "Farewell", "500", []string{aarav.ID})
		testutil.CreatePayment(t, f.store, aarav.ID, evt.ID, "200", ledger.MethodCash, ledger.StatusPaid)

		rec := f.do(http.MethodGet, "/v1/students/"+aarav.ID+"/statement", f.token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stmt reconcile.Statement
		decode(t, rec, &stmt)
		assert.True(t, testutil.Amount("500").Equal(stmt.TotalDue))
		assert.True(t, testutil.Amount("200").Equal(stmt.TotalPaid))
		assert.True(t, testutil.Amount("300").Equal(stmt.TotalPending))
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/v1/students/"+aarav.ID, f.token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, f.logger.Has("INFO", "student "+aarav.ID+" deleted"))

		rec = f.do(http.MethodDelete, "/v1/students/"+aarav.ID, f.token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStudentImport(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.store, "Aarav Sharma", "CS-01")

	upload := func(filename, content string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		if filename != "" {
			part, err := w.CreateFormFile("file", filename)
			require.NoError(t, err)
			_, err = part.Write([]byte(content))
			require.NoError(t, err)
		}
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/v1/students/import", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+f.token)
		rec := httptest.NewRecorder()
		f.app.ServeHTTP(rec, req)
		return rec
	}

	roster := "Name,Roll No,Email,Class\n" +
		"Diya Patel,CS-02,diya@school.test,CS-A\n" +
		"Aarav Again,cs-01,,CS-A\n" +
		",CS-03,,CS-A\n" +
		"Kabir Singh,CS-04,,CS-B\n"

	rec := upload("roster.csv", roster)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res student.ImportResult
	decode(t, rec, &res)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, 4, res.Errors[1].Row)

	students, err := f.store.QueryStudents(ctx, ledger.StudentFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, students, 3)

	assert.Equal(t, http.StatusBadRequest, upload("", "").Code, "file is required")
	assert.Equal(t, http.StatusBadRequest, upload("roster.pdf", roster).Code, "unsupported format")
}
