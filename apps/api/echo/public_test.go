package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core/ledger"
	"github.com/trezcool/classfund/core/reconcile"
	"github.com/trezcool/classfund/tests"
)

func TestPublicLookup(t *testing.T) {
	f := setup(t)
	aarav := testutil.CreateStudent(t, f.store, "Aarav Sharma", "CS-01")
	testutil.CreateStudent(t, f.store, "Diya Patel", "CS-02")
	evt := testutil.CreateEvent(t, f.store, "Farewell", "500", []string{aarav.ID})
	testutil.CreateEvent(t, f.store, "Hidden", "100", []string{aarav.ID}, testutil.Draft())
	testutil.CreatePayment(t, f.store, aarav.ID, evt.ID, "200", ledger.MethodCash, ledger.StatusPaid)

	rec := f.do(http.MethodGet, "/v1/lookup?q=cs-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res reconcile.LookupResult
	decode(t, rec, &res)
	require.Len(t, res.Results, 1)
	entry := res.Results[0]
	assert.Equal(t, aarav.ID, entry.StudentID)
	require.Len(t, entry.Events, 1, "drafts are not shown to students")
	assert.Equal(t, "Partially Paid", string(entry.Events[0].Status))
	assert.True(t, testutil.Amount("300").Equal(entry.Events[0].Pending))

	rec = f.do(http.MethodGet, "/v1/lookup?q=Aarv%20Sharma", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = reconcile.LookupResult{}
	decode(t, rec, &res)
	assert.Empty(t, res.Results)
	assert.Equal(t, []string{"Aarav Sharma"}, res.Suggestions)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/lookup?q=a", "").Code)
}

func TestPayPage(t *testing.T) {
	f := setup(t)
	aarav := testutil.CreateStudent(t, f.store, "Aarav Sharma", "CS-01")
	diya := testutil.CreateStudent(t, f.store, "Diya Patel", "CS-02")
	evt := testutil.CreateEvent(t, f.store, "Farewell", "500", []string{aarav.ID, diya.ID})
	draft := testutil.CreateEvent(t, f.store, "Trip", "900", []string{aarav.ID}, testutil.Draft())
	testutil.CreatePayment(t, f.store, aarav.ID, evt.ID, "500", ledger.MethodCash, ledger.StatusPaid)

	rec := f.do(http.MethodGet, "/v1/pay/"+evt.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page reconcile.PayPage
	decode(t, rec, &page)
	require.Len(t, page.Students, 1, "fully paid students are not listed")
	assert.Equal(t, diya.ID, page.Students[0].StudentID)
	assert.True(t, testutil.Amount("500").Equal(page.Students[0].Remaining))

	tests := []httpTest{
		{
			name:     "draft",
			method:   http.MethodGet,
			path:     "/v1/pay/" + draft.ID,
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "event not found"}),
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/v1/pay/ghost",
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, f.do(tt.method, tt.path, tt.token, tt.body))
		})
	}
}
