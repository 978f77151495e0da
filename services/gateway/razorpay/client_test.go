package razorpaysvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/gateway"
	"github.com/trezcool/classfund/tests"
)

type fakeOrders struct {
	got  map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.got = data
	return f.resp, f.err
}

func TestNewClientRequiresKeys(t *testing.T) {
	conf := testutil.TestConfig()
	conf.Gateway.KeySecret = ""
	_, err := NewClient(conf, &testutil.Logger{})
	assert.Equal(t, gateway.ErrNotConfigured, err)
}

func TestCreateOrder(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{
		"id":       "order_Kx1",
		"amount":   float64(25050),
		"currency": "INR",
		"receipt":  "receipt_event_e1_student_s1",
		"status":   "created",
	}}
	c := &Client{orders: orders, logger: &testutil.Logger{}}

	order, err := c.CreateOrder(context.Background(), gateway.OrderRequest{
		Amount:    testutil.Amount("250.50"),
		Currency:  "INR",
		EventID:   "e1",
		StudentID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.Order{ID: "order_Kx1", Amount: 25050, Currency: "INR", Receipt: "receipt_event_e1_student_s1", Status: "created"}, order)

	assert.Equal(t, int64(25050), orders.got["amount"])
	assert.Equal(t, "receipt_event_e1_student_s1", orders.got["receipt"])
	assert.Equal(t, map[string]interface{}{"eventId": "e1", "studentId": "s1"}, orders.got["notes"])
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		orders   *fakeOrders
		wantKind core.ErrorKind
	}{
		{name: "non positive amount", amount: "0", orders: &fakeOrders{}, wantKind: core.KindValidation},
		{name: "sub-paisa amount", amount: "10.001", orders: &fakeOrders{}, wantKind: core.KindValidation},
		{name: "provider failure", amount: "10", orders: &fakeOrders{err: errors.New("bad key")}, wantKind: core.KindUnknown},
		{name: "missing id", amount: "10", orders: &fakeOrders{resp: map[string]interface{}{}}, wantKind: core.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{orders: tt.orders, logger: &testutil.Logger{}}
			_, err := c.CreateOrder(context.Background(), gateway.OrderRequest{Amount: testutil.Amount(tt.amount), EventID: "e", StudentID: "s"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, core.KindOf(err))
		})
	}
}
