// Package razorpaysvc creates Razorpay orders for gateway checkouts.
package razorpaysvc

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	razorpay "github.com/razorpay/razorpay-go"

	"github.com/trezcool/classfund/core"
	"github.com/trezcool/classfund/core/gateway"
)

// orderCreator is the part of the razorpay-go order resource we use.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Client struct {
	orders orderCreator
	logger core.Logger
}

var _ gateway.Client = (*Client)(nil)

func NewClient(conf *core.Config, logger core.Logger) (*Client, error) {
	if conf.Gateway.KeyID == "" || conf.Gateway.KeySecret == "" {
		return nil, gateway.ErrNotConfigured
	}
	rzp := razorpay.NewClient(conf.Gateway.KeyID, conf.Gateway.KeySecret)
	return &Client{orders: rzp.Order, logger: logger}, nil
}

// CreateOrder creates an order whose notes carry the (event, student) pair back in webhooks.
func (c *Client) CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.Order, error) {
	amount, err := gateway.MinorUnits(req.Amount)
	if err != nil {
		return gateway.Order{}, err
	}
	if err = ctx.Err(); err != nil {
		return gateway.Order{}, err
	}

	receipt := gateway.Receipt(req.EventID, req.StudentID)
	body, err := c.orders.Create(map[string]interface{}{
		"amount":   amount,
		"currency": req.Currency,
		"receipt":  receipt,
		"notes": map[string]interface{}{
			gateway.NoteEventID:   req.EventID,
			gateway.NoteStudentID: req.StudentID,
		},
	}, nil)
	if err != nil {
		c.logger.Error(fmt.Sprintf("razorpay: creating order %q: %v", receipt, err), err)
		return gateway.Order{}, errors.Wrap(err, "creating razorpay order")
	}
	return parseOrder(body)
}

func parseOrder(body map[string]interface{}) (gateway.Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return gateway.Order{}, errors.Errorf("razorpay order without id: %v", body)
	}
	order := gateway.Order{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	switch amt := body["amount"].(type) {
	case float64:
		order.Amount = int64(amt)
	case int64:
		order.Amount = amt
	case int:
		order.Amount = int64(amt)
	}
	return order, nil
}
