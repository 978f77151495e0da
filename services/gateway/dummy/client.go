// Package dummygw is an offline gateway.Client for development and tests.
package dummygw

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/classfund/core/gateway"
)

type Client struct {
	mu     sync.Mutex
	orders []gateway.Order
}

var _ gateway.Client = (*Client)(nil)

func NewClient() *Client {
	return &Client{}
}

func (c *Client) CreateOrder(_ context.Context, req gateway.OrderRequest) (gateway.Order, error) {
	amount, err := gateway.MinorUnits(req.Amount)
	if err != nil {
		return gateway.Order{}, err
	}
	receipt := gateway.Receipt(req.EventID, req.StudentID)

	c.mu.Lock()
	defer c.mu.Unlock()
	// ids must stay unique across restarts: they are stored with the payment
	order := gateway.Order{
		ID:       "order_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:14],
		Amount:   amount,
		Currency: req.Currency,
		Receipt:  receipt,
		Status:   "created",
	}
	c.orders = append(c.orders, order)
	return order, nil
}

// Orders returns the orders created so far.
func (c *Client) Orders() []gateway.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.Order(nil), c.orders...)
}
