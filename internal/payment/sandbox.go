package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox is the development gateway used when no PayPal credentials
// are configured.  Orders get random ids and every known order captures
// as completed.
type Sandbox struct {
	mu     sync.Mutex
	orders map[string]decimal.Decimal
}

func NewSandbox() *Sandbox { return &Sandbox{orders: make(map[string]decimal.Decimal)} }

func (s *Sandbox) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, description string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	id := "SANDBOX-" + uuid.NewString()
	s.mu.Lock()
	s.orders[id] = amount
	s.mu.Unlock()
	return Order{ID: id, Status: "CREATED"}, nil
}

func (s *Sandbox) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return Capture{}, err
	}
	s.mu.Lock()
	_, ok := s.orders[orderID]
	s.mu.Unlock()
	if !ok {
		return Capture{OrderID: orderID, Status: "NOT_FOUND"}, nil
	}
	return Capture{OrderID: orderID, Status: StatusCompleted}, nil
}
