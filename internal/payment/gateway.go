// Package payment talks to the external payment provider.  The rest of
// the application only sees Gateway: create an order for an amount,
// later capture it, and treat StatusCompleted as the one success signal.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// StatusCompleted is the capture status that means the money moved.
const StatusCompleted = "COMPLETED"

// ErrNoOrder is returned when the provider answers without an order id.
var ErrNoOrder = errors.New("payment provider returned no order id")

// Order is a freshly created checkout order.  ApproveURL is where the
// payer confirms the payment; it is empty for the sandbox gateway.
type Order struct {
	ID         string `json:"order_id"`
	Status     string `json:"status"`
	ApproveURL string `json:"approve_url,omitempty"`
}

// Capture is the provider's answer to a capture request.  Raw keeps the
// provider payload for logging.
type Capture struct {
	OrderID string
	Status  string
	Raw     []byte
}

// Completed reports whether the capture moved the money.
func (c Capture) Completed() bool { return c.Status == StatusCompleted }

// Gateway creates and captures orders.  Implementations must honour ctx
// deadlines.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, description string) (Order, error)
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
}
