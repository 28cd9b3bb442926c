package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

// PayPal is the Gateway backed by the PayPal Orders v2 API.
type PayPal struct {
	client *paypal.Client
}

// NewPayPal builds a client for apiBase (paypal.APIBaseSandBox or
// paypal.APIBaseLive).  Every HTTP round trip is capped by timeout.
func NewPayPal(clientID, secret, apiBase string, timeout time.Duration) (*PayPal, error) {
	c, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.Client = &http.Client{Timeout: timeout}
	return &PayPal{client: c}, nil
}

// APIBase maps the configured mode to the PayPal endpoint.
func APIBase(mode string) string {
	if mode == "live" {
		return paypal.APIBaseLive
	}
	return paypal.APIBaseSandBox
}

func (p *PayPal) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, description string) (Order, error) {
	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    amount.StringFixed(2),
		},
		Description: description,
	}}
	o, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return Order{}, fmt.Errorf("paypal create order: %w", err)
	}
	if o.ID == "" {
		return Order{}, ErrNoOrder
	}
	out := Order{ID: o.ID, Status: o.Status}
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			out.ApproveURL = l.Href
			break
		}
	}
	return out, nil
}

func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	res, err := p.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return Capture{}, fmt.Errorf("paypal capture order %s: %w", orderID, err)
	}
	raw, _ := json.Marshal(res)
	return Capture{OrderID: res.ID, Status: res.Status, Raw: raw}, nil
}
