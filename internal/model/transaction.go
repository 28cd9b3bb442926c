package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionKindMeal = "pagamento_pasto"

	TransactionCompleted = "completata"
	TransactionFailed    = "fallita"
	TransactionPending   = "in_attesa"

	PaymentMethodPayPal = "paypal"
)

// Transaction records a payment reported as completed by the payment
// gateway.  Rows are written once and never updated.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – paying user.
//  ReservationID   – reservation paid for (nullable).
//  Kind            – transaction type, pagamento_pasto for meals.
//  Amount          – amount charged.
//  Method          – payment method, e.g. paypal.
//  Status          – completata, fallita or in_attesa.
//  ExternalOrderID – gateway order identifier.
//  CreatedAt       – creation timestamp.
type Transaction struct {
	ID              uint64          `db:"id"`
	UserID          uint64          `db:"user_id"`
	ReservationID   *uint64         `db:"reservation_id"`
	Kind            string          `db:"kind"`
	Amount          decimal.Decimal `db:"amount"`
	Method          string          `db:"method"`
	Status          string          `db:"status"`
	ExternalOrderID *string         `db:"external_order_id"`
	CreatedAt       time.Time       `db:"created_at"`
}
