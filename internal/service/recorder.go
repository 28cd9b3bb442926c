package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/payment"
	"github.com/iliyamo/mensa-reservation/internal/repository"
)

// transactionHistory is how many transactions a user sees on the profile.
const transactionHistory = 10

// Recorder drives payment of a reservation: it opens an order with the
// gateway, captures it, and records the completed payment.
type Recorder struct {
	reservations ReservationStore
	menus        MenuStore
	users        UserStore
	transactions TransactionStore
	gateway      payment.Gateway
	notify       Notifier
	currency     string
	timeout      time.Duration
	log          logrus.FieldLogger
}

func NewRecorder(reservations ReservationStore, menus MenuStore, users UserStore, transactions TransactionStore,
	gateway payment.Gateway, notify Notifier, currency string, timeout time.Duration, log logrus.FieldLogger) *Recorder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Recorder{
		reservations: reservations,
		menus:        menus,
		users:        users,
		transactions: transactions,
		gateway:      gateway,
		notify:       notify,
		currency:     currency,
		timeout:      timeout,
		log:          log,
	}
}

// StartPayment opens a gateway order for the menu price of a pending
// reservation and remembers the order id on the reservation.
func (r *Recorder) StartPayment(ctx context.Context, userID, reservationID uint64) (payment.Order, error) {
	res, err := r.ownedPending(ctx, userID, reservationID)
	if err != nil {
		return payment.Order{}, err
	}
	menu, err := r.menus.GetByID(ctx, res.MenuID)
	if err != nil {
		return payment.Order{}, fmt.Errorf("load menu: %w", err)
	}

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	order, err := r.gateway.CreateOrder(gctx, menu.Price, r.currency, "Speed Mensa - pasto del "+menu.DateString())
	if err != nil {
		r.log.WithError(err).WithField("reservation_id", res.ID).Error("payment order creation failed")
		return payment.Order{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	if err := r.reservations.SetPaymentRef(ctx, res.ID, order.ID); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return payment.Order{}, ErrInvalidState
		}
		return payment.Order{}, fmt.Errorf("store payment ref: %w", err)
	}
	r.log.WithFields(logrus.Fields{"reservation_id": res.ID, "order_id": order.ID}).Info("payment started")
	return order, nil
}

// CompletePayment captures the order started by StartPayment.  Only a
// COMPLETED capture counts; anything else, including a gateway error
// or timeout, is ErrPaymentFailed and leaves the reservation pending.
func (r *Recorder) CompletePayment(ctx context.Context, userID, reservationID uint64) (*model.Transaction, error) {
	res, err := r.ownedPending(ctx, userID, reservationID)
	if err != nil {
		return nil, err
	}
	if res.PaymentRef == nil || *res.PaymentRef == "" {
		return nil, ErrPaymentNotStarted
	}
	orderID := *res.PaymentRef
	fields := logrus.Fields{"reservation_id": res.ID, "user_id": userID, "order_id": orderID}

	// price first: after the capture only ConfirmPayment may fail
	menu, err := r.menus.GetByID(ctx, res.MenuID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	capture, err := r.gateway.CaptureOrder(gctx, orderID)
	if err != nil {
		r.log.WithError(err).WithFields(fields).Error("payment capture failed")
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if !capture.Completed() {
		r.log.WithFields(fields).WithFields(logrus.Fields{
			"status":            capture.Status,
			"provider_response": string(capture.Raw),
		}).Warn("payment not completed")
		return nil, fmt.Errorf("%w: status %s", ErrPaymentFailed, capture.Status)
	}

	t, err := r.ConfirmPayment(ctx, res.ID, menu.Price, model.PaymentMethodPayPal, orderID)
	if err != nil {
		// money moved but the reservation changed under us; needs a manual refund
		r.log.WithError(err).WithFields(fields).Error("captured payment could not be recorded")
		return nil, err
	}
	return t, nil
}

// ConfirmPayment records a completed payment and moves the reservation
// from pending to paid.  Both writes commit together.  Calling it again
// for the same reservation fails with ErrInvalidState and writes
// nothing.
func (r *Recorder) ConfirmPayment(ctx context.Context, reservationID uint64, amount decimal.Decimal, method, externalOrderID string) (*model.Transaction, error) {
	res, err := r.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if !res.Status.CanTransition(model.StatusPaid) {
		return nil, ErrInvalidState
	}

	t := &model.Transaction{
		UserID: res.UserID,
		Kind:   model.TransactionKindMeal,
		Amount: amount,
		Method: method,
		Status: model.TransactionCompleted,
	}
	if externalOrderID != "" {
		t.ExternalOrderID = &externalOrderID
	}
	if err := r.reservations.RecordPayment(ctx, res.ID, t); err != nil {
		if errors.Is(err, repository.ErrStale) || errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("record payment: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res.Status = model.StatusPaid
	r.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"transaction_id": t.ID,
		"amount":         amount.StringFixed(2),
	}).Info("payment recorded")

	r.notifyConfirmed(ctx, *res, amount)
	return t, nil
}

// ListTransactions returns the user's latest transactions.
func (r *Recorder) ListTransactions(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	return r.transactions.ListByUser(ctx, userID, transactionHistory)
}

func (r *Recorder) ownedPending(ctx context.Context, userID, reservationID uint64) (*model.Reservation, error) {
	res, err := r.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if res.UserID != userID {
		return nil, ErrNotOwner
	}
	if !res.Status.CanTransition(model.StatusPaid) {
		return nil, ErrInvalidState
	}
	return res, nil
}

func (r *Recorder) notifyConfirmed(ctx context.Context, res model.Reservation, amount decimal.Decimal) {
	u, err := r.users.GetByID(ctx, res.UserID)
	if err != nil {
		r.log.WithError(err).WithField("reservation_id", res.ID).Warn("notification skipped: user lookup failed")
		return
	}
	m, err := r.menus.GetByID(ctx, res.MenuID)
	if err != nil {
		r.log.WithError(err).WithField("reservation_id", res.ID).Warn("notification skipped: menu lookup failed")
		return
	}
	r.notify.ReservationConfirmed(ctx, *u, res, *m, amount)
}
