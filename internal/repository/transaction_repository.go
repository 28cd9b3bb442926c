package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

const transactionColumns = `id, user_id, reservation_id, kind, amount, method, status, external_order_id, created_at`

// TransactionRepo reads the payment ledger.  Rows are only ever written
// by ReservationRepo.RecordPayment, together with the status change they
// pay for.
type TransactionRepo struct{ db *sqlx.DB }

func NewTransactionRepo(db *sqlx.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// ListByUser returns the user's most recent transactions, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	out := []model.Transaction{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		userID, limit)
	return out, err
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *model.Transaction) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, reservation_id, kind, amount, method, status, external_order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.ReservationID, t.Kind, t.Amount, t.Method, t.Status, t.ExternalOrderID)
	if err != nil {
		return asDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}
