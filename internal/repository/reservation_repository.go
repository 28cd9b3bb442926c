package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

const reservationColumns = `id, user_id, menu_id, pickup_slot, note, status, payment_ref, created_at, updated_at`

// activeIn matches the states that occupy a seat.
var activeIn = "status IN (" + quoteStatuses(model.ActiveStatuses) + ")"

const detailSelect = `SELECT r.id, r.user_id, r.menu_id, r.pickup_slot, r.note, r.status, r.payment_ref,
                             r.created_at, r.updated_at,
                             m.menu_date, m.first_course, m.main_course, m.side_dish, u.username
                      FROM reservations r
                      JOIN menus m ON m.id = r.menu_id
                      JOIN users u ON u.id = r.user_id`

// ReservationRepo provides persistence for reservations.  Rows are
// never deleted; every state change goes through a guarded UPDATE that
// names the states it may leave, so concurrent transitions cannot both
// succeed.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// InsertWithinCapacity inserts res in the pending state unless the user
// already holds an active reservation for the menu (ErrActiveExists) or
// the slot already has capacity active reservations (ErrCapacity).  The
// menu row is locked with SELECT ... FOR UPDATE for the duration of the
// transaction, which serialises concurrent inserts for the same menu
// across every server instance.
func (r *ReservationRepo) InsertWithinCapacity(ctx context.Context, res *model.Reservation, capacity int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var menuID uint64
	if err := tx.GetContext(ctx, &menuID, "SELECT id FROM menus WHERE id = ? FOR UPDATE", res.MenuID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	var held int
	if err := tx.GetContext(ctx, &held,
		"SELECT COUNT(*) FROM reservations WHERE user_id = ? AND menu_id = ? AND "+activeIn,
		res.UserID, res.MenuID); err != nil {
		return err
	}
	if held > 0 {
		return ErrActiveExists
	}

	var taken int
	if err := tx.GetContext(ctx, &taken,
		"SELECT COUNT(*) FROM reservations WHERE menu_id = ? AND pickup_slot = ? AND "+activeIn,
		res.MenuID, res.PickupSlot); err != nil {
		return err
	}
	if taken >= capacity {
		return ErrCapacity
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO reservations (user_id, menu_id, pickup_slot, note, status) VALUES (?, ?, ?, ?, ?)",
		res.UserID, res.MenuID, res.PickupSlot, res.Note, model.StatusPending)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to populate timestamps and defaults
	if err := tx.GetContext(ctx, res, "SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns the reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	if err := r.db.GetContext(ctx, &res, "SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// FindActive returns the user's active reservation for the menu, or
// ErrNotFound when there is none.
func (r *ReservationRepo) FindActive(ctx context.Context, userID, menuID uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.GetContext(ctx, &res,
		"SELECT "+reservationColumns+" FROM reservations WHERE user_id = ? AND menu_id = ? AND "+activeIn+" LIMIT 1",
		userID, menuID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// CountActiveBySlot counts the seats taken in one pickup slot.
func (r *ReservationRepo) CountActiveBySlot(ctx context.Context, menuID uint64, slot string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM reservations WHERE menu_id = ? AND pickup_slot = ? AND "+activeIn,
		menuID, slot)
	return n, err
}

// CountActiveByMenu returns taken seats per pickup slot.  Slots with no
// reservations are absent from the map.
func (r *ReservationRepo) CountActiveByMenu(ctx context.Context, menuID uint64) (map[string]int, error) {
	var rows []struct {
		Slot  string `db:"pickup_slot"`
		Taken int    `db:"taken"`
	}
	err := r.db.SelectContext(ctx, &rows,
		"SELECT pickup_slot, COUNT(*) AS taken FROM reservations WHERE menu_id = ? AND "+activeIn+" GROUP BY pickup_slot",
		menuID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Slot] = row.Taken
	}
	return out, nil
}

// UpdateStatus moves reservation id to next, provided it is currently in
// one of from.  ErrStale means the row was not in any of those states
// (or does not exist).
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, next model.Status, from ...model.Status) error {
	return updateStatus(ctx, r.db, id, next, from...)
}

// SetPaymentRef stores the gateway order id on a pending reservation.
func (r *ReservationRepo) SetPaymentRef(ctx context.Context, id uint64, ref string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE reservations SET payment_ref = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?",
		ref, id, model.StatusPending)
	if err != nil {
		return err
	}
	return staleIfNone(res)
}

// RecordPayment is the single point where a reservation becomes paid:
// the guarded pending -> paid update and the transaction insert commit
// together or not at all.  A second call for the same reservation finds
// it no longer pending and fails with ErrStale without writing a row.
func (r *ReservationRepo) RecordPayment(ctx context.Context, reservationID uint64, t *model.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := updateStatus(ctx, tx, reservationID, model.StatusPaid, model.Sources(model.StatusPaid)...); err != nil {
		return err
	}
	t.ReservationID = &reservationID
	if err := insertTransaction(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByUser returns the user's reservations, most recent menu first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error) {
	out := []model.ReservationDetail{}
	err := r.db.SelectContext(ctx, &out,
		detailSelect+" WHERE r.user_id = ? ORDER BY m.menu_date DESC, r.created_at DESC", userID)
	return out, err
}

// GetDetail returns one reservation joined with its menu and owner.
func (r *ReservationRepo) GetDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	var d model.ReservationDetail
	if err := r.db.GetContext(ctx, &d, detailSelect+" WHERE r.id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListByMenu returns the menu's reservations in the given states ordered
// by pickup slot, which is how the counter staff work through them.
func (r *ReservationRepo) ListByMenu(ctx context.Context, menuID uint64, statuses ...model.Status) ([]model.ReservationDetail, error) {
	out := []model.ReservationDetail{}
	if len(statuses) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(detailSelect+" WHERE r.menu_id = ? AND r.status IN (?) ORDER BY r.pickup_slot, r.created_at",
		menuID, statusArgs(statuses))
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func updateStatus(ctx context.Context, ex sqlx.ExtContext, id uint64, next model.Status, from ...model.Status) error {
	if len(from) == 0 {
		return ErrStale
	}
	q, args, err := sqlx.In("UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status IN (?)",
		next, id, statusArgs(from))
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, ex.Rebind(q), args...)
	if err != nil {
		return err
	}
	return staleIfNone(res)
}

func staleIfNone(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}

func statusArgs(ss []model.Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// quoteStatuses renders states as a SQL literal list, e.g. 'pending','paid'.
func quoteStatuses(ss []model.Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ",")
}
