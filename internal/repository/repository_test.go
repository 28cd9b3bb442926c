package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var reservationCols = []string{"id", "user_id", "menu_id", "pickup_slot", "note", "status", "payment_ref", "created_at", "updated_at"}

func TestInsertWithinCapacity_Inserts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM menus WHERE id = ? FOR UPDATE")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM reservations WHERE user_id = ? AND menu_id = ?")).WithArgs(3, 7).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM reservations WHERE menu_id = ? AND pickup_slot = ?")).WithArgs(7, "12:00").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(49))
	mock.ExpectExec(q("INSERT INTO reservations")).
		WithArgs(3, 7, "12:00", sqlmock.AnyArg(), "pending").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(q("FROM reservations WHERE id = ?")).WithArgs(42).
		WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(42, 3, 7, "12:00", nil, "pending", nil, now, now))
	mock.ExpectCommit()

	res := &model.Reservation{UserID: 3, MenuID: 7, PickupSlot: "12:00"}
	require.NoError(t, repo.InsertWithinCapacity(context.Background(), res, 50))
	assert.Equal(t, uint64(42), res.ID)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWithinCapacity_SlotFull(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(q("WHERE user_id = ? AND menu_id = ?")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(q("AND pickup_slot = ?")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.InsertWithinCapacity(context.Background(), &model.Reservation{UserID: 4, MenuID: 7, PickupSlot: "12:00"}, 1)
	assert.ErrorIs(t, err, ErrCapacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWithinCapacity_ActiveExists(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(q("WHERE user_id = ? AND menu_id = ?")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.InsertWithinCapacity(context.Background(), &model.Reservation{UserID: 3, MenuID: 7, PickupSlot: "12:30"}, 50)
	assert.ErrorIs(t, err, ErrActiveExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWithinCapacity_MissingMenu(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.InsertWithinCapacity(context.Background(), &model.Reservation{UserID: 3, MenuID: 99, PickupSlot: "12:30"}, 50)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_StaleWhenNothingMatched(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectExec(q("UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status IN (?, ?)")).
		WithArgs("cancelled", 5, "pending", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 5, model.StatusCancelled, model.StatusPending, model.StatusPaid)
	assert.ErrorIs(t, err, ErrStale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayment_CommitsStatusAndTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	order := "ORDER-1"

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE reservations SET status = ?")).WithArgs("paid", 5, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO transactions")).
		WithArgs(3, 5, model.TransactionKindMeal, sqlmock.AnyArg(), model.PaymentMethodPayPal, model.TransactionCompleted, order).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	tr := &model.Transaction{
		UserID:          3,
		Kind:            model.TransactionKindMeal,
		Amount:          decimal.RequireFromString("5.00"),
		Method:          model.PaymentMethodPayPal,
		Status:          model.TransactionCompleted,
		ExternalOrderID: &order,
	}
	require.NoError(t, repo.RecordPayment(context.Background(), 5, tr))
	assert.Equal(t, uint64(11), tr.ID)
	require.NotNil(t, tr.ReservationID)
	assert.Equal(t, uint64(5), *tr.ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayment_SecondCallWritesNothing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE reservations SET status = ?")).WithArgs("paid", 5, "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordPayment(context.Background(), 5, &model.Transaction{UserID: 3})
	assert.ErrorIs(t, err, ErrStale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByMenu_ExpandsStatuses(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)
	now := time.Now().UTC()

	cols := append(append([]string{}, reservationCols...), "menu_date", "first_course", "main_course", "side_dish", "username")
	mock.ExpectQuery(q("WHERE r.menu_id = ? AND r.status IN (?, ?) ORDER BY r.pickup_slot")).
		WithArgs(7, "paid", "confirmed").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 3, 7, "12:00", nil, "paid", "ORDER-1", now, now, now, "Pasta", "Pollo", "Insalata", "mrossi").
			AddRow(2, 4, 7, "13:00", "celiaco", "confirmed", "ORDER-2", now, now, now, "Pasta", "Pollo", "Insalata", "lbianchi"))

	out, err := repo.ListByMenu(context.Background(), 7, model.StatusPaid, model.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "mrossi", out[0].Username)
	require.NotNil(t, out[1].Note)
	assert.Equal(t, "celiaco", *out[1].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountActiveByMenu(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReservationRepo(db)

	mock.ExpectQuery(q("GROUP BY pickup_slot")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"pickup_slot", "taken"}).AddRow("12:00", 3).AddRow("13:30", 50))

	got, err := repo.CountActiveByMenu(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"12:00": 3, "13:30": 50}, got)
}

func TestMenuUpdate_ForbiddenForOtherManager(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuRepo(db)
	now := time.Now().UTC()

	mock.ExpectExec(q("UPDATE menus")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM menus WHERE id=?")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "menu_date", "first_course", "main_course", "side_dish", "fruit", "dessert", "price", "available", "manager_id", "created_at"}).
			AddRow(7, now, "Pasta", "Pollo", "Insalata", nil, nil, "5.00", 1, 1, now))

	err := repo.Update(context.Background(), &model.Menu{ID: 7, ManagerID: 2, Date: now, Price: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMenuCreate_DuplicateDate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMenuRepo(db)

	mock.ExpectExec(q("INSERT INTO menus")).WillReturnError(&mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry '2026-10-20' for key 'menus.uq_menus_date'",
	})

	err := repo.Create(context.Background(), &model.Menu{Date: time.Now().UTC(), ManagerID: 1})
	require.ErrorIs(t, err, ErrDuplicate)
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "uq_menus_date", dup.Key)
}

func TestUserGetByLogin_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(q("FROM users WHERE email=?")).WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByLogin(context.Background(), " Nobody@Example.com ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateKey(t *testing.T) {
	tests := []struct{ msg, want string }{
		{"Duplicate entry 'x' for key 'users.uq_users_email'", "uq_users_email"},
		{"Duplicate entry 'x' for key 'uq_users_username'", "uq_users_username"},
		{"something else", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, duplicateKey(tt.msg))
	}
}

func TestActiveInFollowsModel(t *testing.T) {
	assert.Equal(t, "status IN ('pending','paid','confirmed')", activeIn)
}
