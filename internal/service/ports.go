package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

// The store interfaces are satisfied by the MySQL repositories and by
// the in-memory fakes used in tests.  They report failures with the
// repository sentinels (ErrNotFound, ErrStale, ...).

type MenuStore interface {
	Create(ctx context.Context, m *model.Menu) error
	Update(ctx context.Context, m *model.Menu) error
	GetByID(ctx context.Context, id uint64) (*model.Menu, error)
	GetByDate(ctx context.Context, day time.Time) (*model.Menu, error)
	ListAvailable(ctx context.Context, from time.Time) ([]model.Menu, error)
	ListByManager(ctx context.Context, managerID uint64) ([]model.Menu, error)
}

type ReservationStore interface {
	InsertWithinCapacity(ctx context.Context, r *model.Reservation, capacity int) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error)
	FindActive(ctx context.Context, userID, menuID uint64) (*model.Reservation, error)
	CountActiveBySlot(ctx context.Context, menuID uint64, slot string) (int, error)
	CountActiveByMenu(ctx context.Context, menuID uint64) (map[string]int, error)
	UpdateStatus(ctx context.Context, id uint64, next model.Status, from ...model.Status) error
	SetPaymentRef(ctx context.Context, id uint64, ref string) error
	RecordPayment(ctx context.Context, reservationID uint64, t *model.Transaction) error
	ListByUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error)
	ListByMenu(ctx context.Context, menuID uint64, statuses ...model.Status) ([]model.ReservationDetail, error)
}

type TransactionStore interface {
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error)
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByStudentID(ctx context.Context, studentID string) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	UpdateProfile(ctx context.Context, u *model.User) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Notifier sends e-mails.  Every method returns immediately; delivery
// happens in the background and its failures never reach the caller.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, u model.User, r model.Reservation, m model.Menu, amount decimal.Decimal)
	ReservationCancelled(ctx context.Context, u model.User, r model.Reservation, m model.Menu)
	PickupReminder(ctx context.Context, u model.User, r model.Reservation, m model.Menu)
	PasswordReset(ctx context.Context, u model.User, token string, ttl time.Duration)
}
