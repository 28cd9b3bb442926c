package handler

import (
	"context"

	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/payment"
	"github.com/iliyamo/mensa-reservation/internal/service"
	"github.com/iliyamo/mensa-reservation/internal/utils"
	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// The handlers depend on these method sets; *service.Accounts,
// *service.Catalog, *service.Ledger and *service.Recorder satisfy them.

type AccountService interface {
	Register(ctx context.Context, in validation.RegistrationInput) (*service.Session, error)
	Authenticate(ctx context.Context, login, password string) (*service.Session, error)
	Refresh(ctx context.Context, raw string) (*service.Session, error)
	RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error)
	Logout(ctx context.Context, userID uint64, raw string) error
	Profile(ctx context.Context, userID uint64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uint64, in validation.ProfileInput) (*model.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) (*model.User, error)
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

type MenuService interface {
	PublishMenu(ctx context.Context, managerID uint64, in validation.MenuInput) (*model.Menu, error)
	UpdateMenu(ctx context.Context, managerID, menuID uint64, in validation.MenuInput) (*model.Menu, error)
	GetMenu(ctx context.Context, id uint64) (*model.Menu, error)
	ListAvailable(ctx context.Context) ([]model.Menu, error)
	ListByManager(ctx context.Context, managerID uint64) ([]model.Menu, error)
}

type ReservationService interface {
	CreateReservation(ctx context.Context, userID, menuID uint64, in validation.ReservationInput) (*model.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
	SlotAvailability(ctx context.Context, menuID uint64) ([]service.SlotAvailability, error)
	ConfirmReservation(ctx context.Context, managerID, reservationID uint64) (*model.Reservation, error)
	MarkPickedUp(ctx context.Context, managerID, reservationID uint64) (*model.Reservation, error)
	SendPickupReminders(ctx context.Context, managerID, menuID uint64) (int, error)
	GetForUser(ctx context.Context, userID, reservationID uint64) (*model.ReservationDetail, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error)
	ListForMenu(ctx context.Context, managerID, menuID uint64) ([]model.ReservationDetail, error)
}

type PaymentService interface {
	StartPayment(ctx context.Context, userID, reservationID uint64) (payment.Order, error)
	CompletePayment(ctx context.Context, userID, reservationID uint64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID uint64) ([]model.Transaction, error)
}
