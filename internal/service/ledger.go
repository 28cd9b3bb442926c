package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/lock"
	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/repository"
	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// LedgerConfig describes the pickup slots and their shared capacity.
type LedgerConfig struct {
	Slots    []string
	Capacity int
	Location *time.Location
}

// SlotAvailability is the seat count of one pickup slot.
type SlotAvailability struct {
	Slot      string `json:"slot"`
	Capacity  int    `json:"capacity"`
	Taken     int    `json:"taken"`
	Available int    `json:"available"`
}

// Ledger owns the reservation lifecycle.  It keeps two invariants: a
// user holds at most one active reservation per menu, and a slot never
// has more active reservations than its capacity.  Both are checked
// under a per-menu lock and enforced again by the guarded insert.
type Ledger struct {
	menus        MenuStore
	reservations ReservationStore
	users        UserStore
	locks        lock.Locker
	notify       Notifier
	cfg          LedgerConfig
	log          logrus.FieldLogger
	now          func() time.Time
}

func NewLedger(menus MenuStore, reservations ReservationStore, users UserStore, locks lock.Locker, notify Notifier, cfg LedgerConfig, log logrus.FieldLogger) *Ledger {
	return &Ledger{
		menus:        menus,
		reservations: reservations,
		users:        users,
		locks:        locks,
		notify:       notify,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// CreateReservation books menuID for userID in the requested slot.  The
// reservation starts pending and holds its seat until it is cancelled.
func (l *Ledger) CreateReservation(ctx context.Context, userID, menuID uint64, in validation.ReservationInput) (*model.Reservation, error) {
	if err := validation.ValidateReservation(&in, l.cfg.Slots); err != nil {
		return nil, Invalid(err)
	}
	menu, err := l.menu(ctx, menuID)
	if err != nil {
		return nil, err
	}
	if !menu.Bookable(model.CivilDate(l.now(), l.cfg.Location)) {
		return nil, ErrMenuUnavailable
	}

	release, err := l.locks.Acquire(ctx, "menu:"+strconv.FormatUint(menuID, 10))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire menu lock: %w", err)
	}
	defer release()

	if _, err := l.reservations.FindActive(ctx, userID, menuID); err == nil {
		return nil, ErrAlreadyReserved
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find active reservation: %w", err)
	}
	free, err := l.AvailableSeats(ctx, menuID, in.PickupSlot)
	if err != nil {
		return nil, err
	}
	if free <= 0 {
		return nil, ErrSlotFull
	}

	res := &model.Reservation{
		UserID:     userID,
		MenuID:     menuID,
		PickupSlot: in.PickupSlot,
		Note:       optionalString(in.Note),
		Status:     model.StatusPending,
	}
	if err := l.reservations.InsertWithinCapacity(ctx, res, l.cfg.Capacity); err != nil {
		switch {
		case errors.Is(err, repository.ErrActiveExists):
			return nil, ErrAlreadyReserved
		case errors.Is(err, repository.ErrCapacity):
			return nil, ErrSlotFull
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrMenuNotFound
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	l.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"user_id":        userID,
		"menu_id":        menuID,
		"slot":           res.PickupSlot,
	}).Info("reservation created")
	return res, nil
}

// CancelReservation cancels a pending reservation owned by userID.
// Picked up and cancelled reservations are final; paid and confirmed
// ones need a refund, which is handled outside the application.
func (l *Ledger) CancelReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	res, err := l.reservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, ErrNotOwner
	}
	if err := cancellable(res.Status); err != nil {
		return nil, err
	}

	err = l.reservations.UpdateStatus(ctx, res.ID, model.StatusCancelled, res.Status)
	if errors.Is(err, repository.ErrStale) {
		// lost a race, most likely against a payment: report the state we lost to
		cur, gerr := l.reservation(ctx, reservationID)
		if gerr != nil {
			return nil, gerr
		}
		if cerr := cancellable(cur.Status); cerr != nil {
			return nil, cerr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("cancel reservation: %w", err)
	}
	res.Status = model.StatusCancelled
	res.UpdatedAt = l.now().UTC()

	l.log.WithFields(logrus.Fields{"reservation_id": res.ID, "user_id": userID}).Info("reservation cancelled")
	l.notifyAbout(ctx, *res, l.notify.ReservationCancelled)
	return res, nil
}

func cancellable(s model.Status) error {
	switch {
	case s.CanTransition(model.StatusCancelled):
		return nil
	case s.IsActive():
		return ErrAlreadyPaid
	default:
		return ErrTerminalState
	}
}

// AvailableSeats returns capacity minus the active reservations of the
// slot, never below zero.
func (l *Ledger) AvailableSeats(ctx context.Context, menuID uint64, slot string) (int, error) {
	if !l.knownSlot(slot) {
		return 0, Invalid(validation.ValidationError{Field: "pickup_slot", Message: "unknown pickup slot"})
	}
	taken, err := l.reservations.CountActiveBySlot(ctx, menuID, slot)
	if err != nil {
		return 0, fmt.Errorf("count slot: %w", err)
	}
	return max(0, l.cfg.Capacity-taken), nil
}

// SlotAvailability reports every configured slot of the menu in order.
func (l *Ledger) SlotAvailability(ctx context.Context, menuID uint64) ([]SlotAvailability, error) {
	if _, err := l.menu(ctx, menuID); err != nil {
		return nil, err
	}
	taken, err := l.reservations.CountActiveByMenu(ctx, menuID)
	if err != nil {
		return nil, fmt.Errorf("count slots: %w", err)
	}
	out := make([]SlotAvailability, 0, len(l.cfg.Slots))
	for _, s := range l.cfg.Slots {
		out = append(out, SlotAvailability{
			Slot:      s,
			Capacity:  l.cfg.Capacity,
			Taken:     taken[s],
			Available: max(0, l.cfg.Capacity-taken[s]),
		})
	}
	return out, nil
}

// ConfirmReservation is the manager acknowledging a paid reservation.
func (l *Ledger) ConfirmReservation(ctx context.Context, managerID, reservationID uint64) (*model.Reservation, error) {
	return l.advance(ctx, managerID, reservationID, model.StatusConfirmed)
}

// MarkPickedUp records that the meal was handed out.
func (l *Ledger) MarkPickedUp(ctx context.Context, managerID, reservationID uint64) (*model.Reservation, error) {
	return l.advance(ctx, managerID, reservationID, model.StatusPickedUp)
}

func (l *Ledger) advance(ctx context.Context, managerID, reservationID uint64, next model.Status) (*model.Reservation, error) {
	res, err := l.reservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if _, err := l.ownedMenu(ctx, managerID, res.MenuID); err != nil {
		return nil, err
	}
	if res.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if !res.Status.CanTransition(next) {
		return nil, ErrInvalidState
	}
	if err := l.reservations.UpdateStatus(ctx, res.ID, next, res.Status); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("update reservation status: %w", err)
	}
	res.Status = next
	res.UpdatedAt = l.now().UTC()
	return res, nil
}

// SendPickupReminders queues a reminder for every paid or confirmed
// reservation of the menu and returns how many were queued.
func (l *Ledger) SendPickupReminders(ctx context.Context, managerID, menuID uint64) (int, error) {
	if _, err := l.ownedMenu(ctx, managerID, menuID); err != nil {
		return 0, err
	}
	list, err := l.reservations.ListByMenu(ctx, menuID, model.StatusPaid, model.StatusConfirmed)
	if err != nil {
		return 0, fmt.Errorf("list reservations: %w", err)
	}
	sent := 0
	for _, d := range list {
		if l.notifyAbout(ctx, d.Reservation, l.notify.PickupReminder) {
			sent++
		}
	}
	return sent, nil
}

// GetForUser returns one of the user's reservations.
func (l *Ledger) GetForUser(ctx context.Context, userID, reservationID uint64) (*model.ReservationDetail, error) {
	d, err := l.reservations.GetDetail(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrNotOwner
	}
	return d, nil
}

// ListForUser returns all reservations of the user, newest menu first.
func (l *Ledger) ListForUser(ctx context.Context, userID uint64) ([]model.ReservationDetail, error) {
	return l.reservations.ListByUser(ctx, userID)
}

// ListForMenu returns the paid and confirmed reservations of a menu the
// manager owns, ordered by pickup slot.
func (l *Ledger) ListForMenu(ctx context.Context, managerID, menuID uint64) ([]model.ReservationDetail, error) {
	if _, err := l.ownedMenu(ctx, managerID, menuID); err != nil {
		return nil, err
	}
	return l.reservations.ListByMenu(ctx, menuID, model.StatusPaid, model.StatusConfirmed)
}

func (l *Ledger) knownSlot(slot string) bool {
	for _, s := range l.cfg.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

func (l *Ledger) menu(ctx context.Context, id uint64) (*model.Menu, error) {
	m, err := l.menus.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMenuNotFound
		}
		return nil, err
	}
	return m, nil
}

func (l *Ledger) ownedMenu(ctx context.Context, managerID, menuID uint64) (*model.Menu, error) {
	m, err := l.menu(ctx, menuID)
	if err != nil {
		return nil, err
	}
	if m.ManagerID != managerID {
		return nil, ErrNotOwner
	}
	return m, nil
}

func (l *Ledger) reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := l.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return r, nil
}

// notifyAbout loads the user and menu of r and hands them to send.  A
// lookup failure only costs the e-mail.
func (l *Ledger) notifyAbout(ctx context.Context, r model.Reservation, send func(context.Context, model.User, model.Reservation, model.Menu)) bool {
	u, err := l.users.GetByID(ctx, r.UserID)
	if err != nil {
		l.log.WithError(err).WithField("reservation_id", r.ID).Warn("notification skipped: user lookup failed")
		return false
	}
	m, err := l.menus.GetByID(ctx, r.MenuID)
	if err != nil {
		l.log.WithError(err).WithField("reservation_id", r.ID).Warn("notification skipped: menu lookup failed")
		return false
	}
	send(ctx, *u, r, *m)
	return true
}
