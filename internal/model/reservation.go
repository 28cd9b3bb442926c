package model

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusConfirmed Status = "confirmed"
	StatusPickedUp  Status = "picked_up"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses occupy slot capacity and block a second booking of
// the same menu by the same user.
var ActiveStatuses = []Status{StatusPending, StatusPaid, StatusConfirmed}

// statusOrder fixes the order Sources reports states in.
var statusOrder = []Status{StatusPending, StatusPaid, StatusConfirmed, StatusPickedUp, StatusCancelled}

// transitions lists the allowed next states.  Only a pending
// reservation can be cancelled; once paid, getting the money back is a
// refund handled outside the application.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusConfirmed},
	StatusConfirmed: {StatusPickedUp},
}

// IsActive reports whether s still holds a seat.
func (s Status) IsActive() bool {
	return slices.Contains(ActiveStatuses, s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusPickedUp || s == StatusCancelled
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// Sources returns the states from which next can be reached.
func Sources(next Status) []Status {
	var out []Status
	for _, s := range statusOrder {
		if s.CanTransition(next) {
			out = append(out, s)
		}
	}
	return out
}

// Reservation records a student's booking of a daily menu for a
// pickup slot.  Reservations are never deleted: cancelling one moves
// it to the cancelled state, which frees its seat.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who made the reservation.
//  MenuID     – menu being reserved.
//  PickupSlot – pickup time, e.g. "12:30".
//  Note       – optional free text (allergies, intolerances).
//  Status     – lifecycle state, see Status.
//  PaymentRef – external order id of the payment in progress, if any.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Reservation struct {
	ID         uint64    `db:"id"`
	UserID     uint64    `db:"user_id"`
	MenuID     uint64    `db:"menu_id"`
	PickupSlot string    `db:"pickup_slot"`
	Note       *string   `db:"note"`
	Status     Status    `db:"status"`
	PaymentRef *string   `db:"payment_ref"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ReservationDetail joins a reservation with the menu it refers to.
// It is what list endpoints return.
type ReservationDetail struct {
	Reservation
	MenuDate    time.Time `db:"menu_date"`
	FirstCourse string    `db:"first_course"`
	MainCourse  string    `db:"main_course"`
	SideDish    string    `db:"side_dish"`
	Username    string    `db:"username"`
}
