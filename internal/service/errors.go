package service

import (
	"errors"

	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// Kind groups errors by how the caller should react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindState
	KindExternal
	KindUnavailable
)

// Error is a business rule violation.  Code is stable and machine
// readable; Message is for humans.  Field is set for validation errors.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrMenuNotFound        = newErr(KindNotFound, "menu_not_found", "menu not found")
	ErrReservationNotFound = newErr(KindNotFound, "reservation_not_found", "reservation not found")
	ErrUserNotFound        = newErr(KindNotFound, "user_not_found", "user not found")

	ErrNotOwner = newErr(KindForbidden, "not_owner", "you do not own this resource")

	ErrAlreadyReserved = newErr(KindConflict, "already_reserved", "you already have a reservation for this menu")
	ErrSlotFull        = newErr(KindConflict, "slot_full", "the selected pickup slot is full")
	ErrMenuUnavailable = newErr(KindConflict, "menu_unavailable", "menu is not available for booking")
	ErrDuplicateDate   = newErr(KindConflict, "duplicate_date", "a menu already exists for this date")
	ErrUsernameTaken   = newErr(KindConflict, "username_taken", "username already in use")
	ErrEmailTaken      = newErr(KindConflict, "email_taken", "email already registered")
	ErrStudentIDTaken  = newErr(KindConflict, "student_id_taken", "student id already registered")

	ErrPastDate = newErr(KindValidation, "past_date", "menu date is in the past")

	ErrTerminalState      = newErr(KindState, "terminal_state", "reservation can no longer change")
	ErrAlreadyPaid        = newErr(KindState, "already_paid", "a paid reservation cannot be cancelled")
	ErrInvalidState       = newErr(KindState, "invalid_state", "reservation is not in the required state")
	ErrPaymentNotStarted  = newErr(KindState, "payment_not_started", "no payment has been started for this reservation")
	ErrInvalidResetToken  = newErr(KindValidation, "invalid_reset_token", "reset link is invalid or expired")
	ErrInvalidCredentials = newErr(KindUnauthorized, "invalid_credentials", "invalid credentials")
	ErrInvalidRefresh     = newErr(KindUnauthorized, "invalid_refresh", "invalid refresh token")
	ErrAccountDisabled    = newErr(KindForbidden, "account_disabled", "account is disabled")

	ErrPaymentFailed = newErr(KindExternal, "payment_failed", "payment was not completed")
	ErrBusy          = newErr(KindUnavailable, "busy", "too many concurrent requests, retry shortly")
)

// Invalid wraps a validation failure.
func Invalid(err error) *Error {
	var ve validation.ValidationError
	if errors.As(err, &ve) {
		return &Error{Kind: KindValidation, Code: "validation_error", Message: ve.Message, Field: ve.Field}
	}
	return &Error{Kind: KindValidation, Code: "validation_error", Message: err.Error()}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
