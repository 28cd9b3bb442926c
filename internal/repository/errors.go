// Package repository holds the MySQL data access layer.  Errors shared
// by several repositories are defined here so that services can tell
// failure scenarios apart with errors.Is.  For example, ErrStale means a
// guarded UPDATE matched no row because the record changed state in the
// meantime, while ErrCapacity means a pickup slot filled up between the
// caller's check and the insert.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrDuplicate is returned when an insert or update hits a unique key.
// The concrete error is a *DuplicateError naming the key.
var ErrDuplicate = errors.New("duplicate entry")

// ErrStale is returned by guarded status updates that matched no row.
var ErrStale = errors.New("stale state")

// ErrCapacity is returned when a pickup slot has no seats left.
var ErrCapacity = errors.New("slot capacity reached")

// ErrActiveExists is returned when the user already holds an active
// reservation for the menu.
var ErrActiveExists = errors.New("active reservation exists")

// DuplicateError wraps a MySQL 1062 error together with the name of the
// violated unique key, e.g. "uq_users_email".
type DuplicateError struct {
	Key string
	Err error
}

func (e *DuplicateError) Error() string { return "duplicate entry for key " + e.Key }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *DuplicateError) Unwrap() error { return e.Err }

// asDuplicate converts a MySQL duplicate-key error into a *DuplicateError
// and returns other errors unchanged.
func asDuplicate(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return &DuplicateError{Key: duplicateKey(me.Message), Err: err}
	}
	if strings.Contains(err.Error(), "1062") {
		return &DuplicateError{Key: duplicateKey(err.Error()), Err: err}
	}
	return err
}

// duplicateKey pulls the key name out of
// "Duplicate entry 'x' for key 'users.uq_users_email'".
func duplicateKey(msg string) string {
	i := strings.LastIndex(msg, "for key ")
	if i < 0 {
		return ""
	}
	key := strings.Trim(msg[i+len("for key "):], "'` ")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}
