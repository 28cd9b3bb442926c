package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and form format of a menu date.
const DateLayout = "2006-01-02"

// Menu is the daily menu served by the canteen.  There is at most
// one menu per calendar date; it is created by a manager and only
// that manager may change it.  Menus are never deleted, a manager
// withdraws one by clearing Available.
//
// Fields:
//  ID          – primary key identifier.
//  Date        – calendar date served (menus.menu_date, unique).
//  FirstCourse – primo, mandatory.
//  MainCourse  – secondo, mandatory.
//  SideDish    – contorno, mandatory.
//  Fruit       – frutta, optional.
//  Dessert     – dolce, optional.
//  Price       – meal price in the configured currency.
//  Available   – whether students can book it.
//  ManagerID   – user ID of the creating manager.
//  CreatedAt   – creation timestamp.
type Menu struct {
	ID          uint64          `db:"id"`
	Date        time.Time       `db:"menu_date"`
	FirstCourse string          `db:"first_course"`
	MainCourse  string          `db:"main_course"`
	SideDish    string          `db:"side_dish"`
	Fruit       *string         `db:"fruit"`
	Dessert     *string         `db:"dessert"`
	Price       decimal.Decimal `db:"price"`
	Available   bool            `db:"available"`
	ManagerID   uint64          `db:"manager_id"`
	CreatedAt   time.Time       `db:"created_at"`
}

// DateString formats the menu date as YYYY-MM-DD.
func (m Menu) DateString() string { return m.Date.Format(DateLayout) }

// Bookable reports whether the menu accepts reservations on the
// given calendar day.
func (m Menu) Bookable(today time.Time) bool {
	return m.Available && !m.Date.Before(today)
}

// CivilDate strips the clock from t as seen in loc and returns the
// resulting calendar day at midnight UTC, which is how DATE columns
// come back from the driver (loc=UTC).
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, mo, d := t.In(loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD menu date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
