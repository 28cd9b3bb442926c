package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

const menuColumns = `id, menu_date, first_course, main_course, side_dish, fruit, dessert, price, available, manager_id, created_at`

// MenuRepo stores the daily menus.  menus.menu_date is unique, so a
// second menu for the same day fails with a *DuplicateError.
type MenuRepo struct{ db *sqlx.DB }

func NewMenuRepo(db *sqlx.DB) *MenuRepo { return &MenuRepo{db: db} }

// Create inserts m and populates its ID and creation time.
func (r *MenuRepo) Create(ctx context.Context, m *model.Menu) error {
	const q = `INSERT INTO menus (menu_date, first_course, main_course, side_dish, fruit, dessert, price, available, manager_id)
	           VALUES (?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q,
		m.Date, m.FirstCourse, m.MainCourse, m.SideDish, m.Fruit, m.Dessert, m.Price, m.Available, m.ManagerID)
	if err != nil {
		return asDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Update rewrites every editable column.  The WHERE clause also pins
// the owner so a menu can only change through its creating manager;
// ErrForbidden is returned when the row exists but belongs to someone
// else.
func (r *MenuRepo) Update(ctx context.Context, m *model.Menu) error {
	const q = `UPDATE menus
	           SET menu_date=?, first_course=?, main_course=?, side_dish=?, fruit=?, dessert=?, price=?, available=?
	           WHERE id=? AND manager_id=?`
	res, err := r.db.ExecContext(ctx, q,
		m.Date, m.FirstCourse, m.MainCourse, m.SideDish, m.Fruit, m.Dessert, m.Price, m.Available, m.ID, m.ManagerID)
	if err != nil {
		return asDuplicate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, m.ID); err != nil {
			return err
		}
		return ErrForbidden
	}
	return nil
}

// GetByID returns the menu or ErrNotFound.
func (r *MenuRepo) GetByID(ctx context.Context, id uint64) (*model.Menu, error) {
	return r.getOne(ctx, "SELECT "+menuColumns+" FROM menus WHERE id=?", id)
}

// GetByDate returns the menu served on day or ErrNotFound.
func (r *MenuRepo) GetByDate(ctx context.Context, day time.Time) (*model.Menu, error) {
	return r.getOne(ctx, "SELECT "+menuColumns+" FROM menus WHERE menu_date=?", day)
}

// ListAvailable returns bookable menus dated on or after from, soonest
// first.
func (r *MenuRepo) ListAvailable(ctx context.Context, from time.Time) ([]model.Menu, error) {
	menus := []model.Menu{}
	err := r.db.SelectContext(ctx, &menus,
		"SELECT "+menuColumns+" FROM menus WHERE menu_date >= ? AND available = 1 ORDER BY menu_date ASC", from)
	return menus, err
}

// ListByManager returns every menu created by managerID, newest date
// first.
func (r *MenuRepo) ListByManager(ctx context.Context, managerID uint64) ([]model.Menu, error) {
	menus := []model.Menu{}
	err := r.db.SelectContext(ctx, &menus,
		"SELECT "+menuColumns+" FROM menus WHERE manager_id = ? ORDER BY menu_date DESC", managerID)
	return menus, err
}

func (r *MenuRepo) getOne(ctx context.Context, q string, arg any) (*model.Menu, error) {
	var m model.Menu
	if err := r.db.GetContext(ctx, &m, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
