package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/repository"
	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// DefaultMenuPrice applies when a manager publishes a menu without a price.
var DefaultMenuPrice = decimal.RequireFromString("5.00")

// Catalog manages the daily menus.  There is at most one menu per date
// and only its creating manager may change it.
type Catalog struct {
	menus    MenuStore
	loc      *time.Location
	log      logrus.FieldLogger
	now      func() time.Time
	onChange []func(context.Context)
}

func NewCatalog(menus MenuStore, loc *time.Location, log logrus.FieldLogger) *Catalog {
	return &Catalog{menus: menus, loc: loc, log: log, now: time.Now}
}

// OnChange registers a hook run after a menu is published or updated,
// e.g. to purge cached listings.
func (c *Catalog) OnChange(fn func(context.Context)) { c.onChange = append(c.onChange, fn) }

// Today is the current canteen calendar day.
func (c *Catalog) Today() time.Time { return model.CivilDate(c.now(), c.loc) }

// PublishMenu creates the menu for in.Date on behalf of managerID.
func (c *Catalog) PublishMenu(ctx context.Context, managerID uint64, in validation.MenuInput) (*model.Menu, error) {
	if err := validation.ValidateMenu(&in); err != nil {
		return nil, Invalid(err)
	}
	day, _ := model.ParseDate(in.Date)
	if day.Before(c.Today()) {
		return nil, ErrPastDate
	}
	if _, err := c.menus.GetByDate(ctx, day); err == nil {
		return nil, ErrDuplicateDate
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup menu by date: %w", err)
	}

	m := &model.Menu{ManagerID: managerID}
	applyMenuInput(m, in, day)
	if err := c.menus.Create(ctx, m); err != nil {
		// the unique key on menu_date settles two managers racing for one day
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateDate
		}
		return nil, fmt.Errorf("create menu: %w", err)
	}
	c.log.WithFields(logrus.Fields{"menu_id": m.ID, "manager_id": managerID, "date": in.Date}).Info("menu published")
	c.changed(ctx)
	return m, nil
}

// UpdateMenu replaces the editable fields of menuID.  Callers doing a
// partial update start from InputFromMenu and overlay their changes.
func (c *Catalog) UpdateMenu(ctx context.Context, managerID, menuID uint64, in validation.MenuInput) (*model.Menu, error) {
	m, err := c.GetMenu(ctx, menuID)
	if err != nil {
		return nil, err
	}
	if m.ManagerID != managerID {
		return nil, ErrNotOwner
	}
	if err := validation.ValidateMenu(&in); err != nil {
		return nil, Invalid(err)
	}
	day, _ := model.ParseDate(in.Date)
	if !day.Equal(m.Date) {
		if day.Before(c.Today()) {
			return nil, ErrPastDate
		}
		if other, err := c.menus.GetByDate(ctx, day); err == nil && other.ID != m.ID {
			return nil, ErrDuplicateDate
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup menu by date: %w", err)
		}
	}

	applyMenuInput(m, in, day)
	if err := c.menus.Update(ctx, m); err != nil {
		switch {
		case errors.Is(err, repository.ErrForbidden):
			return nil, ErrNotOwner
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrMenuNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateDate
		}
		return nil, fmt.Errorf("update menu: %w", err)
	}
	c.changed(ctx)
	return m, nil
}

// GetMenu returns one menu regardless of its availability.
func (c *Catalog) GetMenu(ctx context.Context, id uint64) (*model.Menu, error) {
	m, err := c.menus.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMenuNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListAvailable returns the menus students can book: dated today or
// later and flagged available.
func (c *Catalog) ListAvailable(ctx context.Context) ([]model.Menu, error) {
	return c.menus.ListAvailable(ctx, c.Today())
}

// ListByManager returns the manager's own menus, newest first.
func (c *Catalog) ListByManager(ctx context.Context, managerID uint64) ([]model.Menu, error) {
	return c.menus.ListByManager(ctx, managerID)
}

// InputFromMenu is the form a manager would see when editing m.
func InputFromMenu(m model.Menu) validation.MenuInput {
	price := m.Price
	available := m.Available
	in := validation.MenuInput{
		Date:        m.DateString(),
		FirstCourse: m.FirstCourse,
		MainCourse:  m.MainCourse,
		SideDish:    m.SideDish,
		Price:       &price,
		Available:   &available,
	}
	if m.Fruit != nil {
		in.Fruit = *m.Fruit
	}
	if m.Dessert != nil {
		in.Dessert = *m.Dessert
	}
	return in
}

func applyMenuInput(m *model.Menu, in validation.MenuInput, day time.Time) {
	m.Date = day
	m.FirstCourse = in.FirstCourse
	m.MainCourse = in.MainCourse
	m.SideDish = in.SideDish
	m.Fruit = optionalString(in.Fruit)
	m.Dessert = optionalString(in.Dessert)
	m.Price = DefaultMenuPrice
	if in.Price != nil {
		m.Price = *in.Price
	}
	m.Available = in.Available == nil || *in.Available
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (c *Catalog) changed(ctx context.Context) {
	for _, fn := range c.onChange {
		fn(ctx)
	}
}
