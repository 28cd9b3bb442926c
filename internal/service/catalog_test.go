package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mensa-reservation/internal/validation"
)

func newTestCatalog() (*Catalog, *memMenus) {
	menus := newMemMenus()
	c := NewCatalog(menus, time.UTC, quietLog())
	c.now = func() time.Time { return testNow }
	return c, menus
}

func menuForm(date string) validation.MenuInput {
	return validation.MenuInput{
		Date:        date,
		FirstCourse: "Risotto ai funghi",
		MainCourse:  "Cotoletta",
		SideDish:    "Insalata",
	}
}

func TestPublishMenu_Defaults(t *testing.T) {
	c, _ := newTestCatalog()
	calls := 0
	c.OnChange(func(context.Context) { calls++ })

	m, err := c.PublishMenu(context.Background(), 1, menuForm("2026-10-15"))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", m.DateString())
	assert.True(t, m.Price.Equal(DefaultMenuPrice))
	assert.True(t, m.Available)
	assert.Nil(t, m.Fruit)
	assert.Equal(t, uint64(1), m.ManagerID)
	assert.Equal(t, 1, calls)
}

func TestPublishMenu_Rules(t *testing.T) {
	c, _ := newTestCatalog()
	ctx := context.Background()

	_, err := c.PublishMenu(ctx, 1, menuForm("2026-10-14"))
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = c.PublishMenu(ctx, 1, menuForm("2026-10-16"))
	require.NoError(t, err)
	_, err = c.PublishMenu(ctx, 2, menuForm("2026-10-16"))
	assert.ErrorIs(t, err, ErrDuplicateDate)

	bad := menuForm("2026-10-20")
	bad.MainCourse = "  "
	_, err = c.PublishMenu(ctx, 1, bad)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)
	assert.Equal(t, "main_course", se.Field)
}

func TestUpdateMenu(t *testing.T) {
	c, _ := newTestCatalog()
	ctx := context.Background()
	m, err := c.PublishMenu(ctx, 1, menuForm("2026-10-16"))
	require.NoError(t, err)
	_, err = c.PublishMenu(ctx, 1, menuForm("2026-10-17"))
	require.NoError(t, err)

	_, err = c.UpdateMenu(ctx, 2, m.ID, InputFromMenu(*m))
	assert.ErrorIs(t, err, ErrNotOwner)

	in := InputFromMenu(*m)
	in.Date = "2026-10-17"
	_, err = c.UpdateMenu(ctx, 1, m.ID, in)
	assert.ErrorIs(t, err, ErrDuplicateDate)

	in = InputFromMenu(*m)
	price := decimal.RequireFromString("6.50")
	closed := false
	in.Price, in.Available, in.Dessert = &price, &closed, "Tiramisù"
	got, err := c.UpdateMenu(ctx, 1, m.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "6.50", got.Price.StringFixed(2))
	assert.False(t, got.Available)
	require.NotNil(t, got.Dessert)
	assert.Equal(t, "Tiramisù", *got.Dessert)

	_, err = c.UpdateMenu(ctx, 1, 999, in)
	assert.ErrorIs(t, err, ErrMenuNotFound)
}

func TestListAvailable(t *testing.T) {
	c, menus := newTestCatalog()
	ctx := context.Background()

	_, err := c.PublishMenu(ctx, 1, menuForm("2026-10-15"))
	require.NoError(t, err)
	hidden := menuForm("2026-10-16")
	off := false
	hidden.Available = &off
	_, err = c.PublishMenu(ctx, 1, hidden)
	require.NoError(t, err)
	_, err = c.PublishMenu(ctx, 1, menuForm("2026-10-17"))
	require.NoError(t, err)

	// yesterday's menu, published before midnight
	old := menuForm("2026-10-14")
	c.now = func() time.Time { return testNow.AddDate(0, 0, -1) }
	_, err = c.PublishMenu(ctx, 1, old)
	require.NoError(t, err)
	c.now = func() time.Time { return testNow }

	list, err := c.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2026-10-15", list[0].DateString())
	assert.Equal(t, "2026-10-17", list[1].DateString())

	mine, err := c.ListByManager(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 4)
	assert.Len(t, menus.byID, 4)
}
