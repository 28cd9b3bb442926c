package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mensa-reservation/internal/model"
)

// ListMenuReservations handles GET /v1/manager/menus/:id/reservations.  Only
// paid and confirmed reservations are listed, ordered by pickup slot, which
// is the list the counter works from.
func (h *ManagerHandler) ListMenuReservations(c echo.Context) error {
	managerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	menuID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid menu id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Reservations.ListForMenu(ctx, managerID, menuID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"menu_id": menuID, "reservations": toDetails(list)})
}

// SendReminders handles POST /v1/manager/menus/:id/reminders.
func (h *ManagerHandler) SendReminders(c echo.Context) error {
	managerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	menuID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid menu id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	n, err := h.Reservations.SendPickupReminders(ctx, managerID, menuID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"queued": n})
}

// ConfirmReservation handles POST /v1/manager/reservations/:id/confirm
// (paid to confirmed).
func (h *ManagerHandler) ConfirmReservation(c echo.Context) error {
	return h.transition(c, h.Reservations.ConfirmReservation)
}

// MarkPickedUp handles POST /v1/manager/reservations/:id/pickup
// (confirmed to picked_up).
func (h *ManagerHandler) MarkPickedUp(c echo.Context) error {
	return h.transition(c, h.Reservations.MarkPickedUp)
}

func (h *ManagerHandler) transition(c echo.Context, move func(ctx context.Context, managerID, reservationID uint64) (*model.Reservation, error)) error {
	managerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	r, err := move(ctx, managerID, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toReservation(*r))
}
