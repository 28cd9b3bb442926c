// This file defines handlers for the public browsing API.  These routes let
// anyone see which menus can be booked and how full each pickup slot is,
// without authentication.

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// PublicHandler serves the unauthenticated menu endpoints.
type PublicHandler struct {
	Menus        MenuService
	Reservations ReservationService
	Log          logrus.FieldLogger
}

func NewPublicHandler(menus MenuService, reservations ReservationService, log logrus.FieldLogger) *PublicHandler {
	return &PublicHandler{Menus: menus, Reservations: reservations, Log: log}
}

// ListMenus handles GET /v1/menus: bookable menus from today on, by date.
func (h *PublicHandler) ListMenus(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Menus.ListAvailable(ctx)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"menus": toMenus(list)})
}

// GetMenu handles GET /v1/menus/:id.
func (h *PublicHandler) GetMenu(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid menu id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	m, err := h.Menus.GetMenu(ctx, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toMenu(*m))
}

// GetMenuSlots handles GET /v1/menus/:id/slots: capacity, taken and free
// seats of every pickup slot.
func (h *PublicHandler) GetMenuSlots(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid menu id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	slots, err := h.Reservations.SlotAvailability(ctx, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"menu_id": id, "slots": slots})
}
