package handler // handler package contains manager-specific menu handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/service"
	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// ManagerHandler serves the canteen manager ("gestore"): publishing menus
// and following the reservations made on them.  Ownership of each menu is
// enforced by the services, not here.
type ManagerHandler struct {
	Menus        MenuService
	Reservations ReservationService
	Log          logrus.FieldLogger
}

func NewManagerHandler(menus MenuService, reservations ReservationService, log logrus.FieldLogger) *ManagerHandler {
	return &ManagerHandler{Menus: menus, Reservations: reservations, Log: log}
}

// CreateMenu handles POST /v1/manager/menus.  Price defaults to 5.00 and
// available to true when omitted.
func (h *ManagerHandler) CreateMenu(c echo.Context) error {
	managerID, err := getUserID(c) // extract user ID from context
	if err != nil {
		return unauthorized(c)
	}
	var body validation.MenuInput
	if err := c.Bind(&body); err != nil { // bind incoming JSON
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	m, err := h.Menus.PublishMenu(ctx, managerID, body)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toMenu(*m))
}

// UpdateMenu handles PUT and PATCH /v1/manager/menus/:id.  PUT replaces
// the whole form; PATCH starts from the stored menu and overlays only the
// fields present in the body.
func (h *ManagerHandler) UpdateMenu(c echo.Context) error {
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

	var body validation.MenuInput
	if c.Request().Method == http.MethodPatch {
		current, err := h.Menus.GetMenu(ctx, menuID)
		if err != nil {
			return respond(c, h.Log, err)
		}
		body = service.InputFromMenu(*current) // absent JSON keys keep these values
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	m, err := h.Menus.UpdateMenu(ctx, managerID, menuID, body)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toMenu(*m))
}

// ListMenus handles GET /v1/manager/menus: the manager's menus, newest first.
func (h *ManagerHandler) ListMenus(c echo.Context) error {
	managerID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Menus.ListByManager(ctx, managerID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"menus": toMenus(list)})
}
