package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mensa-reservation/internal/handler"
	"github.com/iliyamo/mensa-reservation/internal/model"
)

// RegisterManager registers MANAGER-scoped endpoints under /v1/manager.
// All routes require a valid JWT and the MANAGER role; ownership of the
// menu is checked by the services.
func RegisterManager(e *echo.Echo, m *handler.ManagerHandler, jwtSecret string) {
	g := e.Group("/v1/manager", authenticated(jwtSecret, model.RoleManager)...)

	// ---- Menus ----
	g.POST("/menus", m.CreateMenu)
	g.GET("/menus", m.ListMenus)
	g.PUT("/menus/:id", m.UpdateMenu)
	g.PATCH("/menus/:id", m.UpdateMenu) // partial update
	g.GET("/menus/:id/reservations", m.ListMenuReservations)
	g.POST("/menus/:id/reminders", m.SendReminders)

	// ---- Reservations ----
	g.POST("/reservations/:id/confirm", m.ConfirmReservation)
	g.POST("/reservations/:id/pickup", m.MarkPickedUp)
}
