package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mensa-reservation/internal/handler"
	"github.com/iliyamo/mensa-reservation/internal/model"
)

// RegisterCustomer registers the student endpoints.  Booking, cancelling
// and paying require the CUSTOMER role; the personal history is open to
// any signed-in user.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	student := authenticated(jwtSecret, model.RoleCustomer)
	e.POST("/v1/menus/:id/reservations", h.Reserve, student...)

	g := e.Group("/v1/reservations", student...)
	g.GET("/:id", h.GetReservation)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/payment", h.StartPayment)
	g.POST("/:id/payment/capture", h.CapturePayment)

	signedIn := authenticated(jwtSecret, model.RoleCustomer, model.RoleManager)
	e.GET("/v1/me/reservations", h.ListMine, signedIn...)
	e.GET("/v1/me/transactions", h.ListTransactions, signedIn...)
}
