package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// CustomerHandler serves the student side of the reservation lifecycle:
// booking, cancelling, paying and the personal history.  All methods
// assume that JWT authentication and role validation have already been
// performed by middleware.
type CustomerHandler struct {
	Reservations ReservationService
	Payments     PaymentService
	Log          logrus.FieldLogger
}

func NewCustomerHandler(reservations ReservationService, payments PaymentService, log logrus.FieldLogger) *CustomerHandler {
	return &CustomerHandler{Reservations: reservations, Payments: payments, Log: log}
}

// Reserve handles POST /v1/menus/:id/reservations.  The body carries the
// pickup slot and an optional note; the new reservation is pending.
func (h *CustomerHandler) Reserve(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	menuID, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid menu id")
	}
	var req validation.ReservationInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	r, err := h.Reservations.CreateReservation(ctx, userID, menuID, req)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toReservation(*r))
}

// GetReservation handles GET /v1/reservations/:id.
func (h *CustomerHandler) GetReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	d, err := h.Reservations.GetForUser(ctx, userID, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toDetail(*d))
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *CustomerHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	r, err := h.Reservations.CancelReservation(ctx, id, userID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toReservation(*r))
}

// ListMine handles GET /v1/me/reservations.
func (h *CustomerHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Reservations.ListForUser(ctx, userID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": toDetails(list)})
}

// StartPayment handles POST /v1/reservations/:id/payment.  It opens a
// gateway order and returns its id and approval link.  The gateway call
// has its own deadline, so the request context is used as is.
func (h *CustomerHandler) StartPayment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}

	order, err := h.Payments.StartPayment(c.Request().Context(), userID, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// CapturePayment handles POST /v1/reservations/:id/payment/capture.  On
// success the reservation is paid and the transaction is returned.
func (h *CustomerHandler) CapturePayment(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}

	tx, err := h.Payments.CompletePayment(c.Request().Context(), userID, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTransaction(*tx))
}

// ListTransactions handles GET /v1/me/transactions: the latest payments.
func (h *CustomerHandler) ListTransactions(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Payments.ListTransactions(ctx, userID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	out := make([]transactionResp, 0, len(list))
	for _, t := range list {
		out = append(out, toTransaction(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}
