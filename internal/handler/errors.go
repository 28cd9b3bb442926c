package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/service"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:   http.StatusBadRequest,
	service.KindNotFound:     http.StatusNotFound,
	service.KindForbidden:    http.StatusForbidden,
	service.KindUnauthorized: http.StatusUnauthorized,
	service.KindConflict:     http.StatusConflict,
	service.KindState:        http.StatusConflict,
	service.KindExternal:     http.StatusBadGateway,
	service.KindUnavailable:  http.StatusServiceUnavailable,
}

// respond writes a service error as {"error": code, "message": msg}.
// Anything that is not a *service.Error is logged and hidden behind a
// generic 500.
func respond(c echo.Context, log logrus.FieldLogger, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		log.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"path":       c.Path(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}).Error("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error", "message": "internal server error"})
	}
	status, ok := kindStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := echo.Map{"error": se.Code, "message": se.Message}
	if se.Field != "" {
		body["field"] = se.Field
	}
	return c.JSON(status, body)
}
