// Package logger builds the process-wide logrus logger and the echo
// middleware that writes one structured entry per HTTP request.
package logger

import (
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// New returns a logger for the given environment.  Development gets the
// human readable text formatter, everything else JSON.
func New(env, level string) *logrus.Logger {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l := &logrus.Logger{
		Out:   os.Stdout,
		Hooks: make(logrus.LevelHooks),
		Level: lvl,
	}
	if env == "dev" {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableLevelTruncation: true}
	} else {
		l.Formatter = &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return l
}

// Requests logs method, route, status and latency of every request.  The
// request id comes from echo's RequestID middleware, which must run first.
func Requests(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			res := c.Response()
			fields := logrus.Fields{
				"method":     c.Request().Method,
				"path":       c.Path(),
				"uri":        c.Request().RequestURI,
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"request_id": res.Header().Get(echo.HeaderXRequestID),
				"ip":         c.RealIP(),
			}
			if uid := c.Get("user_id"); uid != nil {
				fields["user_id"] = uid
			}
			entry := log.WithFields(fields)
			switch {
			case res.Status >= 500:
				entry.Error("request failed")
			case res.Status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
			return nil
		}
	}
}
