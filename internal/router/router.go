package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mensa-reservation/internal/handler"
	"github.com/iliyamo/mensa-reservation/internal/middleware"
	"github.com/iliyamo/mensa-reservation/internal/model"
)

// RegisterRoutes registers the health endpoints.  /healthz only says the
// process is up; /readyz also pings the database.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers all authentication-related routes.  Operations
// that do not need an existing session live under /v1/auth; the profile
// endpoints under /v1/me need a valid access token of any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token and keeps the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes the refresh token in the body, no access token needed.
	g.POST("/logout", a.Logout)
	g.POST("/password-reset", a.RequestPasswordReset)
	g.GET("/password-reset/:token", a.VerifyPasswordReset)
	g.POST("/password-reset/confirm", a.ConfirmPasswordReset)

	signedIn := authenticated(jwtSecret, model.RoleCustomer, model.RoleManager)
	e.GET("/v1/me", a.Me, signedIn...)
	e.PUT("/v1/me", a.UpdateMe, signedIn...)
}

// RegisterPublic registers unauthenticated browse endpoints.  The menu
// listing goes through the response cache, which the catalog purges
// whenever a menu changes.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/menus", p.ListMenus, cache)
	e.GET("/v1/menus/:id", p.GetMenu)
	e.GET("/v1/menus/:id/slots", p.GetMenuSlots)
}

// authenticated is the middleware chain of a protected route.  It is
// attached per route because several scopes share the /v1 prefix.
func authenticated(jwtSecret string, roles ...string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(roles...),
	}
}
