package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// AuthHandler bundles dependencies for auth and profile endpoints.
type AuthHandler struct {
	Accounts AccountService
	Log      logrus.FieldLogger
}

func NewAuthHandler(accounts AccountService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Log: log}
}

type loginReq struct {
	Login    string `json:"login"` // username or e-mail
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequestReq struct {
	Email string `json:"email"`
}

type resetConfirmReq struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register: create a student account and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req validation.RegistrationInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Accounts.Register(ctx, req)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toAuth(s))
}

// Login: verify username or e-mail and password, return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	login := strings.TrimSpace(req.Login)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" || req.Password == "" {
		return badRequest(c, "login/password required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Accounts.Authenticate(ctx, login, req.Password)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Accounts.Refresh(ctx, raw)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toAuth(s))
}

// RefreshAccess returns a new access token WITHOUT rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	access, err := h.Accounts.RefreshAccess(ctx, raw)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes the refresh token in the body.  It does not require an
// access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Accounts.Logout(ctx, 0, raw); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Accounts.Profile(ctx, uid)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUser(*u))
}

// UpdateMe replaces the editable profile fields.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req validation.ProfileInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Accounts.UpdateProfile(ctx, uid, req)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUser(*u))
}

// RequestPasswordReset always answers 202 so callers cannot probe which
// addresses are registered.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return badRequest(c, "email required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Accounts.RequestPasswordReset(ctx, req.Email); err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "if the address is registered, a reset link has been sent"})
}

// VerifyPasswordReset lets the client check a reset link before showing
// the new password form.
func (h *AuthHandler) VerifyPasswordReset(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Accounts.VerifyResetToken(ctx, c.Param("token"))
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "username": u.Username})
}

// ConfirmPasswordReset sets the new password.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return badRequest(c, "token required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Accounts.ResetPassword(ctx, strings.TrimSpace(req.Token), req.Password, req.ConfirmPassword); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindRefresh(c echo.Context) (string, bool) {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return "", false
	}
	raw := strings.TrimSpace(req.RefreshToken)
	return raw, raw != ""
}
