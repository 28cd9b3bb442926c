package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/repository"
	"github.com/iliyamo/mensa-reservation/internal/utils"
	"github.com/iliyamo/mensa-reservation/internal/validation"
)

// AccountsConfig carries the token and hashing settings.
type AccountsConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	ResetTTL       time.Duration
	BcryptCost     int
}

// Session is what a successful login or refresh hands back.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Accounts handles registration, login, profile edits and password
// resets.
type Accounts struct {
	users  UserStore
	tokens TokenStore
	notify Notifier
	cfg    AccountsConfig
	log    logrus.FieldLogger
}

func NewAccounts(users UserStore, tokens TokenStore, notify Notifier, cfg AccountsConfig, log logrus.FieldLogger) *Accounts {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	return &Accounts{users: users, tokens: tokens, notify: notify, cfg: cfg, log: log}
}

// Register creates a student account and opens a session for it.
func (a *Accounts) Register(ctx context.Context, in validation.RegistrationInput) (*Session, error) {
	if err := validation.ValidateRegistration(&in); err != nil {
		return nil, Invalid(err)
	}
	profile := validation.ProfileInput{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		StudentID: in.StudentID,
	}
	if err := a.checkUnique(ctx, 0, profile); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password, a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	sid := in.StudentID
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		StudentID:    &sid,
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, duplicateField(err)
	}
	a.log.WithField("user_id", u.ID).Info("user registered")
	return a.openSession(ctx, *u)
}

// Authenticate checks a username or e-mail and password.
func (a *Accounts) Authenticate(ctx context.Context, login, password string) (*Session, error) {
	u, err := a.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	return a.openSession(ctx, *u)
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (a *Accounts) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash := utils.HashRefreshRaw(raw)
	u, err := a.refreshUser(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := a.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, fmt.Errorf("revoke refresh: %w", err)
	}
	return a.openSession(ctx, *u)
}

// RefreshAccess issues a new access token without rotating the refresh
// token.
func (a *Accounts) RefreshAccess(ctx context.Context, raw string) (utils.AccessToken, error) {
	u, err := a.refreshUser(ctx, utils.HashRefreshRaw(raw))
	if err != nil {
		return utils.AccessToken{}, err
	}
	return utils.NewAccessToken(a.cfg.JWTSecret, u.ID, u.Role, a.cfg.AccessTTLMin)
}

// Logout revokes one refresh token when raw is set, otherwise every
// token of userID.
func (a *Accounts) Logout(ctx context.Context, userID uint64, raw string) error {
	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := a.tokens.ValidateRefresh(ctx, hash); err != nil {
			return ErrInvalidRefresh
		}
		return a.tokens.RevokeByHash(ctx, hash)
	}
	if userID == 0 {
		return ErrInvalidRefresh
	}
	return a.tokens.RevokeAllForUser(ctx, userID)
}

// Profile returns the user record.
func (a *Accounts) Profile(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile changes the editable profile fields.  Username, e-mail
// and student id must stay unique.
func (a *Accounts) UpdateProfile(ctx context.Context, userID uint64, in validation.ProfileInput) (*model.User, error) {
	u, err := a.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateProfile(&in); err != nil {
		return nil, Invalid(err)
	}
	if err := a.checkUnique(ctx, u.ID, in); err != nil {
		return nil, err
	}
	sid := in.StudentID
	u.Username, u.Email, u.FirstName, u.LastName, u.StudentID = in.Username, in.Email, in.FirstName, in.LastName, &sid
	if err := a.users.UpdateProfile(ctx, u); err != nil {
		return nil, duplicateField(err)
	}
	return u, nil
}

// RequestPasswordReset e-mails a reset token.  Unknown addresses are
// accepted silently so the endpoint does not reveal who is registered.
func (a *Accounts) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := a.users.GetByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := utils.NewResetToken(a.cfg.JWTSecret, u.ID, u.PasswordHash, a.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	a.notify.PasswordReset(ctx, *u, token, a.cfg.ResetTTL)
	return nil
}

// VerifyResetToken returns the user a reset token was issued for, or
// ErrInvalidResetToken.
func (a *Accounts) VerifyResetToken(ctx context.Context, token string) (*model.User, error) {
	uid, fp, err := utils.VerifyResetToken(a.cfg.JWTSecret, token)
	if err != nil {
		return nil, ErrInvalidResetToken
	}
	u, err := a.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	if utils.PasswordFingerprint(u.PasswordHash) != fp {
		return nil, ErrInvalidResetToken
	}
	return u, nil
}

// ResetPassword sets a new password using a reset token and logs the
// user out everywhere.
func (a *Accounts) ResetPassword(ctx context.Context, token, password, confirm string) error {
	u, err := a.VerifyResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return Invalid(err)
	}
	if password != confirm {
		return Invalid(validation.ValidationError{Field: "confirm_password", Message: "passwords do not match"})
	}
	hash, err := utils.HashPassword(password, a.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := a.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		a.log.WithError(err).WithField("user_id", u.ID).Warn("revoke sessions after reset failed")
	}
	return nil
}

func (a *Accounts) refreshUser(ctx context.Context, hash string) (*model.User, error) {
	uid, err := a.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	u, err := a.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	return u, nil
}

func (a *Accounts) openSession(ctx context.Context, u model.User) (*Session, error) {
	access, err := utils.NewAccessToken(a.cfg.JWTSecret, u.ID, u.Role, a.cfg.AccessTTLMin)
	if err != nil {
		return nil, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(a.cfg.RefreshTTLDays)
	if err != nil {
		return nil, fmt.Errorf("issue refresh: %w", err)
	}
	if err := a.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, fmt.Errorf("save refresh: %w", err)
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

// checkUnique reports which identifying field already belongs to
// another user.  selfID is skipped so a profile can be saved unchanged.
func (a *Accounts) checkUnique(ctx context.Context, selfID uint64, in validation.ProfileInput) error {
	checks := []struct {
		lookup func(context.Context, string) (*model.User, error)
		value  string
		taken  *Error
	}{
		{a.users.GetByUsername, in.Username, ErrUsernameTaken},
		{a.users.GetByEmail, in.Email, ErrEmailTaken},
		{a.users.GetByStudentID, in.StudentID, ErrStudentIDTaken},
	}
	for _, c := range checks {
		u, err := c.lookup(ctx, c.value)
		if err == nil && u.ID != selfID {
			return c.taken
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

// duplicateField maps a unique-key violation that slipped past
// checkUnique (a concurrent registration) to the matching error.
func duplicateField(err error) error {
	var dup *repository.DuplicateError
	if !errors.As(err, &dup) {
		return err
	}
	switch dup.Key {
	case "uq_users_username":
		return ErrUsernameTaken
	case "uq_users_student_id":
		return ErrStudentIDTaken
	default:
		return ErrEmailTaken
	}
}
