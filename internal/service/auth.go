package service

// AuthService is the account side of the pantry:
//
//	AuthHandler (HTTP) -> AuthService -> UserRepository (DB)
//	                               \-> PasswordService (bcrypt)
//	                               \-> TokenService (JWT)
//
// Login accepts either the email or the username in one field. Unknown
// logins and wrong passwords produce the same Unauthorized error so the
// response never reveals which accounts exist.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/auth"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxUsernameLength = 50
	TokenTypeBearer   = "bearer"
)

type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Registration is the input of Register.
type Registration struct {
	Email    string
	Username string
	Password string
}

// Token is the login response body.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates an active, non-superuser account. Email is stored lower-cased.
func (s *AuthService) Register(ctx context.Context, reg Registration) (*model.User, error) {
	return s.createUser(ctx, reg, false)
}

func (s *AuthService) createUser(ctx context.Context, reg Registration, superuser bool) (*model.User, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(reg.Username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength || strings.ContainsAny(username, " \t\r\n@") {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be at most %d characters without spaces or @", MaxUsernameLength))
	}
	if len(reg.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(reg.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperror.ValidationFailed("password", err.Error())
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  superuser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create user",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("superuser", user.IsSuperuser),
	)
	return user, nil
}

// Login checks login (email or username) and password and issues an access token.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Token, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return nil, apperror.Unauthorized("incorrect username or password")
	case err != nil:
		s.logger.Error("login lookup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: looking up %q: %w", login, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", slog.String("user_id", user.ID))
		return nil, apperror.Unauthorized("incorrect username or password")
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("inactive user")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return &Token{AccessToken: token, TokenType: TokenTypeBearer}, nil
}

// CurrentUser loads the account behind caller.
func (s *AuthService) CurrentUser(ctx context.Context, caller access.Caller) (*model.User, error) {
	if caller.UserID == "" {
		return nil, apperror.Unauthorized("not authenticated")
	}
	user, err := s.users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", caller.UserID, err)
	}
	return user, nil
}

// DeleteAccount removes caller's account together with every item they own.
func (s *AuthService) DeleteAccount(ctx context.Context, caller access.Caller) error {
	if caller.UserID == "" {
		return apperror.Unauthorized("not authenticated")
	}
	if err := s.users.DeleteUser(ctx, caller.UserID); err != nil {
		return fmt.Errorf("service/auth: deleting user %s: %w", caller.UserID, err)
	}
	s.logger.Info("user deleted", slog.String("user_id", caller.UserID))
	return nil
}

// EnsureSuperuser creates the bootstrap superuser unless an account with
// that email already exists. created reports whether a new account was made.
func (s *AuthService) EnsureSuperuser(ctx context.Context, reg Registration) (user *model.User, created bool, err error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.users.GetUserByLogin(ctx, email)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fmt.Errorf("service/auth: looking up superuser: %w", err)
	}

	user, err = s.createUser(ctx, reg, true)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is not a valid address")
	}
	return email, nil
}
