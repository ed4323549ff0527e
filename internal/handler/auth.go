package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/auth"
	"github.com/sakif/metapantry/internal/service"
)

// AuthHandler manages accounts and sessions.
//
//	POST   /auth/register -> create account, 201 with the user
//	POST   /auth/login    -> {"access_token": ..., "token_type": "bearer"} (+ token cookie)
//	POST   /auth/logout   -> clear the token cookie
//	GET    /users/me      -> current user
//	DELETE /users/me      -> delete account and all owned items
//
// Login accepts a JSON body or an OAuth2-style form
// (application/x-www-form-urlencoded with username and password), so
// standard password-grant clients work unchanged.
type AuthHandler struct {
	accounts  *service.AuthService
	validate  *validator.Validate
	cookieTTL time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieTTL should match the token TTL.
func NewAuthHandler(accounts *service.AuthService, validate *validator.Validate, cookieTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		validate:  validate,
		cookieTTL: cookieTTL,
		logger:    logger,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// loginRequest takes the login in "username" (which may hold an email) or
// in "email".
type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

func (req loginRequest) login() string {
	if req.Username != "" {
		return req.Username
	}
	return req.Email
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), service.Registration{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			writeError(w, h.logger, apperror.InvalidInput("invalid form body", err))
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if err := decodeJSON(w, r, h.validate, &req, false); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.accounts.Login(r.Context(), req.login(), req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// HttpOnly keeps the token away from page scripts. Secure is left to the
	// TLS-terminating proxy.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token.AccessToken,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, token)
}

// HandleLogout deletes the cookie. Tokens are stateless, so a copied bearer
// token stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.accounts.CurrentUser(r.Context(), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.accounts.DeleteAccount(r.Context(), caller); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/x-www-form-urlencoded")
}
