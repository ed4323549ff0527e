package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
)

// CookieName is the cookie RequireAuth falls back to when no Authorization
// header is sent.
const CookieName = "token"

// UserLookup is the slice of the user repository the middleware needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth rejects requests without a valid token for an active account
// and stores the verified access.Caller in the request context.
//
//	req -> RequireAuth -> handler
//	        |  token?   -> 401
//	        |  user?    -> 401 (deleted) / 503 (store down)
//	        |  active?  -> 401
//	        v
//	    ctx += Caller{UserID, Superuser}
func RequireAuth(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("rejected token", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusUnauthorized, "could not validate credentials")
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			switch {
			case errors.Is(err, apperror.ErrNotFound):
				writeAuthError(w, http.StatusUnauthorized, "could not validate credentials")
				return
			case err != nil:
				logger.Error("loading authenticated user",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				writeAuthError(w, http.StatusServiceUnavailable, "storage unavailable")
				return
			case !user.IsActive:
				writeAuthError(w, http.StatusUnauthorized, "inactive user")
				return
			}

			ctx := access.WithCaller(r.Context(), access.Caller{
				UserID:    user.ID,
				Superuser: user.IsSuperuser,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest prefers "Authorization: Bearer <jwt>" and falls back to
// the token cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	kind := "unauthorized"
	if status == http.StatusServiceUnavailable {
		kind = "storage_unavailable"
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message}) //nolint:errcheck
}
