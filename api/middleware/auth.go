package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/digitalrevolution/dr-backend/api/responses"
	pkgAuth "github.com/digitalrevolution/dr-backend/pkg/auth"
	"github.com/digitalrevolution/dr-backend/pkg/config"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
	"github.com/digitalrevolution/dr-backend/pkg/logger"
)

// GuestCookie identifies an anonymous shopper's cart.
const GuestCookie = "dr_guest_id"

// Auth requires a bearer token from the identity provider and seeds the
// request context with its subject.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			ctx, err := authenticate(r.Context(), cfg, token, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth accepts a bearer token when one is sent; otherwise the guest
// cookie, if any, identifies the caller. A token that is present but invalid is
// still rejected.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if token := bearerToken(r); token != "" {
				authed, err := authenticate(ctx, cfg, token, logg)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(authed))
				return
			}

			if cookie, err := r.Cookie(GuestCookie); err == nil {
				if guest := strings.TrimSpace(cookie.Value); guest != "" {
					ctx = WithGuestID(ctx, guest)
					if logg != nil {
						ctx = logg.WithField(ctx, "guest_id", guest)
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, token string, logg *logger.Logger) (context.Context, error) {
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return ctx, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	userID, _ := claims.UserID()
	ctx = WithUserID(ctx, userID.String())
	if logg != nil {
		ctx = logg.WithUserID(ctx, userID.String())
	}
	return ctx, nil
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}
