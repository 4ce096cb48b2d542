package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

// JWTAuthMiddleware validates HS256 Bearer tokens and injects the subject
// claim into the context as the user id. A non-empty issuer must match the
// token's iss claim.
func JWTAuthMiddleware(secret []byte, issuer string, logger *zap.Logger) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "authentication token not provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims := &jwt.RegisteredClaims{}
			_, err := parser.ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil || claims.Subject == "" {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user id from context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// RequirePremium rejects users without an active subscription.
func RequirePremium(subs *service.SubscriptionService, now func() time.Time, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			premium, err := subs.IsPremium(r.Context(), userID, now())
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			if !premium {
				handleServiceError(w, &domain.ErrForbidden{Action: "premium subscription required"}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
