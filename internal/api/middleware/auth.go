package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dom/court-rotation/internal/service"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
)

var errNoToken = errors.New("no access token")

// Auth admits operators only.
func Auth(authService *service.AuthService) func(http.Handler) http.Handler {
	return authenticate(authService, true)
}

// Viewer lets anonymous viewers through. A token that is presented must
// still be valid.
func Viewer(authService *service.AuthService) func(http.Handler) http.Handler {
	return authenticate(authService, false)
}

func authenticate(authService *service.AuthService, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if errors.Is(err, errNoToken) && !required {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				log.Warnf("[middleware.Auth] %v", err)
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			userID, err := authService.Authenticate(token)
			if err != nil {
				log.Warnf("[middleware.Auth] token rejected: %v", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads the access token from the Authorization header, or from
// the token query parameter for websocket clients, which cannot set headers.
func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errors.New("malformed authorization header")
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errNoToken
}

// GetUserID returns the operator behind the request. It reports false for
// anonymous viewers.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}
