package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/companion/internal/api"
	"github.com/cloo-solutions/companion/internal/domain"
	"github.com/getsentry/sentry-go"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// AuthValidator resolves a bearer token to a client identifier.
type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKey accepts exactly one configured API key.
type StaticKey struct {
	key      []byte
	clientID string
}

func NewStaticKey(key, clientID string) *StaticKey {
	return &StaticKey{key: []byte(key), clientID: clientID}
}

func (s *StaticKey) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	if len(s.key) == 0 || subtle.ConstantTimeCompare([]byte(token), s.key) != 1 {
		return "", domain.ErrInvalidAPIKey
	}
	return s.clientID, nil
}

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			// Auth runs inside SentryMiddleware, so tag the request hub here
			if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
				hub.Scope().SetTag("client_id", clientID)
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
