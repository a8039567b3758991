package auth

import (
	"context"
	"net/http"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс, который реализует BaseValidator
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// Типы для ключей контекста (избегаем коллизий)
type ctxKey string

const (
	reviewerIDKey ctxKey = "reviewer_id"
	scopesKey     ctxKey = "scopes"
)

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), reviewerIDKey, claims.UserID)
			ctx = context.WithValue(ctx, scopesKey, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ReviewerFromContext безопасно достает личность ревьюера в любом месте кода.
func ReviewerFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(reviewerIDKey).(string); ok {
		return id
	}
	return ""
}

// ScopesFromContext возвращает scopes токена (может быть nil).
func ScopesFromContext(ctx context.Context) map[string]bool {
	if s, ok := ctx.Value(scopesKey).(map[string]bool); ok {
		return s
	}
	return nil
}
