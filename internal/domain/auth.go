package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — полезная нагрузка RS256-токена, выданного внешним Identity-сервисом.
// Мы токены не выпускаем, только проверяем подпись и достаем личность ревьюера.
type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "review:write", "rules:admin" и т.п.
	jwt.RegisteredClaims
}
