package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-portfolio/jwt-chat/internal/auth"
)

type ctxKey string

const CtxIdentityKey ctxKey = "identity"

const bearerPrefix = "Bearer "

// =========================
// AuthMiddleware проверяет заголовок Authorization: Bearer <token>
// и кладёт Identity в контекст запроса.
// =========================
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			withJSON(w)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing bearer token"})
			return
		}

		// Парсим JWT
		ident, err := auth.ParseJWT(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			withJSON(w)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
			return
		}

		// Сохраняем identity в контекст запроса
		ctx := context.WithValue(r.Context(), CtxIdentityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =========================
// RequireRole пропускает только пользователей с указанной ролью.
// Оборачивает AuthMiddleware, поэтому токен проверяется здесь же.
// =========================
func RequireRole(role auth.Role, next http.Handler) http.Handler {
	return AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := IdentityFromContext(r)
		if ident == nil || ident.Role != role {
			withJSON(w)
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "operation not permitted"})
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// IdentityFromContext достаёт Identity, положенную AuthMiddleware.
// Возвращает nil, если запрос не проходил через middleware.
func IdentityFromContext(r *http.Request) *auth.Identity {
	ident, _ := r.Context().Value(CtxIdentityKey).(*auth.Identity)
	return ident
}
