package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
)

type contextKey struct{}

var userIDKey contextKey

// UserIDFromContext возвращает id аутентифицированного пользователя.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// WithUserID используется в тестах хэндлеров.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Middleware кладет id пользователя из Bearer-токена в контекст запроса.
// Невалидный или отсутствующий токен не отклоняется здесь: гостевые
// маршруты работают без токена, а строгие хэндлеры требуют id сами.
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if id, err := m.Validate(token); err == nil {
				r = r.WithContext(WithUserID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
