package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/shoppybot/internal/model"
)

// SecretTokenHeader はゲートウェイがWebhook呼び出しに付与する共有シークレットのヘッダー名。
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// NewSecretTokenMiddleware はWebhookの共有シークレットを検証するミドルウェアを返す。
// secretが空の場合は検証しない。
func NewSecretTokenMiddleware(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(SecretTokenHeader)
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				slog.Warn("webhook secret token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.BotError{
					Code:     "FORBIDDEN",
					Message:  "シークレットトークンが一致しません。",
					Category: "auth",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
