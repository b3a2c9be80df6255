package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware はpanicを回復してプロセスのクラッシュを防ぐミドルウェアを生成する。
//
// イベントのデコード前のpanicには500を返す。デコード後のpanicでは、
// ゲートウェイが同じイベントを再送して操作が二重に実行されないよう200を返す。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, info := withUpdateInfo(r)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				attrs := append([]slog.Attr{
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}, info.attrs()...)
				logger.LogAttrs(r.Context(), slog.LevelError, "イベント処理中にpanicが発生しました", attrs...)

				if info.decoded {
					w.WriteHeader(http.StatusOK)
					return
				}
				WriteInternalServerError(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
