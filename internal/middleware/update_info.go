package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

type updateInfoKey struct{}

// updateInfo はリクエストで処理中のイベントの送信者。
// 本文のデコード後にハンドラーがSetUpdateで設定する。
type updateInfo struct {
	decoded bool
	userID  int64
	chatID  string
}

// withUpdateInfo はコンテキストに送信者の格納先を用意する。既にあればそれを使う。
func withUpdateInfo(r *http.Request) (*http.Request, *updateInfo) {
	if info, ok := r.Context().Value(updateInfoKey{}).(*updateInfo); ok {
		return r, info
	}
	info := &updateInfo{}
	return r.WithContext(context.WithValue(r.Context(), updateInfoKey{}, info)), info
}

// SetUpdate はデコードしたイベントの送信者をリクエストログに記録する。
// ミドルウェアを通っていないコンテキストでは何もしない。
func SetUpdate(ctx context.Context, userID int64, chatID string) {
	info, ok := ctx.Value(updateInfoKey{}).(*updateInfo)
	if !ok {
		return
	}
	info.decoded = true
	info.userID = userID
	info.chatID = chatID
}

func (u *updateInfo) attrs() []slog.Attr {
	if !u.decoded {
		return nil
	}
	return []slog.Attr{
		slog.Int64("user_id", u.userID),
		slog.String("chat_id", u.chatID),
	}
}
