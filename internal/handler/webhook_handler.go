package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/middleware"
	"github.com/hitoshi/shoppybot/internal/model"
)

// maxUpdateSize はWebhookで受け付ける本文の上限。
const maxUpdateSize = 1 << 20

// UpdateHandler はデコード済みのイベントを処理する。
type UpdateHandler interface {
	Handle(ctx context.Context, upd chat.Update) error
}

// Limiter はユーザーごとの流量を制限する。
type Limiter interface {
	Allow(userID int64) bool
}

// WebhookHandler はゲートウェイからのWebhookを受け付けるHTTPハンドラー。
type WebhookHandler struct {
	updates UpdateHandler
	limiter Limiter
	locks   *userLocks
	logger  *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。limiterがnilの場合は流量を制限しない。
func NewWebhookHandler(updates UpdateHandler, limiter Limiter, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		updates: updates,
		limiter: limiter,
		locks:   newUserLocks(),
		logger:  logger,
	}
}

// ServeHTTP はイベントを1件受け取って処理する。
// POST /webhook
//
// デコード後の処理結果に関わらず200を返す。ゲートウェイの再送で同じ操作が
// 二重に実行されないよう、処理の失敗はログにのみ記録する。
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, &model.BotError{
			Code:     "UPDATE_TOO_LARGE",
			Message:  "リクエスト本文が大きすぎます。",
			Category: "input",
		})
		return
	}

	upd, err := chat.Decode(body)
	if errors.Is(err, chat.ErrEmptyUpdate) {
		// 扱わない種類のイベント
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		h.logger.Warn("Webhookのデコードに失敗しました", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.BotError{
			Code:     "INVALID_UPDATE",
			Message:  "イベントを解釈できません。",
			Category: "input",
		})
		return
	}

	middleware.SetUpdate(r.Context(), upd.UserID, upd.ChatID)

	if h.limiter != nil && !h.limiter.Allow(upd.UserID) {
		h.logger.Warn("rate limit exceeded", slog.Int64("user_id", upd.UserID))
		w.WriteHeader(http.StatusOK)
		return
	}

	unlock := h.locks.lock(upd.UserID)
	defer unlock()

	if err := h.updates.Handle(r.Context(), upd); err != nil {
		h.logger.Error("イベントの処理に失敗しました",
			slog.Int64("user_id", upd.UserID),
			slog.String("chat_id", upd.ChatID),
			slog.String("error_code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
	}
	w.WriteHeader(http.StatusOK)
}
