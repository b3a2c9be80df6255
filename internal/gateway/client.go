// Package gateway はチャットゲートウェイのHTTP APIクライアントを提供する。
// chat.Messenger と chat.MembershipChecker を実装し、呼び出しを回路遮断器で保護する。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/metrics"
)

const (
	// consecutiveFailuresToTrip は回路を開く連続失敗回数。
	consecutiveFailuresToTrip = 5
	// openTimeout は回路が開いてから半開に移るまでの時間。
	openTimeout = 30 * time.Second
	// parseModeHTML は送信テキストの書式。
	parseModeHTML = "HTML"
)

// ErrUnavailable は回路が開いていてゲートウェイを呼び出せないことを示す。
var ErrUnavailable = errors.New("gateway is unavailable")

// envelope はゲートウェイの共通レスポンス形式。
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

type chatMember struct {
	Status string `json:"status"`
}

// Client はゲートウェイAPIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breaker    *gobreaker.CircuitBreaker[[]byte]
	collector  metrics.MetricsCollector
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, baseURL, token string, collector metrics.MetricsCollector, logger *slog.Logger) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		collector:  collector,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("回路遮断器の状態が変化しました",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})
	return c
}

// call はメソッドを呼び出し、成功時のresultを返す。
func (c *Client) call(ctx context.Context, method string, params any) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	result, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", method, ErrUnavailable)
	}
	return result, err
}

func (c *Client) do(ctx context.Context, method string, body []byte) ([]byte, error) {
	url := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.collector.RecordGatewayLatency(time.Since(start))
	if err != nil {
		c.logger.Error("ゲートウェイの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()
	c.collector.RecordGatewayStatus(resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if ClassifyHTTPStatus(resp.StatusCode) != CallResultOK {
			return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if ClassifyHTTPStatus(resp.StatusCode) != CallResultOK || !env.OK {
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		c.logger.Warn("ゲートウェイがエラーを返しました",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
			slog.String("description", env.Description),
		)
		return nil, &APIError{Method: method, StatusCode: code, Description: env.Description}
	}
	return env.Result, nil
}

func (c *Client) callForMessage(ctx context.Context, method string, params any) (int64, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return 0, err
	}
	var msg sentMessage
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return msg.MessageID, nil
}

// Prompt はユーザーにメッセージを送る。
func (c *Client) Prompt(ctx context.Context, userID int64, text string, kb *chat.Keyboard) (int64, error) {
	return c.sendMessage(ctx, strconv.FormatInt(userID, 10), text, kb)
}

func (c *Client) sendMessage(ctx context.Context, chatID, text string, kb *chat.Keyboard) (int64, error) {
	return c.callForMessage(ctx, "sendMessage", struct {
		ChatID      string       `json:"chat_id"`
		Text        string       `json:"text"`
		ParseMode   string       `json:"parse_mode"`
		ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
	}{chatID, text, parseModeHTML, toMarkup(kb)})
}

// EditLastPrompt は送信済みのメッセージを書き換える。
func (c *Client) EditLastPrompt(ctx context.Context, userID int64, messageID int64, text string, kb *chat.Keyboard) error {
	_, err := c.call(ctx, "editMessageText", struct {
		ChatID      string       `json:"chat_id"`
		MessageID   int64        `json:"message_id"`
		Text        string       `json:"text"`
		ParseMode   string       `json:"parse_mode"`
		ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
	}{strconv.FormatInt(userID, 10), messageID, text, parseModeHTML, toMarkup(kb)})
	return err
}

// NotifyChannel はチャンネルにメッセージを送り、続けて添付を送る。
// 添付の送信に失敗してもメッセージIDは返す。
func (c *Client) NotifyChannel(ctx context.Context, channelID string, text string, attachments []chat.Attachment, kb *chat.Keyboard) (int64, error) {
	id, err := c.sendMessage(ctx, channelID, text, kb)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, a := range attachments {
		if err := c.sendAttachment(ctx, channelID, a); err != nil {
			errs = append(errs, err)
		}
	}
	return id, errors.Join(errs...)
}

func (c *Client) sendAttachment(ctx context.Context, chatID string, a chat.Attachment) error {
	switch a.Kind {
	case chat.AttachmentPhoto:
		_, err := c.call(ctx, "sendPhoto", struct {
			ChatID  string `json:"chat_id"`
			Photo   string `json:"photo"`
			Caption string `json:"caption,omitempty"`
		}{chatID, a.FileRef, a.Caption})
		return err
	case chat.AttachmentLocation:
		_, err := c.call(ctx, "sendLocation", struct {
			ChatID    string  `json:"chat_id"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}{chatID, a.Latitude, a.Longitude})
		return err
	default:
		return fmt.Errorf("unsupported attachment kind: %q", a.Kind)
	}
}

// DeleteMessage はメッセージを削除する。
func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int64) error {
	_, err := c.call(ctx, "deleteMessage", struct {
		ChatID    string `json:"chat_id"`
		MessageID int64  `json:"message_id"`
	}{chatID, messageID})
	return err
}

// AnswerCallback はボタン押下に応答する。
func (c *Client) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	_, err := c.call(ctx, "answerCallbackQuery", struct {
		CallbackQueryID string `json:"callback_query_id"`
		Text            string `json:"text,omitempty"`
	}{callbackID, text})
	return err
}

// IsChannelMember はユーザーがチャンネルの参加者かを返す。
// 退出済みと追放済みは参加者として扱わない。
func (c *Client) IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error) {
	result, err := c.call(ctx, "getChatMember", struct {
		ChatID string `json:"chat_id"`
		UserID int64  `json:"user_id"`
	}{channelID, userID})
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Unavailable() {
		// 一度も参加していないユーザーは400で返る
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var member chatMember
	if err := json.Unmarshal(result, &member); err != nil {
		return false, fmt.Errorf("failed to decode getChatMember result: %w", err)
	}
	switch member.Status {
	case "left", "kicked", "":
		return false, nil
	default:
		return true, nil
	}
}

// compile-time interface check
var (
	_ chat.Messenger         = (*Client)(nil)
	_ chat.MembershipChecker = (*Client)(nil)
)
