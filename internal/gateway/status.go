package gateway

import (
	"errors"
	"fmt"
)

// CallResult はHTTPステータスコードに基づく呼び出し結果の分類。
type CallResult int

const (
	// CallResultOK は呼び出し成功（2xx）。
	CallResultOK CallResult = iota
	// CallResultRejected はリクエスト内容による失敗（4xx、429を除く）。
	// ゲートウェイ自体は正常なので回路遮断の失敗として数えない。
	CallResultRejected
	// CallResultUnavailable はゲートウェイ側の障害（429/5xx）。
	CallResultUnavailable
)

// ClassifyHTTPStatus はHTTPステータスコードを呼び出し結果に分類する。
func ClassifyHTTPStatus(statusCode int) CallResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return CallResultOK
	case statusCode == 429:
		return CallResultUnavailable
	case statusCode >= 500:
		return CallResultUnavailable
	default:
		return CallResultRejected
	}
}

// APIError はゲートウェイが返したエラー。
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("gateway %s failed (%d): %s", e.Method, e.StatusCode, e.Description)
}

// Unavailable はゲートウェイ側の障害によるエラーかを返す。
func (e *APIError) Unavailable() bool {
	return ClassifyHTTPStatus(e.StatusCode) == CallResultUnavailable
}

// isSuccessful は回路遮断の判定でエラーを成功として扱うかを返す。
// リクエスト内容による失敗はゲートウェイの障害ではないため成功として扱う。
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Unavailable()
}
