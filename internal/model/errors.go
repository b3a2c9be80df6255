package model

import (
	"errors"
	"fmt"
)

// BotError は会話処理中に発生するドメインエラーを表す。
// Categoryによって呼び出し元の回復方法が決まる。
type BotError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: input, catalog, cart, system
}

// Error はerrorインターフェースを実装する。
func (e *BotError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnknownProduct   = "UNKNOWN_PRODUCT"
	ErrCodeUnknownLocation  = "UNKNOWN_LOCATION"
	ErrCodeUnknownOrder     = "UNKNOWN_ORDER"
	ErrCodeInvalidCartState = "INVALID_CART_STATE"
	ErrCodeEmptyCart        = "EMPTY_CART"
	ErrCodePersistence      = "PERSISTENCE"
	ErrCodeCourierLocation  = "COURIER_LOCATION_MISMATCH"
)

// NewInvalidInputError は現在の状態で受け付けられない入力のエラーを生成する。
func NewInvalidInputError(state, input string) *BotError {
	return &BotError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("状態 %s で不明な入力を受け取りました: %q", state, input),
		Category: "input",
	}
}

// NewUnknownProductError は商品が存在しない、または価格段が未定義の場合のエラーを生成する。
func NewUnknownProductError(productID string) *BotError {
	return &BotError{
		Code:     ErrCodeUnknownProduct,
		Message:  fmt.Sprintf("商品が見つかりません: %s", productID),
		Category: "catalog",
	}
}

// NewUnknownLocationError は受け取り場所が存在しない場合のエラーを生成する。
func NewUnknownLocationError(title string) *BotError {
	return &BotError{
		Code:     ErrCodeUnknownLocation,
		Message:  fmt.Sprintf("受け取り場所が見つかりません: %s", title),
		Category: "catalog",
	}
}

// NewUnknownOrderError は注文が存在しない場合のエラーを生成する。
func NewUnknownOrderError(orderID string) *BotError {
	return &BotError{
		Code:     ErrCodeUnknownOrder,
		Message:  fmt.Sprintf("注文が見つかりません: %s", orderID),
		Category: "catalog",
	}
}

// NewInvalidCartStateError はカートの数量が価格段に一致しない場合のエラーを生成する。
func NewInvalidCartStateError(productID string, count int) *BotError {
	return &BotError{
		Code:     ErrCodeInvalidCartState,
		Message:  fmt.Sprintf("カートの数量 %d が商品 %s の価格段に一致しません", count, productID),
		Category: "cart",
	}
}

// NewEmptyCartError はカートが空の状態で注文しようとした場合のエラーを生成する。
func NewEmptyCartError() *BotError {
	return &BotError{
		Code:     ErrCodeEmptyCart,
		Message:  "カートが空です",
		Category: "cart",
	}
}

// NewPersistenceError は注文の保存に失敗した場合のエラーを生成する。
func NewPersistenceError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodePersistence,
		Message:  fmt.Sprintf("注文の保存に失敗しました: %s", reason),
		Category: "system",
	}
}

// NewCourierLocationError は配達員の担当場所と注文の場所が一致しない場合のエラーを生成する。
func NewCourierLocationError(courier string) *BotError {
	return &BotError{
		Code:     ErrCodeCourierLocation,
		Message:  fmt.Sprintf("配達員 %s の担当場所と注文の場所が異なります", courier),
		Category: "input",
	}
}

// ErrorCode はエラーチェーン中のBotErrorのコードを返す。
// BotErrorを含まない場合は空文字列を返す。
func ErrorCode(err error) string {
	var be *BotError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
