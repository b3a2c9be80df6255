package checkout

import (
	"github.com/hitoshi/shoppybot/internal/session"
)

// Effect はTransitionが返す副作用。Machineが順に実行する。
type Effect interface {
	isEffect()
}

// NoticeKind は状態に依存しない短い通知の種類。
type NoticeKind string

const (
	NoticeEmptyCart    NoticeKind = "empty_cart"
	NoticeCheckoutBusy NoticeKind = "checkout_busy"
	NoticeCancelled    NoticeKind = "cancelled"
)

// Prompt は指定した状態の入力を促すメッセージを送る。
type Prompt struct {
	State State
}

// Notice は通知を送る。
type Notice struct {
	Kind NoticeKind
}

// SetDraft は配送情報の下書きを置き換える。
type SetDraft struct {
	Draft session.ShippingDraft
}

// ClearDraft は配送情報の下書きを破棄する。カートは保持される。
type ClearDraft struct{}

// Finalize は注文を確定する。
type Finalize struct{}

// ShowMainMenu はメインメニューを表示する。
type ShowMainMenu struct{}

// Rejected は現在の状態で受け付けられない入力を記録する。
type Rejected struct {
	Err error
}

func (Prompt) isEffect()       {}
func (Notice) isEffect()       {}
func (SetDraft) isEffect()     {}
func (ClearDraft) isEffect()   {}
func (Finalize) isEffect()     {}
func (ShowMainMenu) isEffect() {}
func (Rejected) isEffect()     {}
