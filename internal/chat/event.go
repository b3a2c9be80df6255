// Package chat はチャットプラットフォームとの境界を定義する。
//
// 受信したメッセージやボタン押下は境界で一度だけEventに変換され、
// 以降の処理は文字列を解析せずEventの型で分岐する。
package chat

import "strings"

// Event は受信イベントの閉じた直和型。
type Event interface {
	isEvent()
}

// MenuItem はメインメニューの項目。
type MenuItem string

const (
	MenuProducts MenuItem = "products"
	MenuOrder    MenuItem = "order"
	MenuHours    MenuItem = "hours"
	MenuContact  MenuItem = "contact"
)

// Start は/startコマンド。
type Start struct{}

// Reload は管理者による/reloadコマンド。
type Reload struct{}

// MenuAction はメインメニューのボタン押下。
type MenuAction struct {
	Item MenuItem
}

// ProductAdd は商品カードの追加ボタン押下。
type ProductAdd struct {
	ProductID string
}

// ProductRemove は商品カードの削除ボタン押下。
type ProductRemove struct {
	ProductID string
}

// Button は選択肢ラベルと一致したテキスト。
type Button struct {
	Label Label
}

// Text は自由記述のテキスト。
type Text struct {
	Text string
}

// Contact は共有された連絡先。
type Contact struct {
	PhoneNumber string
}

// Photo は送信された写真。FileRefは最も大きいサイズのもの。
type Photo struct {
	FileRef string
}

// Location は送信された位置情報。
type Location struct {
	Latitude  float64
	Longitude float64
}

// CourierTake は配達員による担当申請。
type CourierTake struct {
	OrderID string
}

// CourierDrop は配達員による担当取り下げ。
type CourierDrop struct {
	OrderID string
}

// CourierConfirm はサービス担当者による配達員の承認。
// 配達員は注文に割り当て済みのものを使う。
type CourierConfirm struct {
	OrderID string
}

// CourierReject はサービス担当者による配達員の却下。
type CourierReject struct {
	OrderID string
}

// Unknown は解釈できなかった入力。
type Unknown struct {
	Raw string
}

func (Start) isEvent()          {}
func (Reload) isEvent()         {}
func (MenuAction) isEvent()     {}
func (ProductAdd) isEvent()     {}
func (ProductRemove) isEvent()  {}
func (Button) isEvent()         {}
func (Text) isEvent()           {}
func (Contact) isEvent()        {}
func (Photo) isEvent()          {}
func (Location) isEvent()       {}
func (CourierTake) isEvent()    {}
func (CourierDrop) isEvent()    {}
func (CourierConfirm) isEvent() {}
func (CourierReject) isEvent()  {}
func (Unknown) isEvent()        {}

// Update はデコード済みの受信イベントと送信者の情報。
type Update struct {
	UserID    int64
	Username  string
	FirstName string

	// ChatID はイベントが発生したチャット。個人チャットではUserIDと同じ値になる。
	ChatID      string
	// ChatHandle は公開チャンネルの "@name"。公開名がない場合は空。
	ChatHandle  string
	MessageID   int64
	MessageText string

	// CallbackID はボタン押下の場合のみ設定される。
	CallbackID string

	Event Event
}

// IsCallback はボタン押下によるイベントかを返す。
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}

// InChat はイベントが指定したチャンネルで発生したかを返す。
// channelIDには数値のIDと "@name" のどちらも指定できる。
func (u Update) InChat(channelID string) bool {
	if channelID == "" {
		return false
	}
	if u.ChatID == channelID {
		return true
	}
	return u.ChatHandle != "" && strings.EqualFold(u.ChatHandle, channelID)
}

// DisplayName は通知に表示する送信者名を返す。
func (u Update) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
