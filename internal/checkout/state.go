// Package checkout は注文手続きの会話を状態機械として扱う。
//
// Transitionは状態・イベント・環境から次の状態と副作用の列を返す純粋な関数で、
// Machineがセッションの読み書きと副作用の実行を受け持つ。
package checkout

// State はチェックアウトの状態。
type State string

const (
	StateInit             State = "init"
	StateShippingMethod   State = "shipping_method"
	StateLocationPickup   State = "location_pickup"
	StateLocationDelivery State = "location_delivery"
	StateShippingTime     State = "shipping_time"
	StateShippingTimeText State = "shipping_time_text"
	StatePhoneNumber      State = "phone_number"
	StateIdentify1        State = "identify1"
	StateIdentify2        State = "identify2"
	StateConfirmation     State = "confirmation"
)

var states = map[State]bool{
	StateInit:             true,
	StateShippingMethod:   true,
	StateLocationPickup:   true,
	StateLocationDelivery: true,
	StateShippingTime:     true,
	StateShippingTimeText: true,
	StatePhoneNumber:      true,
	StateIdentify1:        true,
	StateIdentify2:        true,
	StateConfirmation:     true,
}

// ParseState はセッションに保存された状態名を解釈する。
// 空文字列や未知の値は初期状態として扱う。
func ParseState(s string) State {
	if states[State(s)] {
		return State(s)
	}
	return StateInit
}

// IsCheckout はチェックアウト中の状態かを返す。
func (s State) IsCheckout() bool {
	return s != StateInit
}
