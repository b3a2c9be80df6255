package chat

import "strings"

// ボタンのコールバックデータの種別
const (
	callbackMenuPrefix    = "menu_"
	callbackProductAdd    = "product_add"
	callbackProductRemove = "product_remove"
	callbackCourierTake   = "courier"
	callbackCourierDrop   = "dropped"
	callbackConfirmed     = "confirmed"
	callbackNotConfirmed  = "notconfirmed"
)

const callbackSeparator = "|"

// MaxCallbackBytes はTelegramが受け付けるコールバックデータの最大長。
const MaxCallbackBytes = 64

// EncodeCallback はイベントをボタンのコールバックデータに変換する。
// ボタンで送信されないイベントには空文字列を返す。
// Telegramの上限(64バイト)に収まるよう、IDのみを載せる。
func EncodeCallback(e Event) string {
	switch ev := e.(type) {
	case MenuAction:
		return callbackMenuPrefix + string(ev.Item)
	case ProductAdd:
		return join(callbackProductAdd, ev.ProductID)
	case ProductRemove:
		return join(callbackProductRemove, ev.ProductID)
	case CourierTake:
		return join(callbackCourierTake, ev.OrderID)
	case CourierDrop:
		return join(callbackCourierDrop, ev.OrderID)
	case CourierConfirm:
		return join(callbackConfirmed, ev.OrderID)
	case CourierReject:
		return join(callbackNotConfirmed, ev.OrderID)
	}
	return ""
}

// DecodeCallback はボタンのコールバックデータをイベントに変換する。
// 解釈できないデータはUnknownになる。
func DecodeCallback(data string) Event {
	if item, ok := strings.CutPrefix(data, callbackMenuPrefix); ok {
		switch MenuItem(item) {
		case MenuProducts, MenuOrder, MenuHours, MenuContact:
			return MenuAction{Item: MenuItem(item)}
		}
		return Unknown{Raw: data}
	}

	parts := strings.Split(data, callbackSeparator)
	switch {
	case len(parts) == 2 && parts[0] == callbackProductAdd && parts[1] != "":
		return ProductAdd{ProductID: parts[1]}
	case len(parts) == 2 && parts[0] == callbackProductRemove && parts[1] != "":
		return ProductRemove{ProductID: parts[1]}
	case len(parts) == 2 && parts[0] == callbackCourierTake && parts[1] != "":
		return CourierTake{OrderID: parts[1]}
	case len(parts) == 2 && parts[0] == callbackCourierDrop && parts[1] != "":
		return CourierDrop{OrderID: parts[1]}
	case len(parts) == 2 && parts[0] == callbackConfirmed && parts[1] != "":
		return CourierConfirm{OrderID: parts[1]}
	case len(parts) == 2 && parts[0] == callbackNotConfirmed && parts[1] != "":
		return CourierReject{OrderID: parts[1]}
	}
	return Unknown{Raw: data}
}

func join(parts ...string) string {
	return strings.Join(parts, callbackSeparator)
}
