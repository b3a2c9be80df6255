package chat

import "fmt"

// Choice はキーボードのボタン1つ。
// Dataが設定されたボタンは押下時にコールバックとして届き、
// 未設定のボタンは表示文字列がテキストとして届く。
type Choice struct {
	Label          string `json:"label"`
	Data           string `json:"data,omitempty"`
	URL            string `json:"url,omitempty"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

// Keyboard はメッセージに付けるボタンの集合。
type Keyboard struct {
	Rows   [][]Choice `json:"rows,omitempty"`
	Inline bool       `json:"inline,omitempty"`
	// Remove は表示中の返信キーボードを消す。
	Remove bool `json:"remove,omitempty"`
}

// RemoveKeyboard は返信キーボードを消すためのキーボード。
func RemoveKeyboard() *Keyboard {
	return &Keyboard{Remove: true}
}

func reply(labels ...Label) []Choice {
	row := make([]Choice, len(labels))
	for i, l := range labels {
		row[i] = Choice{Label: string(l)}
	}
	return row
}

func inline(label string, e Event) Choice {
	return Choice{Label: label, Data: EncodeCallback(e)}
}

// ShippingKeyboard は受け取り方法の選択肢。
func ShippingKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Choice{
		reply(LabelPickup),
		reply(LabelDelivery),
		reply(LabelCancel),
	}}
}

// LocationsKeyboard は受け取り場所の選択肢。
func LocationsKeyboard(titles []string) *Keyboard {
	rows := make([][]Choice, 0, len(titles)+1)
	for _, t := range titles {
		rows = append(rows, []Choice{{Label: t}})
	}
	rows = append(rows, reply(LabelBack, LabelCancel))
	return &Keyboard{Rows: rows}
}

// TimeKeyboard は受け取り時刻の選択肢。
func TimeKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Choice{
		reply(LabelNow),
		reply(LabelSetTime),
		reply(LabelBack, LabelCancel),
	}}
}

// PhoneKeyboard は電話番号共有の選択肢。
func PhoneKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Choice{
		{{Label: LabelSharePhone, RequestContact: true}},
		reply(LabelBack),
		reply(LabelCancel),
	}}
}

// CancelKeyboard は戻る・キャンセルのみの選択肢。
func CancelKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Choice{reply(LabelBack, LabelCancel)}}
}

// ConfirmationKeyboard は注文確認の選択肢。
func ConfirmationKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]Choice{
		reply(LabelConfirm),
		reply(LabelBack, LabelCancel),
	}}
}

// MainMenuKeyboard はメインメニュー。totalは注文ボタンに表示するカート合計。
func MainMenuKeyboard(total fmt.Stringer, reviewsURL string) *Keyboard {
	rows := [][]Choice{
		{inline("🏪 Our products", MenuAction{Item: MenuProducts})},
		{inline(fmt.Sprintf("🛍 Checkout %s", total), MenuAction{Item: MenuOrder})},
	}
	if reviewsURL != "" {
		rows = append(rows, []Choice{{Label: "⭐ Reviews", URL: reviewsURL}})
	}
	rows = append(rows,
		[]Choice{inline("⏰ Working hours", MenuAction{Item: MenuHours})},
		[]Choice{inline("☎ Contact info", MenuAction{Item: MenuContact})},
	)
	return &Keyboard{Rows: rows, Inline: true}
}

// ProductKeyboard は商品カードのボタン。カートにある場合は削除ボタンも表示する。
func ProductKeyboard(productID string, inCart bool) *Keyboard {
	if !inCart {
		return &Keyboard{Inline: true, Rows: [][]Choice{
			{inline("🛍 Add to cart", ProductAdd{ProductID: productID})},
		}}
	}
	return &Keyboard{Inline: true, Rows: [][]Choice{{
		inline("➕ Add more", ProductAdd{ProductID: productID}),
		inline("➖ Remove", ProductRemove{ProductID: productID}),
	}}}
}

// TakeResponsibilityKeyboard は配達員チャンネルの注文通知に付けるボタン。
func TakeResponsibilityKeyboard(orderID string) *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Choice{
		{inline("Take Responsibility", CourierTake{OrderID: orderID})},
	}}
}

// DropResponsibilityKeyboard は担当が決まった注文通知に付けるボタン。
func DropResponsibilityKeyboard(orderID, courier string) *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Choice{
		{{Label: fmt.Sprintf("Assigned to @%s", courier), URL: fmt.Sprintf("https://t.me/%s", courier)}},
		{inline("Drop responsibility", CourierDrop{OrderID: orderID})},
	}}
}

// CourierConfirmationKeyboard はサービスチャンネルで配達員を承認するボタン。
func CourierConfirmationKeyboard(orderID string) *Keyboard {
	return &Keyboard{Inline: true, Rows: [][]Choice{{
		inline("Yes", CourierConfirm{OrderID: orderID}),
		inline("No", CourierReject{OrderID: orderID}),
	}}}
}
