package gateway

import "github.com/hitoshi/shoppybot/internal/chat"

// inlineButton はメッセージに付くボタン。
type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// replyButton は入力欄の代わりに表示されるボタン。
type replyButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard,omitempty"`
	Keyboard       [][]replyButton  `json:"keyboard,omitempty"`
	ResizeKeyboard bool             `json:"resize_keyboard,omitempty"`
	RemoveKeyboard bool             `json:"remove_keyboard,omitempty"`
}

// toMarkup はキーボードをゲートウェイの形式に変換する。nilの場合はnilを返す。
func toMarkup(kb *chat.Keyboard) *replyMarkup {
	if kb == nil {
		return nil
	}
	if kb.Remove {
		return &replyMarkup{RemoveKeyboard: true}
	}

	if kb.Inline {
		rows := make([][]inlineButton, len(kb.Rows))
		for i, row := range kb.Rows {
			rows[i] = make([]inlineButton, len(row))
			for j, c := range row {
				rows[i][j] = inlineButton{Text: c.Label, CallbackData: c.Data, URL: c.URL}
			}
		}
		return &replyMarkup{InlineKeyboard: rows}
	}

	rows := make([][]replyButton, len(kb.Rows))
	for i, row := range kb.Rows {
		rows[i] = make([]replyButton, len(row))
		for j, c := range row {
			rows[i][j] = replyButton{Text: c.Label, RequestContact: c.RequestContact}
		}
	}
	return &replyMarkup{Keyboard: rows, ResizeKeyboard: true}
}
