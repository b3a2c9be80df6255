package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrEmptyUpdate はメッセージもボタン押下も含まない受信データのエラー。
var ErrEmptyUpdate = errors.New("update has neither message nor callback")

// WireUpdate はWebhookで受信するJSON。
type WireUpdate struct {
	UpdateID      int64         `json:"update_id"`
	Message       *WireMessage  `json:"message,omitempty"`
	CallbackQuery *WireCallback `json:"callback_query,omitempty"`
}

// WireUser は送信者。
type WireUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// WireChat はメッセージが属するチャット。
type WireChat struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// WireMessage は受信メッセージ。
type WireMessage struct {
	MessageID int64           `json:"message_id"`
	From      *WireUser       `json:"from,omitempty"`
	Chat      WireChat        `json:"chat"`
	Text      string          `json:"text,omitempty"`
	Contact   *WireContact    `json:"contact,omitempty"`
	Photo     []WirePhotoSize `json:"photo,omitempty"`
	Location  *WireLocation   `json:"location,omitempty"`
}

// WireContact は共有された連絡先。
type WireContact struct {
	PhoneNumber string `json:"phone_number"`
}

// WirePhotoSize は写真の1サイズ分。小さい順に並ぶ。
type WirePhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// WireLocation は位置情報。
type WireLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WireCallback はボタン押下。
type WireCallback struct {
	ID      string       `json:"id"`
	From    WireUser     `json:"from"`
	Message *WireMessage `json:"message,omitempty"`
	Data    string       `json:"data"`
}

// Decode は受信したJSONをUpdateに変換する。
func Decode(data []byte) (Update, error) {
	var w WireUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return Update{}, fmt.Errorf("failed to decode update: %w", err)
	}
	return w.ToUpdate()
}

// ToUpdate はWireUpdateをイベント付きのUpdateに変換する。
func (w WireUpdate) ToUpdate() (Update, error) {
	switch {
	case w.CallbackQuery != nil:
		cb := w.CallbackQuery
		u := Update{
			UserID:     cb.From.ID,
			Username:   cb.From.Username,
			FirstName:  cb.From.FirstName,
			ChatID:     strconv.FormatInt(cb.From.ID, 10),
			CallbackID: cb.ID,
			Event:      DecodeCallback(cb.Data),
		}
		if cb.Message != nil {
			u.ChatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
			u.ChatHandle = handle(cb.Message.Chat.Username)
			u.MessageID = cb.Message.MessageID
			u.MessageText = cb.Message.Text
		}
		return u, nil

	case w.Message != nil:
		m := w.Message
		if m.From == nil {
			return Update{}, fmt.Errorf("message %d has no sender", m.MessageID)
		}
		return Update{
			UserID:      m.From.ID,
			Username:    m.From.Username,
			FirstName:   m.From.FirstName,
			ChatID:      strconv.FormatInt(m.Chat.ID, 10),
			ChatHandle:  handle(m.Chat.Username),
			MessageID:   m.MessageID,
			MessageText: m.Text,
			Event:       messageEvent(m),
		}, nil
	}
	return Update{}, ErrEmptyUpdate
}

func messageEvent(m *WireMessage) Event {
	switch {
	case m.Contact != nil:
		return Contact{PhoneNumber: m.Contact.PhoneNumber}
	case len(m.Photo) > 0:
		return Photo{FileRef: m.Photo[len(m.Photo)-1].FileID}
	case m.Location != nil:
		return Location{Latitude: m.Location.Latitude, Longitude: m.Location.Longitude}
	case m.Text != "":
		return ClassifyText(m.Text)
	}
	return Unknown{}
}

func handle(username string) string {
	if username == "" {
		return ""
	}
	return "@" + username
}
