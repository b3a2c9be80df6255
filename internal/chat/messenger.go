package chat

import "context"

// AttachmentKind は添付の種類。
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentLocation AttachmentKind = "location"
)

// Attachment はチャンネル通知に続けて送信する添付。
type Attachment struct {
	Kind      AttachmentKind `json:"kind"`
	FileRef   string         `json:"file_ref,omitempty"`
	Caption   string         `json:"caption,omitempty"`
	Latitude  float64        `json:"latitude,omitempty"`
	Longitude float64        `json:"longitude,omitempty"`
}

// Messenger はチャットへの送信インターフェース。
// 送信テキストはHTMLとして表示される。
type Messenger interface {
	// Prompt はユーザーにメッセージを送り、送信したメッセージのIDを返す。
	Prompt(ctx context.Context, userID int64, text string, kb *Keyboard) (int64, error)

	// EditLastPrompt は送信済みのメッセージを書き換える。
	EditLastPrompt(ctx context.Context, userID int64, messageID int64, text string, kb *Keyboard) error

	// NotifyChannel はチャンネルにメッセージと添付を送り、メッセージのIDを返す。
	NotifyChannel(ctx context.Context, channelID string, text string, attachments []Attachment, kb *Keyboard) (int64, error)

	// DeleteMessage はチャットのメッセージを削除する。
	DeleteMessage(ctx context.Context, chatID string, messageID int64) error

	// AnswerCallback はボタン押下に短い通知で応答する。
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// MembershipChecker はチャンネルの参加者かどうかを判定する。
type MembershipChecker interface {
	IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error)
}
