package chat

// Label は返信キーボードのボタンの表示文字列。
// 受信テキストがラベルと完全一致した場合にButtonとして扱う。
type Label string

const (
	LabelPickup   Label = "🏪 Pickup"
	LabelDelivery Label = "🚚 Delivery"
	LabelNow      Label = "⏰ Now"
	LabelSetTime  Label = "📅 Set time"
	LabelBack     Label = "↩ Back"
	LabelConfirm  Label = "✅ Confirm"
	LabelCancel   Label = "❌ Cancel"
)

// LabelSharePhone は連絡先共有ボタンの表示文字列。押下すると連絡先が送られる。
const LabelSharePhone = "Allow to send my phone number"

var knownLabels = map[string]Label{
	string(LabelPickup):   LabelPickup,
	string(LabelDelivery): LabelDelivery,
	string(LabelNow):      LabelNow,
	string(LabelSetTime):  LabelSetTime,
	string(LabelBack):     LabelBack,
	string(LabelConfirm):  LabelConfirm,
	string(LabelCancel):   LabelCancel,
}

// ClassifyText はテキストをラベル、コマンド、自由記述のいずれかに分類する。
func ClassifyText(text string) Event {
	switch text {
	case "/start":
		return Start{}
	case "/reload":
		return Reload{}
	}
	if l, ok := knownLabels[text]; ok {
		return Button{Label: l}
	}
	return Text{Text: text}
}
