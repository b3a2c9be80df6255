package chat

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		text string
		want Event
	}{
		{"/start", Start{}},
		{"/reload", Reload{}},
		{"🏪 Pickup", Button{Label: LabelPickup}},
		{"❌ Cancel", Button{Label: LabelCancel}},
		{"Main street 1", Text{Text: "Main street 1"}},
		{"pickup", Text{Text: "pickup"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ClassifyText(tt.text); got != tt.want {
				t.Errorf("ClassifyText(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCallback_RoundTrip(t *testing.T) {
	events := []Event{
		MenuAction{Item: MenuProducts},
		MenuAction{Item: MenuContact},
		ProductAdd{ProductID: "p1"},
		ProductRemove{ProductID: "p1"},
		CourierTake{OrderID: "o1"},
		CourierDrop{OrderID: "o1"},
		CourierConfirm{OrderID: "o1"},
		CourierReject{OrderID: "o1"},
	}
	for _, e := range events {
		data := EncodeCallback(e)
		if got := DecodeCallback(data); got != e {
			t.Errorf("DecodeCallback(%q) = %#v, want %#v", data, got, e)
		}
	}
}

func TestDecodeCallback_Unknown(t *testing.T) {
	for _, data := range []string{"", "menu_nope", "product_add", "product_add|", "courier|a|b", "confirmed|o1|bob", "other|x"} {
		got := DecodeCallback(data)
		if _, ok := got.(Unknown); !ok {
			t.Errorf("DecodeCallback(%q) = %#v, want Unknown", data, got)
		}
	}
}

func TestKeyboards_CallbackDataFitsTelegramLimit(t *testing.T) {
	orderID := uuid.NewString()
	productID := uuid.NewString()
	keyboards := map[string]*Keyboard{
		"product in cart":     ProductKeyboard(productID, true),
		"product not in cart": ProductKeyboard(productID, false),
		"take":                TakeResponsibilityKeyboard(orderID),
		"drop":                DropResponsibilityKeyboard(orderID, "a_courier_with_a_rather_long_telegram_name"),
		"confirmation":        CourierConfirmationKeyboard(orderID),
		"main menu":           MainMenuKeyboard(decimal.NewFromInt(1234), "https://t.me/reviews"),
	}
	for name, kb := range keyboards {
		for _, row := range kb.Rows {
			for _, c := range row {
				if len(c.Data) > MaxCallbackBytes {
					t.Errorf("%s: %q is %d bytes, want <= %d", name, c.Data, len(c.Data), MaxCallbackBytes)
				}
				if c.Data == "" {
					continue
				}
				if _, ok := DecodeCallback(c.Data).(Unknown); ok {
					t.Errorf("%s: %q does not decode", name, c.Data)
				}
			}
		}
	}
}

func TestEncodeCallback_NonButtonEvent(t *testing.T) {
	if got := EncodeCallback(Text{Text: "x"}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestDecode_Message(t *testing.T) {
	upd, err := Decode([]byte(`{"update_id":1,"message":{"message_id":5,"from":{"id":42,"username":"alice"},"chat":{"id":42},"text":"✅ Confirm"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.UserID != 42 || upd.Username != "alice" || upd.ChatID != "42" || upd.MessageID != 5 {
		t.Errorf("unexpected update: %+v", upd)
	}
	if upd.Event != (Button{Label: LabelConfirm}) {
		t.Errorf("got %#v, want Confirm button", upd.Event)
	}
	if upd.IsCallback() {
		t.Error("message should not be a callback")
	}
}

func TestDecode_MessageKinds(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Event
	}{
		{"contact", `{"message":{"from":{"id":1},"chat":{"id":1},"contact":{"phone_number":"+100"}}}`, Contact{PhoneNumber: "+100"}},
		{"photo takes largest", `{"message":{"from":{"id":1},"chat":{"id":1},"photo":[{"file_id":"s"},{"file_id":"l"}]}}`, Photo{FileRef: "l"}},
		{"location", `{"message":{"from":{"id":1},"chat":{"id":1},"location":{"latitude":1.5,"longitude":2.5}}}`, Location{Latitude: 1.5, Longitude: 2.5}},
		{"empty message", `{"message":{"from":{"id":1},"chat":{"id":1}}}`, Unknown{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upd, err := Decode([]byte(tt.json))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if upd.Event != tt.want {
				t.Errorf("got %#v, want %#v", upd.Event, tt.want)
			}
		})
	}
}

func TestDecode_Callback(t *testing.T) {
	upd, err := Decode([]byte(`{"callback_query":{"id":"cb1","from":{"id":7,"first_name":"Bob"},"message":{"message_id":9,"chat":{"id":-100},"text":"notice"},"data":"courier|o1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !upd.IsCallback() {
		t.Error("expected callback")
	}
	if upd.ChatID != "-100" || upd.MessageID != 9 || upd.MessageText != "notice" {
		t.Errorf("unexpected update: %+v", upd)
	}
	if upd.Event != (CourierTake{OrderID: "o1"}) {
		t.Errorf("got %#v, want CourierTake", upd.Event)
	}
	if upd.DisplayName() != "Bob" {
		t.Errorf("DisplayName() = %q, want %q", upd.DisplayName(), "Bob")
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
	if _, err := Decode([]byte(`{"update_id":1}`)); !errors.Is(err, ErrEmptyUpdate) {
		t.Errorf("got %v, want ErrEmptyUpdate", err)
	}
	if _, err := Decode([]byte(`{"message":{"chat":{"id":1},"text":"x"}}`)); err == nil {
		t.Error("expected error for message without sender")
	}
}

func TestProductKeyboard(t *testing.T) {
	kb := ProductKeyboard("p1", false)
	if !kb.Inline || len(kb.Rows) != 1 || len(kb.Rows[0]) != 1 {
		t.Fatalf("unexpected keyboard: %+v", kb)
	}
	if kb.Rows[0][0].Data != "product_add|p1" {
		t.Errorf("got %q, want %q", kb.Rows[0][0].Data, "product_add|p1")
	}

	kb = ProductKeyboard("p1", true)
	if len(kb.Rows[0]) != 2 {
		t.Fatalf("got %d buttons, want 2", len(kb.Rows[0]))
	}
	if kb.Rows[0][1].Data != "product_remove|p1" {
		t.Errorf("got %q, want %q", kb.Rows[0][1].Data, "product_remove|p1")
	}
}

func TestMainMenuKeyboard(t *testing.T) {
	kb := MainMenuKeyboard(decimal.NewFromInt(25), "")
	if kb.Rows[1][0].Label != "🛍 Checkout 25" {
		t.Errorf("got %q, want %q", kb.Rows[1][0].Label, "🛍 Checkout 25")
	}
	if len(kb.Rows) != 4 {
		t.Errorf("got %d rows, want 4 without reviews", len(kb.Rows))
	}
	kb = MainMenuKeyboard(decimal.Zero, "https://t.me/reviews")
	if len(kb.Rows) != 5 || kb.Rows[2][0].URL != "https://t.me/reviews" {
		t.Errorf("unexpected rows: %+v", kb.Rows)
	}
}

func TestLocationsKeyboard(t *testing.T) {
	kb := LocationsKeyboard([]string{"North", "South"})
	if len(kb.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(kb.Rows))
	}
	if kb.Rows[0][0].Label != "North" || kb.Rows[2][1].Label != string(LabelCancel) {
		t.Errorf("unexpected rows: %+v", kb.Rows)
	}
	if kb.Inline {
		t.Error("locations keyboard should be a reply keyboard")
	}
}

func TestPhoneKeyboard_RequestsContact(t *testing.T) {
	kb := PhoneKeyboard()
	if !kb.Rows[0][0].RequestContact {
		t.Error("first button should request contact")
	}
}

func TestDecode_ChannelCallbackCarriesHandle(t *testing.T) {
	upd, err := Decode([]byte(`{"update_id":3,"callback_query":{"id":"cb","from":{"id":7,"username":"bob"},
		"message":{"message_id":9,"chat":{"id":-1001,"username":"couriers"}},"data":"courier|o1"}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if upd.ChatID != "-1001" {
		t.Errorf("ChatID = %q, want %q", upd.ChatID, "-1001")
	}
	if upd.ChatHandle != "@couriers" {
		t.Errorf("ChatHandle = %q, want %q", upd.ChatHandle, "@couriers")
	}
}

func TestUpdate_InChat(t *testing.T) {
	upd := Update{ChatID: "-1001", ChatHandle: "@Couriers"}

	tests := []struct {
		channel string
		want    bool
	}{
		{"-1001", true},
		{"@couriers", true},
		{"@service", false},
		{"-1002", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := upd.InChat(tt.channel); got != tt.want {
			t.Errorf("InChat(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}

	if (Update{ChatID: "-1001"}).InChat("@couriers") {
		t.Error("a chat without a public handle should not match a handle")
	}
}
