package model

import "github.com/shopspring/decimal"

// DefaultFreeDeliveryFrom は配達料が無料になる合計金額の既定値。
var DefaultFreeDeliveryFrom = decimal.NewFromInt(500)

// DeliveryFeeRule は配達料のルール。
// 合計がFreeFrom未満の配達注文にFeeを加算する。
type DeliveryFeeRule struct {
	Fee      decimal.Decimal `json:"fee"`
	FreeFrom decimal.Decimal `json:"free_from"`
}

// DiscountRule は割引のルール。
// 合計がThresholdを超えた場合に適用される。
// Percentがtrueの場合Amountは百分率として扱う。
type DiscountRule struct {
	Threshold decimal.Decimal `json:"threshold"`
	Amount    decimal.Decimal `json:"amount"`
	Percent   bool            `json:"percent"`
}

// Enabled は割引額が設定されているかを返す。
func (r DiscountRule) Enabled() bool {
	return r.Amount.IsPositive()
}

// Settings は管理者が変更可能な店舗設定のスナップショット。
type Settings struct {
	BotEnabled                   bool            `json:"bot_enabled"`
	OnlyForCustomers             bool            `json:"only_for_customers"`
	VIPCustomersEnabled          bool            `json:"vip_customers_enabled"`
	CourierNotifications         bool            `json:"courier_notifications"`
	PhoneNumberRequired          bool            `json:"phone_number_required"`
	IdentificationRequired       bool            `json:"identification_required"`
	IdentificationStage2Required bool            `json:"identification_stage2_required"`
	IdentificationStage2Question string          `json:"identification_stage2_question"`
	DeliveryFee                  DeliveryFeeRule `json:"delivery_fee"`
	Discount                     DiscountRule    `json:"discount"`
	WelcomeText                  string          `json:"welcome_text"`
	OrderText                    string          `json:"order_text"`
	OrderCompleteText            string          `json:"order_complete_text"`
	WorkingHours                 string          `json:"working_hours"`
	ContactInfo                  string          `json:"contact_info"`
	BannedUsernames              []string        `json:"banned_usernames"`
}

// DefaultSettings は設定行が存在しない場合の初期値を返す。
func DefaultSettings() Settings {
	return Settings{
		BotEnabled:             true,
		CourierNotifications:   true,
		PhoneNumberRequired:    true,
		IdentificationRequired: true,
		DeliveryFee:            DeliveryFeeRule{Fee: decimal.Zero, FreeFrom: DefaultFreeDeliveryFrom},
		WelcomeText:            "Welcome text not configured yet",
		OrderText:              "Order text not configured yet",
		OrderCompleteText:      "Order text not configured yet",
		WorkingHours:           "Working hours not configured yet",
		ContactInfo:            "Contact info not configured yet",
	}
}

// IsBanned はユーザー名が利用停止リストに含まれるかを返す。
func (s *Settings) IsBanned(username string) bool {
	if username == "" {
		return false
	}
	for _, u := range s.BannedUsernames {
		if u == username {
			return true
		}
	}
	return false
}
