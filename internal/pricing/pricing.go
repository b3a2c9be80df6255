// Package pricing は配達料と割引を適用した支払額を計算する。
// 確認画面と通知はどちらもQuoteの結果から描画されるため、金額は常に一致する。
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Quote は支払額の内訳。
type Quote struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// HasDiscount は割引が適用されたかを返す。
func (q Quote) HasDiscount() bool {
	return q.Discount.IsPositive()
}

// HasDeliveryFee は配達料が加算されたかを返す。
func (q Quote) HasDeliveryFee() bool {
	return q.DeliveryFee.IsPositive()
}

// Calculate は小計に割引と配達料を適用した内訳を返す。
//
// 割引は小計が閾値を超え、かつ割引額が設定されている場合に適用され、小計を超えない。
// 配達料は小計がFreeFrom未満の配達注文で、VIPでない場合にのみ加算される。
func Calculate(subtotal decimal.Decimal, method model.ShippingMethod, isVIP bool,
	fee model.DeliveryFeeRule, discount model.DiscountRule) Quote {
	q := Quote{
		Subtotal:    subtotal,
		Discount:    Discount(subtotal, discount),
		DeliveryFee: DeliveryFee(subtotal, method, isVIP, fee),
	}
	q.Total = q.Subtotal.Sub(q.Discount).Add(q.DeliveryFee)
	return q
}

// Discount は小計に対する割引額を返す。
func Discount(subtotal decimal.Decimal, rule model.DiscountRule) decimal.Decimal {
	if !rule.Enabled() || !subtotal.GreaterThan(rule.Threshold) {
		return decimal.Zero
	}
	amount := rule.Amount
	if rule.Percent {
		amount = subtotal.Mul(rule.Amount).Div(hundred).Round(2)
	}
	return decimal.Min(amount, subtotal)
}

// DeliveryFee は配達料を返す。
// 受け取り注文とVIP顧客は常にゼロになる。
func DeliveryFee(subtotal decimal.Decimal, method model.ShippingMethod, isVIP bool, rule model.DeliveryFeeRule) decimal.Decimal {
	if method != model.ShippingDelivery || isVIP {
		return decimal.Zero
	}
	freeFrom := rule.FreeFrom
	if freeFrom.IsZero() {
		freeFrom = model.DefaultFreeDeliveryFrom
	}
	if subtotal.LessThan(freeFrom) {
		return rule.Fee
	}
	return decimal.Zero
}
