package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingMethod は受け取り方法を表す。
type ShippingMethod string

const (
	// ShippingPickup は店舗受け取り。
	ShippingPickup ShippingMethod = "pickup"
	// ShippingDelivery は配達。
	ShippingDelivery ShippingMethod = "delivery"
)

// Order は確定済みの注文を表す。
// 注文確認時にのみ作成され、明細の価格はその時点の値を複製して保持する。
type Order struct {
	ID             string
	UserID         string
	CourierID      *string
	LocationID     *string
	ShippingMethod ShippingMethod
	ShippingTime   string
	Confirmed      bool
	CreatedAt      time.Time
	Items          []OrderItem
}

// OrderItem は注文明細を表す。
type OrderItem struct {
	ID         string
	OrderID    string
	ProductID  string
	Count      int
	TotalPrice decimal.Decimal
}

// Total は明細価格の合計を返す。
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.TotalPrice)
	}
	return total
}
