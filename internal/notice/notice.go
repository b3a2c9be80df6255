// Package notice はチャットに送信する文面をHTMLとして組み立てる。
//
// 金額の内訳は常にpricing.Quoteから描画する。確認画面と通知は同じQuoteを受け取るため、
// 表示される合計は一致する。
package notice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/pricing"
	"github.com/hitoshi/shoppybot/internal/security"
	"github.com/hitoshi/shoppybot/internal/session"
)

// Divider は区切り線。
const Divider = "〰〰〰〰〰〰〰〰〰〰〰〰"

// 本人確認写真のキャプション
const (
	CaptionStage1 = "Stage 1 Identification - Selfie"
	CaptionStage2 = "Stage 2 Identification - FB"
)

// Renderer は文面を組み立てる。
// 管理者が設定した文面はSanitize、顧客の入力や商品名はEscapeを通して埋め込む。
type Renderer struct {
	sanitizer security.ContentSanitizerService
}

// NewRenderer はRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) *Renderer {
	return &Renderer{sanitizer: sanitizer}
}

// Money は金額を表示用の文字列にする。
func Money(d decimal.Decimal) string {
	return "$" + d.String()
}

// Greeting は管理者が設定した文面の{}を顧客の名前に置き換える。
func (r *Renderer) Greeting(template, firstName string) string {
	text := r.sanitizer.Sanitize(template)
	return strings.ReplaceAll(text, "{}", r.sanitizer.Escape(firstName))
}

// Text は管理者が設定した文面をサニタイズして返す。
func (r *Renderer) Text(template string) string {
	return r.sanitizer.Sanitize(template)
}

// Escape は顧客の入力をHTMLに埋め込める形にする。
func (r *Renderer) Escape(s string) string {
	return r.sanitizer.Escape(s)
}

// ProductCard は商品カードの文面を返す。
func (r *Renderer) ProductCard(d *cart.Description, fee model.DeliveryFeeRule) string {
	freeFrom := fee.FreeFrom
	if freeFrom.IsZero() {
		freeFrom = model.DefaultFreeDeliveryFrom
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Product:\n%s\n\n", r.sanitizer.Escape(d.Title))
	b.WriteString("〰️\n")
	fmt.Fprintf(&b, "<b>Delivery Fee: %s</b>\n", Money(fee.Fee))
	fmt.Fprintf(&b, "for orders below %s\n", Money(freeFrom))
	b.WriteString("〰️\nPrice:\n")
	for _, t := range d.Tiers {
		fmt.Fprintf(&b, "\nx %d = %s", t.Count, Money(t.Price))
	}
	if d.Count > 0 {
		fmt.Fprintf(&b, "\nCount: <b>%d</b>\n", d.Count)
		fmt.Fprintf(&b, "Subtotal: <b>%s</b>\n", Money(d.Subtotal))
	}
	return b.String()
}

// Confirmation は注文確認画面の文面を返す。
func (r *Renderer) Confirmation(lines []cart.Line, q pricing.Quote) string {
	var b strings.Builder
	b.WriteString("<b>Please confirm your order:</b>\n\n")
	r.writeItems(&b, lines)
	b.WriteString(Divider)
	writeQuote(&b, q)
	return b.String()
}

// ServiceNotice はサービス・配達員チャンネルに送る注文通知の文面を返す。
func (r *Renderer) ServiceNotice(orderID string, lines []cart.Line, q pricing.Quote, draft session.ShippingDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Order №%s notice:</b>\n\n", r.sanitizer.Escape(orderID))
	r.writeItems(&b, lines)
	writeQuote(&b, q)
	b.WriteString("\n")
	b.WriteString(Divider)
	b.WriteString("\n\nShipping details:\n\n")

	if draft.IsVIP {
		b.WriteString("Vip Costumer\n")
	}
	r.writeField(&b, "Photo question", draft.PhotoQuestion)
	r.writeField(&b, "Pickup/Delivery", string(draft.Method))
	r.writeField(&b, "Pickup location", draft.PickupLocation)
	r.writeField(&b, "Address", draft.Address)
	r.writeField(&b, "When", string(draft.Time))
	r.writeField(&b, "Time", draft.TimeText)
	r.writeField(&b, "Phone number", draft.PhoneNumber)
	return b.String()
}

// OrderHeader は注文通知の先頭に付ける注文者の表記を返す。
func (r *Renderer) OrderHeader(username string) string {
	return fmt.Sprintf("Order confirmed from (@%s)", r.sanitizer.Escape(username))
}

// CourierReminder は配達員が決まらない注文を配達員チャンネルに再掲する文面を返す。
func (r *Renderer) CourierReminder(order *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Order №%s is still waiting for a courier</b>\n\n", r.sanitizer.Escape(order.ID))
	r.writeField(&b, "Pickup/Delivery", string(order.ShippingMethod))
	r.writeField(&b, "When", order.ShippingTime)
	r.writeField(&b, "Placed", order.CreatedAt.Format("2006-01-02 15:04"))
	return b.String()
}

func (r *Renderer) writeItems(b *strings.Builder, lines []cart.Line) {
	b.WriteString(Divider)
	b.WriteString("\nItems in cart:\n")
	for _, l := range lines {
		fmt.Fprintf(b, "\nProduct:\n%s\n", r.sanitizer.Escape(l.Title))
		fmt.Fprintf(b, "x %d = %s\n", l.Count, Money(l.Subtotal))
	}
}

func (r *Renderer) writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, r.sanitizer.Escape(value))
}

func writeQuote(b *strings.Builder, q pricing.Quote) {
	b.WriteString("\n\n")
	if q.HasDiscount() {
		fmt.Fprintf(b, "Discount: -%s\n", Money(q.Discount))
	}
	if q.HasDeliveryFee() {
		fmt.Fprintf(b, "<b>Delivery Fee: %s</b>\n", Money(q.DeliveryFee))
	}
	fmt.Fprintf(b, "Total: <b>%s</b>", Money(q.Total))
}
