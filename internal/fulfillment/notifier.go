// Package fulfillment は注文の確定と、サービス・配達員チャンネルへの通知を扱う。
package fulfillment

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/checkout"
	"github.com/hitoshi/shoppybot/internal/metrics"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/pricing"
	"github.com/hitoshi/shoppybot/internal/repository"
	"github.com/hitoshi/shoppybot/internal/session"
)

// Channels は通知先のチャンネル。
type Channels struct {
	Service  string
	Couriers string
}

// LineLister はカートの明細を求める。
type LineLister interface {
	Lines(ctx context.Context, cart map[string]int) ([]cart.Line, error)
}

// SettingsSource は最新の店舗設定を返す。
type SettingsSource interface {
	Current() model.Settings
}

// Notifier は注文を確定して各チャンネルに通知する。
type Notifier struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	orders    repository.OrderRepository
	lines     LineLister
	settings  SettingsSource
	messenger chat.Messenger
	renderer  *notice.Renderer
	channels  Channels
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewNotifier はNotifierを生成する。
func NewNotifier(
	users repository.UserRepository,
	locations repository.LocationRepository,
	orders repository.OrderRepository,
	lines LineLister,
	settings SettingsSource,
	messenger chat.Messenger,
	renderer *notice.Renderer,
	channels Channels,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Notifier{
		users:     users,
		locations: locations,
		orders:    orders,
		lines:     lines,
		settings:  settings,
		messenger: messenger,
		renderer:  renderer,
		channels:  channels,
		metrics:   collector,
		logger:    logger,
	}
}

// Finalize はセッションのカートと下書きから注文を作成し、通知を送る。
//
// 注文と明細は同一トランザクションで作成され、明細の価格は現在の価格段から複製される。
// 作成に失敗した場合はPersistenceErrorを返し、何も保存されない。
// 確認画面の後に商品が削除されるなどしてカートの明細が減った場合は、
// 注文を作成せずUnknownProductErrorを返す。
// 通知の失敗はログに記録するのみで、注文の確定は取り消さない。
// セッションの破棄は呼び出し元が行う。
func (n *Notifier) Finalize(ctx context.Context, upd chat.Update, sess *session.Session) (*model.Order, error) {
	requested := maps.Clone(sess.Cart)
	lines, err := n.lines.Lines(ctx, sess.Cart)
	if err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}
	if len(lines) == 0 {
		return nil, model.NewEmptyCartError()
	}
	if productID := droppedProduct(requested, lines); productID != "" {
		return nil, model.NewUnknownProductError(productID)
	}

	draft := sess.Draft
	user, err := n.users.GetOrCreate(ctx, upd.UserID, upd.Username)
	if err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}
	if draft.PhoneNumber != "" && draft.PhoneNumber != user.PhoneNumber {
		if err := n.users.UpdatePhoneNumber(ctx, user.ID, draft.PhoneNumber); err != nil {
			return nil, model.NewPersistenceError(err.Error())
		}
	}

	var locationID *string
	if draft.PickupLocation != "" {
		loc, err := n.locations.FindByTitle(ctx, draft.PickupLocation)
		if err != nil {
			return nil, model.NewPersistenceError(err.Error())
		}
		if loc == nil {
			return nil, model.NewUnknownLocationError(draft.PickupLocation)
		}
		locationID = &loc.ID
	}

	settings := n.settings.Current()
	quote := pricing.Calculate(cart.SumLines(lines), draft.Method, draft.IsVIP, settings.DeliveryFee, settings.Discount)

	order := &model.Order{
		UserID:         user.ID,
		LocationID:     locationID,
		ShippingMethod: draft.Method,
		ShippingTime:   draft.ShippingTime(),
		Items:          make([]model.OrderItem, len(lines)),
	}
	for i, l := range lines {
		order.Items[i] = model.OrderItem{
			ProductID:  l.ProductID,
			Count:      l.Count,
			TotalPrice: l.Subtotal,
		}
	}

	if err := n.orders.CreateWithItems(ctx, order); err != nil {
		return nil, model.NewPersistenceError(err.Error())
	}

	n.notify(ctx, upd, order, lines, quote, draft, settings)
	return order, nil
}

// notify はサービスチャンネルと、有効な場合は配達員チャンネルに注文を通知する。
func (n *Notifier) notify(ctx context.Context, upd chat.Update, order *model.Order, lines []cart.Line,
	quote pricing.Quote, draft session.ShippingDraft, settings model.Settings) {
	header := n.renderer.OrderHeader(upd.DisplayName())
	body := n.renderer.ServiceNotice(order.ID, lines, quote, draft)

	var serviceAttachments []chat.Attachment
	if draft.IdentificationPhotoRef != "" {
		serviceAttachments = append(serviceAttachments, photo(draft.IdentificationPhotoRef, notice.CaptionStage1))
	}
	if draft.IdentificationStage2Ref != "" {
		serviceAttachments = append(serviceAttachments, photo(draft.IdentificationStage2Ref, notice.CaptionStage2))
	}
	if draft.Geo != nil {
		serviceAttachments = append(serviceAttachments, location(draft.Geo))
	}

	if n.channels.Service != "" {
		_, err := n.messenger.NotifyChannel(ctx, n.channels.Service, header+"\n\n"+body, serviceAttachments, nil)
		n.logNotify("service", order.ID, err)
	}

	if !settings.CourierNotifications || n.channels.Couriers == "" {
		return
	}
	var courierAttachments []chat.Attachment
	if draft.IdentificationPhotoRef != "" {
		courierAttachments = append(courierAttachments, photo(draft.IdentificationPhotoRef, notice.CaptionStage1))
	}
	if draft.Geo != nil {
		courierAttachments = append(courierAttachments, location(draft.Geo))
	}
	_, err := n.messenger.NotifyChannel(ctx, n.channels.Couriers, header+"\n\n"+body, courierAttachments,
		chat.TakeResponsibilityKeyboard(order.ID))
	n.logNotify("couriers", order.ID, err)
}

func (n *Notifier) logNotify(channel, orderID string, err error) {
	if err == nil {
		return
	}
	n.metrics.RecordNotifyFailure(channel)
	n.logger.Error("注文の通知に失敗しました",
		slog.String("channel", channel),
		slog.String("order_id", orderID),
		slog.String("error", err.Error()),
	)
}

// droppedProduct は明細に含まれなかったカートの商品IDを1件返す。全て含まれる場合は空文字。
func droppedProduct(requested map[string]int, lines []cart.Line) string {
	found := make(map[string]bool, len(lines))
	for _, l := range lines {
		found[l.ProductID] = true
	}
	for _, productID := range slices.Sorted(maps.Keys(requested)) {
		if !found[productID] {
			return productID
		}
	}
	return ""
}

func photo(ref, caption string) chat.Attachment {
	return chat.Attachment{Kind: chat.AttachmentPhoto, FileRef: ref, Caption: caption}
}

func location(g *session.GeoPoint) chat.Attachment {
	return chat.Attachment{Kind: chat.AttachmentLocation, Latitude: g.Latitude, Longitude: g.Longitude}
}

// compile-time interface check
var _ checkout.Finalizer = (*Notifier)(nil)
