// Package bot は受信イベントを振り分けるボットの入口を提供する。
//
// /start、メインメニュー、商品カードの操作、配達員の操作、設定の再読み込みはここで扱い、
// それ以外のイベントはチェックアウトのMachineに委ねる。
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/checkout"
	"github.com/hitoshi/shoppybot/internal/metrics"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/session"
)

// Checkout はチェックアウトの会話を進める。
type Checkout interface {
	Handle(ctx context.Context, upd chat.Update) error
	Reset(ctx context.Context, userID int64) (*session.Session, error)
}

// Carts はカートを操作する。
type Carts interface {
	Add(ctx context.Context, cart map[string]int, productID string) error
	Remove(ctx context.Context, cart map[string]int, productID string) error
	Describe(ctx context.Context, cart map[string]int, productID string) (*cart.Description, error)
	Total(ctx context.Context, cart map[string]int) (decimal.Decimal, error)
}

// ProductLister は販売中の商品を返す。
type ProductLister interface {
	ListActive(ctx context.Context) ([]*model.Product, error)
}

// UserRegistrar は顧客を登録する。
type UserRegistrar interface {
	GetOrCreate(ctx context.Context, chatID int64, username string) (*model.User, error)
}

// CourierDesk は配達員の担当申請と承認を扱う。
type CourierDesk interface {
	Take(ctx context.Context, upd chat.Update, orderID string) error
	Drop(ctx context.Context, upd chat.Update, orderID string) error
	Confirm(ctx context.Context, upd chat.Update, orderID string) error
	Reject(ctx context.Context, upd chat.Update, orderID string) error
}

// Settings は店舗設定の参照と再読み込みを提供する。
type Settings interface {
	Current() model.Settings
	Reload(ctx context.Context) error
}

// Channels はボットが参照するチャンネル。
type Channels struct {
	// Service は注文通知を受け取る運営者のチャンネル。参加者は管理者として扱う。
	Service  string
	Couriers string
	// Customers はOnlyForCustomersが有効な場合に利用を許可する顧客のチャンネル。
	Customers string
	VIP       string
}

// Front は受信イベントを処理する。
type Front struct {
	sessions   session.Store
	carts      Carts
	products   ProductLister
	users      UserRegistrar
	checkout   Checkout
	couriers   CourierDesk
	settings   Settings
	messenger  chat.Messenger
	membership chat.MembershipChecker
	renderer   *notice.Renderer
	channels   Channels
	reviewsURL string
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// Deps はFrontの依存。
type Deps struct {
	Sessions   session.Store
	Carts      Carts
	Products   ProductLister
	Users      UserRegistrar
	Checkout   Checkout
	Couriers   CourierDesk
	Settings   Settings
	Messenger  chat.Messenger
	Membership chat.MembershipChecker
	Renderer   *notice.Renderer
	Channels   Channels
	ReviewsURL string
	Metrics    metrics.MetricsCollector
	Logger     *slog.Logger
}

// NewFront はFrontを生成する。
func NewFront(d Deps) *Front {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &Front{
		sessions:   d.Sessions,
		carts:      d.Carts,
		products:   d.Products,
		users:      d.Users,
		checkout:   d.Checkout,
		couriers:   d.Couriers,
		settings:   d.Settings,
		messenger:  d.Messenger,
		membership: d.Membership,
		renderer:   d.Renderer,
		channels:   d.Channels,
		reviewsURL: d.ReviewsURL,
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

// Handle は受信イベントを1件処理する。同一ユーザーのイベントは呼び出し元で直列化すること。
func (f *Front) Handle(ctx context.Context, upd chat.Update) error {
	f.metrics.RecordUpdate(EventName(upd.Event))

	switch ev := upd.Event.(type) {
	case chat.Start:
		return f.start(ctx, upd)
	case chat.Reload:
		return f.reload(ctx, upd)
	case chat.CourierTake:
		if !f.fromChannel(ctx, upd, f.channels.Couriers) {
			return nil
		}
		return f.couriers.Take(ctx, upd, ev.OrderID)
	case chat.CourierDrop:
		if !f.fromChannel(ctx, upd, f.channels.Couriers) {
			return nil
		}
		return f.couriers.Drop(ctx, upd, ev.OrderID)
	case chat.CourierConfirm:
		if !f.fromChannel(ctx, upd, f.channels.Service) {
			return nil
		}
		return f.couriers.Confirm(ctx, upd, ev.OrderID)
	case chat.CourierReject:
		if !f.fromChannel(ctx, upd, f.channels.Service) {
			return nil
		}
		return f.couriers.Reject(ctx, upd, ev.OrderID)
	case chat.MenuAction:
		return f.menu(ctx, upd, ev.Item)
	case chat.ProductAdd:
		return f.product(ctx, upd, ev.ProductID, true)
	case chat.ProductRemove:
		return f.product(ctx, upd, ev.ProductID, false)
	default:
		return f.checkout.Handle(ctx, upd)
	}
}

// EventName はメトリクスに記録するイベントの種類を返す。
func EventName(ev chat.Event) string {
	switch ev.(type) {
	case chat.Start:
		return "start"
	case chat.Reload:
		return "reload"
	case chat.MenuAction:
		return "menu"
	case chat.ProductAdd:
		return "product_add"
	case chat.ProductRemove:
		return "product_remove"
	case chat.Button:
		return "button"
	case chat.Text:
		return "text"
	case chat.Contact:
		return "contact"
	case chat.Photo:
		return "photo"
	case chat.Location:
		return "location"
	case chat.CourierTake:
		return "courier_take"
	case chat.CourierDrop:
		return "courier_drop"
	case chat.CourierConfirm:
		return "courier_confirm"
	case chat.CourierReject:
		return "courier_reject"
	default:
		return "unknown"
	}
}

// start は顧客を登録し、利用可能であればチェックアウトを中断してメインメニューを表示する。
func (f *Front) start(ctx context.Context, upd chat.Update) error {
	if _, err := f.users.GetOrCreate(ctx, upd.UserID, upd.Username); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	s := f.settings.Current()
	if ok, err := f.authorize(ctx, upd, s); !ok {
		return err
	}

	sess, err := f.checkout.Reset(ctx, upd.UserID)
	if err != nil {
		return err
	}
	f.logger.Info("セッションを開始しました", slog.Int64("user_id", upd.UserID))
	return f.mainMenu(ctx, upd, sess, f.renderer.Greeting(s.WelcomeText, upd.FirstName))
}

// authorize はボットの稼働状況と利用資格を確認し、利用できない場合は理由を送る。
func (f *Front) authorize(ctx context.Context, upd chat.Update, s model.Settings) (bool, error) {
	admin := f.isMember(ctx, f.channels.Service, upd.UserID)

	if !admin && (!s.BotEnabled || s.IsBanned(upd.Username)) {
		text := fmt.Sprintf("Sorry %s, the bot is currently switched off", f.renderer.Escape(upd.FirstName))
		return false, f.deny(ctx, upd, text)
	}

	if s.OnlyForCustomers &&
		!f.isMember(ctx, f.channels.Customers, upd.UserID) &&
		!f.isMember(ctx, f.channels.VIP, upd.UserID) {
		f.logger.Info("顧客ではないため利用を拒否しました", slog.Int64("user_id", upd.UserID))
		text := fmt.Sprintf("Sorry %s\nYou are not authorized to use this bot", f.renderer.Escape(upd.FirstName))
		return false, f.deny(ctx, upd, text)
	}
	return true, nil
}

func (f *Front) deny(ctx context.Context, upd chat.Update, text string) error {
	var errs []error
	if _, err := f.messenger.Prompt(ctx, upd.UserID, text, nil); err != nil {
		errs = append(errs, fmt.Errorf("failed to send denial: %w", err))
	}
	if upd.IsCallback() {
		if err := f.messenger.AnswerCallback(ctx, upd.CallbackID, ""); err != nil {
			errs = append(errs, fmt.Errorf("failed to answer callback: %w", err))
		}
	}
	return errors.Join(errs...)
}

// isMember はチャンネルの参加者かを返す。チャンネルが未設定または判定に失敗した場合はfalse。
func (f *Front) isMember(ctx context.Context, channelID string, userID int64) bool {
	if channelID == "" {
		return false
	}
	ok, err := f.membership.IsChannelMember(ctx, channelID, userID)
	if err != nil {
		f.logger.Error("チャンネル参加者の判定に失敗しました",
			slog.String("channel", channelID),
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// reload は管理者の要求で店舗設定を読み込み直す。
func (f *Front) reload(ctx context.Context, upd chat.Update) error {
	if !f.isMember(ctx, f.channels.Service, upd.UserID) {
		f.logger.Warn("管理者以外による再読み込みを拒否しました", slog.Int64("user_id", upd.UserID))
		text := fmt.Sprintf("Sorry %s, you are not authorized to administrate this bot", f.renderer.Escape(upd.FirstName))
		_, err := f.messenger.Prompt(ctx, upd.UserID, text, nil)
		return err
	}

	text := "Settings reloaded"
	if err := f.settings.Reload(ctx); err != nil {
		f.logger.Error("店舗設定の再読み込みに失敗しました",
			slog.Int64("user_id", upd.UserID),
			slog.String("error", err.Error()),
		)
		text = "Failed to reload settings"
	}
	_, err := f.messenger.Prompt(ctx, upd.UserID, text, nil)
	return err
}

// fromChannel はイベントが想定したチャンネルで発生したかを返す。
// 他のチャットからの押下は応答だけ返して無視する。
func (f *Front) fromChannel(ctx context.Context, upd chat.Update, channelID string) bool {
	if upd.InChat(channelID) {
		return true
	}
	f.logger.Warn("想定外のチャットからの操作を無視しました",
		slog.String("chat_id", upd.ChatID),
		slog.String("event", EventName(upd.Event)),
	)
	if upd.IsCallback() {
		if err := f.messenger.AnswerCallback(ctx, upd.CallbackID, ""); err != nil {
			f.logger.Error("ボタン押下への応答に失敗しました", slog.String("error", err.Error()))
		}
	}
	return false
}

// session はセッションを読み込み、チェックアウト中であればfalseを返す。
func (f *Front) session(ctx context.Context, userID int64) (*session.Session, bool, error) {
	sess, err := f.sessions.Get(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, !checkout.ParseState(sess.State).IsCheckout(), nil
}

// menu はメインメニューの項目を処理する。
func (f *Front) menu(ctx context.Context, upd chat.Update, item chat.MenuItem) error {
	sess, idle, err := f.session(ctx, upd.UserID)
	if err != nil {
		return err
	}
	if !idle {
		return f.checkout.Handle(ctx, upd)
	}

	s := f.settings.Current()
	if ok, err := f.authorize(ctx, upd, s); !ok {
		return err
	}

	switch item {
	case chat.MenuOrder:
		return f.checkout.Handle(ctx, upd)
	case chat.MenuProducts:
		err = f.showProducts(ctx, upd, sess, s)
	case chat.MenuHours:
		err = f.editMenu(ctx, upd, sess, f.renderer.Text(s.WorkingHours))
	case chat.MenuContact:
		err = f.editMenu(ctx, upd, sess, f.renderer.Text(s.ContactInfo))
	}
	return errors.Join(err, f.answer(ctx, upd))
}

// showProducts は販売中の商品カードを送り、続けてメインメニューを送り直す。
func (f *Front) showProducts(ctx context.Context, upd chat.Update, sess *session.Session, s model.Settings) error {
	if err := f.messenger.EditLastPrompt(ctx, upd.UserID, upd.MessageID, "Our products:", nil); err != nil {
		return fmt.Errorf("failed to edit menu: %w", err)
	}

	products, err := f.products.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	for _, p := range products {
		d, err := f.carts.Describe(ctx, sess.Cart, p.ID)
		if err != nil {
			f.logger.Warn("商品カードを作成できませんでした",
				slog.String("product_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		kb := chat.ProductKeyboard(p.ID, sess.Cart[p.ID] > 0)
		if _, err := f.messenger.Prompt(ctx, upd.UserID, f.renderer.ProductCard(d, s.DeliveryFee), kb); err != nil {
			return fmt.Errorf("failed to send product card: %w", err)
		}
	}
	return f.mainMenu(ctx, upd, sess, f.renderer.Text(s.OrderText))
}

// editMenu は押下されたメニューの文面を書き換える。
func (f *Front) editMenu(ctx context.Context, upd chat.Update, sess *session.Session, text string) error {
	total, err := f.carts.Total(ctx, sess.Cart)
	if err != nil {
		return fmt.Errorf("failed to calculate cart total: %w", err)
	}
	if err := f.messenger.EditLastPrompt(ctx, upd.UserID, upd.MessageID, text, chat.MainMenuKeyboard(total, f.reviewsURL)); err != nil {
		return fmt.Errorf("failed to edit menu: %w", err)
	}
	return nil
}

func (f *Front) mainMenu(ctx context.Context, upd chat.Update, sess *session.Session, text string) error {
	total, err := f.carts.Total(ctx, sess.Cart)
	if err != nil {
		return fmt.Errorf("failed to calculate cart total: %w", err)
	}
	if _, err := f.messenger.Prompt(ctx, upd.UserID, text, chat.MainMenuKeyboard(total, f.reviewsURL)); err != nil {
		return fmt.Errorf("failed to send main menu: %w", err)
	}
	return nil
}

// product は商品カードの追加・削除ボタンを処理し、カードを書き換える。
func (f *Front) product(ctx context.Context, upd chat.Update, productID string, add bool) error {
	sess, idle, err := f.session(ctx, upd.UserID)
	if err != nil {
		return err
	}
	if !idle {
		return f.checkout.Handle(ctx, upd)
	}

	s := f.settings.Current()
	if ok, err := f.authorize(ctx, upd, s); !ok {
		return err
	}

	var cartErr error
	if add {
		cartErr = f.carts.Add(ctx, sess.Cart, productID)
	} else {
		cartErr = f.carts.Remove(ctx, sess.Cart, productID)
	}
	if cartErr != nil {
		f.logger.Warn("カートを更新できませんでした",
			slog.Int64("user_id", upd.UserID),
			slog.String("product_id", productID),
			slog.String("error_code", model.ErrorCode(cartErr)),
			slog.String("error", cartErr.Error()),
		)
	}

	// 壊れた明細を取り除いた結果も保存する
	if err := f.sessions.Put(ctx, upd.UserID, sess); err != nil {
		return errors.Join(fmt.Errorf("failed to save session: %w", err), f.answer(ctx, upd))
	}

	var cardErr error
	if cartErr == nil {
		cardErr = f.refreshCard(ctx, upd, sess, productID, s)
	}
	return errors.Join(cardErr, f.answer(ctx, upd))
}

func (f *Front) refreshCard(ctx context.Context, upd chat.Update, sess *session.Session, productID string, s model.Settings) error {
	d, err := f.carts.Describe(ctx, sess.Cart, productID)
	if err != nil {
		return fmt.Errorf("failed to describe product: %w", err)
	}
	kb := chat.ProductKeyboard(productID, sess.Cart[productID] > 0)
	if err := f.messenger.EditLastPrompt(ctx, upd.UserID, upd.MessageID, f.renderer.ProductCard(d, s.DeliveryFee), kb); err != nil {
		return fmt.Errorf("failed to edit product card: %w", err)
	}
	return nil
}

func (f *Front) answer(ctx context.Context, upd chat.Update) error {
	if !upd.IsCallback() {
		return nil
	}
	if err := f.messenger.AnswerCallback(ctx, upd.CallbackID, ""); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
