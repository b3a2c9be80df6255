package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/metrics"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/pricing"
	"github.com/hitoshi/shoppybot/internal/session"
)

// 本人確認写真で顧客に求めるジェスチャー
var photoQuestions = []string{"👍", "🤘", "✌️", "👌"}

// RandomPhotoQuestion はジェスチャーを1つ無作為に選ぶ。
func RandomPhotoQuestion() string {
	return photoQuestions[rand.IntN(len(photoQuestions))]
}

// Finalizer は注文を確定する。
type Finalizer interface {
	Finalize(ctx context.Context, upd chat.Update, sess *session.Session) (*model.Order, error)
}

// Carts はカートの明細を求める。
type Carts interface {
	Lines(ctx context.Context, cart map[string]int) ([]cart.Line, error)
	Total(ctx context.Context, cart map[string]int) (decimal.Decimal, error)
}

// LocationLister は受け取り場所の一覧を返す。
type LocationLister interface {
	List(ctx context.Context) ([]*model.Location, error)
}

// SettingsSource は最新の店舗設定を返す。
type SettingsSource interface {
	Current() model.Settings
}

// Options はMachineの任意設定。
type Options struct {
	// VIPChannel はVIP顧客の判定に使うチャンネル。
	VIPChannel string
	// ReviewsURL はメインメニューに表示するレビューのリンク。
	ReviewsURL string
	// PhotoQuestion はIdentify1で使う質問を選ぶ。未設定の場合は無作為に選ぶ。
	PhotoQuestion func() string
}

// Machine はチェックアウトの会話を進める。
// セッションを読み込み、Transitionの結果を実行して保存する。
type Machine struct {
	sessions   session.Store
	carts      Carts
	locations  LocationLister
	finalizer  Finalizer
	settings   SettingsSource
	messenger  chat.Messenger
	membership chat.MembershipChecker
	renderer   *notice.Renderer
	metrics    metrics.MetricsCollector
	opts       Options
	logger     *slog.Logger
}

// NewMachine はMachineを生成する。
func NewMachine(
	sessions session.Store,
	carts Carts,
	locations LocationLister,
	finalizer Finalizer,
	settings SettingsSource,
	messenger chat.Messenger,
	membership chat.MembershipChecker,
	renderer *notice.Renderer,
	collector metrics.MetricsCollector,
	opts Options,
	logger *slog.Logger,
) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if opts.PhotoQuestion == nil {
		opts.PhotoQuestion = RandomPhotoQuestion
	}
	return &Machine{
		sessions:   sessions,
		carts:      carts,
		locations:  locations,
		finalizer:  finalizer,
		settings:   settings,
		messenger:  messenger,
		membership: membership,
		renderer:   renderer,
		metrics:    collector,
		opts:       opts,
		logger:     logger,
	}
}

// run は1イベント分の処理中の値。
type run struct {
	upd      chat.Update
	sess     *session.Session
	settings model.Settings
	next     State
	answered bool
	err      error
}

func (r *run) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Handle はイベントを1件処理する。同一ユーザーのイベントは呼び出し元で直列化すること。
func (m *Machine) Handle(ctx context.Context, upd chat.Update) error {
	sess, err := m.sessions.Get(ctx, upd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	state := ParseState(sess.State)
	r := &run{upd: upd, sess: sess, settings: m.settings.Current()}

	env, err := m.env(ctx, state, r)
	if err != nil {
		return err
	}

	next, effects := Transition(state, upd.Event, env)
	r.next = next
	for _, eff := range effects {
		m.apply(ctx, r, eff)
	}

	if upd.IsCallback() && !r.answered {
		if err := m.messenger.AnswerCallback(ctx, upd.CallbackID, ""); err != nil {
			r.fail(fmt.Errorf("failed to answer callback: %w", err))
		}
	}

	if r.next != state {
		m.metrics.RecordTransition(string(state), string(r.next))
		m.logger.Debug("チェックアウトの状態が遷移しました",
			slog.Int64("user_id", upd.UserID),
			slog.String("from", string(state)),
			slog.String("to", string(r.next)),
		)
	}

	sess.State = string(r.next)
	if err := m.sessions.Put(ctx, upd.UserID, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return r.err
}

// Reset はチェックアウトを中断して初期状態に戻す。カートは保持される。
func (m *Machine) Reset(ctx context.Context, userID int64) (*session.Session, error) {
	sess, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ParseState(sess.State).IsCheckout() && sess.Draft.IsEmpty() {
		return sess, nil
	}
	sess.State = string(StateInit)
	sess.ClearDraft()
	if err := m.sessions.Put(ctx, userID, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// env はTransitionに渡す値を組み立てる。
func (m *Machine) env(ctx context.Context, state State, r *run) (Env, error) {
	env := Env{
		Settings:      r.settings,
		CartNonEmpty:  cart.IsNonEmpty(r.sess.Cart),
		Draft:         r.sess.Draft,
		PhotoQuestion: m.opts.PhotoQuestion(),
	}

	if state == StateLocationPickup {
		titles, err := m.locationTitles(ctx)
		if err != nil {
			return Env{}, err
		}
		env.Locations = titles
	}

	if _, ok := r.upd.Event.(chat.Contact); ok && state == StatePhoneNumber {
		env.IsVIP = m.isVIP(ctx, r.upd.UserID, r.settings)
	}
	return env, nil
}

// isVIP はVIPチャンネルの参加者かを判定する。判定に失敗した場合はVIPとして扱わない。
func (m *Machine) isVIP(ctx context.Context, userID int64, s model.Settings) bool {
	if !s.VIPCustomersEnabled || m.opts.VIPChannel == "" {
		return false
	}
	ok, err := m.membership.IsChannelMember(ctx, m.opts.VIPChannel, userID)
	if err != nil {
		m.logger.Error("VIP顧客の判定に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func (m *Machine) apply(ctx context.Context, r *run, eff Effect) {
	switch e := eff.(type) {
	case SetDraft:
		r.sess.Draft = e.Draft
	case ClearDraft:
		r.sess.ClearDraft()
	case Prompt:
		m.prompt(ctx, r, e.State)
	case Notice:
		m.notice(ctx, r, e.Kind)
	case ShowMainMenu:
		m.mainMenu(ctx, r, m.renderer.Greeting(r.settings.WelcomeText, r.upd.FirstName))
	case Rejected:
		m.logger.Info("入力を受け付けませんでした",
			slog.Int64("user_id", r.upd.UserID),
			slog.String("error_code", model.ErrorCode(e.Err)),
			slog.String("error", e.Err.Error()),
		)
	case Finalize:
		m.finalize(ctx, r)
	}
}

func (m *Machine) send(ctx context.Context, r *run, text string, kb *chat.Keyboard) {
	if _, err := m.messenger.Prompt(ctx, r.upd.UserID, text, kb); err != nil {
		r.fail(fmt.Errorf("failed to send prompt: %w", err))
	}
}

func (m *Machine) answer(ctx context.Context, r *run, text string) {
	r.answered = true
	if err := m.messenger.AnswerCallback(ctx, r.upd.CallbackID, text); err != nil {
		r.fail(fmt.Errorf("failed to answer callback: %w", err))
	}
}

func (m *Machine) notice(ctx context.Context, r *run, kind NoticeKind) {
	switch kind {
	case NoticeEmptyCart:
		const text = "Your cart is empty. Please add something to the cart."
		if r.upd.IsCallback() {
			m.answer(ctx, r, text)
			return
		}
		m.send(ctx, r, text, nil)
	case NoticeCheckoutBusy:
		if r.upd.IsCallback() {
			m.answer(ctx, r, "Cannot process commands when checking out")
			return
		}
		m.send(ctx, r, "Cannot process commands when checking out", nil)
	case NoticeCancelled:
		m.send(ctx, r, "<b>Order cancelled</b>", chat.RemoveKeyboard())
	}
}

// prompt は状態に応じた入力を促すメッセージを送る。
func (m *Machine) prompt(ctx context.Context, r *run, state State) {
	draft := r.sess.Draft
	switch state {
	case StateInit:
		m.mainMenu(ctx, r, m.renderer.Greeting(r.settings.WelcomeText, r.upd.FirstName))
	case StateShippingMethod:
		m.send(ctx, r, "Please choose pickup or delivery:", chat.ShippingKeyboard())
	case StateLocationPickup:
		titles, err := m.locationTitles(ctx)
		if err != nil {
			r.fail(err)
			return
		}
		m.send(ctx, r, "Please choose where do you want to pickup your order:", chat.LocationsKeyboard(titles))
	case StateLocationDelivery:
		m.send(ctx, r, "Please enter delivery address as text or send a location.", chat.CancelKeyboard())
	case StateShippingTime:
		text := "When do you want to pickup your order?"
		if draft.Method == model.ShippingDelivery {
			text = "When do you want your order delivered?"
		}
		m.send(ctx, r, text, chat.TimeKeyboard())
	case StateShippingTimeText:
		m.send(ctx, r, "Please send the time as text.", chat.CancelKeyboard())
	case StatePhoneNumber:
		m.send(ctx, r, "Please send your phone number.", chat.PhoneKeyboard())
	case StateIdentify1:
		m.send(ctx, r, "Please provide an identification picture. "+draft.PhotoQuestion, chat.CancelKeyboard())
	case StateIdentify2:
		text := r.settings.IdentificationStage2Question
		if text == "" {
			text = "Please provide a second identification picture."
		}
		m.send(ctx, r, m.renderer.Text(text), chat.CancelKeyboard())
	case StateConfirmation:
		text, err := m.confirmation(ctx, r)
		if err != nil {
			r.fail(err)
			return
		}
		m.send(ctx, r, text, chat.ConfirmationKeyboard())
	}
}

// confirmation は確認画面の文面を組み立てる。
func (m *Machine) confirmation(ctx context.Context, r *run) (string, error) {
	lines, err := m.carts.Lines(ctx, r.sess.Cart)
	if err != nil {
		return "", fmt.Errorf("failed to list cart lines: %w", err)
	}
	d := r.sess.Draft
	q := pricing.Calculate(cart.SumLines(lines), d.Method, d.IsVIP, r.settings.DeliveryFee, r.settings.Discount)
	return m.renderer.Confirmation(lines, q), nil
}

// mainMenu は文面とメインメニューを送る。
func (m *Machine) mainMenu(ctx context.Context, r *run, text string) {
	total, err := m.carts.Total(ctx, r.sess.Cart)
	if err != nil {
		r.fail(fmt.Errorf("failed to calculate cart total: %w", err))
		return
	}
	m.send(ctx, r, text, chat.MainMenuKeyboard(total, m.opts.ReviewsURL))
}

// finalize は注文を確定し、結果に応じて次の状態を決める。
func (m *Machine) finalize(ctx context.Context, r *run) {
	order, err := m.finalizer.Finalize(ctx, r.upd, r.sess)
	if err != nil {
		code := model.ErrorCode(err)
		m.metrics.RecordFinalizeFailure(code)
		attrs := []any{
			slog.Int64("user_id", r.upd.UserID),
			slog.String("error_code", code),
			slog.String("error", err.Error()),
		}

		switch code {
		case model.ErrCodeUnknownLocation:
			m.logger.Warn("受け取り場所が見つからないため選択し直します", attrs...)
			r.sess.Draft.PickupLocation = ""
			r.next = StateLocationPickup
			m.prompt(ctx, r, StateLocationPickup)
		case model.ErrCodeUnknownProduct:
			m.logger.Warn("カートの商品が変わったため確認画面を出し直します", attrs...)
			if !cart.IsNonEmpty(r.sess.Cart) {
				m.emptyCartAtFinalize(ctx, r)
				return
			}
			r.next = StateConfirmation
			m.send(ctx, r, "Some products in your cart are no longer available. Please check your order again.", nil)
			m.prompt(ctx, r, StateConfirmation)
		case model.ErrCodeEmptyCart:
			m.logger.Warn("カートが空のため注文を確定できませんでした", attrs...)
			m.emptyCartAtFinalize(ctx, r)
		default:
			m.logger.Error("注文の確定に失敗しました", attrs...)
			r.next = StateConfirmation
			m.send(ctx, r, "Sorry, we could not place your order. Please try again.", chat.ConfirmationKeyboard())
		}
		return
	}

	m.metrics.RecordOrderCreated()
	m.logger.Info("注文を確定しました",
		slog.Int64("user_id", r.upd.UserID),
		slog.String("order_id", order.ID),
	)
	r.sess.Clear()
	r.next = StateInit
	m.send(ctx, r, m.renderer.Greeting(r.settings.OrderCompleteText, r.upd.FirstName), chat.RemoveKeyboard())
	m.send(ctx, r, notice.Divider, chat.MainMenuKeyboard(decimal.Zero, m.opts.ReviewsURL))
}

// emptyCartAtFinalize は下書きを破棄してメインメニューに戻す。
func (m *Machine) emptyCartAtFinalize(ctx context.Context, r *run) {
	r.sess.ClearDraft()
	r.next = StateInit
	m.notice(ctx, r, NoticeEmptyCart)
	m.mainMenu(ctx, r, m.renderer.Greeting(r.settings.WelcomeText, r.upd.FirstName))
}

// locationTitles は受け取り場所の名前を返す。
func (m *Machine) locationTitles(ctx context.Context) ([]string, error) {
	locations, err := m.locations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	titles := make([]string, len(locations))
	for i, l := range locations {
		titles[i] = l.Title
	}
	return titles, nil
}
