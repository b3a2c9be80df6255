package bot

import (
	"context"
	"errors"
	"maps"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/checkout"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/security"
	"github.com/hitoshi/shoppybot/internal/session"
)

// --- モック定義 ---

type memStore struct {
	sessions map[int64]*session.Session
	putFn    func() error
}

func (s *memStore) Get(_ context.Context, userID int64) (*session.Session, error) {
	stored, ok := s.sessions[userID]
	if !ok {
		return session.New(), nil
	}
	cp := *stored
	cp.Cart = maps.Clone(stored.Cart)
	cp.Normalize()
	return &cp, nil
}

func (s *memStore) Put(_ context.Context, userID int64, sess *session.Session) error {
	if s.putFn != nil {
		if err := s.putFn(); err != nil {
			return err
		}
	}
	cp := *sess
	cp.Cart = maps.Clone(sess.Cart)
	s.sessions[userID] = &cp
	return nil
}

type sentMessage struct {
	text string
	kb   *chat.Keyboard
}

type mockMessenger struct {
	prompts []sentMessage
	edits   []sentMessage
	answers []string
}

func (m *mockMessenger) Prompt(_ context.Context, _ int64, text string, kb *chat.Keyboard) (int64, error) {
	m.prompts = append(m.prompts, sentMessage{text: text, kb: kb})
	return int64(len(m.prompts)), nil
}

func (m *mockMessenger) EditLastPrompt(_ context.Context, _ int64, _ int64, text string, kb *chat.Keyboard) error {
	m.edits = append(m.edits, sentMessage{text: text, kb: kb})
	return nil
}

func (m *mockMessenger) NotifyChannel(context.Context, string, string, []chat.Attachment, *chat.Keyboard) (int64, error) {
	return 0, nil
}

func (m *mockMessenger) DeleteMessage(context.Context, string, int64) error { return nil }

func (m *mockMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	m.answers = append(m.answers, text)
	return nil
}

type mockMembership struct {
	members map[string]bool
	err     error
}

func (m *mockMembership) IsChannelMember(_ context.Context, channelID string, _ int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.members[channelID], nil
}

type mockCheckout struct {
	handled []chat.Update
	resets  int
	store   *memStore
}

func (m *mockCheckout) Handle(_ context.Context, upd chat.Update) error {
	m.handled = append(m.handled, upd)
	return nil
}

func (m *mockCheckout) Reset(ctx context.Context, userID int64) (*session.Session, error) {
	m.resets++
	return m.store.Get(ctx, userID)
}

type mockCourierDesk struct {
	calls []string
}

func (m *mockCourierDesk) Take(_ context.Context, _ chat.Update, orderID string) error {
	m.calls = append(m.calls, "take:"+orderID)
	return nil
}

func (m *mockCourierDesk) Drop(_ context.Context, _ chat.Update, orderID string) error {
	m.calls = append(m.calls, "drop:"+orderID)
	return nil
}

func (m *mockCourierDesk) Confirm(_ context.Context, _ chat.Update, orderID string) error {
	m.calls = append(m.calls, "confirm:"+orderID)
	return nil
}

func (m *mockCourierDesk) Reject(_ context.Context, _ chat.Update, orderID string) error {
	m.calls = append(m.calls, "reject:"+orderID)
	return nil
}

type mockUsers struct {
	created []int64
}

func (m *mockUsers) GetOrCreate(_ context.Context, chatID int64, username string) (*model.User, error) {
	m.created = append(m.created, chatID)
	return &model.User{ID: "u1", ChatID: chatID, Username: username}, nil
}

type mockSettings struct {
	s        model.Settings
	reloads  int
	reloadFn func() error
}

func (m *mockSettings) Current() model.Settings { return m.s }

func (m *mockSettings) Reload(context.Context) error {
	m.reloads++
	if m.reloadFn != nil {
		return m.reloadFn()
	}
	return nil
}

type catalog struct {
	products map[string]*model.Product
}

func (c *catalog) FindByID(_ context.Context, id string) (*model.Product, error) {
	return c.products[id], nil
}

func (c *catalog) ListActive(context.Context) ([]*model.Product, error) {
	return []*model.Product{c.products["p1"], c.products["p2"]}, nil
}

// --- テストヘルパー ---

const userID int64 = 42

type fixture struct {
	front      *Front
	store      *memStore
	messenger  *mockMessenger
	membership *mockMembership
	checkout   *mockCheckout
	couriers   *mockCourierDesk
	users      *mockUsers
	settings   *mockSettings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	products := &catalog{products: map[string]*model.Product{
		"p1": {ID: "p1", Title: "Tea", IsActive: true, Tiers: []model.PriceTier{
			{Count: 1, Price: decimal.NewFromInt(10)},
			{Count: 2, Price: decimal.NewFromInt(18)},
		}},
		"p2": {ID: "p2", Title: "Coffee", IsActive: true, Tiers: []model.PriceTier{
			{Count: 1, Price: decimal.NewFromInt(7)},
		}},
	}}
	store := &memStore{sessions: map[int64]*session.Session{}}
	settings := model.DefaultSettings()
	settings.WelcomeText = "Hello {}"
	settings.OrderText = "Pick something"
	settings.WorkingHours = "9-18"
	settings.ContactInfo = "call us"

	f := &fixture{
		store:      store,
		messenger:  &mockMessenger{},
		membership: &mockMembership{members: map[string]bool{}},
		checkout:   &mockCheckout{store: store},
		couriers:   &mockCourierDesk{},
		users:      &mockUsers{},
		settings:   &mockSettings{s: settings},
	}
	f.front = NewFront(Deps{
		Sessions:   store,
		Carts:      cart.NewEngine(products, nil),
		Products:   products,
		Users:      f.users,
		Checkout:   f.checkout,
		Couriers:   f.couriers,
		Settings:   f.settings,
		Messenger:  f.messenger,
		Membership: f.membership,
		Renderer:   notice.NewRenderer(security.NewContentSanitizer()),
		Channels:   Channels{Service: "service", Couriers: "couriers", Customers: "customers", VIP: "vip"},
	})
	return f
}

func (f *fixture) seed(state checkout.State, c map[string]int) {
	sess := session.New()
	sess.State = string(state)
	maps.Copy(sess.Cart, c)
	f.store.sessions[userID] = sess
}

func message(ev chat.Event) chat.Update {
	return chat.Update{UserID: userID, Username: "ann", FirstName: "Ann", ChatID: "42", Event: ev}
}

func callback(ev chat.Event) chat.Update {
	u := message(ev)
	u.CallbackID = "cb-1"
	u.MessageID = 7
	return u
}

// --- テスト ---

func TestFront_StartShowsWelcomeMenu(t *testing.T) {
	f := newFixture(t)
	f.seed(checkout.StateInit, map[string]int{"p1": 2})

	if err := f.front.Handle(context.Background(), message(chat.Start{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.users.created) != 1 {
		t.Errorf("GetOrCreate calls = %d, want 1", len(f.users.created))
	}
	if f.checkout.resets != 1 {
		t.Errorf("Reset calls = %d, want 1", f.checkout.resets)
	}
	if len(f.messenger.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(f.messenger.prompts))
	}
	got := f.messenger.prompts[0]
	if got.text != "Hello Ann" {
		t.Errorf("text = %q, want %q", got.text, "Hello Ann")
	}
	if got.kb == nil || !got.kb.Inline {
		t.Fatalf("keyboard = %+v, want inline main menu", got.kb)
	}
	if label := got.kb.Rows[1][0].Label; label != "🛍 Checkout 18" {
		t.Errorf("checkout label = %q, want cart total 18", label)
	}
}

func TestFront_StartWhenBotDisabled(t *testing.T) {
	f := newFixture(t)
	f.settings.s.BotEnabled = false

	if err := f.front.Handle(context.Background(), message(chat.Start{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if f.checkout.resets != 0 {
		t.Errorf("Reset calls = %d, want 0", f.checkout.resets)
	}
	want := "Sorry Ann, the bot is currently switched off"
	if len(f.messenger.prompts) != 1 || f.messenger.prompts[0].text != want {
		t.Errorf("prompts = %+v, want %q", f.messenger.prompts, want)
	}
	if len(f.users.created) != 1 {
		t.Errorf("user should still be registered, got %d calls", len(f.users.created))
	}
}

func TestFront_StartBannedUser(t *testing.T) {
	f := newFixture(t)
	f.settings.s.BannedUsernames = []string{"ann"}

	if err := f.front.Handle(context.Background(), message(chat.Start{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if f.checkout.resets != 0 {
		t.Errorf("banned user should not reach the menu")
	}
}

func TestFront_AdminBypassesSwitchedOffBot(t *testing.T) {
	f := newFixture(t)
	f.settings.s.BotEnabled = false
	f.membership.members["service"] = true

	if err := f.front.Handle(context.Background(), message(chat.Start{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if f.checkout.resets != 1 {
		t.Errorf("admin should reach the menu, Reset calls = %d", f.checkout.resets)
	}
}

func TestFront_OnlyForCustomers(t *testing.T) {
	tests := []struct {
		name    string
		members map[string]bool
		allowed bool
	}{
		{"stranger", map[string]bool{}, false},
		{"customer", map[string]bool{"customers": true}, true},
		{"vip", map[string]bool{"vip": true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.settings.s.OnlyForCustomers = true
			f.membership.members = tt.members

			if err := f.front.Handle(context.Background(), message(chat.Start{})); err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}
			if got := f.checkout.resets == 1; got != tt.allowed {
				t.Errorf("allowed = %v, want %v", got, tt.allowed)
			}
			if !tt.allowed {
				want := "Sorry Ann\nYou are not authorized to use this bot"
				if f.messenger.prompts[0].text != want {
					t.Errorf("text = %q, want %q", f.messenger.prompts[0].text, want)
				}
			}
		})
	}
}

func TestFront_MembershipErrorDeniesCustomerOnlyBot(t *testing.T) {
	f := newFixture(t)
	f.settings.s.OnlyForCustomers = true
	f.membership.err = errors.New("gateway down")

	if err := f.front.Handle(context.Background(), message(chat.Start{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if f.checkout.resets != 0 {
		t.Errorf("membership error should deny access")
	}
}

func TestFront_MenuProductsSendsCards(t *testing.T) {
	f := newFixture(t)
	f.seed(checkout.StateInit, map[string]int{"p1": 1})

	err := f.front.Handle(context.Background(), callback(chat.MenuAction{Item: chat.MenuProducts}))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(f.messenger.edits) != 1 || f.messenger.edits[0].text != "Our products:" {
		t.Errorf("edits = %+v, want the menu replaced by a heading", f.messenger.edits)
	}
	// 商品カード2枚とメインメニュー
	if len(f.messenger.prompts) != 3 {
		t.Fatalf("prompts = %d, want 3", len(f.messenger.prompts))
	}
	tea := f.messenger.prompts[0]
	if !strings.Contains(tea.text, "Tea") || !strings.Contains(tea.text, "Count: <b>1</b>") {
		t.Errorf("tea card = %q", tea.text)
	}
	if len(tea.kb.Rows[0]) != 2 {
		t.Errorf("tea in cart should show add and remove buttons, got %+v", tea.kb.Rows[0])
	}
	coffee := f.messenger.prompts[1]
	if len(coffee.kb.Rows[0]) != 1 {
		t.Errorf("coffee not in cart should show only add, got %+v", coffee.kb.Rows[0])
	}
	if f.messenger.prompts[2].text != "Pick something" {
		t.Errorf("menu text = %q, want order text", f.messenger.prompts[2].text)
	}
	if len(f.messenger.answers) != 1 {
		t.Errorf("answers = %d, want 1", len(f.messenger.answers))
	}
}

func TestFront_MenuHoursAndContactEditMenu(t *testing.T) {
	tests := []struct {
		item chat.MenuItem
		want string
	}{
		{chat.MenuHours, "9-18"},
		{chat.MenuContact, "call us"},
	}
	for _, tt := range tests {
		t.Run(string(tt.item), func(t *testing.T) {
			f := newFixture(t)
			err := f.front.Handle(context.Background(), callback(chat.MenuAction{Item: tt.item}))
			if err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}
			if len(f.messenger.edits) != 1 || f.messenger.edits[0].text != tt.want {
				t.Fatalf("edits = %+v, want %q", f.messenger.edits, tt.want)
			}
			if !f.messenger.edits[0].kb.Inline {
				t.Errorf("edited message should keep the main menu")
			}
		})
	}
}

func TestFront_MenuOrderDelegatesToCheckout(t *testing.T) {
	f := newFixture(t)

	err := f.front.Handle(context.Background(), callback(chat.MenuAction{Item: chat.MenuOrder}))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(f.checkout.handled) != 1 {
		t.Errorf("checkout.Handle calls = %d, want 1", len(f.checkout.handled))
	}
}

func TestFront_ProductAddStepsTierAndEditsCard(t *testing.T) {
	f := newFixture(t)
	f.seed(checkout.StateInit, map[string]int{"p1": 1})

	err := f.front.Handle(context.Background(), callback(chat.ProductAdd{ProductID: "p1"}))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if got := f.store.sessions[userID].Cart["p1"]; got != 2 {
		t.Errorf("cart[p1] = %d, want 2", got)
	}
	if len(f.messenger.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(f.messenger.edits))
	}
	if !strings.Contains(f.messenger.edits[0].text, "Subtotal: <b>$18</b>") {
		t.Errorf("card = %q, want subtotal $18", f.messenger.edits[0].text)
	}
	if len(f.messenger.answers) != 1 {
		t.Errorf("answers = %d, want 1", len(f.messenger.answers))
	}
}

func TestFront_ProductRemoveFromFirstTierEmptiesCart(t *testing.T) {
	f := newFixture(t)
	f.seed(checkout.StateInit, map[string]int{"p1": 1})

	err := f.front.Handle(context.Background(), callback(chat.ProductRemove{ProductID: "p1"}))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if _, ok := f.store.sessions[userID].Cart["p1"]; ok {
		t.Errorf("p1 should be removed from the cart")
	}
	card := f.messenger.edits[0]
	if len(card.kb.Rows[0]) != 1 {
		t.Errorf("card should only offer add after removal, got %+v", card.kb.Rows[0])
	}
}

func TestFront_ProductAddUnknownProduct(t *testing.T) {
	f := newFixture(t)

	err := f.front.Handle(context.Background(), callback(chat.ProductAdd{ProductID: "missing"}))
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(f.store.sessions[userID].Cart) != 0 {
		t.Errorf("cart = %v, want empty", f.store.sessions[userID].Cart)
	}
	if len(f.messenger.edits) != 0 {
		t.Errorf("card should not be edited for an unknown product")
	}
	if len(f.messenger.answers) != 1 {
		t.Errorf("callback should still be answered")
	}
}

func TestFront_ProductPersistenceError(t *testing.T) {
	f := newFixture(t)
	f.store.putFn = func() error { return errors.New("redis down") }

	err := f.front.Handle(context.Background(), callback(chat.ProductAdd{ProductID: "p1"}))
	if err == nil {
		t.Fatal("expected an error when the session cannot be saved")
	}
	if len(f.messenger.answers) != 1 {
		t.Errorf("callback should still be answered")
	}
}

func TestFront_CallbacksDuringCheckoutGoToMachine(t *testing.T) {
	events := []chat.Event{
		chat.MenuAction{Item: chat.MenuProducts},
		chat.ProductAdd{ProductID: "p1"},
		chat.ProductRemove{ProductID: "p1"},
	}
	for _, ev := range events {
		f := newFixture(t)
		f.seed(checkout.StatePhoneNumber, map[string]int{"p1": 1})

		if err := f.front.Handle(context.Background(), callback(ev)); err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
		if len(f.checkout.handled) != 1 {
			t.Errorf("%T: checkout.Handle calls = %d, want 1", ev, len(f.checkout.handled))
		}
		if got := f.store.sessions[userID].Cart["p1"]; got != 1 {
			t.Errorf("%T: cart changed during checkout: %d", ev, got)
		}
	}
}

func TestFront_CheckoutEventsAreDelegated(t *testing.T) {
	f := newFixture(t)
	events := []chat.Event{
		chat.Button{Label: chat.LabelPickup},
		chat.Text{Text: "Main st"},
		chat.Contact{PhoneNumber: "123"},
		chat.Photo{FileRef: "f"},
		chat.Location{Latitude: 1, Longitude: 2},
		chat.Unknown{},
	}
	for _, ev := range events {
		if err := f.front.Handle(context.Background(), message(ev)); err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
	}
	if len(f.checkout.handled) != len(events) {
		t.Errorf("checkout.Handle calls = %d, want %d", len(f.checkout.handled), len(events))
	}
}

func TestFront_CourierCallbacksRoutedByChannel(t *testing.T) {
	tests := []struct {
		name   string
		chatID string
		ev     chat.Event
		want   []string
	}{
		{"take in couriers", "couriers", chat.CourierTake{OrderID: "o1"}, []string{"take:o1"}},
		{"drop in couriers", "couriers", chat.CourierDrop{OrderID: "o1"}, []string{"drop:o1"}},
		{"confirm in service", "service", chat.CourierConfirm{OrderID: "o1"}, []string{"confirm:o1"}},
		{"reject in service", "service", chat.CourierReject{OrderID: "o1"}, []string{"reject:o1"}},
		{"take elsewhere", "42", chat.CourierTake{OrderID: "o1"}, nil},
		{"confirm in couriers", "couriers", chat.CourierConfirm{OrderID: "o1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			upd := callback(tt.ev)
			upd.ChatID = tt.chatID

			if err := f.front.Handle(context.Background(), upd); err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}
			if strings.Join(f.couriers.calls, ",") != strings.Join(tt.want, ",") {
				t.Errorf("calls = %v, want %v", f.couriers.calls, tt.want)
			}
			if tt.want == nil && len(f.messenger.answers) != 1 {
				t.Errorf("ignored callback should be answered")
			}
		})
	}
}

func TestFront_ReloadRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	if err := f.front.Handle(context.Background(), message(chat.Reload{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if f.settings.reloads != 0 {
		t.Errorf("non-admin should not reload settings")
	}

	f.membership.members["service"] = true
	if err := f.front.Handle(context.Background(), message(chat.Reload{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if f.settings.reloads != 1 {
		t.Errorf("reloads = %d, want 1", f.settings.reloads)
	}
	if last := f.messenger.prompts[len(f.messenger.prompts)-1].text; last != "Settings reloaded" {
		t.Errorf("reply = %q, want %q", last, "Settings reloaded")
	}
}

func TestFront_ReloadFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.membership.members["service"] = true
	f.settings.reloadFn = func() error { return errors.New("db down") }

	if err := f.front.Handle(context.Background(), message(chat.Reload{})); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if got := f.messenger.prompts[0].text; got != "Failed to reload settings" {
		t.Errorf("reply = %q, want failure notice", got)
	}
}

func TestEventName(t *testing.T) {
	tests := []struct {
		ev   chat.Event
		want string
	}{
		{chat.Start{}, "start"},
		{chat.MenuAction{Item: chat.MenuOrder}, "menu"},
		{chat.Contact{}, "contact"},
		{chat.CourierReject{}, "courier_reject"},
		{chat.Unknown{}, "unknown"},
	}
	for _, tt := range tests {
		if got := EventName(tt.ev); got != tt.want {
			t.Errorf("EventName(%T) = %q, want %q", tt.ev, got, tt.want)
		}
	}
}
