package fulfillment

import (
	"context"
	"errors"

	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*model.User, error)
	getOrCreateFn       func(ctx context.Context, chatID int64, username string) (*model.User, error)
	updatePhoneNumberFn func(ctx context.Context, id, phone string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) GetOrCreate(ctx context.Context, chatID int64, username string) (*model.User, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, chatID, username)
	}
	return &model.User{ID: "user-1", ChatID: chatID, Username: username}, nil
}

func (m *mockUserRepo) UpdatePhoneNumber(ctx context.Context, id, phone string) error {
	if m.updatePhoneNumberFn != nil {
		return m.updatePhoneNumberFn(ctx, id, phone)
	}
	return nil
}

type mockLocationRepo struct {
	locations map[string]*model.Location
}

func (m *mockLocationRepo) FindByID(_ context.Context, id string) (*model.Location, error) {
	for _, l := range m.locations {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (m *mockLocationRepo) FindByTitle(_ context.Context, title string) (*model.Location, error) {
	return m.locations[title], nil
}

func (m *mockLocationRepo) List(context.Context) ([]*model.Location, error) {
	out := make([]*model.Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	return out, nil
}

type mockOrderRepo struct {
	orders         map[string]*model.Order
	createFn       func(ctx context.Context, order *model.Order) error
	assignCalls    []*string
	confirmedCalls []bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[string]*model.Order{}}
}

func (m *mockOrderRepo) FindByID(_ context.Context, id string) (*model.Order, error) {
	return m.orders[id], nil
}

func (m *mockOrderRepo) CreateWithItems(ctx context.Context, order *model.Order) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, order); err != nil {
			return err
		}
	}
	if order.ID == "" {
		order.ID = "order-1"
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) AssignCourier(_ context.Context, orderID string, courierID *string) error {
	m.assignCalls = append(m.assignCalls, courierID)
	o, ok := m.orders[orderID]
	if !ok {
		return errors.New("order not found: " + orderID)
	}
	o.CourierID = courierID
	o.Confirmed = false
	return nil
}

func (m *mockOrderRepo) SetConfirmed(_ context.Context, orderID string, confirmed bool) error {
	m.confirmedCalls = append(m.confirmedCalls, confirmed)
	o, ok := m.orders[orderID]
	if !ok {
		return errors.New("order not found: " + orderID)
	}
	o.Confirmed = confirmed
	return nil
}

type mockCourierRepo struct {
	couriers map[int64]*model.Courier
}

func (m *mockCourierRepo) FindByID(_ context.Context, id string) (*model.Courier, error) {
	for _, c := range m.couriers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCourierRepo) FindByChatID(_ context.Context, chatID int64) (*model.Courier, error) {
	return m.couriers[chatID], nil
}

type mockLines struct {
	lines []cart.Line
	err   error
}

func (m *mockLines) Lines(context.Context, map[string]int) ([]cart.Line, error) {
	return m.lines, m.err
}

type fixedSettings struct {
	s model.Settings
}

func (f fixedSettings) Current() model.Settings { return f.s }

type channelMessage struct {
	channel     string
	text        string
	attachments []chat.Attachment
	kb          *chat.Keyboard
}

type promptMessage struct {
	userID int64
	text   string
}

type mockMessenger struct {
	channelMessages []channelMessage
	prompts         []promptMessage
	deleted         []int64
	answers         []string
	notifyFn        func(channel string) error
}

func (m *mockMessenger) Prompt(_ context.Context, userID int64, text string, _ *chat.Keyboard) (int64, error) {
	m.prompts = append(m.prompts, promptMessage{userID: userID, text: text})
	return 1, nil
}

func (m *mockMessenger) EditLastPrompt(context.Context, int64, int64, string, *chat.Keyboard) error {
	return nil
}

func (m *mockMessenger) NotifyChannel(_ context.Context, channel, text string, attachments []chat.Attachment, kb *chat.Keyboard) (int64, error) {
	m.channelMessages = append(m.channelMessages, channelMessage{channel: channel, text: text, attachments: attachments, kb: kb})
	if m.notifyFn != nil {
		return 0, m.notifyFn(channel)
	}
	return int64(len(m.channelMessages)), nil
}

func (m *mockMessenger) DeleteMessage(_ context.Context, _ string, messageID int64) error {
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	m.answers = append(m.answers, text)
	return nil
}

func (m *mockMessenger) to(channel string) []channelMessage {
	var out []channelMessage
	for _, msg := range m.channelMessages {
		if msg.channel == channel {
			out = append(out, msg)
		}
	}
	return out
}

func newRenderer() *notice.Renderer {
	return notice.NewRenderer(security.NewContentSanitizer())
}

var testChannels = Channels{Service: "service", Couriers: "couriers"}
