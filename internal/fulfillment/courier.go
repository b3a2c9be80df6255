package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/repository"
)

// CourierDesk は配達員の担当申請と、サービス担当者による承認を扱う。
//
// 申請・取り下げは配達員チャンネルの注文通知のボタンから、
// 承認・却下はサービスチャンネルの確認メッセージのボタンから届く。
type CourierDesk struct {
	orders    repository.OrderRepository
	couriers  repository.CourierRepository
	users     repository.UserRepository
	messenger chat.Messenger
	renderer  *notice.Renderer
	channels  Channels
	logger    *slog.Logger
}

// NewCourierDesk はCourierDeskを生成する。
func NewCourierDesk(
	orders repository.OrderRepository,
	couriers repository.CourierRepository,
	users repository.UserRepository,
	messenger chat.Messenger,
	renderer *notice.Renderer,
	channels Channels,
	logger *slog.Logger,
) *CourierDesk {
	if logger == nil {
		logger = slog.Default()
	}
	return &CourierDesk{
		orders:    orders,
		couriers:  couriers,
		users:     users,
		messenger: messenger,
		renderer:  renderer,
		channels:  channels,
		logger:    logger,
	}
}

// Take は配達員が注文の担当を申請する。
// 配達員が注文の場所を担当していない場合は割り当てず、チャンネルにその旨を通知する。
// 割り当てた場合は通知を取り下げボタン付きで再投稿し、サービスチャンネルに承認を求める。
func (d *CourierDesk) Take(ctx context.Context, upd chat.Update, orderID string) error {
	order, err := d.order(ctx, upd, orderID)
	if err != nil || order == nil {
		return err
	}

	courier, err := d.couriers.FindByChatID(ctx, upd.UserID)
	if err != nil {
		return fmt.Errorf("failed to find courier: %w", err)
	}
	if courier == nil {
		return d.answer(ctx, upd, "You are not registered as a courier")
	}

	name := courierName(upd, courier)
	if order.LocationID == nil || !courier.Serves(*order.LocationID) {
		mismatch := model.NewCourierLocationError(name)
		d.logger.Info("配達員の担当場所が注文の場所と異なります",
			slog.String("order_id", order.ID),
			slog.String("courier_id", courier.ID),
			slog.String("error_code", mismatch.Code),
		)
		text := fmt.Sprintf("%s your location and customer locations are different", d.renderer.Escape(name))
		if _, err := d.messenger.NotifyChannel(ctx, d.channels.Couriers, text, nil, nil); err != nil {
			return fmt.Errorf("failed to notify couriers channel: %w", err)
		}
		return d.answer(ctx, upd, "")
	}

	if err := d.orders.AssignCourier(ctx, order.ID, &courier.ID); err != nil {
		return fmt.Errorf("failed to assign courier: %w", err)
	}
	d.logger.Info("配達員を割り当てました",
		slog.String("order_id", order.ID),
		slog.String("courier_id", courier.ID),
	)

	if err := d.repost(ctx, upd, chat.DropResponsibilityKeyboard(order.ID, name)); err != nil {
		return err
	}

	text := fmt.Sprintf("Courier: %s, apply for order №%s. Confirm this?", d.renderer.Escape(name), order.ID)
	if _, err := d.messenger.NotifyChannel(ctx, d.channels.Service, text, nil,
		chat.CourierConfirmationKeyboard(order.ID)); err != nil {
		return fmt.Errorf("failed to notify service channel: %w", err)
	}
	return d.answer(ctx, upd, fmt.Sprintf("Courier %s assigned", name))
}

// Drop は配達員が担当を取り下げる。通知は申請ボタン付きで再投稿される。
func (d *CourierDesk) Drop(ctx context.Context, upd chat.Update, orderID string) error {
	order, err := d.order(ctx, upd, orderID)
	if err != nil || order == nil {
		return err
	}

	if order.CourierID != nil {
		courier, err := d.couriers.FindByChatID(ctx, upd.UserID)
		if err != nil {
			return fmt.Errorf("failed to find courier: %w", err)
		}
		if courier == nil || courier.ID != *order.CourierID {
			return d.answer(ctx, upd, "Only the assigned courier can drop this order")
		}
	}

	if err := d.orders.AssignCourier(ctx, order.ID, nil); err != nil {
		return fmt.Errorf("failed to clear courier: %w", err)
	}
	d.logger.Info("配達員の担当を解除しました", slog.String("order_id", order.ID))

	if err := d.repost(ctx, upd, chat.TakeResponsibilityKeyboard(order.ID)); err != nil {
		return err
	}
	return d.answer(ctx, upd, "")
}

// Confirm はサービス担当者が注文に割り当て済みの配達員を承認し、顧客に通知する。
func (d *CourierDesk) Confirm(ctx context.Context, upd chat.Update, orderID string) error {
	if err := d.deletePressed(ctx, upd); err != nil {
		return err
	}
	order, err := d.order(ctx, upd, orderID)
	if err != nil || order == nil {
		return err
	}
	courier, err := d.assigned(ctx, upd, order)
	if err != nil || courier == nil {
		return err
	}

	if err := d.orders.SetConfirmed(ctx, order.ID, true); err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	d.logger.Info("配達員の割り当てを承認しました",
		slog.String("order_id", order.ID),
		slog.String("courier_id", courier.ID),
	)

	user, err := d.users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil {
		text := fmt.Sprintf("Courier @%s assigned for order № %s", d.renderer.Escape(courier.Username), order.ID)
		if _, err := d.messenger.Prompt(ctx, user.ChatID, text, nil); err != nil {
			return fmt.Errorf("failed to notify customer: %w", err)
		}
	}
	return d.answer(ctx, upd, "")
}

// Reject はサービス担当者が配達員の割り当てを却下し、配達員に再申請を求める。
func (d *CourierDesk) Reject(ctx context.Context, upd chat.Update, orderID string) error {
	if err := d.deletePressed(ctx, upd); err != nil {
		return err
	}
	order, err := d.order(ctx, upd, orderID)
	if err != nil || order == nil {
		return err
	}
	courier, err := d.assigned(ctx, upd, order)
	if err != nil || courier == nil {
		return err
	}

	if err := d.orders.AssignCourier(ctx, order.ID, nil); err != nil {
		return fmt.Errorf("failed to clear courier: %w", err)
	}
	d.logger.Info("配達員の割り当てを却下しました",
		slog.String("order_id", order.ID),
		slog.String("courier_id", courier.ID),
	)

	text := fmt.Sprintf("The admin did not confirm. Please retake responsibility for order №%s", order.ID)
	if _, err := d.messenger.NotifyChannel(ctx, d.channels.Couriers, text, nil,
		chat.TakeResponsibilityKeyboard(order.ID)); err != nil {
		return fmt.Errorf("failed to notify couriers channel: %w", err)
	}
	return d.answer(ctx, upd, "")
}

// order は注文を取得する。存在しない場合はボタン押下に応答してnilを返す。
func (d *CourierDesk) order(ctx context.Context, upd chat.Update, orderID string) (*model.Order, error) {
	order, err := d.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	if order == nil {
		missing := model.NewUnknownOrderError(orderID)
		d.logger.Info("注文が見つかりません",
			slog.String("order_id", orderID),
			slog.String("error_code", missing.Code),
		)
		return nil, d.answer(ctx, upd, fmt.Sprintf("Order №%s not found", orderID))
	}
	return order, nil
}

// assigned は注文に割り当てられた配達員を取得する。
// 承認前に取り下げられた場合はボタン押下に応答してnilを返す。
func (d *CourierDesk) assigned(ctx context.Context, upd chat.Update, order *model.Order) (*model.Courier, error) {
	if order.CourierID == nil {
		return nil, d.answer(ctx, upd, fmt.Sprintf("No courier is assigned to order №%s", order.ID))
	}
	courier, err := d.couriers.FindByID(ctx, *order.CourierID)
	if err != nil {
		return nil, fmt.Errorf("failed to find courier: %w", err)
	}
	if courier == nil {
		d.logger.Warn("割り当て済みの配達員が見つかりません",
			slog.String("order_id", order.ID),
			slog.String("courier_id", *order.CourierID),
		)
		return nil, d.answer(ctx, upd, fmt.Sprintf("No courier is assigned to order №%s", order.ID))
	}
	return courier, nil
}

// repost はボタンが押された通知を削除し、同じ本文を別のボタンで投稿し直す。
func (d *CourierDesk) repost(ctx context.Context, upd chat.Update, kb *chat.Keyboard) error {
	if err := d.deletePressed(ctx, upd); err != nil {
		return err
	}
	if _, err := d.messenger.NotifyChannel(ctx, upd.ChatID, d.renderer.Escape(upd.MessageText), nil, kb); err != nil {
		return fmt.Errorf("failed to repost notice: %w", err)
	}
	return nil
}

func (d *CourierDesk) deletePressed(ctx context.Context, upd chat.Update) error {
	if upd.MessageID == 0 {
		return nil
	}
	if err := d.messenger.DeleteMessage(ctx, upd.ChatID, upd.MessageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (d *CourierDesk) answer(ctx context.Context, upd chat.Update, text string) error {
	if !upd.IsCallback() {
		return nil
	}
	if err := d.messenger.AnswerCallback(ctx, upd.CallbackID, text); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// courierName は通知に表示する配達員名を返す。
func courierName(upd chat.Update, c *model.Courier) string {
	if upd.Username != "" {
		return upd.Username
	}
	if c.Username != "" {
		return c.Username
	}
	return upd.FirstName
}
