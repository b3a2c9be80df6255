// Package renotify は配達員が決まらない注文を配達員チャンネルに再掲するジョブを提供する。
// 注文の作成または前回の再掲から一定時間たっても担当が決まらない場合に、
// 担当申請ボタン付きで通知し直す。再掲は注文の作成から一定期間に限る。
package renotify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shoppybot/internal/chat"
	"github.com/hitoshi/shoppybot/internal/metrics"
	"github.com/hitoshi/shoppybot/internal/model"
	"github.com/hitoshi/shoppybot/internal/notice"
)

// 既定値
const (
	DefaultIdle   = 30 * time.Minute
	DefaultWindow = 24 * time.Hour
)

// Orders は担当待ちの注文の取得と再掲の記録を行う。
type Orders interface {
	ListAwaitingCourier(ctx context.Context, idle, window time.Duration) ([]*model.Order, error)
	MarkReminded(ctx context.Context, orderID string) error
}

// Notifier はチャンネルへの投稿を行う。
type Notifier interface {
	NotifyChannel(ctx context.Context, channelID string, text string, attachments []chat.Attachment, kb *chat.Keyboard) (int64, error)
}

// SettingsSource は最新の店舗設定を返す。
type SettingsSource interface {
	Current() model.Settings
}

// Job は担当待ちの注文の再掲ジョブ。
// 再掲に成功した注文だけを記録するため、失敗した注文は次回に再試行される。
type Job struct {
	orders   Orders
	notifier Notifier
	settings SettingsSource
	renderer *notice.Renderer
	channel  string
	metrics  metrics.MetricsCollector
	logger   *slog.Logger

	Idle   time.Duration // 作成または前回の再掲からの待ち時間
	Window time.Duration // 再掲の対象とする注文の作成からの期間
}

// NewJob はJobを生成する。idleとwindowが0以下の場合は既定値を使う。
func NewJob(
	orders Orders,
	notifier Notifier,
	settings SettingsSource,
	renderer *notice.Renderer,
	channel string,
	idle, window time.Duration,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Job {
	if idle <= 0 {
		idle = DefaultIdle
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		orders:   orders,
		notifier: notifier,
		settings: settings,
		renderer: renderer,
		channel:  channel,
		metrics:  collector,
		logger:   logger,
		Idle:     idle,
		Window:   window,
	}
}

// Run は担当待ちの注文を配達員チャンネルに再掲する。
// 配達員への通知が無効な場合は何もしない。
// 個々の投稿の失敗はログに記録して残りの注文を続ける。
func (j *Job) Run(ctx context.Context) error {
	if j.channel == "" || !j.settings.Current().CourierNotifications {
		j.logger.Debug("配達員への通知が無効のため再掲をスキップします")
		return nil
	}

	start := time.Now()
	orders, err := j.orders.ListAwaitingCourier(ctx, j.Idle, j.Window)
	if err != nil {
		j.logger.Error("担当待ちの注文の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to list orders awaiting courier: %w", err)
	}

	var posted, failed int
	for _, order := range orders {
		if err := j.remind(ctx, order); err != nil {
			failed++
			j.metrics.RecordNotifyFailure("couriers")
			j.logger.Error("注文の再掲に失敗しました",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		posted++
	}

	j.logger.Info("担当待ちの注文の再掲が完了しました",
		slog.Int("posted_count", posted),
		slog.Int("failed_count", failed),
		slog.Duration("idle", j.Idle),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *Job) remind(ctx context.Context, order *model.Order) error {
	if _, err := j.notifier.NotifyChannel(ctx, j.channel, j.renderer.CourierReminder(order), nil,
		chat.TakeResponsibilityKeyboard(order.ID)); err != nil {
		return fmt.Errorf("failed to notify couriers channel: %w", err)
	}
	if err := j.orders.MarkReminded(ctx, order.ID); err != nil {
		return fmt.Errorf("failed to mark order reminded: %w", err)
	}
	return nil
}

// Start は起動直後に1回実行し、以後interval間隔で実行する。
// コンテキストがキャンセルされるまでブロックする。失敗はログに記録して継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("担当待ちの注文の再掲ジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
