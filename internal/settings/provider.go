// Package settings は再読み込み可能な店舗設定のスナップショットを提供する。
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hitoshi/shoppybot/internal/model"
)

// Loader は設定の読み込みインターフェース。
type Loader interface {
	Load(ctx context.Context) (*model.Settings, error)
}

// Provider は現在の設定を保持する。
// 読み込みに成功するまでは既定値を返す。
type Provider struct {
	loader  Loader
	logger  *slog.Logger
	current atomic.Pointer[model.Settings]
}

// NewProvider はProviderを生成する。
func NewProvider(loader Loader, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{loader: loader, logger: logger}
	defaults := model.DefaultSettings()
	p.current.Store(&defaults)
	return p
}

// Current は現在の設定のスナップショットを返す。
// 返された値は以後の再読み込みの影響を受けない。
func (p *Provider) Current() model.Settings {
	return *p.current.Load()
}

// Reload は設定を読み込み直す。失敗した場合は直前の設定を維持する。
func (p *Provider) Reload(ctx context.Context) error {
	s, err := p.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload settings: %w", err)
	}
	p.current.Store(s)
	p.logger.Info("店舗設定を再読み込みしました",
		slog.Bool("bot_enabled", s.BotEnabled),
		slog.Bool("phone_number_required", s.PhoneNumberRequired),
		slog.Bool("identification_required", s.IdentificationRequired),
		slog.Bool("identification_stage2_required", s.IdentificationStage2Required),
	)
	return nil
}

// Watch はinterval間隔で設定を再読み込みする。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *Provider) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Reload(ctx); err != nil {
				p.logger.Error("店舗設定の再読み込みに失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
