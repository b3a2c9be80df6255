package settings

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/shoppybot/internal/model"
)

// --- モック ---

type mockLoader struct {
	loadFn func(ctx context.Context) (*model.Settings, error)
	calls  atomic.Int32
}

func (m *mockLoader) Load(ctx context.Context) (*model.Settings, error) {
	m.calls.Add(1)
	return m.loadFn(ctx)
}

func TestProvider_StartsWithDefaults(t *testing.T) {
	p := NewProvider(&mockLoader{}, nil)
	s := p.Current()
	if !s.BotEnabled || !s.PhoneNumberRequired {
		t.Errorf("Current() = %+v, want defaults", s)
	}
}

func TestProvider_Reload_ReplacesSnapshot(t *testing.T) {
	loader := &mockLoader{loadFn: func(ctx context.Context) (*model.Settings, error) {
		s := model.DefaultSettings()
		s.BotEnabled = false
		return &s, nil
	}}
	p := NewProvider(loader, nil)
	before := p.Current()

	if err := p.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if p.Current().BotEnabled {
		t.Error("BotEnabled should be false after reload")
	}
	if !before.BotEnabled {
		t.Error("earlier snapshot must not change")
	}
}

// 読み込みに失敗しても直前の設定が維持されることを検証
func TestProvider_Reload_KeepsPreviousOnError(t *testing.T) {
	loader := &mockLoader{loadFn: func(ctx context.Context) (*model.Settings, error) {
		return nil, errors.New("db down")
	}}
	p := NewProvider(loader, nil)

	if err := p.Reload(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !p.Current().BotEnabled {
		t.Error("previous settings should be kept")
	}
}

func TestProvider_Watch_ReloadsUntilCancelled(t *testing.T) {
	loader := &mockLoader{loadFn: func(ctx context.Context) (*model.Settings, error) {
		s := model.DefaultSettings()
		return &s, nil
	}}
	p := NewProvider(loader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
	if loader.calls.Load() < 2 {
		t.Errorf("Load called %d times, want at least 2", loader.calls.Load())
	}
}
