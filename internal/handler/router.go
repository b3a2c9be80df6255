package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/shoppybot/internal/metrics"
	"github.com/hitoshi/shoppybot/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Updates       UpdateHandler
	Limiter       Limiter
	WebhookSecret string

	HealthChecks map[string]HealthCheck
	// Gatherer がnilの場合は/metricsを公開しない。
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → SecretTokenMiddleware(/webhookのみ)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))

	r.Get("/health", NewHealthHandler(deps.HealthChecks).ServeHTTP)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	webhook := NewWebhookHandler(deps.Updates, deps.Limiter, logger)
	r.With(middleware.NewSecretTokenMiddleware(deps.WebhookSecret)).Post("/webhook", webhook.ServeHTTP)

	return r
}
