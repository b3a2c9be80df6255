package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/shoppybot/internal/bot"
	"github.com/hitoshi/shoppybot/internal/cart"
	"github.com/hitoshi/shoppybot/internal/checkout"
	"github.com/hitoshi/shoppybot/internal/config"
	"github.com/hitoshi/shoppybot/internal/database"
	"github.com/hitoshi/shoppybot/internal/fulfillment"
	"github.com/hitoshi/shoppybot/internal/gateway"
	"github.com/hitoshi/shoppybot/internal/handler"
	"github.com/hitoshi/shoppybot/internal/logger"
	"github.com/hitoshi/shoppybot/internal/metrics"
	"github.com/hitoshi/shoppybot/internal/middleware"
	"github.com/hitoshi/shoppybot/internal/notice"
	"github.com/hitoshi/shoppybot/internal/repository"
	"github.com/hitoshi/shoppybot/internal/security"
	"github.com/hitoshi/shoppybot/internal/session"
	"github.com/hitoshi/shoppybot/internal/settings"
	"github.com/hitoshi/shoppybot/internal/worker/renotify"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		PrintUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// newRedisClient はセッション保存用のRedisクライアントを生成する。
func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// newRegistry はボットのメトリクスとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// Wiring はサーバーモードで組み立てた依存関係。
type Wiring struct {
	Router   http.Handler
	Settings *settings.Provider
	Limiter  *middleware.RateLimiter
}

// Wire はserveモードの依存関係を組み立てる。
// DBとRedisへの接続は呼び出し元が用意する。
func Wire(cfg *config.Config, db *sql.DB, rdb redis.UniversalClient, log *slog.Logger) *Wiring {
	reg, collector := newRegistry()

	// 1. リポジトリの初期化
	productRepo := repository.NewPostgresProductRepo(db)
	locationRepo := repository.NewPostgresLocationRepo(db)
	courierRepo := repository.NewPostgresCourierRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	// 2. 設定・セッション・外部ゲートウェイ
	provider := settings.NewProvider(settingsRepo, log)
	store := session.NewRedisStore(rdb,
		session.WithKeyPrefix(cfg.SessionKeyPrefix),
		session.WithTTL(cfg.SessionTTL),
		session.WithLogger(log),
	)
	client := gateway.NewClient(
		&http.Client{Timeout: cfg.GatewayTimeout},
		cfg.GatewayURL, cfg.GatewayToken, collector, log,
	)

	// 3. ドメインサービスの初期化
	renderer := notice.NewRenderer(security.NewContentSanitizer())
	engine := cart.NewEngine(productRepo, log)
	channels := fulfillment.Channels{
		Service:  cfg.ServiceChannel,
		Couriers: cfg.CouriersChannel,
	}
	notifier := fulfillment.NewNotifier(
		userRepo, locationRepo, orderRepo, engine, provider,
		client, renderer, channels, collector, log,
	)
	machine := checkout.NewMachine(
		store, engine, locationRepo, notifier, provider,
		client, client, renderer, collector,
		checkout.Options{
			VIPChannel: cfg.VIPCustomersChannel,
			ReviewsURL: cfg.ReviewsURL,
		},
		log,
	)
	desk := fulfillment.NewCourierDesk(orderRepo, courierRepo, userRepo, client, renderer, channels, log)

	front := bot.NewFront(bot.Deps{
		Sessions:   store,
		Carts:      engine,
		Products:   productRepo,
		Users:      userRepo,
		Checkout:   machine,
		Couriers:   desk,
		Settings:   provider,
		Messenger:  client,
		Membership: client,
		Renderer:   renderer,
		Channels: bot.Channels{
			Service:   cfg.ServiceChannel,
			Couriers:  cfg.CouriersChannel,
			Customers: cfg.CustomersChannel,
			VIP:       cfg.VIPCustomersChannel,
		},
		ReviewsURL: cfg.ReviewsURL,
		Metrics:    collector,
		Logger:     log,
	})

	// 4. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitPerMinute))
	router := handler.NewRouter(&handler.RouterDeps{
		Updates:       front,
		Limiter:       limiter,
		WebhookSecret: cfg.WebhookSecret,
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": db.PingContext,
			"redis":    store.Ping,
		},
		Gatherer: reg,
		Logger:   log,
	})

	return &Wiring{Router: router, Settings: provider, Limiter: limiter}
}

// runServe はボットのWebhookサーバーとして起動する。
// DBとRedisに接続し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established")

	rdb := newRedisClient(cfg)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established")

	w := Wire(cfg, db, rdb, slog.Default())
	defer w.Limiter.Stop()

	// 起動時に店舗設定を読み込む。失敗しても既定値で動作を続ける
	if err := w.Settings.Reload(ctx); err != nil {
		slog.Warn("店舗設定の読み込みに失敗したため既定値で起動します", slog.String("error", err.Error()))
	}
	if cfg.SettingsReloadInterval > 0 {
		go w.Settings.Watch(ctx, cfg.SettingsReloadInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      w.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	}
	slog.Info("shutting down webhook server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("webhook server stopped gracefully")
	return nil
}

// NewRenotifyJob は担当待ちの注文を配達員チャンネルに再掲するジョブを組み立てる。
func NewRenotifyJob(cfg *config.Config, db *sql.DB, provider *settings.Provider, log *slog.Logger) *renotify.Job {
	client := gateway.NewClient(
		&http.Client{Timeout: cfg.GatewayTimeout},
		cfg.GatewayURL, cfg.GatewayToken, metrics.Nop{}, log,
	)
	return renotify.NewJob(
		repository.NewPostgresOrderRepo(db), client, provider,
		notice.NewRenderer(security.NewContentSanitizer()),
		cfg.CouriersChannel, cfg.RenotifyIdle, cfg.RenotifyWindow,
		nil, log,
	)
}

// runWorker はワーカーモードで起動する。
// 配達員が決まらない注文の再掲を定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established (worker)")

	provider := settings.NewProvider(repository.NewPostgresSettingsRepo(db), slog.Default())
	if err := provider.Reload(ctx); err != nil {
		slog.Warn("店舗設定の読み込みに失敗したため既定値で起動します", slog.String("error", err.Error()))
	}
	if cfg.SettingsReloadInterval > 0 {
		go provider.Watch(ctx, cfg.SettingsReloadInterval)
	}

	job := NewRenotifyJob(cfg, db, provider, slog.Default())

	slog.Info("worker starting",
		slog.Duration("renotify_interval", cfg.RenotifyInterval),
		slog.Duration("renotify_idle", job.Idle),
		slog.Duration("renotify_window", job.Window),
	)

	// 再掲ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.RenotifyInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
