package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/brandhub/internal/auth"
	"github.com/hitoshi/brandhub/internal/config"
	"github.com/hitoshi/brandhub/internal/database"
	"github.com/hitoshi/brandhub/internal/datastore"
	"github.com/hitoshi/brandhub/internal/handler"
	"github.com/hitoshi/brandhub/internal/importer"
	"github.com/hitoshi/brandhub/internal/logger"
	"github.com/hitoshi/brandhub/internal/metrics"
	"github.com/hitoshi/brandhub/internal/middleware"
	"github.com/hitoshi/brandhub/internal/post"
	"github.com/hitoshi/brandhub/internal/repository"
	"github.com/hitoshi/brandhub/internal/security"
	"github.com/hitoshi/brandhub/internal/seed"
	"github.com/hitoshi/brandhub/internal/subscriber"
	"github.com/hitoshi/brandhub/internal/worker/backup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envがあれば環境変数に反映する
	if err := config.LoadDotEnv(""); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再セットアップする
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("use_database", cfg.UseDatabase),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(ctx, cfg)
	case CommandBackup:
		return runBackup(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// Components は設定から組み立てた実行時の依存関係をまとめたもの。
type Components struct {
	Store    *datastore.Adapter
	Gate     *auth.Gate
	Backup   *backup.Job
	Registry *prometheus.Registry
	Handler  http.Handler

	limiter *middleware.RateLimiter
	closeDB func() error
}

// Close はComponentsが保持するリソースを解放する。
func (c *Components) Close() error {
	if c.limiter != nil {
		c.limiter.Stop()
	}
	if c.closeDB != nil {
		return c.closeDB()
	}
	return nil
}

// Build はcfgから全依存関係をワイヤリングする。
// リレーショナルバックエンドの初期化はここでは行わず、呼び出し側がStore.EnsureInitializedを呼ぶ。
func Build(cfg *config.Config, log *slog.Logger) (*Components, error) {
	// 1. 初期データの読み込み
	doc, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. データストア
	c := &Components{Registry: reg}

	var relational datastore.Relational
	if cfg.UseDatabase {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.closeDB = db.Close
		relational = repository.NewPostgresStore(db, database.MigrateFunc(cfg.DatabaseURL), doc)
	}

	c.Store = datastore.NewAdapter(
		repository.NewJSONStore(cfg.DataFile, doc),
		relational,
		datastore.Options{Enabled: cfg.UseDatabase, Logger: log, Metrics: collector},
	)

	// 4. ドメインサービス
	c.Gate = auth.NewGate(auth.GateConfig{
		AdminIdentifier: cfg.AdminEmail,
		AdminSecret:     cfg.AdminPassword,
		TokenSecret:     cfg.TokenSecret,
		TokenTTL:        cfg.TokenTTL,
	})
	posts := post.NewService(c.Store, security.NewContentSanitizer())
	feedImporter := importer.New(security.NewGuard(), posts, importer.Options{
		Timeout: cfg.ImportTimeout,
		MaxSize: cfg.ImportMaxSize,
		Metrics: collector,
	})

	c.Backup = backup.NewJob(c.Store, log, collector)
	c.Backup.RetentionDays = cfg.BackupRetentionDays

	// 5. ルーター
	c.limiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitSubscribe))

	c.Handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Metrics:           collector,
		Gatherer:          reg,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.HSTS,
		SubscribeLimiter:  c.limiter,

		AuthService:   c.Gate,
		TokenVerifier: c.Gate,

		SubscriberService: subscriber.NewService(c.Store, collector),
		PostService:       posts,
		Site:              c.Store,
		Health:            c.Store,

		Backup:   c.Backup,
		Importer: feedImporter,
	})

	return c, nil
}

// runServe はAPIサーバーモードで起動する。
// データストアを初期化し、HTTPサーバーとバックアップスケジューラを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM受信）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	c, err := Build(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	// 1. データストアの初期化（失敗時はJSONのみで継続する）
	c.Store.EnsureInitialized(ctx)

	// 2. バックアップスケジューラ
	if cfg.BackupInterval > 0 {
		go c.Backup.Start(ctx, cfg.BackupInterval)
	}

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("datastore", string(c.Store.Mode())),
		)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runMigrate はリレーショナルバックエンドのテーブルを作成する。
// 作成済みのテーブルには何もしないため、何度実行してもよい。
func runMigrate(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrationsContext(ctx, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runBackup はJSONドキュメントのスナップショットを1回作成し、古いスナップショットを削除する。
func runBackup(ctx context.Context, cfg *config.Config) error {
	c, err := Build(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.Backup.Run(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	slog.Info("backup completed",
		slog.String("path", result.Path),
		slog.Int("pruned", result.Pruned),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
