package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-hotel-reservation-broker/internal/api"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/api/handler"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/api/middleware"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/application"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/config"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/notification"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/domain/reservation"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/channelmanager"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/ota"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-hotel-reservation-broker/internal/infrastructure/redis"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/logger"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/metrics"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/pkg/tracing"
	"github.com/sanosuguru/go-hotel-reservation-broker/internal/worker"
)

func main() {
	// .env はローカル開発用（存在しなくてもよい）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("設定の読み込みに失敗", zap.Error(err))
	}

	logger.Set(logger.NewLogger(cfg.Env))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env)
	if err != nil {
		logger.Fatal("トレーシングの初期化に失敗", zap.Error(err))
	}

	// PostgreSQL
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続に失敗", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis
	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Redis接続に失敗", zap.Error(err))
	}
	defer redisClient.Close()

	// 通知（RABBITMQ_URL 未設定なら無効）
	var notifier notification.Notifier
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewNotificationPublisher(cfg.RabbitMQ)
		if err != nil {
			logger.Fatal("RabbitMQ接続に失敗", zap.Error(err))
		}
		defer publisher.Close()
		notifier = publisher
	} else {
		logger.Warn("RABBITMQ_URL が未設定のため予約通知を送信しません")
	}

	m := metrics.Init()

	// リポジトリ・サービス
	store := application.NewReservationStore(
		postgres.NewReservationRepository(db),
		postgres.NewAuditLogRepository(db),
		nil,
		m,
	)
	inventoryRepo := postgres.NewInventoryRepository(db)
	inventoryCache := redisinfra.NewInventoryCache(redisClient)
	lockManager := redisinfra.NewLockManager(redisClient)
	adjuster := application.NewInventoryAdjuster(
		postgres.NewTxManager(db),
		inventoryRepo,
		lockManager,
		inventoryCache,
		cfg.Reservation,
		m,
	)
	inventoryService := application.NewInventoryService(inventoryRepo, inventoryCache, cfg.Reservation.AvailabilityTTL)
	reservationService := application.NewReservationService(
		reservation.NewProcessor(nil, nil),
		ota.NewFormatter(nil, nil),
		channelmanager.NewClient(cfg.ChannelManager, m),
		store,
		adjuster,
		lockManager,
		notifier,
		cfg.Reservation,
		m,
	)

	// ワーカー
	reconciler := worker.NewPendingReservationReconciler(
		reservationService,
		cfg.Reservation.ReconcileInterval,
		cfg.Reservation.PendingTimeout,
	)
	reconciler.Start(ctx)

	e := newServer(cfg, m, db, redisClient, handler.NewReservationHandler(reservationService), handler.NewInventoryHandler(inventoryService))

	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	reconciler.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("トレーシングの終了に失敗", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}

func newServer(
	cfg *config.Config,
	m *metrics.Metrics,
	db *sqlx.DB,
	redisClient *goredis.Client,
	reservationHandler *handler.ReservationHandler,
	inventoryHandler *handler.InventoryHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e, m)

	healthHandler := handler.NewHealthHandler(map[string]handler.HealthChecker{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		"redis":    func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) },
	})
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	v1 := e.Group("/api/v1")

	reservations := v1.Group("/reservations")
	reservations.POST("", reservationHandler.Create)
	reservations.GET("/:id", reservationHandler.GetByID)
	reservations.PUT("/:id", reservationHandler.Amend)
	reservations.POST("/:id/cancel", reservationHandler.Cancel)
	reservations.GET("/:id/logs", reservationHandler.ListLogs)

	v1.GET("/inventory", inventoryHandler.GetAvailability)

	return e
}
