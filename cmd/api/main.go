package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api/handler"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/api/middleware"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/application"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/config"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/memory"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/postgres"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/rabbitmq"
	redisinfra "github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/redis"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/logger"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/metrics"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/worker"
)

func main() {
	cfg := config.Load()

	logger.Set(logger.NewLogger(cfg.Env))
	defer logger.Sync()

	m := metrics.Init()

	// PostgreSQL
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続エラー", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrationsPath != "" {
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("マイグレーションエラー", zap.Error(err))
		}
	}

	// Redis は redis 台帳では必須、memory 台帳ではキャッシュとロックにのみ使う
	var redisClient *redis.Client
	if rc, err := redisinfra.NewClient(&cfg.Redis); err != nil {
		if cfg.Reservation.LedgerBackend == config.LedgerRedis {
			logger.Fatal("Redis接続エラー", zap.Error(err))
		}
		logger.Warn("Redisに接続できないためキャッシュと分散ロックを無効にします", zap.Error(err))
	} else {
		redisClient = rc
		defer redisClient.Close()
	}

	var (
		seatCache   *redisinfra.SeatCache
		lockManager *redisinfra.LockManager
	)
	if redisClient != nil {
		seatCache = redisinfra.NewSeatCache(redisClient)
		lockManager = redisinfra.NewLockManager(redisClient)
	}

	// 座席台帳
	var ledger reservation.Ledger
	switch cfg.Reservation.LedgerBackend {
	case config.LedgerRedis:
		ledger = redisinfra.NewLedger(redisClient, redisinfra.WithLedgerTokenRetention(cfg.Reservation.TokenRetention))
	case config.LedgerMemory:
		logger.Warn("memory 台帳は単一インスタンスでのみ使用してください")
		ledger = memory.NewLedger(memory.WithTokenRetention(cfg.Reservation.TokenRetention))
	default:
		logger.Fatal("不明な LEDGER_BACKEND です", zap.String("backend", cfg.Reservation.LedgerBackend))
	}
	ledger = application.InstrumentLedger(ledger, m)
	logger.Info("座席台帳を初期化しました", zap.String("backend", cfg.Reservation.LedgerBackend))

	// サービス
	itineraryRepo := postgres.NewItineraryRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)

	serviceOpts := []application.ReservationServiceOption{application.WithMetrics(m)}
	if lockManager != nil {
		serviceOpts = append(serviceOpts, application.WithLockManager(lockManager))
	}
	if cfg.Broker.URL != "" {
		publisher := rabbitmq.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue)
		defer publisher.Close()
		serviceOpts = append(serviceOpts, application.WithEventPublisher(publisher))
	}

	seatMapService := application.NewSeatMapService(itineraryRepo, ledger, seatCache, cfg.Reservation.CacheTTL)
	catalogService := application.NewCatalogService(itineraryRepo, ledger)
	ticketService := application.NewTicketService(ticketRepo)
	reservationService := application.NewReservationService(itineraryRepo, ticketRepo, ledger, seatMapService,
		application.ReservationOptions{
			HoldTTL:             cfg.Reservation.HoldTTL,
			TicketWriteAttempts: cfg.Reservation.TicketWriteAttempts,
			TicketWriteBackoff:  cfg.Reservation.TicketWriteBackoff,
		}, serviceOpts...)

	// チケットストアの販売を台帳に書き戻す（memory 台帳は空で始まる）
	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 30*time.Second)
	restored, err := reservationService.RestoreSales(restoreCtx)
	cancelRestore()
	if err != nil {
		logger.Fatal("販売記録の書き戻しに失敗", zap.Error(err))
	}
	logger.Info("販売記録を台帳に書き戻しました", zap.Int("tickets", restored))

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(m))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	checks := map[string]handler.HealthCheckFunc{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET が未設定のためオペレーターAPIは利用できません")
	}
	handler.RegisterRoutes(e, handler.Handlers{
		Health:      handler.NewHealthHandler(checks),
		Itinerary:   handler.NewItineraryHandler(catalogService, seatMapService),
		Reservation: handler.NewReservationHandler(reservationService, ticketService),
	}, cfg.Auth.JWTSecret)

	// 期限切れ仮押さえの回収とチケット記録の再試行
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	sweeper := worker.NewHoldSweeper(reservationService, lockManager, cfg.Reservation.SweepInterval)
	go sweeper.Start(workerCtx)

	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}

	if n := reservationService.PendingCount(); n > 0 {
		logger.Warn("チケット記録待ちが残っています", zap.Int("pending", n))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}
