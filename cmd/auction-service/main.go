package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"points-auction/internal/api/handlers"
	"points-auction/internal/config"
	"points-auction/internal/domain"
	"points-auction/internal/infrastructure/leader"
	"points-auction/internal/infrastructure/memory"
	"points-auction/internal/infrastructure/mysql"
	"points-auction/internal/infrastructure/redis"
	"points-auction/internal/infrastructure/websocket"
	"points-auction/internal/services"
	"points-auction/pkg/logger"
)

// multiSink fans one notification out to every configured transport.
type multiSink []domain.NotificationSink

func (m multiSink) Notify(ctx context.Context, userID string, event *domain.Event) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Notify(ctx, userID, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func main() {
	log := logger.New()
	log.Info("Starting points auction service")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Redis backs the points ledger, the pub/sub notification channel and
	// sweeper leader election.
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	var store domain.AuctionStore
	switch cfg.Store.Driver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			log.Error("Failed to open MySQL", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping MySQL", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to MySQL")
		store = mysql.NewStore(db)
	default:
		log.Info("Using in-memory auction store")
		store = memory.NewStore()
	}

	ledgerAdapter := redis.NewPointsLedger(rdb)

	connManager := websocket.NewConnectionManager(log)
	notifier := multiSink{
		websocket.NewNotificationSink(connManager),
		redis.NewNotificationSink(rdb),
	}

	engine := services.NewEngine(store, ledgerAdapter, notifier, services.Defaults{
		MinIncrement:     cfg.Engine.MinIncrement,
		AutoExtendWindow: cfg.Engine.AutoExtendWindow,
	}, log)

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
	sweeper := services.NewSweeper(engine, leaderElection, cfg.Instance.ID,
		cfg.Engine.SweepInterval, log)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
	}))

	api := e.Group("/api/v1")
	handlers.NewAuctionHandler(engine, log).Register(api)
	handlers.NewPointsHandler(ledgerAdapter, log).Register(api)

	wsHandler := websocket.NewHandler(engine, connManager, log)
	e.GET("/ws/auctions/:id", wsHandler.HandleConnection)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "points-auction",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	if err := sweeper.Start(context.Background()); err != nil {
		log.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}

	// Keep contending for sweep leadership for the life of the process.
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became sweep leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting auction server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down points auction service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Points auction service stopped")
}
