package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-ledger/internal/cache"
	"order-ledger/internal/config"
	handlers "order-ledger/internal/controllers/http"
	mmysql "order-ledger/internal/infra/mysql"
	"order-ledger/internal/infra/postgres"
	"order-ledger/internal/infra/rabbitmq"
	"order-ledger/internal/repository"
	"order-ledger/internal/repository/memory"
	"order-ledger/internal/repository/sqlstore"
	"order-ledger/internal/services"
	"order-ledger/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type repositories struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	carts    repository.CartRepository
}

func main() {
	cfg := config.LoadConfig()
	telemetry.InitLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	repos, closeDB, err := openRepositories(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	var publisher rabbitmq.PublisherInterface = rabbitmq.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return fmt.Errorf("failed to init publisher: %w", err)
		}
		defer p.Close()
		publisher = p
	} else {
		slog.Warn("RABBITMQ_URL not set, events will be dropped")
	}

	orders := services.NewOrderService(repos.orders, publisher)
	orders.SetPublishTimeout(cfg.PublishTimeout)

	if addr := cfg.RedisAddr(); addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         addr,
			DB:           0,
			PoolSize:     200,
			MinIdleConns: 20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer redisClient.Close()
		orders.SetCache(cache.NewRedisCache(redisClient, "order-ledger"), cfg.OrderCacheTTL)
	}

	handler := handlers.NewHandler(
		orders,
		services.NewProductService(repos.products),
		services.NewCartService(repos.carts, repos.products),
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.RequestLogger())
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting order ledger", "port", cfg.Port, "db_driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRepositories(cfg *config.Config) (repositories, func(), error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverMemory:
		mem := memory.New()
		return repositories{orders: mem.Orders(), products: mem.Products(), carts: mem.Carts()}, func() {}, nil
	case config.DriverPostgres:
		db, err = postgres.NewPostgresFromConfig(cfg)
	default:
		db, err = mmysql.NewMySQLFromConfig(cfg)
	}
	if err != nil {
		return repositories{}, nil, fmt.Errorf("db: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return repositories{}, nil, fmt.Errorf("db: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	return repositories{
		orders:   sqlstore.NewOrderRepository(db),
		products: sqlstore.NewProductRepository(db),
		carts:    sqlstore.NewCartRepository(db),
	}, func() { _ = sqlDB.Close() }, nil
}
