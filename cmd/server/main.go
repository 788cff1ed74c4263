package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mini-erp/config"
	"mini-erp/internal/api"
	"mini-erp/internal/broker"
	"mini-erp/internal/integration/exchange"
	"mini-erp/internal/integration/postal"
	"mini-erp/internal/redisclient"
	"mini-erp/internal/service"
	"mini-erp/internal/store"
	"mini-erp/internal/util"
	"mini-erp/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting mini-erp")

	tp, err := util.InitTracer("mini-erp", cfg.Server.Env, cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, store.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		log.Println("Database schema applied")
	}

	checks := map[string]api.Pinger{"postgres": db}

	// Redis backs the rate cache and the sweep locks; without it both
	// fall back to process-local behaviour.
	var (
		rateCache exchange.RateCache
		locker    worker.Locker
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, using in-memory rate cache and unlocked sweeps", zap.Error(err))
		} else {
			defer redisClient.Close()
			rateCache, locker = redisClient, redisClient
			checks["redis"] = redisClient
			log.Println("Redis connected")
		}
	}

	var events service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")
	}

	retry := util.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      2,
	}
	postalClient := postal.NewClient(postal.Config{
		BaseURL: cfg.Postal.BaseURL,
		Timeout: cfg.Postal.Timeout,
		Retry:   retry,
	})
	exchangeClient := exchange.NewClient(exchange.Config{
		BaseURL: cfg.Exchange.BaseURL,
		Timeout: cfg.Exchange.Timeout,
		TTL:     cfg.Exchange.TTL,
		Retry:   retry,
	}, rateCache)

	customerService := service.NewCustomerService(service.CustomerServiceDeps{
		Tx:        db,
		Customers: db,
		Addresses: postalClient,
	})
	productService := service.NewProductService(service.ProductServiceDeps{
		Tx:       db,
		Products: db,
	})
	orderService := service.NewOrderService(service.OrderServiceDeps{
		Tx:           db,
		Customers:    db,
		Products:     db,
		Orders:       db,
		Events:       events,
		Rates:        exchangeClient,
		BaseCurrency: cfg.Business.BaseCurrency,
	})

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Orders:    orderService,
		Customers: customerService,
		Products:  productService,
		Checks:    checks,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		historyWorker := worker.NewOrderHistoryWorker(consumer, db)
		g.Go(func() error {
			defer historyWorker.Stop()
			if err := historyWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Order history worker stopped", zap.Error(err))
			}
			return nil
		})
	}

	if cfg.Scheduler.Enabled {
		scheduler := worker.NewScheduler(locker, cfg.Scheduler.LockTTL)
		agingSweep := worker.NewAgingSweep(db, events, logger)
		stockSweep := worker.NewStockSweep(db, logger)

		if err := scheduler.Register("aging", cfg.Scheduler.AgingSpec, func(ctx context.Context) { agingSweep.Run(ctx) }); err != nil {
			log.Fatalf("Failed to schedule aging sweep: %v", err)
		}
		if err := scheduler.Register("stock", cfg.Scheduler.StockSpec, func(ctx context.Context) { stockSweep.Run(ctx) }); err != nil {
			log.Fatalf("Failed to schedule stock sweep: %v", err)
		}
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		util.SyncLogger()
		os.Exit(1)
	}

	log.Println("Server exited")
}
