package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/storefront/internal/adapter/events"
	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	guard, closeGuard, err := openGuard(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeGuard()

	publisher := openPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	orderService := service.NewOrderService(store,
		service.WithIdempotencyGuard(guard),
		service.WithEventPublisher(publisher),
		service.WithCartPolicy(service.CartPolicy(cfg.Checkout.CartPolicy)),
		service.WithMetrics(metrics),
		service.WithLogger(logger.Named("orders")),
	)
	catalogService := service.NewCatalogService(store)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.LoggingInterceptor(logger.Named("grpc"))))
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, catalogService))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, catalogService, logger.Named("http"), metrics, reg)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown failed", zap.Error(err))
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (port.Store, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		store, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("connected to mysql")
		return store, nil

	case config.DriverPostgres:
		store, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        int32(cfg.Postgres.MaxOpenConns),
			MinConns:        int32(cfg.Postgres.MaxIdleConns),
			MaxConnLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("connected to postgres")
		return store, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

func openGuard(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (port.IdempotencyGuard, func(), error) {
	if cfg.Addr == "" {
		return storage.NewMemoryGuard(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil
}

func openPublisher(cfg config.KafkaConfig, logger *zap.Logger) port.EventPublisher {
	if len(cfg.Brokers) == 0 {
		return events.NopPublisher{}
	}
	logger.Info("publishing order events to kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Brokers, cfg.Topic))
}
