package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sakib404-hub/zap-shit-server/internal/identity"
	"github.com/sakib404-hub/zap-shit-server/internal/infrastructure/email"
	"github.com/sakib404-hub/zap-shit-server/internal/metrics"
	"github.com/sakib404-hub/zap-shit-server/internal/provider/stripe"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/internal/repository/memory"
	"github.com/sakib404-hub/zap-shit-server/internal/repository/postgres"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/grpc"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/http"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/http/handler"
	parcelKafka "github.com/sakib404-hub/zap-shit-server/internal/transport/kafka"
	"github.com/sakib404-hub/zap-shit-server/pkg/config"
	"github.com/sakib404-hub/zap-shit-server/pkg/db"
	"github.com/sakib404-hub/zap-shit-server/pkg/kafka"
	outbox "github.com/sakib404-hub/zap-shit-server/pkg/outbox/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/outbox/worker"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "zap-shift-server"

func main() {
	runMigrations := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	logger, err := config.NewLogger(cfg.Logger, serviceName)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = utils.InitTracer(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Env)
		if err != nil {
			log.Fatalf("Failed to init trace: %v", err)
		}
	} else {
		utils.SetPropagator()
	}

	var (
		store      repository.Store
		pool       *pgxpool.Pool
		outboxRepo = outbox.NewOutboxRepository()
	)

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		if *runMigrations {
			if err := db.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
				log.Fatalf("Error applying migrations: %v", err)
			}
			logger.Info("Migrations applied", zap.String("path", cfg.Postgres.MigrationsPath))
		}

		pool, err = db.NewPostgresDB(ctx, cfg.Postgres)
		if err != nil {
			log.Fatalf("Error creating postgres pool: %v", err)
		}

		store = postgres.NewStore(pool, outboxRepo, logger)
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	}

	provider, err := stripe.NewClient(cfg.Stripe, logger)
	if err != nil {
		log.Fatalf("Error creating stripe client: %v", err)
	}

	verifier, err := identity.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatalf("Error creating token verifier: %v", err)
	}

	var users service.UserService = service.NewUserService(store.Users(), logger)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis unavailable, user lookups are not cached", zap.Error(err))
		} else {
			users = service.NewCachedUserService(users, rdb, cfg.Redis.CacheTTL, logger)
		}
		cancel()
	}

	guard := service.NewRoleGuard(users)
	topic := cfg.Kafka.Topic

	checkoutService := service.NewCheckoutService(store.Parcels(), provider, service.CheckoutConfig{
		SiteDomain: cfg.Site.Domain,
		Currency:   cfg.Stripe.Currency,
	}, logger)
	reconcileOpts := []service.ReconcileOption{service.WithEventTopic(topic)}

	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.New()
		reconcileOpts = append(reconcileOpts, service.WithMetrics(appMetrics))
	}

	reconcileService := service.NewReconcileService(store, provider, logger, reconcileOpts...)
	parcelService := service.NewParcelService(store, logger, topic)
	paymentService := service.NewPaymentService(store.Payments())
	riderService := service.NewRiderService(store.Riders(), users, logger)

	var webhooks handler.WebhookVerifier
	if cfg.Stripe.WebhookSecret != "" {
		webhookVerifier, err := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret)
		if err != nil {
			log.Fatalf("Error creating webhook verifier: %v", err)
		}
		webhooks = webhookVerifier
	}

	handlers := &http.Handlers{
		User:    handler.NewUserHandler(users, guard, logger),
		Parcel:  handler.NewParcelHandler(parcelService, logger),
		Payment: handler.NewPaymentHandler(checkoutService, reconcileService, paymentService, webhooks, logger),
		Rider:   handler.NewRiderHandler(riderService, logger),
	}

	app := http.NewApp(cfg.HTTP, cfg.Limiter)
	http.RegisterRoutes(app, handlers, http.Auth{Verifier: verifier, Guard: guard}, logger)

	var producer kafka.Producer
	if pool != nil && cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			log.Fatalf("Error creating kafka producer: %v", err)
		}

		outboxProcessor := worker.NewOutboxProcessor(
			pool,
			outboxRepo,
			producer,
			logger,
			worker.WithBatchSize(cfg.Outbox.BatchSize),
			worker.WithInterval(cfg.Outbox.Interval),
		)
		go outboxProcessor.Start(ctx)

		notificationService := service.NewNotificationService(
			email.NewSMTPSender(cfg.SMTP, cfg.Site.Domain, logger),
			service.NewPostgresDeduplicator(pool, logger),
			logger,
		)
		consumer := parcelKafka.NewConsumer(notificationService, logger)

		go func() {
			if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic); err != nil {
				logger.Error("Notification consumer stopped", zap.Error(err))
			}
		}()
	}

	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", cfg.GRPC.Port)
		if err != nil {
			log.Fatalf("Error listening on %s: %v", cfg.GRPC.Port, err)
		}

		grpcServer = grpc.NewServer(logger)

		go func() {
			logger.Info("gRPC health server listening", zap.String("port", cfg.GRPC.Port))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("Error serving gRPC", zap.Error(err))
			}
		}()

		if pool != nil {
			go grpcServer.Watch(ctx, 5*time.Second, pool.Ping)
		}
	}

	if appMetrics != nil {
		go func() {
			if err := appMetrics.Serve(ctx, cfg.Metrics.Port, logger); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP app", zap.Error(err))
	} else {
		logger.Info("HTTP app stopped gracefully")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("Error closing kafka producer", zap.Error(err))
		}
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Error("Error closing redis client", zap.Error(err))
		}
	}

	if pool != nil {
		pool.Close()
		logger.Info("Postgres pool closed")
	}

	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down telemetry", zap.Error(err))
		}
	}
}
