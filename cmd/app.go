package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/vibast-solutions/ms-go-course-payments/app/cache"
	"github.com/vibast-solutions/ms-go-course-payments/app/catalog"
	"github.com/vibast-solutions/ms-go-course-payments/app/provider"
	"github.com/vibast-solutions/ms-go-course-payments/app/publisher"
	"github.com/vibast-solutions/ms-go-course-payments/app/repository"
	"github.com/vibast-solutions/ms-go-course-payments/app/service"
	"github.com/vibast-solutions/ms-go-course-payments/app/worker"
	"github.com/vibast-solutions/ms-go-course-payments/config"
)

const shutdownTimeout = 10 * time.Second

type application struct {
	cfg            *config.Config
	db             *sql.DB
	paymentService *service.PaymentService
	callbackPool   *worker.Pool
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if cfg.Database.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	return db
}

// mustCreateApplication wires the payment service and its infrastructure. The callback pool is
// created but only started by serve.
func mustCreateApplication() (*application, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)

	if cfg.Database.Driver == "sqlite" {
		if err := repository.Migrate(context.Background(), db); err != nil {
			logrus.WithError(err).Fatal("Failed to migrate sqlite database")
		}
	}

	courses, err := catalog.Load(cfg.Courses.CatalogPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load course catalog")
	}

	if !cfg.Mpesa.Configured() {
		logrus.Warn("M-Pesa credentials are not configured, payment initiation is unavailable")
	}
	gateway := provider.NewMpesaProvider(provider.MpesaConfig{
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		Passkey:        cfg.Mpesa.Passkey,
		Shortcode:      cfg.Mpesa.Shortcode,
		CallbackURL:    cfg.Mpesa.CallbackURL,
		BaseURL:        cfg.Mpesa.BaseURL,
		HTTPTimeout:    cfg.Mpesa.HTTPTimeout,
		TokenTimeout:   cfg.Mpesa.TokenTimeout,
	})

	statusCache, redisClient := mustCreateStatusCache(cfg)
	outcomePublisher := mustCreatePublisher(cfg)
	callbackPool := worker.NewPool(cfg.Payments.CallbackWorkers, cfg.Payments.CallbackQueueSize, cfg.Payments.CallbackProcessTimeout)

	paymentService := service.NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewEntitlementRepository(db),
		repository.NewPaymentCallbackRepository(db),
		courses,
		gateway,
		statusCache,
		outcomePublisher,
		callbackPool,
		cfg.Payments,
	)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := callbackPool.Stop(ctx); err != nil {
			logrus.WithError(err).Warn("Callback workers did not drain in time")
		}
		if err := outcomePublisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close outcome publisher")
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return &application{
		cfg:            cfg,
		db:             db,
		paymentService: paymentService,
		callbackPool:   callbackPool,
	}, cleanup
}

// mustCreateStatusCache uses Redis when configured so that replicas share poll state.
func mustCreateStatusCache(cfg *config.Config) (cache.StatusCache, redis.UniversalClient) {
	if cfg.Redis.Addr == "" {
		logrus.Info("REDIS_ADDR not set, using in-process status cache")
		return cache.NewMemoryCache(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}

	return cache.NewRedisCache(client, cfg.Redis.StatusTTL), client
}

func mustCreatePublisher(cfg *config.Config) publisher.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		logrus.Info("KAFKA_BROKERS not set, payment outcome events are disabled")
		return publisher.Noop{}
	}

	producer, err := publisher.NewKafkaProducer(cfg.Kafka.Brokers, cfg.App.ServiceName)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create kafka producer")
	}
	return publisher.NewKafkaPublisher(producer, cfg.Kafka.PaymentsTopic)
}
