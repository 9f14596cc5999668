package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	Database          DatabaseConfig
	Log               LogConfig
	Auth              AuthConfig
	InternalEndpoints InternalEndpointsConfig
	Mpesa             MpesaConfig
	Payments          PaymentsConfig
	Courses           CoursesConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	PublicURL   string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	JWTSecret string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Shortcode      string
	CallbackURL    string
	BaseURL        string
	HTTPTimeout    time.Duration
	TokenTimeout   time.Duration
}

// Configured reports whether every credential needed for a push request is present.
func (c MpesaConfig) Configured() bool {
	return strings.TrimSpace(c.ConsumerKey) != "" &&
		strings.TrimSpace(c.ConsumerSecret) != "" &&
		strings.TrimSpace(c.Passkey) != "" &&
		strings.TrimSpace(c.Shortcode) != ""
}

type PaymentsConfig struct {
	PendingTimeout         time.Duration
	CallbackWorkers        int
	CallbackQueueSize      int
	CallbackProcessTimeout time.Duration
	JobBatchSize           int32
}

type CoursesConfig struct {
	CatalogPath string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	StatusTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	PaymentsTopic string
}

type JobsConfig struct {
	TimeoutPendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, errors.New("DATABASE_DSN environment variable is required")
	}
	jwtSecret := os.Getenv("AUTH_JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET environment variable is required")
	}

	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "mysql"))
	if driver != "mysql" && driver != "sqlite" {
		return nil, errors.New("DATABASE_DRIVER must be mysql or sqlite")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "course-payments-service"),
			PublicURL:   strings.TrimRight(getEnv("APP_PUBLIC_URL", ""), "/"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Driver:          driver,
			DSN:             dsn,
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:    getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("MPESA_CONSUMER_SECRET", ""),
			Passkey:        getEnv("MPESA_PASSKEY", ""),
			Shortcode:      getEnv("MPESA_SHORTCODE", ""),
			CallbackURL:    getEnv("MPESA_CALLBACK_URL", ""),
			BaseURL:        getEnv("MPESA_BASE_URL", "https://api.safaricom.co.ke"),
			HTTPTimeout:    getSecondsEnv("MPESA_HTTP_TIMEOUT_SECONDS", 30*time.Second),
			TokenTimeout:   getSecondsEnv("MPESA_TOKEN_TIMEOUT_SECONDS", 10*time.Second),
		},
		Payments: PaymentsConfig{
			PendingTimeout:         getSecondsEnv("PAYMENTS_PENDING_TIMEOUT_SECONDS", 1800*time.Second),
			CallbackWorkers:        getIntEnv("PAYMENTS_CALLBACK_WORKERS", 4),
			CallbackQueueSize:      getIntEnv("PAYMENTS_CALLBACK_QUEUE_SIZE", 256),
			CallbackProcessTimeout: getSecondsEnv("PAYMENTS_CALLBACK_PROCESS_TIMEOUT_SECONDS", 30*time.Second),
			JobBatchSize:           int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Courses: CoursesConfig{
			CatalogPath: getEnv("COURSES_CATALOG_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			StatusTTL: getHoursEnv("REDIS_STATUS_TTL_HOURS", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       getListEnv("KAFKA_BROKERS"),
			PaymentsTopic: getEnv("KAFKA_PAYMENTS_TOPIC", "payments.outcome"),
		},
		Jobs: JobsConfig{
			TimeoutPendingInterval: getMinutesEnv("PAYMENTS_TIMEOUT_PENDING_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getHoursEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if hours, err := strconv.Atoi(value); err == nil {
			return time.Duration(hours) * time.Hour
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
