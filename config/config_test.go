package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresDatabaseDSN(t *testing.T) {
	unsetEnv(t, "DATABASE_DSN")
	setEnv(t, "AUTH_JWT_SECRET", "secret")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing DATABASE_DSN")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	setEnv(t, "DATABASE_DSN", "file:test.db")
	unsetEnv(t, "AUTH_JWT_SECRET")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing AUTH_JWT_SECRET")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setEnv(t, "DATABASE_DSN", "file:test.db")
	setEnv(t, "AUTH_JWT_SECRET", "secret")
	setEnv(t, "DATABASE_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "DATABASE_DSN", "root:root@tcp(localhost:3306)/courses?parseTime=true")
	setEnv(t, "AUTH_JWT_SECRET", "secret")
	unsetEnv(t, "DATABASE_DRIVER")
	unsetEnv(t, "PAYMENTS_PENDING_TIMEOUT_SECONDS")
	unsetEnv(t, "MPESA_CONSUMER_KEY")
	unsetEnv(t, "MPESA_HTTP_TIMEOUT_SECONDS")
	unsetEnv(t, "KAFKA_BROKERS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Fatalf("unexpected default driver: %s", cfg.Database.Driver)
	}
	if cfg.Payments.PendingTimeout != 1800*time.Second {
		t.Fatalf("unexpected pending timeout: %v", cfg.Payments.PendingTimeout)
	}
	if cfg.Mpesa.HTTPTimeout != 30*time.Second {
		t.Fatalf("unexpected mpesa timeout: %v", cfg.Mpesa.HTTPTimeout)
	}
	if cfg.Mpesa.Configured() {
		t.Fatal("expected mpesa to be unconfigured without credentials")
	}
	if cfg.Kafka.Brokers != nil {
		t.Fatalf("expected no kafka brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "DATABASE_DSN", "file:courses.db")
	setEnv(t, "DATABASE_DRIVER", "SQLite")
	setEnv(t, "AUTH_JWT_SECRET", "secret")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "DATABASE_MAX_OPEN_CONNS", "20")
	setEnv(t, "DATABASE_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "MPESA_CONSUMER_KEY", "key")
	setEnv(t, "MPESA_CONSUMER_SECRET", "secret")
	setEnv(t, "MPESA_PASSKEY", "passkey")
	setEnv(t, "MPESA_SHORTCODE", "174379")
	setEnv(t, "PAYMENTS_PENDING_TIMEOUT_SECONDS", "60")
	setEnv(t, "PAYMENTS_CALLBACK_WORKERS", "8")
	setEnv(t, "REDIS_STATUS_TTL_HOURS", "2")
	setEnv(t, "KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected lower-cased driver, got %s", cfg.Database.Driver)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.Database.MaxOpenConns != 20 || cfg.Database.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected database pool config: %+v", cfg.Database)
	}
	if !cfg.Mpesa.Configured() {
		t.Fatal("expected mpesa to be configured")
	}
	if cfg.Payments.PendingTimeout != time.Minute {
		t.Fatalf("unexpected pending timeout: %v", cfg.Payments.PendingTimeout)
	}
	if cfg.Payments.CallbackWorkers != 8 {
		t.Fatalf("unexpected callback workers: %d", cfg.Payments.CallbackWorkers)
	}
	if cfg.Redis.StatusTTL != 2*time.Hour {
		t.Fatalf("unexpected redis ttl: %v", cfg.Redis.StatusTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected kafka brokers: %v", cfg.Kafka.Brokers)
	}
}
