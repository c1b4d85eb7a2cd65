package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
	Checkout CheckoutConfig `yaml:"checkout"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"`
	MySQL    DatabaseConfig `yaml:"mysql"`
	Postgres DatabaseConfig `yaml:"postgres"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	ServiceName    string `yaml:"service_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type CheckoutConfig struct {
	CartPolicy string `yaml:"cart_policy"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC: GRPCConfig{Addr: ":50051"},
		Store: StoreConfig{
			Driver: DriverMemory,
			MySQL: DatabaseConfig{
				MaxOpenConns:    50,
				MaxIdleConns:    25,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Postgres: DatabaseConfig{
				MaxOpenConns:    50,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Redis:    RedisConfig{PoolSize: 100},
		Kafka:    KafkaConfig{Topic: "storefront.orders"},
		Tracing:  TracingConfig{ServiceName: "storefront"},
		Log:      LogConfig{Level: "info"},
		Checkout: CheckoutConfig{CartPolicy: "best_effort"},
	}
}

// Load builds the configuration from defaults, the YAML file named by STOREFRONT_CONFIG
// when set, and finally environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set("HTTP_ADDR", &c.HTTP.Addr)
	set("GRPC_ADDR", &c.GRPC.Addr)
	set("STORE_DRIVER", &c.Store.Driver)
	set("MYSQL_DSN", &c.Store.MySQL.DSN)
	set("POSTGRES_DSN", &c.Store.Postgres.DSN)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("KAFKA_TOPIC", &c.Kafka.Topic)
	set("JAEGER_ENDPOINT", &c.Tracing.JaegerEndpoint)
	set("CART_POLICY", &c.Checkout.CartPolicy)
	set("LOG_LEVEL", &c.Log.Level)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Kafka.Brokers = brokers
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMySQL:
		if c.Store.MySQL.DSN == "" {
			errs = append(errs, errors.New("store.mysql.dsn is required for the mysql driver"))
		}
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Checkout.CartPolicy {
	case "best_effort", "all_or_nothing":
	default:
		errs = append(errs, fmt.Errorf("unknown cart policy %q", c.Checkout.CartPolicy))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
