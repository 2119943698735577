package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
		// Path — файл базы для DB_DRIVER=sqlite.
		Path string
	}

	Matrix struct {
		HomeserverURL string
		UserID        string
		AccessToken   string
	}

	// KafkaBrokers/KafkaTopicTicket — если заданы, события жизненного цикла тикета уходят в Kafka.
	KafkaBrokers     []string
	KafkaTopicTicket string

	PendingTTL     time.Duration
	PendingLimit   int
	EventDedupSize int
	EventDedupTTL  time.Duration

	AdminPowerLevel     int
	DestroyConfirmation string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:             getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:            firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:              getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:        ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicTicket:    getEnv("KAFKA_TOPIC_TICKET", ""),
		DestroyConfirmation: getEnv("DESTROY_CONFIRMATION", "yes-delete-this-entry"),
	}
	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", DriverPostgres))
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "support_relay")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DB.Path = getEnv("DB_PATH", "support-relay.db")

	cfg.Matrix.HomeserverURL = getEnv("MATRIX_HOMESERVER_URL", "")
	cfg.Matrix.UserID = getEnv("MATRIX_USER_ID", "")
	cfg.Matrix.AccessToken = getEnv("MATRIX_ACCESS_TOKEN", "")

	var err error
	if cfg.PendingTTL, err = getDuration("PENDING_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.EventDedupTTL, err = getDuration("EVENT_DEDUP_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.PendingLimit, err = getInt("PENDING_LIMIT", 1024); err != nil {
		return nil, err
	}
	if cfg.EventDedupSize, err = getInt("EVENT_DEDUP_SIZE", 4096); err != nil {
		return nil, err
	}
	if cfg.AdminPowerLevel, err = getInt("ADMIN_POWER_LEVEL", 100); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("config: DB_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DB.Driver)
	}
	if c.PendingLimit <= 0 || c.EventDedupSize <= 0 {
		return errors.New("config: PENDING_LIMIT and EVENT_DEDUP_SIZE must be positive")
	}
	if c.DestroyConfirmation == "" {
		return errors.New("config: DESTROY_CONFIRMATION must not be empty")
	}
	return nil
}

// ValidateMatrix проверяет учётные данные бота; нужны только режиму, который ходит в Matrix.
func (c *Config) ValidateMatrix() error {
	if c.Matrix.HomeserverURL == "" || c.Matrix.UserID == "" || c.Matrix.AccessToken == "" {
		return errors.New("config: MATRIX_HOMESERVER_URL, MATRIX_USER_ID and MATRIX_ACCESS_TOKEN are required")
	}
	if _, err := url.Parse(c.Matrix.HomeserverURL); err != nil {
		return fmt.Errorf("config: invalid MATRIX_HOMESERVER_URL: %w", err)
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// ParseList разбивает строку "host1:9092,host2:9092" на слайс.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
