package app

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Брокеры событий outbox.
const (
	EventsBrokerNone     = ""
	EventsBrokerKafka    = "kafka"
	EventsBrokerRabbitMQ = "rabbitmq"
)

// Config читается из окружения; тег env задаёт имя переменной.
type Config struct {
	HTTPAddr         string        `env:"SHELTER_HTTP_ADDR" validate:"required"`
	MetricsAddr      string        `env:"SHELTER_METRICS_ADDR" validate:"required"`
	HTTPReadTimeout  time.Duration `env:"SHELTER_HTTP_READ_TIMEOUT" validate:"gt=0"`
	HTTPWriteTimeout time.Duration `env:"SHELTER_HTTP_WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout  time.Duration `env:"SHELTER_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	AllowedOrigins   []string      `env:"SHELTER_ALLOWED_ORIGINS"`

	LogLevel  string `env:"SHELTER_LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogFormat string `env:"SHELTER_LOG_FORMAT" validate:"oneof=text json"`

	StorageDriver       string `env:"SHELTER_STORAGE_DRIVER" validate:"oneof=memory postgres"`
	PostgresDSN         string `env:"SHELTER_POSTGRES_DSN" validate:"required_if=StorageDriver postgres"`
	PostgresAutoMigrate bool   `env:"SHELTER_POSTGRES_AUTO_MIGRATE"`

	JWTSecret  string        `env:"SHELTER_JWT_SECRET" validate:"required,min=16"`
	TokenTTL   time.Duration `env:"SHELTER_TOKEN_TTL" validate:"gt=0"`
	BcryptCost int           `env:"SHELTER_BCRYPT_COST" validate:"gte=4,lte=31"`

	PayPalClientID      string        `env:"SHELTER_PAYPAL_CLIENT_ID" validate:"required_with=PayPalClientSecret"`
	PayPalClientSecret  string        `env:"SHELTER_PAYPAL_CLIENT_SECRET" validate:"required_with=PayPalClientID"`
	PayPalBaseURL       string        `env:"SHELTER_PAYPAL_BASE_URL" validate:"required,url"`
	PayPalTimeout       time.Duration `env:"SHELTER_PAYPAL_TIMEOUT" validate:"gt=0"`
	Currency            string        `env:"SHELTER_CURRENCY" validate:"len=3"`
	BreakerMaxFailures  int           `env:"SHELTER_BREAKER_MAX_FAILURES" validate:"gte=1"`
	BreakerResetTimeout time.Duration `env:"SHELTER_BREAKER_RESET_TIMEOUT" validate:"gt=0"`

	EventsBroker     string   `env:"SHELTER_EVENTS_BROKER" validate:"omitempty,oneof=kafka rabbitmq"`
	KafkaBrokers     []string `env:"SHELTER_KAFKA_BROKERS" validate:"required_if=EventsBroker kafka"`
	KafkaTopic       string   `env:"SHELTER_KAFKA_TOPIC" validate:"required"`
	KafkaDLQTopic    string   `env:"SHELTER_KAFKA_DLQ_TOPIC"`
	RabbitMQURL      string   `env:"SHELTER_RABBITMQ_URL" validate:"required_if=EventsBroker rabbitmq"`
	RabbitMQExchange string   `env:"SHELTER_RABBITMQ_EXCHANGE" validate:"required"`

	OutboxPollInterval time.Duration `env:"SHELTER_OUTBOX_POLL_INTERVAL" validate:"gt=0"`
	OutboxBatchSize    int           `env:"SHELTER_OUTBOX_BATCH_SIZE" validate:"gte=1"`
	OutboxMaxAttempts  int           `env:"SHELTER_OUTBOX_MAX_ATTEMPTS" validate:"gte=1"`
	OutboxRetryDelay   time.Duration `env:"SHELTER_OUTBOX_RETRY_DELAY" validate:"gte=0"`
	OutboxRetention    time.Duration `env:"SHELTER_OUTBOX_RETENTION" validate:"gt=0"`
	OutboxCleanupEvery time.Duration `env:"SHELTER_OUTBOX_CLEANUP_INTERVAL" validate:"gt=0"`
}

// DefaultConfig возвращает настройки для локального запуска.
// JWTSecret не имеет значения по умолчанию и должен быть задан.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:         ":5000",
		MetricsAddr:      ":9090",
		HTTPReadTimeout:  15 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://localhost:8081",
			"http://localhost:5173",
		},

		LogLevel:  "info",
		LogFormat: "text",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		TokenTTL:   24 * time.Hour,
		BcryptCost: 10,

		PayPalBaseURL:       "https://api-m.sandbox.paypal.com",
		PayPalTimeout:       15 * time.Second,
		Currency:            "USD",
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 30 * time.Second,

		KafkaTopic:       "straycare.donation.events",
		KafkaDLQTopic:    "straycare.donation.dlq",
		RabbitMQExchange: "straycare.events",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,
		OutboxRetention:    7 * 24 * time.Hour,
		OutboxCleanupEvery: 10 * time.Minute,
	}
}

// PayPalEnabled сообщает, заданы ли учётные данные PayPal.
func (c Config) PayPalEnabled() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}

// LoadConfig читает SHELTER_* переменные окружения поверх DefaultConfig и проверяет результат.
func LoadConfig() (Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	v := reflect.ValueOf(&cfg).Elem()
	t := v.Type()
	var errs []error
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if err := setField(v.Field(i), strings.TrimSpace(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Interface().(type) {
	case string:
		field.SetString(raw)
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", raw)
		}
		field.SetBool(b)
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(int64(n))
	case time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		field.SetInt(int64(d))
	case []string:
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported config field type %s", field.Type())
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}
		return field.Name
	})
	return v
}

// Validate проверяет настройки; ошибки называют переменные окружения.
func (c Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s fails %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
}
