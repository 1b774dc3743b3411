package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	AppEnv   string     `validate:"oneof=dev prod"`
	LogLevel slog.Level `validate:"-"`

	Database DatabaseConfig
	Weather  WeatherConfig
	Ingest   IngestConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	HTTP     HTTPConfig
	Model    ModelConfig
	Scan     ScanConfig

	Stations []Station `validate:"required,min=1,unique=ID,dive"`
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0,lte=65535"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `validate:"oneof=disable require verify-ca verify-full"`
}

// connectTimeoutSeconds bounds connection setup; lib/pq has no default.
const connectTimeoutSeconds = 10

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, quoteConnValue(d.Password), d.DBName, d.SSLMode, connectTimeoutSeconds)
}

// URL returns the connection parameters in URL form, as golang-migrate expects.
func (d DatabaseConfig) URL() string {
	query := url.Values{}
	query.Set("sslmode", d.SSLMode)
	query.Set("connect_timeout", strconv.Itoa(connectTimeoutSeconds))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// quoteConnValue quotes a key/value connection setting when it holds spaces,
// quotes or backslashes, or is empty.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type WeatherConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type IngestConfig struct {
	Period        time.Duration `validate:"gt=0"`
	Duration      time.Duration `validate:"gt=0"`
	CourtesyDelay time.Duration `validate:"gte=0"`
	StoreTimeout  time.Duration `validate:"gt=0"`
}

type KafkaConfig struct {
	Brokers       []string
	TopicReadings string `validate:"required"`
	TopicAlerts   string `validate:"required"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type HTTPConfig struct {
	Addr        string `validate:"required"`
	MetricsAddr string
}

type ModelConfig struct {
	Path string `validate:"required"`
}

type ScanConfig struct {
	// Window limits the scan to readings newer than now-Window. Zero scans everything.
	Window time.Duration `validate:"gte=0"`
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: level,
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "weather_user"),
			Password: getEnv("DB_PASSWORD", "weather_pass"),
			DBName:   getEnv("DB_NAME", "weather_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Weather: WeatherConfig{
			BaseURL: getEnv("WEATHER_API_URL", "https://api.open-meteo.com"),
			Timeout: getEnvAsDuration("WEATHER_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			Period:        getEnvAsDuration("INGEST_PERIOD", 60*time.Second),
			Duration:      getEnvAsDuration("INGEST_DURATION", 5*time.Minute),
			CourtesyDelay: getEnvAsDuration("INGEST_COURTESY_DELAY", 100*time.Millisecond),
			StoreTimeout:  getEnvAsDuration("INGEST_STORE_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "weather.readings"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "weather.alerts"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "caribe-weather@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		HTTP: HTTPConfig{
			Addr:        getEnv("HTTP_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ""),
		},
		Model: ModelConfig{
			Path: getEnv("MODEL_PATH", "weather_model.json"),
		},
		Scan: ScanConfig{
			Window: getEnvAsDuration("SCAN_WINDOW", 0),
		},
	}

	stations, err := LoadStations(getEnv("STATIONS_FILE", ""))
	if err != nil {
		return nil, err
	}
	config.Stations = stations

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
