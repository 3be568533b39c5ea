package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Tickets  TicketConfig
	Queues   QueueConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	CORSOrigins        []string
	RateLimitPerMinute int
}

type AuthConfig struct {
	Mode             string
	Secret           string
	Issuer           string
	AllowInsecureDev bool
	TokenTTL         time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Enabled bool
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	AutoMigrate   bool
	MigrationsDir string
}

type TicketConfig struct {
	QRSecretKey   string
	NumberLockTTL time.Duration
	QueueLockTTL  time.Duration
	SlipFontPath  string
}

type QueueConfig struct {
	Timezone        string
	StatsWindowDays int
}

type LogConfig struct {
	Dir   string
	Level string
}

// Load reads .env when present, then the process environment.
// It reports whether a .env file was loaded.
func Load() (*Config, bool) {
	loaded := godotenv.Load() == nil

	return &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", ":8080"),
			ReadTimeout:        getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvDuration("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:        getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		},
		Auth: AuthConfig{
			Mode:             getEnv("AUTH_MODE", "hmac"),
			Secret:           getEnv("JWT_SECRET", ""),
			Issuer:           getEnv("OIDC_ISSUER", ""),
			AllowInsecureDev: getEnvBool("AUTH_ALLOW_INSECURE_DEV", false),
			TokenTTL:         getEnvDuration("TOKEN_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", ""),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Tickets: TicketConfig{
			QRSecretKey:   getEnv("QR_SECRET_KEY", ""),
			NumberLockTTL: getEnvDuration("NUMBER_LOCK_TTL", 10*time.Second),
			QueueLockTTL:  getEnvDuration("QUEUE_LOCK_TTL", 5*time.Second),
			SlipFontPath:  getEnv("SLIP_FONT_PATH", ""),
		},
		Queues: QueueConfig{
			Timezone:        getEnv("TIMEZONE", "UTC"),
			StatsWindowDays: getEnvInt("STATS_WINDOW_DAYS", 7),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "INFO"),
		},
	}, loaded
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
