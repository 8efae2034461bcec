package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL    MySQLConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Migrate  bool
	HTTPAddr string
	Telegram TelegramConfig
	Acme     AcmeConfig
	DNS      DNSConfig
	Order    OrderConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// TelegramConfig holds the bot API settings
type TelegramConfig struct {
	BotToken      string
	APIBase       string
	WebhookSecret string // expected X-Telegram-Bot-Api-Secret-Token value, empty disables the check
}

// AcmeConfig holds acme.sh invocation settings
type AcmeConfig struct {
	Path       string // acme.sh executable
	Server     string // CA shortname or directory URL
	ExportRoot string // directory certificates are installed into
	TimeoutSec int
}

// DNSConfig holds TXT propagation check settings
type DNSConfig struct {
	Resolvers  []string
	TimeoutSec int
}

// OrderConfig holds order lifecycle settings
type OrderConfig struct {
	DefaultQuota int   // apply quota granted on first contact
	OwnerTgID    int64 // Telegram id bound to the owner role, 0 = none
	LockTTLSec   int   // per-order transition lock TTL
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "tg_certbot"),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Telegram: TelegramConfig{
			BotToken:      getEnv("TG_BOT_TOKEN", ""),
			APIBase:       getEnv("TG_API_BASE", "https://api.telegram.org"),
			WebhookSecret: getEnv("TG_WEBHOOK_SECRET", ""),
		},
		Acme: AcmeConfig{
			Path:       getEnv("ACME_SH_PATH", "acme.sh"),
			Server:     getEnv("ACME_SERVER", "letsencrypt"),
			ExportRoot: getEnv("CERT_EXPORT_ROOT", "/srv/ssl"),
			TimeoutSec: getEnvInt("ACME_TIMEOUT_SEC", 300),
		},
		DNS: DNSConfig{
			Resolvers:  splitList(getEnv("DNS_RESOLVERS", "")),
			TimeoutSec: getEnvInt("DNS_TIMEOUT_SEC", 10),
		},
		Order: OrderConfig{
			DefaultQuota: getEnvInt("DEFAULT_APPLY_QUOTA", 1),
			OwnerTgID:    getEnvInt64("OWNER_TG_ID", 0),
			LockTTLSec:   getEnvInt("ORDER_LOCK_TTL_SEC", 600),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("TG_BOT_TOKEN is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	// Load INI file
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		// Priority 1: Environment variable
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		// Priority 2: INI file
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		// Priority 3: Default value
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		// Priority 1: Environment variable
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		// Priority 2: INI file
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		// Priority 3: Default value
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		// Priority 1: Environment variable
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		// Priority 2: INI file
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		// Priority 3: Default value
		return defaultValue
	}

	getValueInt64 := func(envKey, iniSection, iniKey string, defaultValue int64) int64 {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int64(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_seconds", 86400) / 60,
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "tg_certbot"),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
		Telegram: TelegramConfig{
			BotToken:      getValue("TG_BOT_TOKEN", "telegram", "bot_token", ""),
			APIBase:       getValue("TG_API_BASE", "telegram", "api_base", "https://api.telegram.org"),
			WebhookSecret: getValue("TG_WEBHOOK_SECRET", "telegram", "webhook_secret", ""),
		},
		Acme: AcmeConfig{
			Path:       getValue("ACME_SH_PATH", "acme", "path", "acme.sh"),
			Server:     getValue("ACME_SERVER", "acme", "server", "letsencrypt"),
			ExportRoot: getValue("CERT_EXPORT_ROOT", "acme", "export_root", "/srv/ssl"),
			TimeoutSec: getValueInt("ACME_TIMEOUT_SEC", "acme", "timeout_sec", 300),
		},
		DNS: DNSConfig{
			Resolvers:  splitList(getValue("DNS_RESOLVERS", "dns", "resolvers", "")),
			TimeoutSec: getValueInt("DNS_TIMEOUT_SEC", "dns", "timeout_sec", 10),
		},
		Order: OrderConfig{
			DefaultQuota: getValueInt("DEFAULT_APPLY_QUOTA", "order", "default_quota", 1),
			OwnerTgID:    getValueInt64("OWNER_TG_ID", "order", "owner_tg_id", 0),
			LockTTLSec:   getValueInt("ORDER_LOCK_TTL_SEC", "order", "lock_ttl_sec", 600),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("TG_BOT_TOKEN is required")
	}

	return cfg, nil
}
