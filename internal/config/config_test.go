package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TG_BOT_TOKEN", "123456:test-token")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MySQL.DSN == "" {
		t.Error("MySQL DSN should not be empty")
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}

	if cfg.Acme.Server != "letsencrypt" {
		t.Errorf("Expected default ACME server letsencrypt, got %s", cfg.Acme.Server)
	}

	if cfg.Order.DefaultQuota != 1 {
		t.Errorf("Expected default apply quota 1, got %d", cfg.Order.DefaultQuota)
	}
}

func TestLoad_MissingMySQLDSN(t *testing.T) {
	// Ensure MYSQL_DSN is not set
	os.Unsetenv("MYSQL_DSN")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TG_BOT_TOKEN", "123456:test-token")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MYSQL_DSN is missing")
	}
}

func TestLoad_MissingBotToken(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	t.Setenv("JWT_SECRET", "test-secret")
	os.Unsetenv("TG_BOT_TOKEN")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when TG_BOT_TOKEN is missing")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_PASS", "secret")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ACME_SH_PATH", "/opt/acme.sh/acme.sh")
	t.Setenv("DNS_RESOLVERS", "8.8.8.8:53, 1.1.1.1:53")
	t.Setenv("OWNER_TG_ID", "123456789")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Redis.Addr != "redis.example.com:6379" {
		t.Errorf("Expected custom Redis addr, got %s", cfg.Redis.Addr)
	}

	if cfg.Redis.Password != "secret" {
		t.Errorf("Expected Redis password 'secret', got %s", cfg.Redis.Password)
	}

	if cfg.Redis.DB != 5 {
		t.Errorf("Expected Redis DB 5, got %d", cfg.Redis.DB)
	}

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("Expected HTTPAddr :9090, got %s", cfg.HTTPAddr)
	}

	if cfg.Acme.Path != "/opt/acme.sh/acme.sh" {
		t.Errorf("Expected custom acme.sh path, got %s", cfg.Acme.Path)
	}

	if len(cfg.DNS.Resolvers) != 2 || cfg.DNS.Resolvers[1] != "1.1.1.1:53" {
		t.Errorf("Expected two resolvers, got %v", cfg.DNS.Resolvers)
	}

	if cfg.Order.OwnerTgID != 123456789 {
		t.Errorf("Expected owner tg id 123456789, got %d", cfg.Order.OwnerTgID)
	}
}

func writeINI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	return path
}

func TestLoadFromINI(t *testing.T) {
	os.Unsetenv("MYSQL_DSN")
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("TG_BOT_TOKEN")
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("ACME_SERVER")

	path := writeINI(t, `
[mysql]
dsn = user:pass@tcp(localhost:3306)/test

[jwt]
secret = ini-secret

[telegram]
bot_token = 123456:ini-token
webhook_secret = hook-secret

[redis]
addr = redis.ini.local:6379

[acme]
server = zerossl

[order]
default_quota = 3
`)

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI() failed: %v", err)
	}

	if cfg.MySQL.DSN != "user:pass@tcp(localhost:3306)/test" {
		t.Errorf("Expected INI MySQL DSN, got %s", cfg.MySQL.DSN)
	}
	if cfg.JWT.Secret != "ini-secret" {
		t.Errorf("Expected INI JWT secret, got %s", cfg.JWT.Secret)
	}
	if cfg.Telegram.WebhookSecret != "hook-secret" {
		t.Errorf("Expected INI webhook secret, got %s", cfg.Telegram.WebhookSecret)
	}
	if cfg.Redis.Addr != "redis.ini.local:6379" {
		t.Errorf("Expected INI Redis addr, got %s", cfg.Redis.Addr)
	}
	if cfg.Acme.Server != "zerossl" {
		t.Errorf("Expected INI ACME server, got %s", cfg.Acme.Server)
	}
	if cfg.Order.DefaultQuota != 3 {
		t.Errorf("Expected INI default quota 3, got %d", cfg.Order.DefaultQuota)
	}
}

func TestLoadFromINI_EnvOverridesINI(t *testing.T) {
	path := writeINI(t, `
[mysql]
dsn = ini:dsn@tcp(localhost:3306)/ini

[jwt]
secret = ini-secret

[telegram]
bot_token = 123456:ini-token
`)

	t.Setenv("MYSQL_DSN", "env:dsn@tcp(localhost:3306)/env")

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI() failed: %v", err)
	}

	if cfg.MySQL.DSN != "env:dsn@tcp(localhost:3306)/env" {
		t.Errorf("ENV must override INI, got %s", cfg.MySQL.DSN)
	}
	if cfg.JWT.Secret != "ini-secret" {
		t.Errorf("INI value must survive where no env is set, got %s", cfg.JWT.Secret)
	}
}

func TestLoadFromINI_MissingFile(t *testing.T) {
	if _, err := LoadFromINI(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Error("Expected error for missing INI file")
	}
}
