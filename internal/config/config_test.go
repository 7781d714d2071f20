package config

import (
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SERVER_PORT":             "8080",
		"SERVER_HOST":             "0.0.0.0",
		"SERVER_BASE_URL":         "http://localhost:8080",
		"SERVER_READ_TIMEOUT":     "10s",
		"SERVER_WRITE_TIMEOUT":    "10s",
		"SERVER_IDLE_TIMEOUT":     "120s",
		"SERVER_SHUTDOWN_TIMEOUT": "30s",

		"DB_HOST":      "localhost",
		"DB_PORT":      "5432",
		"DB_USER":      "testuser",
		"DB_PASSWORD":  "testpass",
		"DB_NAME":      "testdb",
		"DB_SSLMODE":   "disable",
		"DB_MAX_CONNS": "25",
		"DB_MIN_CONNS": "5",

		"REDIS_ADDR": "localhost:6379",

		"AUTH_JWT_SECRET": "0123456789abcdef0123",

		"APP_ENV":   "test",
		"LOG_LEVEL": "debug",
	}
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for key, value := range env {
		t.Setenv(key, value)
	}
}

func TestLoad_Success(t *testing.T) {
	env := baseEnv()
	env["LINKS_CODE_LENGTH"] = "9"
	env["LINKS_UNUSED_THRESHOLD"] = "48h"
	env["REDIS_KEY_PREFIX"] = "lk:"
	env["METRICS_ENABLED"] = "false"
	setEnv(t, env)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %d, want 25", cfg.Database.MaxConns)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %s, want localhost:6379", cfg.Redis.Addr)
	}
	if cfg.Redis.KeyPrefix != "lk:" {
		t.Errorf("Redis.KeyPrefix = %s, want lk:", cfg.Redis.KeyPrefix)
	}
	if cfg.Links.CodeLength != 9 {
		t.Errorf("Links.CodeLength = %d, want 9", cfg.Links.CodeLength)
	}
	if cfg.Links.UnusedThreshold != 48*time.Hour {
		t.Errorf("Links.UnusedThreshold = %v, want 48h", cfg.Links.UnusedThreshold)
	}
	if cfg.Observability.MetricsEnabled {
		t.Error("Observability.MetricsEnabled = true, want false")
	}
	if cfg.App.Environment != "test" {
		t.Errorf("App.Environment = %s, want test", cfg.App.Environment)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, baseEnv())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Links.CodeLength != 7 {
		t.Errorf("Links.CodeLength = %d, want 7", cfg.Links.CodeLength)
	}
	if cfg.Links.GenerateRetries != 5 {
		t.Errorf("Links.GenerateRetries = %d, want 5", cfg.Links.GenerateRetries)
	}
	if cfg.Links.CacheTTL != time.Hour {
		t.Errorf("Links.CacheTTL = %v, want 1h", cfg.Links.CacheTTL)
	}
	if cfg.Links.SweepInterval != time.Minute {
		t.Errorf("Links.SweepInterval = %v, want 1m", cfg.Links.SweepInterval)
	}
	if cfg.Links.UnusedThreshold != 30*24*time.Hour {
		t.Errorf("Links.UnusedThreshold = %v, want 720h", cfg.Links.UnusedThreshold)
	}
	if cfg.Redis.KeyPrefix != "link:" {
		t.Errorf("Redis.KeyPrefix = %q, want link:", cfg.Redis.KeyPrefix)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Observability.MetricsEnabled = false, want true")
	}
	if cfg.Observability.ServiceName != "linkkeeper" {
		t.Errorf("Observability.ServiceName = %s, want linkkeeper", cfg.Observability.ServiceName)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"SERVER_PORT",
		"DB_HOST",
		"DB_PASSWORD",
		"REDIS_ADDR",
		"AUTH_JWT_SECRET",
		"APP_ENV",
		"LOG_LEVEL",
	}

	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			delete(env, key)
			setEnv(t, env)

			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail when %s is missing", key)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{"invalid duration", "SERVER_READ_TIMEOUT", "invalid"},
		{"invalid int", "DB_MAX_CONNS", "not-a-number"},
		{"invalid bool", "METRICS_ENABLED", "maybe"},
		{"min conns above max", "DB_MIN_CONNS", "50"},
		{"unknown ssl mode", "DB_SSLMODE", "sometimes"},
		{"unknown environment", "APP_ENV", "qa"},
		{"code too short", "LINKS_CODE_LENGTH", "2"},
		{"code too long", "LINKS_CODE_LENGTH", "21"},
		{"zero retries", "LINKS_GENERATE_RETRIES", "0"},
		{"negative cache ttl", "LINKS_CACHE_TTL", "-1s"},
		{"zero sweep interval", "LINKS_SWEEP_INTERVAL", "0s"},
		{"short jwt secret", "AUTH_JWT_SECRET", "tooshort"},
		{"negative redis db", "REDIS_DB", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env[tt.envVar] = tt.value
			setEnv(t, env)

			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail when %s=%s", tt.envVar, tt.value)
			}
		})
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "testhost",
		Port:     "5432",
		User:     "testuser",
		Password: "testpass",
		Name:     "testdb",
		SSLMode:  "disable",
	}

	expected := "host=testhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if got := db.ConnectionString(); got != expected {
		t.Errorf("ConnectionString() = %s, want %s", got, expected)
	}
}
