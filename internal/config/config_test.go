package config

import (
	"os"
	"testing"
	"time"

	"yourmove/internal/models"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected STORAGE_DRIVER default 'postgres', got '%s'", cfg.Database.Driver)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}
	if cfg.Analyzer.BufferCapacity != 120 {
		t.Errorf("Expected buffer capacity default 120, got %d", cfg.Analyzer.BufferCapacity)
	}
	if cfg.Analyzer.SessionIdleTimeout != 300*time.Second {
		t.Errorf("Expected idle timeout 300s, got %v", cfg.Analyzer.SessionIdleTimeout)
	}
	if cfg.Stream.Frames != "yourmove:frames:stream" {
		t.Errorf("Expected frames stream default, got '%s'", cfg.Stream.Frames)
	}
	if cfg.Stream.BatchSize != 10 {
		t.Errorf("Expected batch size 10, got %d", cfg.Stream.BatchSize)
	}
	if cfg.Cache.AnalyticsTTL != 30*time.Second {
		t.Errorf("Expected analytics TTL 30s, got %v", cfg.Cache.AnalyticsTTL)
	}
	if cfg.Storage.PersistMinSeverity != models.SeverityHigh {
		t.Errorf("Expected persist min severity high, got %v", cfg.Storage.PersistMinSeverity)
	}
	if cfg.Topics.Commands != "yourmove/%s/command" {
		t.Errorf("Expected command topic template, got '%s'", cfg.Topics.Commands)
	}
	if !cfg.Gateway.Enabled || cfg.Gateway.Addr != ":8000" {
		t.Errorf("Expected gateway enabled on :8000, got %v %s", cfg.Gateway.Enabled, cfg.Gateway.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/ym.db")
	t.Setenv("ANALYZER_BUFFER_CAPACITY", "60")
	t.Setenv("SESSION_IDLE_TIMEOUT_SECONDS", "45")
	t.Setenv("STORAGE_PERSIST_MIN_SEVERITY", "moderate")
	t.Setenv("GATEWAY_ENABLED", "false")
	t.Setenv("MQTT_QOS", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/ym.db" {
		t.Errorf("Expected sqlite at /tmp/ym.db, got %s %s", cfg.Database.Driver, cfg.Database.SQLitePath)
	}
	if cfg.Analyzer.BufferCapacity != 60 {
		t.Errorf("Expected capacity 60, got %d", cfg.Analyzer.BufferCapacity)
	}
	if cfg.Analyzer.SessionIdleTimeout != 45*time.Second {
		t.Errorf("Expected idle timeout 45s, got %v", cfg.Analyzer.SessionIdleTimeout)
	}
	if cfg.Storage.PersistMinSeverity != models.SeverityModerate {
		t.Errorf("Expected moderate, got %v", cfg.Storage.PersistMinSeverity)
	}
	if cfg.Gateway.Enabled {
		t.Error("Expected gateway disabled")
	}
	if cfg.MQTT.QoS != 2 {
		t.Errorf("Expected QoS 2, got %d", cfg.MQTT.QoS)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"capacity below two", "ANALYZER_BUFFER_CAPACITY", "1"},
		{"unknown driver", "STORAGE_DRIVER", "mongo"},
		{"unknown severity", "STORAGE_PERSIST_MIN_SEVERITY", "extreme"},
		{"non-positive tick rate", "ANALYZER_TICK_RATE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
