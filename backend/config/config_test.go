package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
running:
  port: 9090
redis:
  addrs: ["127.0.0.1:6379"]
  presenceTTL: 30s
kafka:
  brokers: ["127.0.0.1:9092"]
canvas:
  enforceUpdateAuth: true
`
	if err := os.WriteFile(filepath.Join(dir, "canvasConfig.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Running.Port != 9090 {
		t.Fatalf("port = %d", cfg.Running.Port)
	}
	if len(cfg.Redis.Addrs) != 1 || cfg.Redis.PresenceTTL != 30*time.Second {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if !cfg.Canvas.EnforceUpdateAuth {
		t.Fatalf("enforceUpdateAuth should be true")
	}
	// 文件里没写的走默认值
	if cfg.Kafka.Topic != "canvas-events" || cfg.Canvas.SendQueueSize != 64 {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Kafka, cfg.Canvas)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("CANVAS_RUNNING_PORT", "7070")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Running.Port != 7070 {
		t.Fatalf("env override not applied, port = %d", cfg.Running.Port)
	}
	if cfg.Mysql.DSN != "" || len(cfg.Redis.Addrs) != 0 || len(cfg.Kafka.Brokers) != 0 || cfg.Canvas.EnforceUpdateAuth {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("CANVAS_MYSQL_DSN", "user:pw@tcp(127.0.0.1:3306)/canvas")
	t.Setenv("CANVAS_REDIS_ADDRS", "127.0.0.1:6379")
	t.Setenv("CANVAS_REDIS_PASSWORD", "secret")
	t.Setenv("CANVAS_KAFKA_BROKERS", "127.0.0.1:9092")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Mysql.DSN != "user:pw@tcp(127.0.0.1:3306)/canvas" {
		t.Fatalf("dsn = %q", cfg.Mysql.DSN)
	}
	if len(cfg.Redis.Addrs) != 1 || cfg.Redis.Addrs[0] != "127.0.0.1:6379" || cfg.Redis.Password != "secret" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "127.0.0.1:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}
