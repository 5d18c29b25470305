package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Pipeline.MaxConcurrentCalls != 3 {
		t.Fatalf("max_concurrent_calls=%d want=3", cfg.Pipeline.MaxConcurrentCalls)
	}
	if cfg.Pipeline.CacheTTL != 24*time.Hour {
		t.Fatalf("cache_ttl=%s want=24h", cfg.Pipeline.CacheTTL)
	}
	if cfg.Background.MinimumFetchInterval != 15*time.Minute {
		t.Fatalf("minimum_fetch_interval=%s want=15m", cfg.Background.MinimumFetchInterval)
	}
	if cfg.Background.StopOnTerminate || !cfg.Background.StartOnBoot || !cfg.Background.EnableHeadless {
		t.Fatalf("unexpected background flags: %+v", cfg.Background)
	}
	if cfg.KV.Backend != "db" {
		t.Fatalf("kv.backend=%q want=db", cfg.KV.Backend)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
db:
  driver: sqlite
  dsn: "file:test.db"
pipeline:
  max_concurrent_calls: 5
  timezone: UTC
background:
  minimum_fetch_interval: 30m
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("driver=%q want=sqlite", cfg.DB.Driver)
	}
	if cfg.Pipeline.MaxConcurrentCalls != 5 {
		t.Fatalf("max_concurrent_calls=%d want=5", cfg.Pipeline.MaxConcurrentCalls)
	}
	if cfg.Background.MinimumFetchInterval != 30*time.Minute {
		t.Fatalf("interval=%s want=30m", cfg.Background.MinimumFetchInterval)
	}
	loc, err := cfg.Pipeline.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("location=%v err=%v want UTC", loc, err)
	}
}

func TestPipelineLocation_Local(t *testing.T) {
	loc, err := PipelineConfig{Timezone: "local"}.Location()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if loc != time.Local {
		t.Fatalf("loc=%v want Local", loc)
	}
}
