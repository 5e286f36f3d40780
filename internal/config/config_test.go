package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmirror/mirror-downloader/internal/streamfile"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file must use defaults: %v", err)
	}

	if cfg.Storage.Provider != "s3" {
		t.Errorf("default provider = %q, want s3", cfg.Storage.Provider)
	}
	if cfg.Streams.Prefix(streamfile.Record) != "recordstreams/record" {
		t.Errorf("default record prefix = %q", cfg.Streams.RecordPrefix)
	}
	if cfg.Streams.Prefix(streamfile.Balance) != "accountBalances/balance/" {
		t.Errorf("default balance prefix = %q", cfg.Streams.BalancePrefix)
	}
	if cfg.Streams.Prefix(streamfile.Event) != "eventstreams/events_" {
		t.Errorf("default event prefix = %q", cfg.Streams.EventPrefix)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downloader.yaml")
	doc := `
storage:
  provider: gcs
  bucket: mirror-stream-files
download:
  to_dir: /var/lib/mirror
  max_items: 25
  cycle_interval: 30s
logging:
  format: json
  level: debug
metrics:
  enabled: true
  address: ":9100"
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Provider != "gcs" || cfg.Storage.Bucket != "mirror-stream-files" {
		t.Errorf("storage not loaded: %+v", cfg.Storage)
	}
	if cfg.Download.ToDir != "/var/lib/mirror" || cfg.Download.MaxItems != 25 {
		t.Errorf("download not loaded: %+v", cfg.Download)
	}
	if cfg.Download.CycleInterval != 30*time.Second {
		t.Errorf("cycle_interval = %v, want 30s", cfg.Download.CycleInterval)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging not loaded: %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != ":9100" {
		t.Errorf("metrics not loaded: %+v", cfg.Metrics)
	}

	// Unset fields keep their defaults.
	if cfg.Download.NodeRegistryFile != "./config/nodes.json" {
		t.Errorf("node registry default lost: %q", cfg.Download.NodeRegistryFile)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "override-bucket")
	t.Setenv("MAX_DOWNLOAD_ITEMS", "7")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Bucket != "override-bucket" {
		t.Errorf("bucket env override not applied: %q", cfg.Storage.Bucket)
	}
	if cfg.Download.MaxItems != 7 {
		t.Errorf("max items env override not applied: %d", cfg.Download.MaxItems)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level env override not applied: %q", cfg.Logging.Level)
	}
}
