// Package config loads the downloader configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openmirror/mirror-downloader/internal/logging"
	"github.com/openmirror/mirror-downloader/internal/metrics"
	"github.com/openmirror/mirror-downloader/internal/objstore"
	"github.com/openmirror/mirror-downloader/internal/streamfile"
)

// Config is the full downloader configuration. It is loaded once at
// startup and passed into each component at construction; no component
// mutates it.
type Config struct {
	Storage  objstore.Config `yaml:"storage"`
	Download DownloadConfig  `yaml:"download"`
	Streams  StreamsConfig   `yaml:"streams"`
	Logging  logging.Config  `yaml:"logging"`
	Metrics  metrics.Config  `yaml:"metrics"`
}

// DownloadConfig controls the download pipeline.
type DownloadConfig struct {
	// ToDir is the root under which stream files are materialized.
	ToDir string `yaml:"to_dir"`

	// NodeRegistryFile is the JSON node registry, re-read every cycle.
	NodeRegistryFile string `yaml:"node_registry_file"`

	// MaxItems caps fresh downloads per node scan; 0 means unlimited.
	MaxItems int `yaml:"max_items"`

	// StopFile is the cooperative stop marker polled by the pipeline.
	StopFile string `yaml:"stop_file"`

	// CycleInterval is the pause between cycles; 0 runs a single cycle.
	CycleInterval time.Duration `yaml:"cycle_interval"`

	// CheckpointDir holds the per-stream checkpoint documents.
	CheckpointDir string `yaml:"checkpoint_dir"`

	// LegacyConfigFile is the combined configuration document whose
	// watermark fields are migrated on first run, if it exists.
	LegacyConfigFile string `yaml:"legacy_config_file"`
}

// StreamsConfig holds the per-stream remote prefixes. A node's subtree
// is the configured prefix with the node id appended verbatim, so the
// prefix carries whatever separator the bucket layout needs.
type StreamsConfig struct {
	RecordPrefix  string `yaml:"record_prefix"`
	BalancePrefix string `yaml:"balance_prefix"`
	EventPrefix   string `yaml:"event_prefix"`
}

// Prefix returns the remote prefix for a stream type.
func (s StreamsConfig) Prefix(st streamfile.Type) string {
	switch st {
	case streamfile.Record:
		return s.RecordPrefix
	case streamfile.Balance:
		return s.BalancePrefix
	case streamfile.Event:
		return s.EventPrefix
	default:
		return ""
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: objstore.Config{
			Provider: "s3",
			Bucket:   "mirror-export",
			Region:   "us-east-2",
		},
		Download: DownloadConfig{
			ToDir:            "./data",
			NodeRegistryFile: "./config/nodes.json",
			StopFile:         "./stop",
			CheckpointDir:    "./config",
			LegacyConfigFile: "./config/config.json",
		},
		Streams: StreamsConfig{
			RecordPrefix:  "recordstreams/record",
			BalancePrefix: "accountBalances/balance/",
			EventPrefix:   "eventstreams/events_",
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
		Metrics: metrics.Config{
			Enabled: false,
			Address: ":9090",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error; the defaults
// plus environment are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Storage.Provider, "STORAGE_PROVIDER")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.Region, "STORAGE_REGION")
	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Download.ToDir, "DOWNLOAD_TO_DIR")
	setString(&cfg.Download.NodeRegistryFile, "NODE_REGISTRY_FILE")
	setString(&cfg.Download.StopFile, "STOP_FILE")
	setString(&cfg.Download.CheckpointDir, "CHECKPOINT_DIR")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Metrics.Address, "METRICS_ADDRESS")

	if v := os.Getenv("MAX_DOWNLOAD_ITEMS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Download.MaxItems = parsed
		}
	}
	if v := os.Getenv("CYCLE_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Download.CycleInterval = parsed
		}
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
