package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/cubicmc/proton/pkg/manifest"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	defaultConcurrency = 128
	defaultAttempts    = 3
	defaultBackoff     = 500 * time.Millisecond
)

type DownloaderConfig struct {
	InstallRoot string `yaml:"install_root"`
	Concurrency int    `yaml:"concurrency"`
	Attempts    int    `yaml:"attempts"`
	BackoffMS   int    `yaml:"backoff_ms"`
}

func (c *DownloaderConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMS) * time.Millisecond
}

type Config struct {
	ManifestURL  string           `yaml:"manifest_url"`
	ResourcesURL string           `yaml:"resources_url"`
	LogLevel     string           `yaml:"log_level"`
	Downloader   DownloaderConfig `yaml:"downloader"`
}

func (c *Config) SetDefaults() {
	c.ManifestURL = manifest.DefaultManifestURL
	c.ResourcesURL = manifest.DefaultResourcesURL
	c.LogLevel = LogLevelInfo
	c.Downloader = DownloaderConfig{
		InstallRoot: ".minecraft",
		Concurrency: defaultConcurrency,
		Attempts:    defaultAttempts,
		BackoffMS:   int(defaultBackoff / time.Millisecond),
	}
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MustLoad reads the yaml config file when it exists and applies PROTON_*
// environment overrides, .env included. A missing file is fine, a broken
// one is not.
func MustLoad(path string) *Config {
	cfg := &Config{}
	cfg.SetDefaults()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(err)
		}
	} else if !os.IsNotExist(err) {
		panic(err)
	}

	_ = godotenv.Load()

	if v := os.Getenv("PROTON_MANIFEST_URL"); v != "" {
		cfg.ManifestURL = v
	}
	if v := os.Getenv("PROTON_RESOURCES_URL"); v != "" {
		cfg.ResourcesURL = v
	}
	if v := os.Getenv("PROTON_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROTON_INSTALL_ROOT"); v != "" {
		cfg.Downloader.InstallRoot = v
	}
	if v := os.Getenv("PROTON_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Downloader.Concurrency = n
		}
	}

	return cfg
}
