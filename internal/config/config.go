package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort               = 8080
	defaultDataDir            = "data"
	defaultMaxConcurrentTasks = 3
	defaultEvictionDelay      = 3 * time.Second
	defaultDownloadSpacing    = 100 * time.Millisecond
	defaultMaxUploadMB        = 100
	defaultLogLevel           = "info"

	envPrefix = "PDFDESK_"
)

// Config describes runtime configuration for the service.
type Config struct {
	Port               int           `yaml:"port"`
	DataDir            string        `yaml:"data_dir"`
	AllowedExtensions  []string      `yaml:"allowed_extensions"`
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks"`
	EvictionDelay      time.Duration `yaml:"eviction_delay"`
	DownloadSpacing    time.Duration `yaml:"download_spacing"`
	MaxUploadMB        int           `yaml:"max_upload_mb"`
	Logging            Logging       `yaml:"logging"`
}

type Logging struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Port:               defaultPort,
		DataDir:            defaultDataDir,
		AllowedExtensions:  []string{".pdf"},
		MaxConcurrentTasks: defaultMaxConcurrentTasks,
		EvictionDelay:      defaultEvictionDelay,
		DownloadSpacing:    defaultDownloadSpacing,
		MaxUploadMB:        defaultMaxUploadMB,
		Logging: Logging{
			Level:      defaultLogLevel,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads YAML config from the provided path and applies PDFDESK_*
// environment overrides. If the file does not exist or is empty, defaults
// are used.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	// values < 1 are not allowed
	if c.MaxConcurrentTasks < 1 {
		return fmt.Errorf("invalid max_concurrent_tasks: %d (must be >= 1)", c.MaxConcurrentTasks)
	}
	if c.EvictionDelay <= 0 {
		return fmt.Errorf("invalid eviction_delay: %s (must be > 0)", c.EvictionDelay)
	}
	if c.DownloadSpacing < 0 {
		return fmt.Errorf("invalid download_spacing: %s (must be >= 0)", c.DownloadSpacing)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// MaxUploadBytes is the request body limit derived from MaxUploadMB.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func normalize(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = defaultMaxUploadMB
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	integer("PORT", &cfg.Port)
	str("DATA_DIR", &cfg.DataDir)
	integer("MAX_CONCURRENT_TASKS", &cfg.MaxConcurrentTasks)
	duration("EVICTION_DELAY", &cfg.EvictionDelay)
	duration("DOWNLOAD_SPACING", &cfg.DownloadSpacing)
	integer("MAX_UPLOAD_MB", &cfg.MaxUploadMB)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)
	boolean("LOG_PRETTY", &cfg.Logging.Pretty)
	if v, ok := lookup(envPrefix + "ALLOWED_EXTENSIONS"); ok && v != "" {
		cfg.AllowedExtensions = strings.Split(v, ",")
	}
	return errors.Join(errs...)
}

func normalizeExtensions(in []string) []string {
	if len(in) == 0 {
		return []string{".pdf"}
	}
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	return normalized
}
