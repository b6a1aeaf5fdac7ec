package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAndNormalize(t *testing.T) {
	cfg := Default()
	if cfg.Port == 0 || cfg.DataDir == "" || cfg.MaxConcurrentTasks < 1 || cfg.EvictionDelay != 3*time.Second {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	got := normalizeExtensions([]string{"PDF", ".pdf", "pdf", "  .Pdf"})
	if len(got) != 1 || got[0] != ".pdf" {
		t.Fatalf("expected a single .pdf, got %v", got)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.DownloadSpacing != 100*time.Millisecond {
		t.Fatalf("unexpected spacing %s", cfg.DownloadSpacing)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadReadsAndValidates(t *testing.T) {
	path := writeConfig(t, "port: 9090\ndata_dir: testdata\nallowed_extensions: [PDF]\nmax_concurrent_tasks: 2\neviction_delay: 5s\ndownload_spacing: 50ms\nlogging:\n  level: debug\n  pretty: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.DataDir != "testdata" || cfg.MaxConcurrentTasks != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.EvictionDelay != 5*time.Second || cfg.DownloadSpacing != 50*time.Millisecond {
		t.Fatalf("durations not parsed: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Pretty {
		t.Fatalf("logging not parsed: %+v", cfg.Logging)
	}
	if cfg.AllowedExtensions[0] != ".pdf" {
		t.Fatalf("extensions not normalized: %v", cfg.AllowedExtensions)
	}
}

func TestLoadRejectsInvalidConcurrency(t *testing.T) {
	if _, err := Load(writeConfig(t, "max_concurrent_tasks: 0\n")); err == nil {
		t.Fatalf("expected error for invalid concurrency")
	}
}

func TestLoadRejectsNonPositiveEviction(t *testing.T) {
	if _, err := Load(writeConfig(t, "eviction_delay: 0s\n")); err == nil {
		t.Fatalf("expected error for zero eviction delay")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PDFDESK_PORT", "7070")
	t.Setenv("PDFDESK_EVICTION_DELAY", "2s")
	t.Setenv("PDFDESK_LOG_PRETTY", "true")

	cfg, err := Load(writeConfig(t, "port: 9090\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 7070 || cfg.EvictionDelay != 2*time.Second || !cfg.Logging.Pretty {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestEnvOverridesReportBadValues(t *testing.T) {
	env := map[string]string{"PDFDESK_PORT": "eighty", "PDFDESK_DOWNLOAD_SPACING": "soon"}
	cfg := Default()
	err := applyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatalf("expected error for malformed env values")
	}
	if cfg.Port != defaultPort {
		t.Fatalf("port must keep its previous value, got %d", cfg.Port)
	}
}
