package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offsetcheck.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Review.TargetLabel != "GOOD" {
		t.Errorf("TargetLabel = %q, want GOOD", cfg.Review.TargetLabel)
	}
	if cfg.Review.MinFileBytes != 102400 {
		t.Errorf("MinFileBytes = %d, want 102400", cfg.Review.MinFileBytes)
	}
	if cfg.Review.MinTotal != 20 || cfg.Review.MinTarget != 5 {
		t.Errorf("thresholds = %d/%d, want 20/5", cfg.Review.MinTotal, cfg.Review.MinTarget)
	}
	if cfg.Server.Bind != "127.0.0.1:8000" {
		t.Errorf("Bind = %q", cfg.Server.Bind)
	}
	if got := cfg.LedgerPath(); got != filepath.Join(".", "decisions.csv") {
		t.Errorf("LedgerPath() = %q", got)
	}
	if cfg.DecisionWait() != 0 {
		t.Errorf("DecisionWait() = %v, want 0", cfg.DecisionWait())
	}
	if cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() should be false by default")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[paths]
eaf_dir = "/data/eafs"
video_dir = "/data/videos"
data_dir = "/data/out"

[review]
target_label = "OK"
policy = "Four-Point"
video_extensions = [".MP4", "mov"]
decision_wait = 30

[remote]
url = "http://review.local:8000/"
`)

	cfg, resolved, exists, err := load(path, noEnv)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if !exists || resolved != path {
		t.Errorf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Paths.EAFDir != "/data/eafs" {
		t.Errorf("EAFDir = %q", cfg.Paths.EAFDir)
	}
	if cfg.Review.TargetLabel != "OK" {
		t.Errorf("TargetLabel = %q", cfg.Review.TargetLabel)
	}
	if cfg.Review.Policy != "four_point" {
		t.Errorf("Policy = %q, want four_point", cfg.Review.Policy)
	}
	if strings.Join(cfg.Review.VideoExtensions, ",") != "mp4,mov" {
		t.Errorf("VideoExtensions = %v", cfg.Review.VideoExtensions)
	}
	if cfg.DecisionWait() != 30*time.Second {
		t.Errorf("DecisionWait() = %v", cfg.DecisionWait())
	}
	if cfg.Remote.URL != "http://review.local:8000" {
		t.Errorf("Remote.URL = %q", cfg.Remote.URL)
	}
	if cfg.LedgerPath() != "/data/out/decisions.csv" {
		t.Errorf("LedgerPath() = %q", cfg.LedgerPath())
	}
	if cfg.JournalPath() != "/data/out/offsetcheck.db" {
		t.Errorf("JournalPath() = %q", cfg.JournalPath())
	}
	// unset keys keep defaults
	if cfg.Review.MinTotal != DefaultMinTotal {
		t.Errorf("MinTotal = %d", cfg.Review.MinTotal)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[review]
target_label = "OK"
`)
	env := envMap(map[string]string{
		EnvTargetLabel:  "BEST",
		EnvLedger:       "/tmp/ledger.csv",
		EnvDecisionWait: "5",
		EnvVideoExts:    "mp4, webm",
		EnvLogLevel:     "DEBUG",
	})

	cfg, _, _, err := load(path, env)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Review.TargetLabel != "BEST" {
		t.Errorf("TargetLabel = %q, want BEST", cfg.Review.TargetLabel)
	}
	if cfg.LedgerPath() != "/tmp/ledger.csv" {
		t.Errorf("LedgerPath() = %q", cfg.LedgerPath())
	}
	if cfg.DecisionWait() != 5*time.Second {
		t.Errorf("DecisionWait() = %v", cfg.DecisionWait())
	}
	if strings.Join(cfg.Review.VideoExtensions, ",") != "mp4,webm" {
		t.Errorf("VideoExtensions = %v", cfg.Review.VideoExtensions)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidEnvNumber(t *testing.T) {
	path := writeConfig(t, "")
	_, _, _, err := load(path, envMap(map[string]string{EnvDecisionWait: "soon"}))
	if err == nil || !strings.Contains(err.Error(), EnvDecisionWait) {
		t.Errorf("load() error = %v, want mention of %s", err, EnvDecisionWait)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
[review]
thershold = 3
`)
	if _, _, _, err := load(path, noEnv); err == nil {
		t.Error("load() should reject unknown keys")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, _, _, err := load(filepath.Join(t.TempDir(), "nope.toml"), noEnv)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("load() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad policy", func(c *Config) { c.Review.Policy = "thirds" }, "review.policy"},
		{"zero min total", func(c *Config) { c.Review.MinTotal = 0 }, "review.min_total"},
		{"zero min target", func(c *Config) { c.Review.MinTarget = 0 }, "review.min_target"},
		{"empty eaf dir", func(c *Config) { c.Paths.EAFDir = "" }, "paths.eaf_dir"},
		{"bad bind", func(c *Config) { c.Server.Bind = "nowhere" }, "server.bind"},
		{"bad remote url", func(c *Config) { c.Remote.URL = "not a url" }, "remote.url"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"no extensions", func(c *Config) { c.Review.VideoExtensions = nil }, "review.video_extensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.Apply(Overrides{
		EAFDir: "/flags/eafs",
		Policy: "four-point",
		Bind:   "0.0.0.0:9000",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if cfg.Paths.EAFDir != "/flags/eafs" || cfg.Review.Policy != "four_point" || cfg.Server.Bind != "0.0.0.0:9000" {
		t.Errorf("Apply() result = %+v", cfg)
	}
	if cfg.Paths.VideoDir != DefaultVideoDir {
		t.Errorf("VideoDir = %q, should be untouched", cfg.Paths.VideoDir)
	}

	if err := cfg.Apply(Overrides{Policy: "thirds"}); err == nil {
		t.Error("Apply() should validate the result")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample() error = %v", err)
	}
	cfg, _, exists, err := load(path, noEnv)
	if err != nil {
		t.Fatalf("load(sample) error = %v", err)
	}
	if !exists || cfg.Review.TargetLabel != DefaultTargetLabel {
		t.Errorf("sample round trip: exists=%v label=%q", exists, cfg.Review.TargetLabel)
	}
	if err := CreateSample(path); err == nil {
		t.Error("CreateSample() should refuse to overwrite")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := expandPath("~/eafs")
	if err != nil {
		t.Fatalf("expandPath() error = %v", err)
	}
	if got != filepath.Join(home, "eafs") {
		t.Errorf("expandPath() = %q", got)
	}
}
