// Package config loads offsetcheck settings. Defaults are overlaid by an
// optional TOML file and then by OFFSETCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/heimdex/offsetcheck/internal/validate"
)

const (
	DefaultEAFDir       = "CAVA_Data/EAFs"
	DefaultVideoDir     = "CAVA_Data/Videos"
	DefaultDataDir      = "."
	DefaultLedgerFile   = "decisions.csv"
	DefaultJournalFile  = "offsetcheck.db"
	DefaultTargetLabel  = "GOOD"
	DefaultMinFileBytes = 100 * 1024
	DefaultMinTotal     = 20
	DefaultMinTarget    = 5
	DefaultPolicy       = "midpoint"
	DefaultBind         = "127.0.0.1:8000"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "auto"

	DefaultFFmpegTimeoutSeconds = 60
	DefaultRemoteTimeoutSeconds = 10

	ProjectConfigFile = "offsetcheck.toml"
	envPrefix         = "OFFSETCHECK_"
)

// Environment variable names
const (
	EnvEAFDir        = envPrefix + "EAF_DIR"
	EnvVideoDir      = envPrefix + "VIDEO_DIR"
	EnvDataDir       = envPrefix + "DATA_DIR"
	EnvLedger        = envPrefix + "LEDGER"
	EnvTargetLabel   = envPrefix + "TARGET_LABEL"
	EnvPolicy        = envPrefix + "POLICY"
	EnvMinFileBytes  = envPrefix + "MIN_FILE_BYTES"
	EnvDecisionWait  = envPrefix + "DECISION_WAIT"
	EnvFFmpegBinary  = envPrefix + "FFMPEG"
	EnvBind          = envPrefix + "BIND"
	EnvRemoteURL     = envPrefix + "REMOTE_URL"
	EnvRemoteToken   = envPrefix + "REMOTE_TOKEN"
	EnvLogLevel      = envPrefix + "LOG_LEVEL"
	EnvLogFormat     = envPrefix + "LOG_FORMAT"
	EnvVideoExts     = envPrefix + "VIDEO_EXTENSIONS"
	EnvFFmpegTimeout = envPrefix + "FFMPEG_TIMEOUT"
)

type Paths struct {
	EAFDir   string `toml:"eaf_dir" validate:"required"`
	VideoDir string `toml:"video_dir" validate:"required"`
	DataDir  string `toml:"data_dir" validate:"required"`
	Ledger   string `toml:"ledger"` // empty = <data_dir>/decisions.csv
}

type Review struct {
	TargetLabel     string   `toml:"target_label" validate:"required"`
	MinFileBytes    int64    `toml:"min_file_bytes" validate:"gte=0"`
	MinTotal        int      `toml:"min_total" validate:"gte=1"`
	MinTarget       int      `toml:"min_target" validate:"gte=1"`
	Policy          string   `toml:"policy" validate:"policy"`
	VideoExtensions []string `toml:"video_extensions" validate:"min=1,dive,required"`
	DecisionWait    int      `toml:"decision_wait" validate:"gte=0"` // seconds; 0 = until interrupted
}

type FFmpeg struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=1"`
}

type Server struct {
	Bind string `toml:"bind" validate:"required,hostname_port"`
}

type Remote struct {
	URL            string `toml:"url" validate:"omitempty,url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

type Logging struct {
	Level  string `toml:"level" validate:"oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"oneof=json console text auto"`
}

// Config is the full application configuration.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Review  Review  `toml:"review"`
	FFmpeg  FFmpeg  `toml:"ffmpeg"`
	Server  Server  `toml:"server"`
	Remote  Remote  `toml:"remote"`
	Logging Logging `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			EAFDir:   DefaultEAFDir,
			VideoDir: DefaultVideoDir,
			DataDir:  DefaultDataDir,
		},
		Review: Review{
			TargetLabel:     DefaultTargetLabel,
			MinFileBytes:    DefaultMinFileBytes,
			MinTotal:        DefaultMinTotal,
			MinTarget:       DefaultMinTarget,
			Policy:          DefaultPolicy,
			VideoExtensions: []string{"mp4"},
		},
		FFmpeg: FFmpeg{TimeoutSeconds: DefaultFFmpegTimeoutSeconds},
		Server: Server{Bind: DefaultBind},
		Remote: Remote{TimeoutSeconds: DefaultRemoteTimeoutSeconds},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads the config file at path (or the first default location that
// exists), applies environment overrides and validates the result. It returns
// the resolved file path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		f, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := toml.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// DefaultPath is the per-user config location.
func DefaultPath() (string, error) {
	return expandPath("~/.config/offsetcheck/config.toml")
}

func resolvePath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(ProjectConfigFile)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	userPath, err := DefaultPath()
	if err != nil {
		return "", false, nil
	}
	if info, err := os.Stat(userPath); err == nil && !info.IsDir() {
		return userPath, true, nil
	}
	return "", false, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString(&c.Paths.EAFDir, EnvEAFDir)
	setString(&c.Paths.VideoDir, EnvVideoDir)
	setString(&c.Paths.DataDir, EnvDataDir)
	setString(&c.Paths.Ledger, EnvLedger)
	setString(&c.Review.TargetLabel, EnvTargetLabel)
	setString(&c.Review.Policy, EnvPolicy)
	setString(&c.FFmpeg.Binary, EnvFFmpegBinary)
	setString(&c.Server.Bind, EnvBind)
	setString(&c.Remote.URL, EnvRemoteURL)
	setString(&c.Remote.Token, EnvRemoteToken)
	setString(&c.Logging.Level, EnvLogLevel)
	setString(&c.Logging.Format, EnvLogFormat)

	if v := strings.TrimSpace(getenv(EnvVideoExts)); v != "" {
		c.Review.VideoExtensions = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(getenv(EnvMinFileBytes)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMinFileBytes, err)
		}
		c.Review.MinFileBytes = n
	}
	if err := setInt(&c.Review.DecisionWait, EnvDecisionWait); err != nil {
		return err
	}
	return setInt(&c.FFmpeg.TimeoutSeconds, EnvFFmpegTimeout)
}

// Overrides are command-line values layered over the loaded configuration.
// Empty fields leave the configuration untouched.
type Overrides struct {
	EAFDir      string
	VideoDir    string
	DataDir     string
	Ledger      string
	TargetLabel string
	Policy      string
	Bind        string
	LogLevel    string
	LogFormat   string
}

// Apply layers o over c, then normalizes and validates again.
func (c *Config) Apply(o Overrides) error {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Paths.EAFDir, o.EAFDir)
	set(&c.Paths.VideoDir, o.VideoDir)
	set(&c.Paths.DataDir, o.DataDir)
	set(&c.Paths.Ledger, o.Ledger)
	set(&c.Review.TargetLabel, o.TargetLabel)
	set(&c.Review.Policy, o.Policy)
	set(&c.Server.Bind, o.Bind)
	set(&c.Logging.Level, o.LogLevel)
	set(&c.Logging.Format, o.LogFormat)

	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) normalize() error {
	for _, p := range []*string{&c.Paths.EAFDir, &c.Paths.VideoDir, &c.Paths.DataDir, &c.Paths.Ledger} {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	exts := c.Review.VideoExtensions[:0]
	for _, e := range c.Review.VideoExtensions {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			exts = append(exts, e)
		}
	}
	c.Review.VideoExtensions = exts

	c.Review.Policy = strings.ToLower(strings.TrimSpace(c.Review.Policy))
	if c.Review.Policy == "four-point" {
		c.Review.Policy = "four_point"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Remote.URL = strings.TrimRight(strings.TrimSpace(c.Remote.URL), "/")
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LedgerPath returns the decision ledger location.
func (c *Config) LedgerPath() string {
	if c.Paths.Ledger != "" {
		return c.Paths.Ledger
	}
	return filepath.Join(c.Paths.DataDir, DefaultLedgerFile)
}

// JournalPath returns the sqlite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, DefaultJournalFile)
}

func (c *Config) DecisionWait() time.Duration {
	return time.Duration(c.Review.DecisionWait) * time.Second
}

func (c *Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.FFmpeg.TimeoutSeconds) * time.Second
}

func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// RemoteEnabled reports whether decisions are forwarded.
func (c *Config) RemoteEnabled() bool {
	return c.Remote.URL != ""
}

// EnsureDirectories creates the data directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %q: %w", c.Paths.DataDir, err)
	}
	return nil
}

// CreateSample writes the default configuration to path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file %s already exists", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode sample config: %w", err)
	}
	return os.WriteFile(expanded, data, 0o644)
}

func expandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Clean(p), nil
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
