package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/heimdex/offsetcheck/internal/config"
	"github.com/heimdex/offsetcheck/internal/db"
	"github.com/heimdex/offsetcheck/internal/eligibility"
	"github.com/heimdex/offsetcheck/internal/events"
	"github.com/heimdex/offsetcheck/internal/journal"
	"github.com/heimdex/offsetcheck/internal/ledger"
	"github.com/heimdex/offsetcheck/internal/locator"
	"github.com/heimdex/offsetcheck/internal/logging"
	"github.com/heimdex/offsetcheck/internal/remote"
	"github.com/heimdex/offsetcheck/internal/review"
)

type commandContext struct {
	configFlag *string
	overrides  *config.Overrides

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logOnce sync.Once
	logger  *slog.Logger
	logOut  io.Writer
}

func newCommandContext(configFlag *string, overrides *config.Overrides) *commandContext {
	return &commandContext{configFlag: configFlag, overrides: overrides}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.overrides != nil {
			if err := cfg.Apply(*c.overrides); err != nil {
				c.configErr = err
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// log returns the process logger. CLI output owns stdout, so records always
// go to the command's stderr.
func (c *commandContext) log(cmd *cobra.Command) *slog.Logger {
	c.logOnce.Do(func() {
		level, format := config.DefaultLogLevel, config.DefaultLogFormat
		if c.config != nil {
			level, format = c.config.Logging.Level, c.config.Logging.Format
		}
		out := c.logOut
		if out == nil {
			out = cmd.ErrOrStderr()
		}
		c.logger = logging.New(level, format, out, out)
	})
	return c.logger
}

func (c *commandContext) openLedger(cmd *cobra.Command) (*ledger.Ledger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(cfg.LedgerPath(), ledger.WithLogger(logging.WithComponent(c.log(cmd), "ledger")))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return l, nil
}

func (c *commandContext) withJournal(cmd *cobra.Command, fn func(*journal.SQLiteRepository) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	database, err := db.New(cfg.JournalPath(), c.log(cmd))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer database.Close()
	return fn(journal.NewRepository(database.Conn()))
}

func (c *commandContext) criteria() eligibility.Criteria {
	cfg := c.config
	return eligibility.Criteria{
		MinFileBytes: cfg.Review.MinFileBytes,
		MinTotal:     cfg.Review.MinTotal,
		MinTarget:    cfg.Review.MinTarget,
		TargetLabel:  cfg.Review.TargetLabel,
	}
}

func (c *commandContext) newFilter(cmd *cobra.Command, sink events.Sink) *eligibility.Filter {
	return eligibility.NewFilter(c.criteria(), eligibility.OpenEAF, sink, logging.WithComponent(c.log(cmd), "eligibility"))
}

func (c *commandContext) newLocator(cmd *cobra.Command) *locator.Locator {
	return locator.New(c.config.Paths.VideoDir, c.config.Review.VideoExtensions, logging.WithComponent(c.log(cmd), "locator"))
}

// newNotifier returns nil when forwarding is disabled.
func (c *commandContext) newNotifier(cmd *cobra.Command) review.Notifier {
	cfg := c.config
	if !cfg.RemoteEnabled() {
		return nil
	}
	return remote.NewHTTPClient(cfg.Remote.URL, cfg.Remote.Token, cfg.RemoteTimeout(), logging.WithComponent(c.log(cmd), "remote"))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
