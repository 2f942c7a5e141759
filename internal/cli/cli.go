// Package cli implements the blockworld command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockworld/pkg/buildinfo"
	"github.com/matzehuels/blockworld/pkg/cache"
	"github.com/matzehuels/blockworld/pkg/httputil"
	"github.com/matzehuels/blockworld/pkg/pipeline"
	"github.com/matzehuels/blockworld/pkg/txdata"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "blockworld"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath overrides the default config file location.
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Blockworld turns Bitcoin blocks into explorable 3D parcels",
		Long:         `Blockworld fetches the transactions of a Bitcoin block, packs them into a grid of square parcels sized by transaction value, and emits the result as MML markup for 3D scene viewers.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default: $XDG_CONFIG_HOME/blockworld/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// sourceOpts selects where transaction values come from.
type sourceOpts struct {
	file    string // overrides the configured source with a local file
	noCache bool
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg Config, so sourceOpts) (*pipeline.Runner, error) {
	cc, err := cfg.cacheConfig(so.noCache)
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, cc)
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without", "backend", cc.Backend, "error", err)
		store = cache.NewNullCache()
	}

	src, err := newSource(cfg.Source, so.file)
	if err != nil {
		store.Close()
		return nil, err
	}
	return pipeline.NewRunner(store, nil, src, c.Logger), nil
}

// newSource prefers an explicit file, then the configured file, then the
// configured service.
func newSource(sc SourceConfig, file string) (txdata.Source, error) {
	if file == "" {
		file = sc.File
	}
	if file != "" {
		return txdata.FileSource{Path: file}, nil
	}
	if sc.URL == "" {
		return nil, errNoSource
	}
	client := txdata.NewClient(sc.URL, sc.APIKey)
	if sc.Timeout.Duration > 0 {
		client.WithHTTPClient(httputil.NewClient(sc.Timeout.Duration))
	}
	return client, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/blockworld/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory using XDG standard (~/.config/blockworld/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
