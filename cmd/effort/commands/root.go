// Package commands implements CLI command handlers for effort.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/config"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/version"
)

// ErrNoRules is returned when no rule table is configured.
var ErrNoRules = errors.New("no activity rule table: set rules.path or pass --rules")

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	quiet      bool
}

// NewRootCommand builds the effort command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "effort",
		Short: "Effort - activity and workload analysis of git history",
		Long: `Effort classifies the file changes of a git log export into activity
types, follows each type over time and measures how work is shared among
authors and activity types.

Commands:
  run       Analyze a git log export
  rules     Inspect activity rule tables
  serve     Serve analyses over HTTP
  mcp       Start the MCP server for AI agents`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: effort.yaml in ., ./config, /etc/effort)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(newRunCommand(flags))
	rootCmd.AddCommand(newRulesCommand())
	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newMCPCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// telemetry initialises observability for mode and replaces the process
// logger with one writing to w.
func (g *globalFlags) telemetry(
	w io.Writer,
	cfg *config.Config,
	mode observability.AppMode,
	prometheus bool,
) (observability.Providers, error) {
	obsCfg := observability.DefaultConfig().WithEnv()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Prometheus = prometheus
	obsCfg.LogJSON = strings.EqualFold(cfg.Logging.Format, "json")
	obsCfg.LogLevel = observability.ParseLogLevel(cfg.Logging.Level)

	switch {
	case g.verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	case g.quiet:
		obsCfg.LogLevel = slog.LevelWarn
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	providers.Logger = observability.NewLogger(w, obsCfg)

	return providers, nil
}

func shutdownTelemetry(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// loadClassifier builds the classifier of the configured rule table.
func loadClassifier(cfg *config.Config) (*activity.Classifier, error) {
	if cfg.Rules.Path == "" {
		return nil, ErrNoRules
	}

	return activity.Load(cfg.Rules.Path)
}

// parseOptions converts the log section into parser options.
func parseOptions(cfg *config.Config, logger *slog.Logger) (gitlog.Options, error) {
	maxBytes, err := cfg.MaxLogBytes()
	if err != nil {
		return gitlog.Options{}, err
	}

	return gitlog.Options{
		OnlyFileManipulations: cfg.Log.OnlyFileManipulations,
		MaxBytes:              maxBytes,
		Logger:                logger,
	}, nil
}
