package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/effort/pkg/config"
	"github.com/Sumatoshi-tech/effort/pkg/mcp"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
)

func newMCPCommand(flags *globalFlags) *cobra.Command {
	var (
		rules string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes effort as tools that AI agents can discover and invoke:
  - effort_analyze: activity timeline and workload report of a git log
  - effort_classify: activity label, matching rules and language of file paths`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("rules") {
				cfg.Rules.Path = rules
			}

			classifier, err := loadClassifier(cfg)
			if err != nil {
				return err
			}

			// stdout carries the protocol, so logs are always JSON on stderr.
			cfg.Logging.Format = "json"
			if debug {
				cfg.Logging.Level = "debug"
			}

			providers, err := flags.telemetry(cmd.ErrOrStderr(), cfg, observability.ModeMCP, false)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(providers)

			deps, err := mcpDeps(cfg, providers)
			if err != nil {
				return err
			}

			deps.Classifier = classifier

			return mcp.NewServer(deps).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&rules, "rules", "r", "", "Activity rule table (CSV, YAML or JSON)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}

func mcpDeps(cfg *config.Config, providers observability.Providers) (mcp.ServerDeps, error) {
	opts, err := serverOptions(cfg, providers)
	if err != nil {
		return mcp.ServerDeps{}, err
	}

	return mcp.ServerDeps{
		Parse:    opts.Parse,
		Timeline: opts.Timeline,
		Logger:   opts.Logger,
		Requests: opts.Requests,
		Analysis: opts.Analysis,
		Tracer:   opts.Tracer,
	}, nil
}
