package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/effort/pkg/config"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/server"
)

type serveCommand struct {
	flags *globalFlags

	rules string
	host  string
	port  int
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	sc := &serveCommand{flags: flags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP",
		Long: `Start an HTTP server answering POST /v1/analyze with a report of the
git log sent as request body (plain or Content-Encoding: lz4).
Query parameters: granularity, level, buckets, show_zero, format.

Health checks are served at /healthz and /readyz and Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().StringVarP(&sc.rules, "rules", "r", "", "Activity rule table (CSV, YAML or JSON)")
	cmd.Flags().StringVar(&sc.host, "host", config.DefaultHost, "Listen host")
	cmd.Flags().IntVarP(&sc.port, "port", "p", config.DefaultPort, "Listen port")

	return cmd
}

func (sc *serveCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(sc.flags.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("rules") {
		cfg.Rules.Path = sc.rules
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host = sc.host
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = sc.port
	}

	err = cfg.Validate()
	if err != nil {
		return err
	}

	classifier, err := loadClassifier(cfg)
	if err != nil {
		return err
	}

	providers, err := sc.flags.telemetry(cmd.ErrOrStderr(), cfg, observability.ModeServe, true)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(providers)

	opts, err := serverOptions(cfg, providers)
	if err != nil {
		return err
	}

	opts.Classifier = classifier

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(opts).ListenAndServe(ctx, cfg.Server)
}

func serverOptions(cfg *config.Config, providers observability.Providers) (server.Options, error) {
	parse, err := parseOptions(cfg, providers.Logger)
	if err != nil {
		return server.Options{}, err
	}

	tlCfg, err := cfg.TimelineSettings()
	if err != nil {
		return server.Options{}, err
	}

	maxBody, err := cfg.Server.MaxBodyBytes()
	if err != nil {
		return server.Options{}, err
	}

	requests, err := observability.NewRequestMetrics(providers.Meter)
	if err != nil {
		return server.Options{}, err
	}

	analysis, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return server.Options{}, err
	}

	return server.Options{
		Parse:          parse,
		Timeline:       tlCfg,
		MaxBodyBytes:   maxBody,
		Tracer:         providers.Tracer,
		Logger:         providers.Logger,
		Requests:       requests,
		Analysis:       analysis,
		MetricsHandler: providers.MetricsHandler,
	}, nil
}
