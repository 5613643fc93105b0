package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/effort/pkg/config"
	"github.com/Sumatoshi-tech/effort/pkg/export"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/pipeline"
	"github.com/Sumatoshi-tech/effort/pkg/report"
)

// stdinArg selects standard input as the log source.
const stdinArg = "-"

// runCommand holds the flags of the run command. Flags override the
// configuration only when set explicitly.
type runCommand struct {
	flags *globalFlags

	rules       string
	granularity string
	level       string
	buckets     int
	showZero    bool
	onlyManip   bool
	timezone    string
	format      string
	output      string
	statsFile   string
	inspect     string
	noColor     bool
}

func newRunCommand(flags *globalFlags) *cobra.Command {
	rc := &runCommand{flags: flags}

	cmd := &cobra.Command{
		Use:   "run <log>",
		Short: "Analyze a git log export",
		Long: `Analyze the output of "git log --name-status --reverse" (plain or lz4).
Use "-" to read the log from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.rules, "rules", "r", "", "Activity rule table (CSV, YAML or JSON)")
	cmd.Flags().StringVarP(&rc.granularity, "granularity", "g", config.DefaultGranularity, "Time bucketing: day, week, month, percent")
	cmd.Flags().StringVarP(&rc.level, "level", "l", config.DefaultLevel, "Counting level: file, commit")
	cmd.Flags().IntVar(&rc.buckets, "buckets", config.DefaultBuckets, "Bucket count of percent granularity")
	cmd.Flags().BoolVar(&rc.showZero, "show-zero", false, "Include buckets without activity")
	cmd.Flags().BoolVar(&rc.onlyManip, "only-file-manipulations", false, "Keep only added, modified and deleted files")
	cmd.Flags().StringVar(&rc.timezone, "timezone", config.DefaultTimezone, "Time zone of calendar buckets")
	cmd.Flags().StringVarP(&rc.format, "format", "f", config.DefaultOutputFormat, "Output format: text, json, yaml, plot")
	cmd.Flags().StringVarP(&rc.output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&rc.statsFile, "stats-file", "", "Append the statistics record to this file")
	cmd.Flags().StringVar(&rc.inspect, "inspect", "", "Print the commits behind one curve point (label:bucket)")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored summary")

	return cmd
}

func (rc *runCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("rules") {
		cfg.Rules.Path = rc.rules
	}

	if changed("granularity") {
		cfg.Timeline.Granularity = rc.granularity
	}

	if changed("level") {
		cfg.Timeline.Level = rc.level
	}

	if changed("buckets") {
		cfg.Timeline.Buckets = rc.buckets
	}

	if changed("show-zero") {
		cfg.Timeline.ShowZero = rc.showZero
	}

	if changed("only-file-manipulations") {
		cfg.Log.OnlyFileManipulations = rc.onlyManip
	}

	if changed("timezone") {
		cfg.Log.Timezone = rc.timezone
	}

	if changed("format") {
		cfg.Output.Format = rc.format
	}

	if changed("stats-file") {
		cfg.Export.StatsFile = rc.statsFile
	}
}

func (rc *runCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(rc.flags.configPath)
	if err != nil {
		return err
	}

	rc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format := report.NormalizeFormat(cfg.Output.Format)

	var (
		inspectLabel  string
		inspectBucket int
	)

	if rc.inspect != "" {
		inspectLabel, inspectBucket, err = report.ParseInspect(rc.inspect)
		if err != nil {
			return err
		}
	}

	providers, err := rc.flags.telemetry(cmd.ErrOrStderr(), cfg, observability.ModeCLI, false)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(providers)

	runner, err := rc.newRunner(cfg, providers)
	if err != nil {
		return err
	}

	start := time.Now()

	res, err := rc.analyze(cmd, runner, args[0])
	if err != nil {
		return err
	}

	err = rc.writeOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		if rc.inspect != "" {
			return report.RenderInspect(w, report.Inspect(res.Timeline, inspectLabel, inspectBucket), format)
		}

		return report.Render(w, report.Build(res), format)
	})
	if err != nil {
		return err
	}

	if cfg.Export.StatsFile != "" {
		err = export.Append(cfg.Export.StatsFile, res.Statistics(cfg.Export.Types))
		if err != nil {
			return err
		}
	}

	rc.summary(cmd.ErrOrStderr(), res, time.Since(start), cfg.Export.StatsFile)

	return nil
}

func (rc *runCommand) newRunner(cfg *config.Config, providers observability.Providers) (*pipeline.Runner, error) {
	classifier, err := loadClassifier(cfg)
	if err != nil {
		return nil, err
	}

	parse, err := parseOptions(cfg, providers.Logger)
	if err != nil {
		return nil, err
	}

	tlCfg, err := cfg.TimelineSettings()
	if err != nil {
		return nil, err
	}

	analysis, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	return &pipeline.Runner{
		Classifier: classifier,
		Parse:      parse,
		Timeline:   tlCfg,
		Tracer:     providers.Tracer,
		Metrics:    analysis,
		Logger:     providers.Logger,
	}, nil
}

func (rc *runCommand) analyze(cmd *cobra.Command, runner *pipeline.Runner, source string) (*pipeline.Result, error) {
	if source == stdinArg {
		return runner.Run(cmd.Context(), cmd.InOrStdin())
	}

	return runner.RunFile(cmd.Context(), source)
}

// writeOutput runs render against stdout or the --output file.
func (rc *runCommand) writeOutput(stdout io.Writer, render func(io.Writer) error) (err error) {
	if rc.output == "" {
		return render(stdout)
	}

	f, err := os.Create(rc.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	defer func() {
		closeErr := f.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("close output: %w", closeErr)
		}
	}()

	return render(f)
}

func (rc *runCommand) summary(w io.Writer, res *pipeline.Result, elapsed time.Duration, statsFile string) {
	if rc.flags.quiet {
		return
	}

	okColor := color.New(color.FgGreen, color.Bold)
	warnColor := color.New(color.FgYellow)

	if rc.noColor {
		okColor.DisableColor()
		warnColor.DisableColor()
	}

	okColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, "analyzed %s commits (%s merges), %s changes in %s\n",
		humanize.Comma(res.Stats.Commits),
		humanize.Comma(res.Stats.Merges),
		humanize.Comma(res.Stats.Changes),
		elapsed.Round(time.Millisecond))

	if res.Stats.UnknownChanges > 0 {
		warnColor.Fprintf(w, "! %s changes matched no rule\n", humanize.Comma(res.Stats.UnknownChanges))
	}

	if rc.output != "" {
		fmt.Fprintf(w, "report written to %s\n", rc.output)
	}

	if statsFile != "" {
		fmt.Fprintf(w, "statistics appended to %s\n", statsFile)
	}
}
