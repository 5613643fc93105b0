package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect activity rule tables",
	}

	cmd.AddCommand(newRulesCheckCommand())

	return cmd
}

func newRulesCheckCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "check <rules> [paths...]",
		Short: "Validate a rule table and classify sample paths",
		Long: `Load a rule table, report its labels and classify every given path.
Rules are evaluated in file order and the last matching rule wins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkRules(cmd, args[0], args[1:], noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func checkRules(cmd *cobra.Command, rulesPath string, paths []string, noColor bool) error {
	out := cmd.OutOrStdout()

	okColor := color.New(color.FgGreen, color.Bold)
	failColor := color.New(color.FgRed, color.Bold)
	labelColor := color.New(color.FgCyan)
	unknownColor := color.New(color.FgYellow)

	if noColor {
		for _, c := range []*color.Color{okColor, failColor, labelColor, unknownColor} {
			c.DisableColor()
		}
	}

	classifier, err := activity.Load(rulesPath)
	if err != nil {
		failColor.Fprint(out, "✗ ")
		fmt.Fprintln(out, rulesPath)

		return err
	}

	okColor.Fprint(out, "✓ ")
	fmt.Fprintf(out, "%s: %d rules, labels: %s\n", rulesPath, len(classifier.Rules()), strings.Join(classifier.Labels(), ", "))

	for _, filePath := range paths {
		label := classifier.Classify(filePath)

		fmt.Fprintf(out, "  %s -> ", filePath)

		if label == gitlog.UnknownLabel {
			unknownColor.Fprintln(out, label)

			continue
		}

		labelColor.Fprint(out, label)

		if matches := classifier.Matches(filePath); len(matches) > 1 {
			fmt.Fprintf(out, " (matched %s)", strings.Join(matches, ", "))
		}

		fmt.Fprintln(out)
	}

	return nil
}
