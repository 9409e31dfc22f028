package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbmap/pkg/render"
	"github.com/Sumatoshi-tech/rbmap/pkg/script"
)

const (
	defaultPlotOutput = "depth.html"
	plotFilePerm      = 0o644
)

// ErrNoOutput is returned when plot gets an empty --output.
var ErrNoOutput = errors.New("output file is required (use --output)")

// NewDumpCommand creates the dump command.
func NewDumpCommand(opts *Options) *cobra.Command {
	var (
		format  string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "dump <script>",
		Short: "Print the tree shape after replaying a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case FormatTree, FormatJSON, FormatYAML:
			default:
				return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
			}

			tree, err := replayOnce(cmd, opts, args[0])
			if err != nil {
				return err
			}

			return writeDump(cmd.OutOrStdout(), format, tree, !noColor && !color.NoColor)
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatTree, "Output format: tree, json, yaml")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored tree output")

	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <script>",
		Short: "Print tree and arena statistics after replaying a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := replayOnce(cmd, opts, args[0])
			if err != nil {
				return err
			}

			return render.StatsTable(cmd.OutOrStdout(), tree.Stats())
		},
	}
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(opts *Options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plot <script>",
		Short: "Render the depth histogram of the replayed tree as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return ErrNoOutput
			}

			tree, err := replayOnce(cmd, opts, args[0])
			if err != nil {
				return err
			}

			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, plotFilePerm)
			if err != nil {
				return fmt.Errorf("create plot: %w", err)
			}

			err = render.DepthChart(file, tree, args[0])
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}

			if err != nil {
				return fmt.Errorf("write plot: %w", err)
			}

			if !opts.Quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "plot written to %s\n", output)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultPlotOutput, "output HTML file")

	return cmd
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <script-a> <script-b>",
		Short: "Compare the contents of two replayed scripts",
		Args:  cobra.ExactArgs(2), //nolint:mnd // two scripts.
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close()

			before, _, err := sess.replay(cmd.Context(), args[0], script.Runner{}, nil)
			if err != nil {
				return err
			}

			after, _, err := sess.replay(cmd.Context(), args[1], script.Runner{}, nil)
			if err != nil {
				return err
			}

			diff := render.Diff(before, after)
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "identical")

				return nil
			}

			writeDiff(cmd.OutOrStdout(), diff)

			return nil
		},
	}
}

// replayOnce opens a session, replays one script and closes the session.
func replayOnce(cmd *cobra.Command, opts *Options, path string) (*rbtree.Tree[int], error) {
	sess, err := opts.open(cmd, observability.ModeCLI)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	tree, _, err := sess.replay(cmd.Context(), path, script.Runner{}, nil)

	return tree, err
}

func writeDump(w io.Writer, format string, tree *rbtree.Tree[int], colored bool) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(tree.Dump())
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()

		return encoder.Encode(tree.Dump())
	default:
		return render.Tree(w, tree, colored)
	}
}

func writeDiff(w io.Writer, diff string) {
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)

	for line := range strings.Lines(diff) {
		switch {
		case strings.HasPrefix(line, "- "):
			removed.Fprint(w, line)
		case strings.HasPrefix(line, "+ "):
			added.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
