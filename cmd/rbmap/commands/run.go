package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/persist"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbmap/pkg/render"
	"github.com/Sumatoshi-tech/rbmap/pkg/script"
)

// Output formats.
const (
	FormatText = "text"
	FormatTree = "tree"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// RunCommand holds the flags of the run command.
type RunCommand struct {
	opts *Options

	format      string
	check       bool
	failFast    bool
	hibernate   bool
	metricsAddr string
	linger      time.Duration

	loadDir string
	saveDir string
	codec   string
}

// runReport is the machine-readable output of run.
type runReport struct {
	Result *script.Result `json:"result" yaml:"result"`
	Stats  rbtree.Stats   `json:"stats"  yaml:"stats"`
}

// NewRunCommand creates the run command.
func NewRunCommand(opts *Options) *cobra.Command {
	rc := &RunCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Replay a script and print a summary",
		Long: `Replay the insert/erase/find/clear operations of a YAML or JSON script
against an empty tree and print what happened.

With --metrics-addr, tree and operation metrics are exposed in Prometheus
format while the command runs; --linger keeps the endpoint up afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.format, "format", FormatText, "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&rc.check, "check", false, "Validate the tree after every mutating step")
	cmd.Flags().BoolVar(&rc.failFast, "fail-fast", false, "Treat erasing an absent value as an error")
	cmd.Flags().BoolVar(&rc.hibernate, "hibernate", false, "Compress and restore the node arena after the replay")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().DurationVar(&rc.linger, "linger", 0, "Keep serving metrics for this long after the replay")
	cmd.Flags().StringVar(&rc.loadDir, "load-dir", "", "Seed the tree from the script's snapshot in this directory")
	cmd.Flags().StringVar(&rc.saveDir, "save-dir", "", "Write a snapshot of the final tree to this directory")
	cmd.Flags().StringVar(&rc.codec, "codec", persist.CodecJSON, "Snapshot codec: json, yaml, gob")

	return cmd
}

// NewCheckCommand creates the check command: a run with validation after
// every mutation and a pass/fail verdict.
func NewCheckCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <script>",
		Short: "Replay a script, validating the tree after every mutation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close()

			tree, result, err := sess.replay(cmd.Context(), args[0], script.Runner{Check: true}, nil)
			if err != nil {
				if !opts.Quiet {
					color.New(color.FgRed, color.Bold).Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", args[0], err)
				}

				return err
			}

			if !opts.Quiet {
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "OK %s: %d ops, %d values, height %d\n",
					result.Name, result.Ops, tree.Len(), tree.Stats().Height)
			}

			return nil
		},
	}
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	switch rc.format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, rc.format)
	}

	codec, err := persist.CodecByName(rc.codec)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(rc.opts.ConfigPath)
	if err != nil {
		return err
	}

	addr := rc.metricsAddr
	if addr == "" {
		addr = cfg.Observability.MetricsAddr
	}

	var (
		endpoint *observability.PrometheusEndpoint
		readers  []sdkmetric.Reader
	)

	if addr != "" {
		endpoint, err = observability.NewPrometheusEndpoint()
		if err != nil {
			return err
		}

		readers = append(readers, endpoint.Reader)
	}

	sess, err := rc.opts.start(cmd, cfg, observability.ModeCLI, readers...)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serveDone := make(chan error, 1)

	if endpoint != nil {
		go func() {
			serveDone <- endpoint.Serve(ctx, addr, sess.providers.Logger)
		}()
	} else {
		serveDone <- nil
	}

	tree, result, err := sess.replay(ctx, args[0], script.Runner{Check: rc.check, FailFast: rc.failFast},
		rc.seed(sess, codec))
	if err != nil {
		return err
	}

	if rc.saveDir != "" {
		snapshots := persist.NewPersister[int](result.Name, codec)

		err = snapshots.Save(rc.saveDir, tree)
		if err != nil {
			return err
		}

		sess.providers.Logger.Info("snapshot saved", "path", snapshots.Path(rc.saveDir), "len", tree.Len())
	}

	if rc.hibernate {
		err = roundTripArena(sess, tree)
		if err != nil {
			return err
		}
	}

	err = writeRunReport(cmd.OutOrStdout(), rc.format, runReport{Result: result, Stats: tree.Stats()})
	if err != nil {
		return err
	}

	if endpoint != nil && rc.linger > 0 {
		select {
		case <-time.After(rc.linger):
		case <-ctx.Done():
		}
	}

	cancel()

	return <-serveDone
}

// seed restores the snapshot named after the script when --load-dir is set.
func (rc *RunCommand) seed(sess *session, codec persist.Codec) seedFunc {
	if rc.loadDir == "" {
		return nil
	}

	return func(ctx context.Context, sc *script.Script, tree *rbtree.Tree[int]) error {
		snapshots := persist.NewPersister[int](sc.Name, codec)

		restored, err := snapshots.Load(rc.loadDir, tree)
		if err != nil {
			return err
		}

		sess.providers.Logger.InfoContext(ctx, "snapshot loaded", "path", snapshots.Path(rc.loadDir), "values", restored)

		return nil
	}
}

// roundTripArena hibernates every shard, boots them again and revalidates
// the tree.
func roundTripArena(sess *session, tree *rbtree.Tree[int]) error {
	start := time.Now()

	sess.allocators.Hibernate()
	sess.allocators.Boot()

	sess.providers.Logger.Info("arena round-tripped",
		"shards", len(sess.allocators.Shards()),
		"nodes", sess.allocators.Used(),
		"elapsed", time.Since(start),
	)

	err := tree.Validate()
	if err != nil {
		return fmt.Errorf("after hibernation: %w", err)
	}

	return nil
}

func writeRunReport(w io.Writer, format string, report runReport) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		return encoder.Encode(report)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()

		return encoder.Encode(report)
	}

	res := report.Result

	fmt.Fprintf(w, "%s: %d ops (inserted %d, duplicates %d, erased %d, missing %d, found %d, not found %d, clears %d)\n",
		res.Name, res.Ops, res.Inserted, res.Duplicates, res.Erased, res.Missing, res.Found, res.NotFound, res.Clears)

	return render.StatsTable(w, report.Stats)
}
