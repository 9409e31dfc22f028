// Package commands implements CLI command handlers for rbmap.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbmap/pkg/script"
	"github.com/Sumatoshi-tech/rbmap/pkg/version"
)

// Options holds the global flags shared by every command.
type Options struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// Register adds all rbmap commands to root.
func Register(root *cobra.Command, opts *Options) {
	root.AddCommand(
		NewRunCommand(opts),
		NewCheckCommand(opts),
		NewDumpCommand(opts),
		NewStatsCommand(opts),
		NewPlotCommand(opts),
		NewDiffCommand(opts),
		NewMCPCommand(opts),
	)
}

// session is the per-invocation state: configuration, telemetry and the
// allocators that back every tree the command builds.
type session struct {
	cfg        *config.Config
	providers  observability.Providers
	red        *observability.REDMetrics
	allocators *rbtree.ShardedAllocator[int]
	gauges     []*observability.TreeMetrics
}

func (opts *Options) open(cmd *cobra.Command, mode observability.AppMode) (*session, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	return opts.start(cmd, cfg, mode)
}

// start initialises telemetry for an already loaded configuration. Extra
// metric readers are attached to the meter provider.
func (opts *Options) start(
	cmd *cobra.Command, cfg *config.Config, mode observability.AppMode, readers ...sdkmetric.Reader,
) (*session, error) {
	obsCfg := cfg.ObservabilityConfig(mode, version.Version)
	obsCfg.Logs.Output = cmd.ErrOrStderr()
	obsCfg.Readers = readers

	switch {
	case opts.Quiet:
		obsCfg.Logs.Level = slog.LevelError
	case opts.Verbose:
		obsCfg.Logs.Level = slog.LevelDebug
		obsCfg.SampleAll = true
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, err
	}

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &session{
		cfg:       cfg,
		providers: providers,
		red:       red,
		allocators: rbtree.NewShardedAllocator[int](
			cfg.Allocator.Shards, cfg.Allocator.MaxNodes, cfg.Allocator.HibernationThreshold,
		),
	}, nil
}

func (s *session) close() {
	for _, gauge := range s.gauges {
		err := gauge.Close()
		if err != nil {
			s.providers.Logger.Warn("tree metrics unregister failed", "error", err)
		}
	}

	err := s.providers.Shutdown(context.Background())
	if err != nil {
		s.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// seedFunc fills the fresh tree of a script before the replay starts.
type seedFunc func(ctx context.Context, sc *script.Script, tree *rbtree.Tree[int]) error

// replay parses the script at path and applies it to a fresh tree drawn
// from the shard owning the script name. A non-nil seed runs first.
func (s *session) replay(
	ctx context.Context, path string, runner script.Runner, seed seedFunc,
) (*rbtree.Tree[int], *script.Result, error) {
	sc, err := script.ParseFile(path, s.cfg.Script.Strict)
	if err != nil {
		return nil, nil, err
	}

	gauge, err := observability.NewTreeMetrics(s.providers.Meter, sc.Name)
	if err != nil {
		return nil, nil, err
	}

	s.gauges = append(s.gauges, gauge)

	runner.Logger = s.providers.Logger
	runner.Metrics = s.red
	runner.TreeMetrics = gauge
	runner.Tracer = s.providers.Tracer

	tree := rbtree.NewOrderedTree(s.allocators.GetShard(sc.Name))

	if seed != nil {
		err = seed(ctx, sc, tree)
		if err != nil {
			return nil, nil, err
		}
	}

	s.providers.Logger.DebugContext(ctx, "replaying script",
		"path", path,
		"ops", len(sc.Ops),
		"shards", len(s.allocators.Shards()),
	)

	result, err := runner.Run(ctx, sc, tree)

	return tree, result, err
}
