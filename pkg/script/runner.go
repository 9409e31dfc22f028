package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const spanRun = "rbmap.script.run"

// Result summarises a replay.
type Result struct {
	Name       string `json:"name"       yaml:"name"`
	Ops        int    `json:"ops"        yaml:"ops"`
	Inserted   int    `json:"inserted"   yaml:"inserted"`
	Duplicates int    `json:"duplicates" yaml:"duplicates"`
	Erased     int    `json:"erased"     yaml:"erased"`
	Missing    int    `json:"missing"    yaml:"missing"`
	Found      int    `json:"found"      yaml:"found"`
	NotFound   int    `json:"not_found"  yaml:"not_found"`
	Clears     int    `json:"clears"     yaml:"clears"`
}

// Runner replays scripts. The zero value is ready to use; all dependencies
// are optional.
type Runner struct {
	Logger      *slog.Logger
	Metrics     *observability.REDMetrics
	TreeMetrics *observability.TreeMetrics
	Tracer      trace.Tracer

	// Check validates every invariant after each mutating step.
	Check bool

	// FailFast turns the erase of an absent value into an error.
	FailFast bool
}

// Run applies the steps of script to tree in order. Allocation failures and,
// with Check, invariant violations always stop the replay; the returned
// Result covers the steps applied so far.
func (r *Runner) Run(ctx context.Context, script *Script, tree *rbtree.Tree[int]) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	tracer := r.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	ctx, span := tracer.Start(ctx, spanRun, trace.WithAttributes(
		attribute.String("script.name", script.Name),
		attribute.Int("script.ops", len(script.Ops)),
	))
	defer span.End()

	result := &Result{Name: script.Name}

	for idx, step := range script.Ops {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("replay interrupted: %w", err)
		}

		err := r.apply(ctx, logger, step, tree, result)
		if err == nil && r.Check && step.Op != OpFind {
			err = tree.Validate()
		}

		if r.TreeMetrics != nil {
			r.TreeMetrics.Update(tree.Stats())
		}

		if err != nil {
			err = fmt.Errorf("step %d (%s): %w", idx, step, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "script step failed", "script", script.Name, "step", idx, "error", err)

			return result, err
		}
	}

	span.SetAttributes(attribute.Int("tree.len", tree.Len()))
	logger.InfoContext(ctx, "script replayed",
		"script", script.Name,
		"ops", result.Ops,
		"len", tree.Len(),
		"missing", result.Missing,
	)

	return result, nil
}

func (r *Runner) apply(ctx context.Context, logger *slog.Logger, step Step, tree *rbtree.Tree[int], result *Result) error {
	start := time.Now()
	status := observability.StatusOK

	defer func() {
		if r.Metrics != nil {
			r.Metrics.RecordRequest(ctx, string(step.Op), status, time.Since(start))
		}
	}()

	result.Ops++

	switch step.Op {
	case OpInsert:
		inserted, err := tree.Insert(step.Value)
		if err != nil {
			status = observability.StatusError

			return fmt.Errorf("insert: %w", err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	case OpErase:
		err := tree.Erase(step.Value)

		switch {
		case err == nil:
			result.Erased++
		case errors.Is(err, rbtree.ErrNotFound):
			status = observability.StatusError
			result.Missing++

			if r.FailFast {
				return err
			}

			logger.WarnContext(ctx, "erase of absent value", "value", step.Value)
		default:
			status = observability.StatusError

			return err
		}
	case OpFind:
		if tree.Contains(step.Value) {
			result.Found++
		} else {
			result.NotFound++
		}
	case OpClear:
		tree.Clear()
		result.Clears++
	default:
		status = observability.StatusError

		return fmt.Errorf("%w %q", ErrUnknownOp, step.Op)
	}

	return nil
}
