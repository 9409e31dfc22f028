package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

const (
	metricRequestsTotal    = "rbmap.ops.total"
	metricRequestDuration  = "rbmap.op.duration.seconds"
	metricErrorsTotal      = "rbmap.errors.total"
	metricInflightRequests = "rbmap.inflight.ops"

	metricTreeSize      = "rbmap.tree.size"
	metricTreeHeight    = "rbmap.tree.height"
	metricTreeRotations = "rbmap.tree.rotations"
	metricArenaSlots    = "rbmap.arena.slots"

	attrOp     = "op"
	attrStatus = "status"
	attrTree   = "tree"
)

// Operation outcomes recorded by RecordRequest.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 1µs to 1s: single tree operations are
// microseconds, whole scripts and tool calls reach into milliseconds.
var durationBucketBoundaries = []float64{
	0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of tree operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed operation with its name, status, and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// TreeMetrics publishes the last reported shape of a tree as observable
// instruments. Update may be called from the goroutine that owns the tree
// while collection happens elsewhere.
type TreeMetrics struct {
	latest       atomic.Pointer[rbtree.Stats]
	registration metric.Registration
}

// NewTreeMetrics registers the tree instruments, labelled with the tree name.
func NewTreeMetrics(mt metric.Meter, name string) (*TreeMetrics, error) {
	size, err := mt.Int64ObservableGauge(metricTreeSize,
		metric.WithDescription("Number of elements in the tree"),
		metric.WithUnit("{element}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeSize, err)
	}

	height, err := mt.Int64ObservableGauge(metricTreeHeight,
		metric.WithDescription("Nodes on the longest root-to-leaf path"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeHeight, err)
	}

	rotations, err := mt.Int64ObservableCounter(metricTreeRotations,
		metric.WithDescription("Rotations performed by rebalancing"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTreeRotations, err)
	}

	slots, err := mt.Int64ObservableGauge(metricArenaSlots,
		metric.WithDescription("Slots held by the node allocator"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricArenaSlots, err)
	}

	tm := &TreeMetrics{}
	tm.latest.Store(&rbtree.Stats{})

	attrs := metric.WithAttributes(attribute.String(attrTree, name))

	tm.registration, err = mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := tm.latest.Load()

		obs.ObserveInt64(size, int64(stats.Len), attrs)
		obs.ObserveInt64(height, int64(stats.Height), attrs)
		obs.ObserveInt64(rotations, safeconv.MustUint64ToInt64(stats.Rotations), attrs)
		obs.ObserveInt64(slots, int64(stats.ArenaSize), attrs)

		return nil
	}, size, height, rotations, slots)
	if err != nil {
		return nil, fmt.Errorf("register tree callback: %w", err)
	}

	return tm, nil
}

// Update replaces the published snapshot.
func (tm *TreeMetrics) Update(stats rbtree.Stats) {
	tm.latest.Store(&stats)
}

// Close unregisters the instruments' callback.
func (tm *TreeMetrics) Close() error {
	if err := tm.registration.Unregister(); err != nil {
		return fmt.Errorf("unregister tree callback: %w", err)
	}

	return nil
}
