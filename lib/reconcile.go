package lib

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusMismatch Status = "mismatch"
	StatusResized  Status = "resized"
	StatusError    Status = "error"
)

// Outcome is the result of reconciling one file.
type Outcome struct {
	Path      string
	Metric    string
	Status    Status
	Effective ArchiveConfig
	Observed  ArchiveConfig
	Mismatch  *Mismatch
	Err       error
}

type Summary struct {
	Processed  int
	Unchanged  int
	Mismatched int
	Resized    int
	Failed     int
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o.Status {
	case StatusOK:
		s.Unchanged++
	case StatusMismatch:
		s.Mismatched++
	case StatusResized:
		s.Mismatched++
		s.Resized++
	case StatusError:
		s.Failed++
	}
}

// Reconciler brings whisper files under Root in line with the schemas.
// Without a Resizer, or with DryRun set, differences are only reported.
type Reconciler struct {
	Root        string
	Storage     *StorageRegistry
	Aggregation *AggregationRegistry
	Store       ArchiveStore
	Resizer     Resizer
	DryRun      bool
	Logger      *zap.Logger
	Metrics     *Metrics

	// OnOutcome, when set, is called after every file.
	OnOutcome func(Outcome)
}

func (r *Reconciler) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve returns the configuration the schemas assign to metric.
func (r *Reconciler) Resolve(metric string) (ArchiveConfig, error) {
	storage, ok := r.Storage.Resolve(metric)
	if !ok || len(storage.Payload) == 0 {
		return ArchiveConfig{}, fmt.Errorf("%w: metric %q, check your storage schemas", ErrNoMatchingSchema, metric)
	}
	cfg := ArchiveConfig{
		Archives:      append([]ArchiveSpec(nil), storage.Payload...),
		StorageSchema: storage.Name,
	}
	if r.Aggregation != nil {
		if agg, ok := r.Aggregation.Resolve(metric); ok {
			cfg.XFilesFactor = agg.Payload.XFilesFactor
			cfg.AggregationMethod = agg.Payload.Method
			cfg.AggregationSchema = agg.Name
		}
	}
	return cfg, nil
}

// ReconcileFile resolves, diffs and, when needed, resizes a single file.
func (r *Reconciler) ReconcileFile(ctx context.Context, path string) Outcome {
	metric := MetricFromPath(r.Root, path)
	o := Outcome{Path: path, Metric: metric}
	logger := r.logger().With(zap.String("path", path), zap.String("metric", metric))
	logger.Debug("Processing whisper file")

	effective, err := r.Resolve(metric)
	if err != nil {
		o.Status, o.Err = StatusError, err
		return o
	}
	o.Effective = effective

	observed, err := r.Store.Info(path)
	if err != nil {
		o.Status, o.Err = StatusError, err
		return o
	}
	o.Observed = observed

	o.Mismatch = Diff(effective, observed)
	if o.Mismatch == nil {
		o.Status = StatusOK
		logger.Debug("Whisper file matches its schemas",
			zap.String("storageSchema", effective.StorageSchema),
			zap.String("aggregationSchema", effective.AggregationSchema),
		)
		return o
	}

	logger.Info("Whisper file differs from its schemas",
		zap.Stringer("mismatch", o.Mismatch),
		zap.String("storageSchema", effective.StorageSchema),
		zap.String("aggregationSchema", effective.AggregationSchema),
		zap.String("expected", FormatRetentionList(effective.Archives)),
		zap.String("actual", FormatRetentionList(observed.Archives)),
	)
	if r.Resizer == nil || r.DryRun {
		o.Status = StatusMismatch
		return o
	}

	err = r.Resizer.Resize(ctx, ResizeRequest{Path: path, Config: effective})
	if err != nil {
		o.Status, o.Err = StatusError, err
		return o
	}
	o.Status = StatusResized
	return o
}

// Run reconciles files one after the other. A failing file does not stop the
// run, the returned error combines all failures.
func (r *Reconciler) Run(ctx context.Context, files []string) (Summary, error) {
	var summary Summary
	var errs error
	start := time.Now()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		o := r.ReconcileFile(ctx, f)
		summary.add(o)
		r.Metrics.ObserveOutcome(o)
		if o.Err != nil {
			r.logger().Error("Failed to reconcile whisper file",
				zap.String("path", o.Path),
				zap.String("metric", o.Metric),
				zap.Error(o.Err),
			)
			errs = multierr.Append(errs, o.Err)
		}
		if r.OnOutcome != nil {
			r.OnOutcome(o)
		}
	}

	r.Metrics.ObserveRun(time.Since(start), time.Now())
	r.logger().Info("Reconciliation finished",
		zap.Int("processed", summary.Processed),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("mismatched", summary.Mismatched),
		zap.Int("resized", summary.Resized),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return summary, errs
}
