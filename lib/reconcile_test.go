package lib

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	whisper "github.com/go-graphite/go-whisper"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStore struct {
	configs map[string]ArchiveConfig
}

func (s *fakeStore) Info(path string) (ArchiveConfig, error) {
	cfg, ok := s.configs[path]
	if !ok {
		return ArchiveConfig{}, errors.New("no such file " + path)
	}
	return cfg, nil
}

type fakeResizer struct {
	requests []ResizeRequest
	failOn   map[string]error
}

func (r *fakeResizer) Resize(_ context.Context, req ResizeRequest) error {
	if err, ok := r.failOn[req.Path]; ok {
		return err
	}
	r.requests = append(r.requests, req)
	return nil
}

func defaultOnlyRegistries(t *testing.T) (*StorageRegistry, *AggregationRegistry) {
	t.Helper()
	storage, err := LoadStorageSchemas(mustSections(t, "[default]\nmatch-all = true\nretentions = 60s:7d\n"), LoadOptions{})
	require.NoError(t, err)
	return storage, NewRegistry("aggregation", nil, DefaultAggregationSchema())
}

func TestReconciler_DefaultSchemaResize(t *testing.T) {
	storage, aggregation := defaultOnlyRegistries(t)
	store := &fakeStore{configs: map[string]ArchiveConfig{
		"/w/servers/web01/cpu.wsp": {Archives: []ArchiveSpec{{60, 1440}}},
	}}
	resizer := &fakeResizer{}
	r := &Reconciler{Root: "/w", Storage: storage, Aggregation: aggregation, Store: store, Resizer: resizer}

	o := r.ReconcileFile(context.Background(), "/w/servers/web01/cpu.wsp")
	require.NoError(t, o.Err)
	assert.Equal(t, StatusResized, o.Status)
	assert.Equal(t, "servers.web01.cpu", o.Metric)
	require.NotNil(t, o.Mismatch)
	assert.Equal(t, "points", o.Mismatch.Field)

	require.Len(t, resizer.requests, 1)
	assert.Equal(t, "/w/servers/web01/cpu.wsp", resizer.requests[0].Path)
	assert.Equal(t, []ArchiveSpec{{60, 10080}}, resizer.requests[0].Config.Archives)
	assert.Equal(t, "default", resizer.requests[0].Config.StorageSchema)
}

func TestReconciler_UpToDateFileIsLeftAlone(t *testing.T) {
	storage, err := LoadStorageSchemas(mustSections(t, "[default]\nmatch-all = true\nretentions = 60s:7d\n"), LoadOptions{})
	require.NoError(t, err)
	aggregation, err := LoadAggregationSchemas(mustSections(t, "[all]\nmatch-all = true\nxfilesfactor = 0.5\naggregationmethod = average\n"), LoadOptions{})
	require.NoError(t, err)

	store := &fakeStore{configs: map[string]ArchiveConfig{
		"/w/a.wsp": {Archives: []ArchiveSpec{{60, 10080}}, XFilesFactor: xff(0.5), AggregationMethod: AggregationAverage},
	}}
	resizer := &fakeResizer{}
	r := &Reconciler{Root: "/w", Storage: storage, Aggregation: aggregation, Store: store, Resizer: resizer}

	o := r.ReconcileFile(context.Background(), "/w/a.wsp")
	assert.Equal(t, StatusOK, o.Status)
	assert.Nil(t, o.Mismatch)
	assert.Empty(t, resizer.requests)
}

func TestReconciler_ResolveUsesBothRegistries(t *testing.T) {
	storage, err := LoadStorageSchemas(mustSections(t, `
[stats]
pattern = ^stats\.
retentions = 10s:1d,1m:30d
`), LoadOptions{})
	require.NoError(t, err)
	aggregation, err := LoadAggregationSchemas(mustSections(t, `
[count]
pattern = \.count$
xFilesFactor = 0
aggregationMethod = sum
`), LoadOptions{})
	require.NoError(t, err)
	r := &Reconciler{Storage: storage, Aggregation: aggregation}

	cfg, err := r.Resolve("stats.requests.count")
	require.NoError(t, err)
	assert.Equal(t, []ArchiveSpec{{10, 8640}, {60, 43200}}, cfg.Archives)
	assert.Equal(t, AggregationSum, cfg.AggregationMethod)
	assert.Equal(t, float32(0), *cfg.XFilesFactor)
	assert.Equal(t, "stats", cfg.StorageSchema)
	assert.Equal(t, "count", cfg.AggregationSchema)

	cfg, err = r.Resolve("other.gauge")
	require.NoError(t, err)
	assert.Equal(t, []ArchiveSpec{{60, 10080}}, cfg.Archives)
	assert.Nil(t, cfg.XFilesFactor)
	assert.Equal(t, AggregationUnset, cfg.AggregationMethod)
	assert.Equal(t, "default", cfg.AggregationSchema)
}

func TestReconciler_NoMatchingSchema(t *testing.T) {
	// a fallback without archives cannot resolve anything
	storage := NewRegistry("storage", nil, Schema[[]ArchiveSpec]{Name: "empty", Matcher: DefaultMatcher{}})
	store := &fakeStore{configs: map[string]ArchiveConfig{"/w/a.wsp": {}}}
	r := &Reconciler{Root: "/w", Storage: storage, Store: store, Resizer: &fakeResizer{}}

	o := r.ReconcileFile(context.Background(), "/w/a.wsp")
	assert.Equal(t, StatusError, o.Status)
	assert.ErrorIs(t, o.Err, ErrNoMatchingSchema)
}

func TestReconciler_ResolveDoesNotShareArchives(t *testing.T) {
	storage, aggregation := defaultOnlyRegistries(t)
	r := &Reconciler{Storage: storage, Aggregation: aggregation}

	cfg, err := r.Resolve("a")
	require.NoError(t, err)
	cfg.Archives[0].Points = 1

	cfg, err = r.Resolve("a")
	require.NoError(t, err)
	assert.Equal(t, 10080, cfg.Archives[0].Points)
}

func TestReconciler_DryRunDoesNotResize(t *testing.T) {
	storage, aggregation := defaultOnlyRegistries(t)
	store := &fakeStore{configs: map[string]ArchiveConfig{"/w/a.wsp": {Archives: []ArchiveSpec{{60, 1440}}}}}
	resizer := &fakeResizer{}
	r := &Reconciler{Root: "/w", Storage: storage, Aggregation: aggregation, Store: store, Resizer: resizer, DryRun: true}

	o := r.ReconcileFile(context.Background(), "/w/a.wsp")
	assert.Equal(t, StatusMismatch, o.Status)
	assert.Empty(t, resizer.requests)
}

func TestReconciler_RunIsolatesFailures(t *testing.T) {
	storage, aggregation := defaultOnlyRegistries(t)
	store := &fakeStore{configs: map[string]ArchiveConfig{
		"/w/a.wsp": {Archives: []ArchiveSpec{{60, 1440}}},
		"/w/b.wsp": {Archives: []ArchiveSpec{{60, 1440}}},
		"/w/c.wsp": {Archives: []ArchiveSpec{{60, 10080}}},
		"/w/d.wsp": {Archives: []ArchiveSpec{{60, 1440}}},
	}}
	resizer := &fakeResizer{failOn: map[string]error{
		"/w/b.wsp": ErrResizeInvocation,
	}}
	core, logs := observer.New(zapcore.ErrorLevel)
	metrics := NewMetrics()
	var seen []string
	r := &Reconciler{
		Root:        "/w",
		Storage:     storage,
		Aggregation: aggregation,
		Store:       store,
		Resizer:     resizer,
		Logger:      zap.New(core),
		Metrics:     metrics,
		OnOutcome: func(o Outcome) {
			seen = append(seen, o.Metric+"="+string(o.Status))
		},
	}

	files := []string{"/w/a.wsp", "/w/b.wsp", "/w/missing.wsp", "/w/c.wsp", "/w/d.wsp"}
	summary, err := r.Run(context.Background(), files)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, ErrResizeInvocation)

	assert.Equal(t, Summary{Processed: 5, Unchanged: 1, Mismatched: 2, Resized: 2, Failed: 2}, summary)
	assert.Equal(t, []string{"a=resized", "b=error", "missing=error", "c=ok", "d=resized"}, seen)
	require.Len(t, resizer.requests, 2)
	assert.Equal(t, "/w/a.wsp", resizer.requests[0].Path)
	assert.Equal(t, "/w/d.wsp", resizer.requests[1].Path)

	assert.Equal(t, 2, logs.FilterMessage("Failed to reconcile whisper file").Len())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.filesTotal.WithLabelValues("resized")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.filesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.filesTotal.WithLabelValues("ok")))
}

func TestReconciler_RunStopsOnCancel(t *testing.T) {
	storage, aggregation := defaultOnlyRegistries(t)
	store := &fakeStore{configs: map[string]ArchiveConfig{"/w/a.wsp": {Archives: []ArchiveSpec{{60, 10080}}}}}
	r := &Reconciler{Root: "/w", Storage: storage, Aggregation: aggregation, Store: store}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := r.Run(ctx, []string{"/w/a.wsp"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Processed)
}

func TestReconciler_EndToEndWithWhisperFiles(t *testing.T) {
	root := t.TempDir()
	confDir := t.TempDir()

	schemas := filepath.Join(confDir, "storage-schemas.conf")
	require.NoError(t, os.WriteFile(schemas, []byte(`
[vip]
list = vip
retentions = 10s:1d,1m:7d

[default]
match-all = true
retentions = 60s:7d
`), 0o644))
	aggregationConf := filepath.Join(confDir, "storage-aggregation.conf")
	require.NoError(t, os.WriteFile(aggregationConf, []byte(`
[sums]
pattern = \.count$
xFilesFactor = 0
aggregationMethod = sum

[default]
match-all = true
xFilesFactor = 0.5
aggregationMethod = average
`), 0o644))

	createWhisper(t, filepath.Join(root, "servers", "web01", "cpu.wsp"), []ArchiveSpec{{60, 1440}}, whisper.Average, 0.5)
	createWhisper(t, filepath.Join(root, "servers", "web01", "mem.wsp"), []ArchiveSpec{{60, 10080}}, whisper.Average, 0.5)
	createWhisper(t, filepath.Join(root, "requests.count.wsp"), []ArchiveSpec{{60, 10080}}, whisper.Average, 0.5)
	createWhisper(t, filepath.Join(root, "vip", "metric.wsp"), []ArchiveSpec{{60, 10080}}, whisper.Average, 0.5)

	// the vip list does not exist, so vip.metric falls through to the default
	opts := LoadOptions{Fs: afero.NewOsFs(), ListsDir: filepath.Join(confDir, "lists")}
	storage, err := LoadStorageSchemasFile(schemas, opts)
	require.NoError(t, err)
	aggregation, err := LoadAggregationSchemasFile(aggregationConf, opts)
	require.NoError(t, err)

	files, err := FindWhisperFiles(root, nil)
	require.NoError(t, err)
	require.Len(t, files, 4)

	resizer := &fakeResizer{}
	r := &Reconciler{Root: root, Storage: storage, Aggregation: aggregation, Store: WhisperStore{}, Resizer: resizer}
	summary, err := r.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Resized)
	assert.Equal(t, 2, summary.Unchanged)

	byMetric := map[string]ResizeRequest{}
	for _, req := range resizer.requests {
		byMetric[MetricFromPath(root, req.Path)] = req
	}
	require.Contains(t, byMetric, "servers.web01.cpu")
	assert.Equal(t, []ArchiveSpec{{60, 10080}}, byMetric["servers.web01.cpu"].Config.Archives)

	require.Contains(t, byMetric, "requests.count")
	assert.Equal(t, AggregationSum, byMetric["requests.count"].Config.AggregationMethod)
	assert.Equal(t, float32(0), *byMetric["requests.count"].Config.XFilesFactor)

	for metric := range byMetric {
		assert.False(t, strings.HasPrefix(metric, "vip"), metric)
	}
}
