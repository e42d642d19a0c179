package lib

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry is an ordered list of schemas ending with a match-all fallback.
// The first schema that matches a metric wins.
type Registry[T any] struct {
	kind    string
	schemas []Schema[T]
}

type (
	StorageRegistry     = Registry[[]ArchiveSpec]
	AggregationRegistry = Registry[AggregationPolicy]
)

// NewRegistry keeps schemas in the given order and appends fallback last.
func NewRegistry[T any](kind string, schemas []Schema[T], fallback Schema[T]) *Registry[T] {
	out := make([]Schema[T], 0, len(schemas)+1)
	out = append(out, schemas...)
	out = append(out, fallback)
	return &Registry[T]{kind: kind, schemas: out}
}

func (r *Registry[T]) Kind() string {
	return r.kind
}

func (r *Registry[T]) Len() int {
	return len(r.schemas)
}

func (r *Registry[T]) Schemas() []Schema[T] {
	out := make([]Schema[T], len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Resolve returns the first schema matching metric.
func (r *Registry[T]) Resolve(metric string) (Schema[T], bool) {
	if i := r.index(metric); i >= 0 {
		return r.schemas[i], true
	}
	var zero Schema[T]
	return zero, false
}

func (r *Registry[T]) index(metric string) int {
	for i := range r.schemas {
		if r.schemas[i].Matches(metric) {
			return i
		}
	}
	return -1
}

// DefaultStorageSchema keeps 7 days of minutely data for unclassified metrics.
func DefaultStorageSchema() Schema[[]ArchiveSpec] {
	return Schema[[]ArchiveSpec]{
		Name:    "default",
		Matcher: DefaultMatcher{},
		Payload: []ArchiveSpec{{SecondsPerPoint: 60, Points: 60 * 24 * 7}},
	}
}

// DefaultAggregationSchema leaves both aggregation settings unset.
func DefaultAggregationSchema() Schema[AggregationPolicy] {
	return Schema[AggregationPolicy]{
		Name:    "default",
		Matcher: DefaultMatcher{},
	}
}

type LoadOptions struct {
	// Fs and ListsDir locate the files behind "list" schemas.
	Fs                  afero.Fs
	ListsDir            string
	ListRefreshInterval time.Duration
	Logger              *zap.Logger
}

func (o LoadOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o LoadOptions) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

func buildMatcher(sec Section, opts LoadOptions) (Matcher, error) {
	if v, ok := sec.Get("match-all"); ok {
		matchAll, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: match-all must be a boolean, got %q", ErrInvalidSchema, v)
		}
		if matchAll {
			return DefaultMatcher{}, nil
		}
	}
	if v, ok := sec.Get("pattern"); ok && v != "" {
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("%w: failed compiling pattern %q: %v", ErrInvalidSchema, v, err)
		}
		return PatternMatcher{Pattern: re}, nil
	}
	if v, ok := sec.Get("list"); ok && v != "" {
		list := NewMembershipList(opts.fs(), filepath.Join(opts.ListsDir, v),
			WithRefreshInterval(opts.ListRefreshInterval),
			WithListLogger(opts.logger().With(zap.String("list", v))),
		)
		opts.logger().Info("Membership list loaded", zap.String("list", v), zap.Int("members", list.Len()))
		return ListMatcher{Name: v, List: list}, nil
	}
	return nil, fmt.Errorf("%w: one of match-all, pattern or list is required", ErrInvalidSchema)
}

// LoadStorageSchemas turns storage-schemas.conf sections into a registry.
// Invalid sections are logged and left out, the returned error combines them.
func LoadStorageSchemas(sections []Section, opts LoadOptions) (*StorageRegistry, error) {
	logger := opts.logger()
	var schemas []Schema[[]ArchiveSpec]
	var errs error

	for _, sec := range sections {
		archives, matcher, err := storageSection(sec, opts)
		if err != nil {
			logger.Warn("Invalid storage schema found, skipping",
				zap.String("section", sec.Name),
				zap.Int("line", sec.LineNo),
				zap.Error(err),
			)
			errs = multierr.Append(errs, &SectionError{Section: sec.Name, Line: sec.LineNo, Err: err})
			continue
		}
		schemas = append(schemas, Schema[[]ArchiveSpec]{
			Name:    sec.Name,
			Matcher: matcher,
			Payload: archives,
			LineNo:  sec.LineNo,
		})
	}
	return NewRegistry("storage", schemas, DefaultStorageSchema()), errs
}

func storageSection(sec Section, opts LoadOptions) ([]ArchiveSpec, Matcher, error) {
	raw, ok := sec.Get("retentions")
	if !ok {
		return nil, nil, fmt.Errorf("%w: retentions is required", ErrInvalidRetentionDefinition)
	}
	archives, err := ParseRetentionDefs(raw)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateArchiveList(archives); err != nil {
		return nil, nil, err
	}
	// the matcher comes last so no list file is opened for a broken section
	matcher, err := buildMatcher(sec, opts)
	if err != nil {
		return nil, nil, err
	}
	return archives, matcher, nil
}

// LoadAggregationSchemas turns storage-aggregation.conf sections into a registry.
// Invalid sections are logged and left out, the returned error combines them.
func LoadAggregationSchemas(sections []Section, opts LoadOptions) (*AggregationRegistry, error) {
	logger := opts.logger()
	var schemas []Schema[AggregationPolicy]
	var errs error

	for _, sec := range sections {
		policy, matcher, err := aggregationSection(sec, opts)
		if err != nil {
			logger.Warn("Invalid aggregation schema found, skipping",
				zap.String("section", sec.Name),
				zap.Int("line", sec.LineNo),
				zap.Error(err),
			)
			errs = multierr.Append(errs, &SectionError{Section: sec.Name, Line: sec.LineNo, Err: err})
			continue
		}
		schemas = append(schemas, Schema[AggregationPolicy]{
			Name:    sec.Name,
			Matcher: matcher,
			Payload: policy,
			LineNo:  sec.LineNo,
		})
	}
	return NewRegistry("aggregation", schemas, DefaultAggregationSchema()), errs
}

func aggregationSection(sec Section, opts LoadOptions) (AggregationPolicy, Matcher, error) {
	var policy AggregationPolicy
	if v, ok := sec.Get("xfilesfactor"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return policy, nil, fmt.Errorf("%w: xFilesFactor %q is not a number", ErrInvalidAggregationValue, v)
		}
		if !(f >= 0 && f <= 1) {
			return policy, nil, fmt.Errorf("%w: xFilesFactor %q is outside [0, 1]", ErrInvalidAggregationValue, v)
		}
		xff := float32(f)
		policy.XFilesFactor = &xff
	}
	if v, ok := sec.Get("aggregationmethod"); ok {
		method, err := ParseAggregationMethod(v)
		if err != nil {
			return policy, nil, err
		}
		policy.Method = method
	}
	matcher, err := buildMatcher(sec, opts)
	if err != nil {
		return policy, nil, err
	}
	return policy, matcher, nil
}

// LoadStorageSchemasFile reads and loads storage-schemas.conf. Failing to read
// the file is fatal, invalid sections are not.
func LoadStorageSchemasFile(path string, opts LoadOptions) (*StorageRegistry, error) {
	sections, err := ParseSectionsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage schemas %s: %w", path, err)
	}
	return LoadStorageSchemas(sections, opts)
}

// LoadAggregationSchemasFile reads and loads storage-aggregation.conf. A file
// that cannot be read leaves only the default aggregation schema.
func LoadAggregationSchemasFile(path string, opts LoadOptions) (*AggregationRegistry, error) {
	sections, err := ParseSectionsFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			opts.logger().Info("Aggregation config not found, ignoring", zap.String("path", path))
		} else {
			opts.logger().Warn("Failed to read aggregation config, ignoring",
				zap.String("path", path), zap.Error(err))
		}
		return NewRegistry("aggregation", nil, DefaultAggregationSchema()), nil
	}
	return LoadAggregationSchemas(sections, opts)
}
