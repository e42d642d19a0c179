package lib

import (
	"fmt"
	"strconv"
	"strings"
)

// ArchiveSpec is one retention tier of a whisper file.
type ArchiveSpec struct {
	SecondsPerPoint int
	Points          int
}

// RetentionSecs is the time span covered by the archive.
func (spec ArchiveSpec) RetentionSecs() int {
	return spec.SecondsPerPoint * spec.Points
}

// String renders the archive the way whisper-resize expects it on the command line.
func (spec ArchiveSpec) String() string {
	return fmt.Sprintf("%d:%d", spec.SecondsPerPoint, spec.Points)
}

// AggregationMethod names the reducer used when consolidating points.
// The zero value means the method is not configured.
type AggregationMethod string

const (
	AggregationUnset   AggregationMethod = ""
	AggregationAverage AggregationMethod = "average"
	AggregationSum     AggregationMethod = "sum"
	AggregationLast    AggregationMethod = "last"
	AggregationMax     AggregationMethod = "max"
	AggregationMin     AggregationMethod = "min"
	AggregationFirst   AggregationMethod = "first"
)

var aggregationMethods = []AggregationMethod{
	AggregationAverage,
	AggregationSum,
	AggregationLast,
	AggregationMax,
	AggregationMin,
	AggregationFirst,
}

// ParseAggregationMethod accepts the method names go-whisper can store.
func ParseAggregationMethod(s string) (AggregationMethod, error) {
	name := AggregationMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range aggregationMethods {
		if m == name {
			return m, nil
		}
	}
	return AggregationUnset, fmt.Errorf("%w: unknown aggregation method %q", ErrInvalidAggregationValue, s)
}

func (m AggregationMethod) String() string {
	if m == AggregationUnset {
		return "unset"
	}
	return string(m)
}

// AggregationPolicy is the payload of an aggregation schema.
// A nil XFilesFactor means it is not configured.
type AggregationPolicy struct {
	XFilesFactor *float32
	Method       AggregationMethod
}

// ArchiveConfig is the full layout of a whisper file, either as the schemas
// want it (effective) or as it is stored on disk (observed).
type ArchiveConfig struct {
	Archives          []ArchiveSpec
	XFilesFactor      *float32
	AggregationMethod AggregationMethod

	// names of the matched schemas, only set on effective configs
	StorageSchema     string
	AggregationSchema string
}

func formatXFilesFactor(xff *float32) string {
	if xff == nil {
		return "unset"
	}
	return strconv.FormatFloat(float64(*xff), 'g', -1, 32)
}
