package lib

import (
	"fmt"
	"strconv"
)

// Mismatch describes the first difference found between two configs.
type Mismatch struct {
	Field    string
	Index    int // archive index, -1 when the field is not per archive
	Expected string
	Actual   string
}

func (m *Mismatch) String() string {
	if m.Index >= 0 {
		return fmt.Sprintf("archive %d %s: expected %s, got %s", m.Index, m.Field, m.Expected, m.Actual)
	}
	return fmt.Sprintf("%s: expected %s, got %s", m.Field, m.Expected, m.Actual)
}

// Diff compares the configuration the schemas ask for with the one stored on
// disk and returns the first difference, or nil when they are the same.
// Aggregation method is checked first, then xFilesFactor, then the archives
// position by position, then the number of archives.
func Diff(effective, observed ArchiveConfig) *Mismatch {
	if effective.AggregationMethod != observed.AggregationMethod {
		return &Mismatch{
			Field:    "aggregationMethod",
			Index:    -1,
			Expected: effective.AggregationMethod.String(),
			Actual:   observed.AggregationMethod.String(),
		}
	}
	if !sameXFilesFactor(effective.XFilesFactor, observed.XFilesFactor) {
		return &Mismatch{
			Field:    "xFilesFactor",
			Index:    -1,
			Expected: formatXFilesFactor(effective.XFilesFactor),
			Actual:   formatXFilesFactor(observed.XFilesFactor),
		}
	}
	for i := 0; i < len(effective.Archives) && i < len(observed.Archives); i++ {
		want, got := effective.Archives[i], observed.Archives[i]
		if want.SecondsPerPoint != got.SecondsPerPoint {
			return &Mismatch{
				Field:    "secondsPerPoint",
				Index:    i,
				Expected: strconv.Itoa(want.SecondsPerPoint),
				Actual:   strconv.Itoa(got.SecondsPerPoint),
			}
		}
		if want.Points != got.Points {
			return &Mismatch{
				Field:    "points",
				Index:    i,
				Expected: strconv.Itoa(want.Points),
				Actual:   strconv.Itoa(got.Points),
			}
		}
	}
	if len(effective.Archives) != len(observed.Archives) {
		return &Mismatch{
			Field:    "archives",
			Index:    -1,
			Expected: strconv.Itoa(len(effective.Archives)),
			Actual:   strconv.Itoa(len(observed.Archives)),
		}
	}
	return nil
}

// Differs reports whether the file needs to be resized.
func Differs(effective, observed ArchiveConfig) bool {
	return Diff(effective, observed) != nil
}

func sameXFilesFactor(a, b *float32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
