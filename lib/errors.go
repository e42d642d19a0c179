package lib

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRetentionDefinition  = errors.New("invalid retention definition")
	ErrInvalidArchiveConfiguration = errors.New("invalid archive configuration")
	ErrInvalidAggregationValue     = errors.New("invalid aggregation value")
	ErrInvalidSchema               = errors.New("invalid schema")
	ErrNoMatchingSchema            = errors.New("no storage schema matched")
	ErrResizeInvocation            = errors.New("resize invocation failed")
)

// SectionError ties a configuration error to the section it was found in.
type SectionError struct {
	Section string
	Line    int
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("section [%s] (line %d): %v", e.Section, e.Line, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}
