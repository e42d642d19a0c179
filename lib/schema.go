package lib

import (
	"regexp"
)

// Matcher decides whether a schema applies to a metric name.
type Matcher interface {
	Matches(metric string) bool
	String() string
}

// DefaultMatcher matches every metric.
type DefaultMatcher struct{}

func (DefaultMatcher) Matches(string) bool { return true }

func (DefaultMatcher) String() string { return "match-all" }

// PatternMatcher matches when the regexp is found anywhere in the metric name.
type PatternMatcher struct {
	Pattern *regexp.Regexp
}

func (m PatternMatcher) Matches(metric string) bool {
	return m.Pattern.MatchString(metric)
}

func (m PatternMatcher) String() string {
	return "pattern " + m.Pattern.String()
}

// ListMatcher matches metrics that are members of a list file.
type ListMatcher struct {
	Name string
	List *MembershipList
}

func (m ListMatcher) Matches(metric string) bool {
	return m.List.Contains(metric)
}

func (m ListMatcher) String() string {
	return "list " + m.Name
}

// Schema pairs a matcher with the configuration it selects.
type Schema[T any] struct {
	Name    string
	Matcher Matcher
	Payload T
	LineNo  int // ordering preserved; earlier lines have smaller LineNo
}

func (s Schema[T]) Matches(metric string) bool {
	return s.Matcher.Matches(metric)
}

type SchemaCount struct {
	Definition Schema[[]ArchiveSpec]
	Count      int
}

// CountDefinitions resolves every file against the storage registry and
// counts how many metrics each schema receives.
func CountDefinitions(registry *StorageRegistry, whisperDir string, files []string) []SchemaCount {
	schemas := registry.Schemas()
	counts := make([]SchemaCount, 0, len(schemas))
	for _, s := range schemas {
		counts = append(counts, SchemaCount{
			Definition: s,
			Count:      0,
		})
	}

	for _, f := range files {
		metric := MetricFromPath(whisperDir, f)
		if i := registry.index(metric); i >= 0 {
			counts[i].Count++
		}
	}
	return counts
}
