package lib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Section is one [name] block of a Graphite style config file.
type Section struct {
	Name    string
	Options map[string]string
	LineNo  int
}

// Get returns the option for key, keys are case-insensitive.
func (s Section) Get(key string) (string, bool) {
	v, ok := s.Options[strings.ToLower(key)]
	return v, ok
}

// ParseSectionsFile reads path and returns its sections in file order.
func ParseSectionsFile(path string) ([]Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to close file %s %v\n", path, err)
		}
	}()

	return ParseSections(f)
}

// ParseSections parses the format used by storage-schemas.conf and
// storage-aggregation.conf:
//
// [name]
// pattern = REGEX
// retentions = 10s:6h, 1m:7d
//
// Lines starting with # or ; are comments. Sections are returned top-to-bottom
// so that first match wins when they are turned into schemas.
func ParseSections(r io.Reader) ([]Section, error) {
	scanner := bufio.NewScanner(r)
	var sections []Section
	var cur *Section
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		trim := strings.TrimSpace(scanner.Text())
		if trim == "" || strings.HasPrefix(trim, "#") || strings.HasPrefix(trim, ";") {
			continue
		}
		// section header
		if strings.HasPrefix(trim, "[") && strings.HasSuffix(trim, "]") {
			if cur != nil {
				sections = append(sections, *cur)
			}
			cur = &Section{
				Name:    strings.TrimSpace(trim[1 : len(trim)-1]),
				Options: map[string]string{},
				LineNo:  lineNo,
			}
			continue
		}
		sep := strings.IndexAny(trim, "=:")
		if sep < 0 {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", lineNo, trim)
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: option %q outside of a section", lineNo, trim)
		}
		key := strings.ToLower(strings.TrimSpace(trim[:sep]))
		cur.Options[key] = strings.TrimSpace(trim[sep+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		sections = append(sections, *cur)
	}
	return sections, nil
}
