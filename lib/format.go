package lib

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var unitMultipliers = []struct {
	word    string
	seconds int
}{
	{"seconds", 1},
	{"minutes", 60},
	{"hours", 3600},
	{"days", 86400},
	{"weeks", 604800},
	{"years", 31536000},
}

// fromHuman parses strings like "10s", "5min", "2h", "7d", "1w", "1y" into seconds.
// A bare number carries no unit and is returned as is with raw set to true.
func fromHuman(s string) (value int, raw bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, fmt.Errorf("empty duration")
	}
	// number at front, unit is the rest
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	numStr, unit := s[:i], strings.ToLower(strings.TrimSpace(s[i:]))

	val, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, false, fmt.Errorf("invalid numeric duration in %q", s)
	}
	if unit == "" {
		return val, true, nil
	}
	for _, u := range unitMultipliers {
		if strings.HasPrefix(u.word, unit) {
			if val > math.MaxInt/u.seconds {
				return 0, false, fmt.Errorf("duration %q is out of range", s)
			}
			return val * u.seconds, false, nil
		}
	}
	return 0, false, fmt.Errorf("unknown duration unit %q in %q", unit, s)
}

// ParseRetentionDef parses one "resolution:retention" pair like "10s:6h" or "60:1440".
// A raw number on the right is a point count, a duration is divided by the resolution.
func ParseRetentionDef(pair string) (ArchiveSpec, error) {
	parts := strings.Split(pair, ":")
	if len(parts) != 2 {
		return ArchiveSpec{}, fmt.Errorf("%w: %q is not a resolution:retention pair", ErrInvalidRetentionDefinition, pair)
	}
	spp, _, err := fromHuman(parts[0])
	if err != nil {
		return ArchiveSpec{}, fmt.Errorf("%w: invalid resolution in %q: %v", ErrInvalidRetentionDefinition, pair, err)
	}
	if spp <= 0 {
		return ArchiveSpec{}, fmt.Errorf("%w: resolution must be positive in %q", ErrInvalidRetentionDefinition, pair)
	}
	retention, raw, err := fromHuman(parts[1])
	if err != nil {
		return ArchiveSpec{}, fmt.Errorf("%w: invalid retention in %q: %v", ErrInvalidRetentionDefinition, pair, err)
	}
	points := retention
	if !raw {
		if retention%spp != 0 {
			return ArchiveSpec{}, fmt.Errorf("%w: retention %ds is not a multiple of resolution %ds in %q",
				ErrInvalidRetentionDefinition, retention, spp, pair)
		}
		points = retention / spp
	}
	if points <= 0 {
		return ArchiveSpec{}, fmt.Errorf("%w: retention must be positive in %q", ErrInvalidRetentionDefinition, pair)
	}
	if points > math.MaxInt/spp {
		return ArchiveSpec{}, fmt.Errorf("%w: retention is out of range in %q", ErrInvalidRetentionDefinition, pair)
	}
	return ArchiveSpec{
		SecondsPerPoint: spp,
		Points:          points,
	}, nil
}

// ParseRetentionDefs parses a string like "10s:6h, 1m:7d" into []ArchiveSpec (in the same order)
func ParseRetentionDefs(s string) ([]ArchiveSpec, error) {
	out := []ArchiveSpec{}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		spec, err := ParseRetentionDef(p)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no retentions parsed from %q", ErrInvalidRetentionDefinition, s)
	}
	return out, nil
}

func (spec ArchiveSpec) toHuman() string {
	return fmt.Sprintf("%s:%s", ToHuman(spec.SecondsPerPoint), ToHuman(spec.RetentionSecs()))
}

// FormatRetentionList converts a slice of ArchiveSpec into "5m:60d,1h:2y" style
func FormatRetentionList(specs []ArchiveSpec) string {
	parts := make([]string, 0, len(specs))
	for _, i := range specs {
		parts = append(parts, i.toHuman())
	}
	return strings.Join(parts, ",")
}

// ToHuman converts seconds into a single-unit short representation used by storage-schemas,
// e.g. 300 -> "5m", 3600 -> "1h", 86400 -> "1d", 31536000 -> "1y"
func ToHuman(seconds int) string {
	if seconds == 0 {
		return "0s"
	}
	type unit struct {
		seconds int
		symbol  string
	}

	units := []unit{
		{31536000, "y"},
		{86400, "d"},
		{3600, "h"},
		{60, "m"},
	}

	for _, u := range units {
		if seconds%u.seconds == 0 {
			return fmt.Sprintf("%d%s", seconds/u.seconds, u.symbol)
		}
	}
	return fmt.Sprintf("%ds", seconds)
}
