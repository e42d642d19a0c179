package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArchiveList_ValidThreeTiers(t *testing.T) {
	// 1 minute for a day, 5 minutes for a week, 1 hour for a year
	archives := []ArchiveSpec{{60, 1440}, {300, 2016}, {3600, 8760}}
	assert.NoError(t, ValidateArchiveList(archives))
}

func TestValidateArchiveList_SingleTier(t *testing.T) {
	assert.NoError(t, ValidateArchiveList([]ArchiveSpec{{60, 10080}}))
	assert.NoError(t, ValidateArchiveList([]ArchiveSpec{{1, 1}}))
}

func TestValidateArchiveList_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		archives []ArchiveSpec
	}{
		{"empty", nil},
		{"zero points", []ArchiveSpec{{60, 0}}},
		{"zero resolution", []ArchiveSpec{{0, 10}}},
		{"duplicate resolution", []ArchiveSpec{{60, 1440}, {60, 10080}}},
		{"non adjacent duplicate", []ArchiveSpec{{60, 1440}, {300, 2016}, {60, 100000}}},
		{"coarsest first", []ArchiveSpec{{300, 2016}, {60, 1440}}},
		{"not a multiple", []ArchiveSpec{{60, 1440}, {90, 10080}}},
		{"equal durations", []ArchiveSpec{{60, 1440}, {300, 288}}},
		{"shorter coarse retention", []ArchiveSpec{{60, 10080}, {300, 288}}},
		{"too few points to consolidate", []ArchiveSpec{{60, 4}, {3600, 24}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateArchiveList(tt.archives), ErrInvalidArchiveConfiguration)
		})
	}
}

func TestValidateArchiveList_ExactlyEnoughPoints(t *testing.T) {
	// 60 one-minute points consolidate into one hourly point
	assert.NoError(t, ValidateArchiveList([]ArchiveSpec{{60, 60}, {3600, 24}}))
}
