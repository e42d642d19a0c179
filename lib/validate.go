package lib

import "fmt"

// ValidateArchiveList checks that archives run from the finest to the coarsest
// resolution and that every tier can be consolidated exactly into the next one.
func ValidateArchiveList(archives []ArchiveSpec) error {
	if len(archives) == 0 {
		return fmt.Errorf("%w: at least one archive is required", ErrInvalidArchiveConfiguration)
	}

	seen := make(map[int]int, len(archives))
	for i, a := range archives {
		if a.SecondsPerPoint <= 0 || a.Points <= 0 {
			return fmt.Errorf("%w: archive %d (%s) must have positive resolution and points",
				ErrInvalidArchiveConfiguration, i, a)
		}
		if j, ok := seen[a.SecondsPerPoint]; ok {
			return fmt.Errorf("%w: archives %d and %d share the resolution %ds",
				ErrInvalidArchiveConfiguration, j, i, a.SecondsPerPoint)
		}
		seen[a.SecondsPerPoint] = i
	}

	for i := 0; i+1 < len(archives); i++ {
		finer, coarser := archives[i], archives[i+1]
		if coarser.SecondsPerPoint < finer.SecondsPerPoint {
			return fmt.Errorf("%w: archive %d (%ds) is finer than archive %d (%ds), archives must be ordered finest first",
				ErrInvalidArchiveConfiguration, i+1, coarser.SecondsPerPoint, i, finer.SecondsPerPoint)
		}
		if coarser.SecondsPerPoint%finer.SecondsPerPoint != 0 {
			return fmt.Errorf("%w: resolution %ds of archive %d is not a multiple of %ds of archive %d",
				ErrInvalidArchiveConfiguration, coarser.SecondsPerPoint, i+1, finer.SecondsPerPoint, i)
		}
		if finer.RetentionSecs() >= coarser.RetentionSecs() {
			return fmt.Errorf("%w: archive %d retains %s which is not less than %s of archive %d",
				ErrInvalidArchiveConfiguration, i, ToHuman(finer.RetentionSecs()), ToHuman(coarser.RetentionSecs()), i+1)
		}
		pointsPerConsolidation := coarser.SecondsPerPoint / finer.SecondsPerPoint
		if finer.Points < pointsPerConsolidation {
			return fmt.Errorf("%w: archive %d has %d points, %d are needed to consolidate into archive %d",
				ErrInvalidArchiveConfiguration, i, finer.Points, pointsPerConsolidation, i+1)
		}
	}
	return nil
}
