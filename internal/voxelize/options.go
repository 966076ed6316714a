package voxelize

import "fmt"

// FilterOptions controls the multi-cloud consensus filter applied after
// raycasting.
type FilterOptions struct {
	// PercentSeenFree is the fraction of clouds that must vote a cell free
	// before it is cleared, in (0, 1].
	PercentSeenFree float64
	// OutlierPointsThreshold is the number of observed points a cloud must
	// exceed in a cell before it votes the cell filled.
	OutlierPointsThreshold int32
	// NumCamerasSeenFree is the minimum number of free votes required to
	// clear a cell.
	NumCamerasSeenFree int32
}

// DefaultFilterOptions returns the conventional filter settings: every cloud
// must agree a cell is free, and a single point is dismissed as noise.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		PercentSeenFree:        1.0,
		OutlierPointsThreshold: 1,
		NumCamerasSeenFree:     1,
	}
}

// Validate checks the option ranges.
func (o FilterOptions) Validate() error {
	if o.PercentSeenFree <= 0 || o.PercentSeenFree > 1 {
		return fmt.Errorf("percent seen free %g is not in (0, 1]", o.PercentSeenFree)
	}
	if o.OutlierPointsThreshold < 0 {
		return fmt.Errorf("outlier points threshold %d is negative", o.OutlierPointsThreshold)
	}
	if o.NumCamerasSeenFree < 0 {
		return fmt.Errorf("num cameras seen free %d is negative", o.NumCamerasSeenFree)
	}
	return nil
}
