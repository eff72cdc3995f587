package massimport

import (
	"context"
	"fmt"
	"sort"
)

// DefaultSearchRadiusMeters is deliberately wider than the scoring decay
// distance so true duplicates near the edge of the decay curve still become
// candidates.
const DefaultSearchRadiusMeters = 100

// ArchiveIndex is the archive's spatial query capability. Implementations
// prefilter with a cheap lat/lon bounding box; exact distance refinement
// happens in the finder. An empty status string means all publication states.
type ArchiveIndex interface {
	QueryNear(ctx context.Context, center LatLon, radiusMeters float64, status string) ([]Artwork, error)
}

// CandidateFinder narrows the archive to plausible duplicates of a location,
// avoiding a full scan per candidate.
type CandidateFinder struct {
	index        ArchiveIndex
	radiusMeters float64
}

func NewCandidateFinder(index ArchiveIndex, radiusMeters float64) *CandidateFinder {
	if radiusMeters <= 0 {
		radiusMeters = DefaultSearchRadiusMeters
	}
	return &CandidateFinder{
		index:        index,
		radiusMeters: radiusMeters,
	}
}

// FindNear returns archive records within the configured radius of center,
// all publication states included, ordered by distance ascending. Zero
// records in range is an empty result, not an error.
func (f *CandidateFinder) FindNear(ctx context.Context, center LatLon) ([]Artwork, error) {
	if f == nil || f.index == nil {
		return nil, fmt.Errorf("candidate finder is not initialized")
	}
	if !center.Valid() {
		return nil, fmt.Errorf("invalid search center")
	}

	rows, err := f.index.QueryNear(ctx, center, f.radiusMeters, "")
	if err != nil {
		return nil, fmt.Errorf("query archive near %.6f,%.6f: %w", center.Lat, center.Lon, err)
	}

	type scored struct {
		artwork  Artwork
		distance float64
	}
	within := make([]scored, 0, len(rows))
	for _, row := range rows {
		if !validLocation(row.Location) {
			continue
		}
		d := HaversineMeters(center, *row.Location)
		if d > f.radiusMeters {
			continue
		}
		within = append(within, scored{artwork: row, distance: d})
	}

	sort.Slice(within, func(i, j int) bool {
		if within[i].distance != within[j].distance {
			return within[i].distance < within[j].distance
		}
		return within[i].artwork.ID < within[j].artwork.ID
	})

	result := make([]Artwork, 0, len(within))
	for _, s := range within {
		result = append(result, s.artwork)
	}
	return result, nil
}
