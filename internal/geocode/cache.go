package geocode

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

// cacheCellDegrees buckets coordinates to roughly 11 meter cells, so nearby
// artworks in the same batch share one upstream lookup.
const cacheCellDegrees = 0.0001

// CachingGeocoder wraps another geocoder with an in-process LRU, including
// negative results. Batch imports hit the same neighborhood repeatedly and
// public Nominatim enforces a one-request-per-second policy.
type CachingGeocoder struct {
	next  massimport.Geocoder
	cache *lru.Cache
}

func NewCachingGeocoder(next massimport.Geocoder, size int) (*CachingGeocoder, error) {
	if next == nil {
		return nil, fmt.Errorf("wrapped geocoder is nil")
	}
	if size < 1 {
		return nil, fmt.Errorf("cache size must be >= 1, got %d", size)
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachingGeocoder{
		next:  next,
		cache: cache,
	}, nil
}

func (g *CachingGeocoder) ReverseGeocode(ctx context.Context, loc massimport.LatLon) (*massimport.LocationInfo, error) {
	key := cacheKey(loc)
	if cached, ok := g.cache.Get(key); ok {
		if info, ok := cached.(*massimport.LocationInfo); ok {
			return info, nil
		}
	}

	info, err := g.next.ReverseGeocode(ctx, loc)
	if err != nil {
		// Errors are not cached; a transient upstream failure should not
		// poison the cell for the rest of the process lifetime.
		return nil, err
	}
	g.cache.Add(key, info)
	return info, nil
}

// Len reports the number of cached cells.
func (g *CachingGeocoder) Len() int {
	return g.cache.Len()
}

func cacheKey(loc massimport.LatLon) string {
	latCell := math.Round(loc.Lat / cacheCellDegrees)
	lonCell := math.Round(loc.Lon / cacheCellDegrees)
	return fmt.Sprintf("%.0f:%.0f", latCell, lonCell)
}
