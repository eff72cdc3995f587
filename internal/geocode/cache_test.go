package geocode

import (
	"context"
	"fmt"
	"testing"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

type countingGeocoder struct {
	calls int
	info  *massimport.LocationInfo
	err   error
}

func (g *countingGeocoder) ReverseGeocode(ctx context.Context, loc massimport.LatLon) (*massimport.LocationInfo, error) {
	g.calls++
	return g.info, g.err
}

func TestCachingGeocoderSharesNearbyLookups(t *testing.T) {
	t.Parallel()

	upstream := &countingGeocoder{info: &massimport.LocationInfo{City: "Vancouver", Province: "British Columbia", Country: "Canada"}}
	cached, err := NewCachingGeocoder(upstream, 16)
	if err != nil {
		t.Fatalf("NewCachingGeocoder: %v", err)
	}

	ctx := context.Background()
	base := massimport.LatLon{Lat: 49.282700, Lon: -123.120400}

	first, err := cached.ReverseGeocode(ctx, base)
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if first == nil || first.City != "Vancouver" {
		t.Fatalf("unexpected first result: %+v", first)
	}

	// A few meters away lands in the same cache cell.
	nearby := massimport.LatLon{Lat: base.Lat + 0.00002, Lon: base.Lon - 0.00002}
	second, err := cached.ReverseGeocode(ctx, nearby)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if second == nil || second.City != "Vancouver" {
		t.Fatalf("unexpected second result: %+v", second)
	}

	if upstream.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", upstream.calls)
	}
}

func TestCachingGeocoderDistinctCells(t *testing.T) {
	t.Parallel()

	upstream := &countingGeocoder{info: &massimport.LocationInfo{Country: "Canada"}}
	cached, err := NewCachingGeocoder(upstream, 16)
	if err != nil {
		t.Fatalf("NewCachingGeocoder: %v", err)
	}

	ctx := context.Background()
	if _, err := cached.ReverseGeocode(ctx, massimport.LatLon{Lat: 49.2827, Lon: -123.1204}); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	// About a kilometer north, a different cell.
	if _, err := cached.ReverseGeocode(ctx, massimport.LatLon{Lat: 49.2917, Lon: -123.1204}); err != nil {
		t.Fatalf("second lookup: %v", err)
	}

	if upstream.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", upstream.calls)
	}
	if cached.Len() != 2 {
		t.Fatalf("expected 2 cached cells, got %d", cached.Len())
	}
}

func TestCachingGeocoderCachesNegativeResults(t *testing.T) {
	t.Parallel()

	upstream := &countingGeocoder{info: nil}
	cached, err := NewCachingGeocoder(upstream, 16)
	if err != nil {
		t.Fatalf("NewCachingGeocoder: %v", err)
	}

	ctx := context.Background()
	loc := massimport.LatLon{Lat: 0.0001, Lon: 0.0001}
	for i := 0; i < 3; i++ {
		info, err := cached.ReverseGeocode(ctx, loc)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if info != nil {
			t.Fatalf("lookup %d: expected nil info, got %+v", i, info)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("expected negative result to be cached, got %d upstream calls", upstream.calls)
	}
}

func TestCachingGeocoderDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	upstream := &countingGeocoder{err: fmt.Errorf("upstream down")}
	cached, err := NewCachingGeocoder(upstream, 16)
	if err != nil {
		t.Fatalf("NewCachingGeocoder: %v", err)
	}

	ctx := context.Background()
	loc := massimport.LatLon{Lat: 49.0, Lon: -123.0}
	for i := 0; i < 2; i++ {
		if _, err := cached.ReverseGeocode(ctx, loc); err == nil {
			t.Fatalf("lookup %d: expected error", i)
		}
	}
	if upstream.calls != 2 {
		t.Fatalf("expected errors to bypass cache, got %d upstream calls", upstream.calls)
	}
}
