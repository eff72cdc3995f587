package massimport

import (
	"math"
	"time"
)

// Publication states an archive record can be in. Duplicate search looks at
// both: a duplicate may exist only as a not-yet-reviewed submission.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// LatLon is a WGS84 coordinate pair in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the pair is usable for spatial search. NaN or
// out-of-range values from malformed source rows count as "no coordinates".
func (l LatLon) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) {
		return false
	}
	if math.IsInf(l.Lat, 0) || math.IsInf(l.Lon, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

func validLocation(l *LatLon) bool {
	return l != nil && l.Valid()
}

// Candidate is one incoming row of an import batch. It lives only for the
// duration of a run; the report is the only thing that survives it.
type Candidate struct {
	SourceID    string            `json:"source_id"`
	Title       string            `json:"title"`
	Artists     []string          `json:"artists,omitempty"`
	Description string            `json:"description,omitempty"`
	Location    *LatLon           `json:"location,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	PhotoURLs   []string          `json:"photo_urls,omitempty"`
	SourceName  string            `json:"source_name"`
	SourceURL   string            `json:"source_url,omitempty"`
	BatchID     string            `json:"batch_id,omitempty"`
}

// Artwork is the engine's read-only view of an archive record. The engine
// never mutates archive rows directly; all writes go through the Submitter.
type Artwork struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Location  *LatLon           `json:"location,omitempty"`
	Artists   []string          `json:"artists,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Photos    []string          `json:"photos,omitempty"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// LocationInfo is what a reverse geocoder returns for a coordinate pair.
type LocationInfo struct {
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
}
