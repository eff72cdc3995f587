package sources

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

const OSMSourceName = "osm"

// osmPassthroughTags are OSM keys copied onto candidates verbatim. Everything
// else in the element's tag map is either consumed by a dedicated field or
// dropped as noise.
var osmPassthroughTags = map[string]string{
	"artwork_type": "artwork_type",
	"material":     "material",
	"start_date":   "year_installed",
	"height":       "height",
	"wikidata":     "wikidata",
	"wikipedia":    "wikipedia",
}

// OSMMapper parses Overpass API JSON exports of tourism=artwork elements.
type OSMMapper struct{}

func NewOSMMapper() *OSMMapper {
	return &OSMMapper{}
}

func (m *OSMMapper) Name() string {
	return OSMSourceName
}

type osmExport struct {
	Elements []osmElement `json:"elements"`
}

type osmElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// MapData parses an Overpass export. Ways and relations use their center
// coordinate when the export includes one.
func (m *OSMMapper) MapData(raw json.RawMessage, batchID string) ([]massimport.Candidate, error) {
	var export osmExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("parse overpass export: %w", err)
	}

	candidates := make([]massimport.Candidate, 0, len(export.Elements))
	for _, el := range export.Elements {
		if el.ID == 0 || el.Type == "" {
			continue
		}
		if el.Tags["tourism"] != "artwork" {
			continue
		}

		externalID := el.Type + "/" + strconv.FormatInt(el.ID, 10)
		c := massimport.Candidate{
			SourceID:    m.GenerateImportID(externalID),
			Title:       strings.TrimSpace(el.Tags["name"]),
			Description: strings.TrimSpace(el.Tags["description"]),
			SourceName:  OSMSourceName,
			SourceURL:   "https://www.openstreetmap.org/" + externalID,
			BatchID:     batchID,
		}

		if artist := strings.TrimSpace(el.Tags["artist_name"]); artist != "" {
			c.Artists = massimport.SplitArtists(artist)
		}

		var loc *massimport.LatLon
		switch {
		case el.Lat != nil && el.Lon != nil:
			loc = &massimport.LatLon{Lat: *el.Lat, Lon: *el.Lon}
		case el.Center != nil:
			loc = &massimport.LatLon{Lat: el.Center.Lat, Lon: el.Center.Lon}
		}
		if loc != nil && m.ValidateBounds(*loc) {
			c.Location = loc
		}

		c.Tags = map[string]string{}
		for osmKey, tagKey := range osmPassthroughTags {
			setTag(c.Tags, tagKey, el.Tags[osmKey])
		}

		if imageURL := strings.TrimSpace(el.Tags["image"]); imageURL != "" {
			c.PhotoURLs = append(c.PhotoURLs, imageURL)
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

// GenerateImportID keeps the OSM element reference, e.g. "node/240095754".
func (m *OSMMapper) GenerateImportID(externalID string) string {
	return strings.TrimSpace(externalID)
}

// ValidateBounds accepts any coordinate on the globe; OSM has no regional
// coverage box. Null Island is still rejected, it is the classic default for
// broken exports.
func (m *OSMMapper) ValidateBounds(loc massimport.LatLon) bool {
	if !loc.Valid() {
		return false
	}
	if loc.Lat == 0 && loc.Lon == 0 {
		return false
	}
	return true
}
