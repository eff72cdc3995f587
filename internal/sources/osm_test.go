package sources

import (
	"encoding/json"
	"testing"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

func TestOSMMapperMapData(t *testing.T) {
	raw := json.RawMessage(`{
		"elements": [
			{
				"type": "node",
				"id": 240095754,
				"lat": 49.2734,
				"lon": -123.1034,
				"tags": {
					"tourism": "artwork",
					"name": "Knife Edge Two Piece",
					"artist_name": "Henry Moore",
					"artwork_type": "sculpture",
					"material": "bronze",
					"start_date": "1962",
					"image": "https://example.com/moore.jpg"
				}
			},
			{
				"type": "way",
				"id": 99,
				"center": {"lat": 49.25, "lon": -123.10},
				"tags": {"tourism": "artwork", "name": "Mural Wall"}
			},
			{
				"type": "node",
				"id": 5,
				"lat": 49.0,
				"lon": -123.0,
				"tags": {"amenity": "bench"}
			}
		]
	}`)

	candidates, err := NewOSMMapper().MapData(raw, "batch-osm")
	if err != nil {
		t.Fatalf("MapData: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates (bench filtered), got %d", len(candidates))
	}

	moore := candidates[0]
	if moore.SourceID != "node/240095754" {
		t.Errorf("unexpected source id %q", moore.SourceID)
	}
	if moore.Title != "Knife Edge Two Piece" {
		t.Errorf("unexpected title %q", moore.Title)
	}
	if len(moore.Artists) != 1 || moore.Artists[0] != "Henry Moore" {
		t.Errorf("unexpected artists %v", moore.Artists)
	}
	if moore.Tags["material"] != "bronze" || moore.Tags["year_installed"] != "1962" {
		t.Errorf("unexpected tags %v", moore.Tags)
	}
	if moore.SourceURL != "https://www.openstreetmap.org/node/240095754" {
		t.Errorf("unexpected source url %q", moore.SourceURL)
	}

	wall := candidates[1]
	if wall.SourceID != "way/99" {
		t.Errorf("unexpected source id %q", wall.SourceID)
	}
	if wall.Location == nil || wall.Location.Lat != 49.25 {
		t.Errorf("expected way center as location, got %+v", wall.Location)
	}
}

func TestOSMMapperRejectsNullIsland(t *testing.T) {
	raw := json.RawMessage(`{
		"elements": [
			{"type": "node", "id": 1, "lat": 0, "lon": 0, "tags": {"tourism": "artwork", "name": "Broken Export"}}
		]
	}`)

	candidates, err := NewOSMMapper().MapData(raw, "batch-osm")
	if err != nil {
		t.Fatalf("MapData: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Location != nil {
		t.Fatalf("expected null island location dropped, got %+v", candidates[0].Location)
	}
}

func TestOSMMapperValidateBounds(t *testing.T) {
	mapper := NewOSMMapper()
	if !mapper.ValidateBounds(massimport.LatLon{Lat: 51.5, Lon: -0.12}) {
		t.Error("London should be in bounds")
	}
	if mapper.ValidateBounds(massimport.LatLon{Lat: 0, Lon: 0}) {
		t.Error("null island should be out of bounds")
	}
	if mapper.ValidateBounds(massimport.LatLon{Lat: 91, Lon: 0}) {
		t.Error("latitude 91 should be out of bounds")
	}
}
