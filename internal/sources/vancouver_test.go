package sources

import (
	"encoding/json"
	"testing"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

func TestVancouverMapperMapData(t *testing.T) {
	raw := json.RawMessage(`[
		{
			"registryid": 547,
			"title_of_work": "Digital Orca",
			"descriptionofwork": "A pixelated killer whale.",
			"artists": ["Douglas Coupland"],
			"type": "Sculpture",
			"primarymaterial": "aluminum",
			"neighbourhood": "Downtown",
			"yearofinstallation": "2009",
			"url": "https://covapp.vancouver.ca/PublicArtRegistry/ArtworkDetail.aspx?ArtworkId=547",
			"photourl": {"url": "https://example.com/orca.jpg"},
			"geo_point_2d": {"lat": 49.2888, "lon": -123.1111}
		},
		{
			"registryid": 600,
			"title_of_work": "No Coordinates",
			"artists": ["A. Nonymous and B. Sculptor"]
		}
	]`)

	mapper := NewVancouverMapper()
	candidates, err := mapper.MapData(raw, "batch-1")
	if err != nil {
		t.Fatalf("MapData: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	orca := candidates[0]
	if orca.SourceID != "registryid/547" {
		t.Errorf("unexpected source id %q", orca.SourceID)
	}
	if orca.Title != "Digital Orca" {
		t.Errorf("unexpected title %q", orca.Title)
	}
	if orca.Location == nil || orca.Location.Lat != 49.2888 {
		t.Errorf("unexpected location %+v", orca.Location)
	}
	if orca.Tags["material"] != "aluminum" || orca.Tags["year_installed"] != "2009" {
		t.Errorf("unexpected tags %v", orca.Tags)
	}
	if len(orca.PhotoURLs) != 1 || orca.PhotoURLs[0] != "https://example.com/orca.jpg" {
		t.Errorf("unexpected photos %v", orca.PhotoURLs)
	}
	if orca.BatchID != "batch-1" {
		t.Errorf("unexpected batch id %q", orca.BatchID)
	}

	second := candidates[1]
	if second.Location != nil {
		t.Errorf("expected nil location, got %+v", second.Location)
	}
	if len(second.Artists) != 2 {
		t.Errorf("expected artist string to split into 2, got %v", second.Artists)
	}
}

func TestVancouverMapperDropsRecordsWithoutRegistryID(t *testing.T) {
	raw := json.RawMessage(`[{"title_of_work":"Orphan"}]`)

	candidates, err := NewVancouverMapper().MapData(raw, "batch-1")
	if err != nil {
		t.Fatalf("MapData: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected 0 candidates, got %d", len(candidates))
	}
}

func TestVancouverMapperRejectsOutOfAreaCoordinates(t *testing.T) {
	// Lat/lon swapped; the point lands in the Southern Ocean.
	raw := json.RawMessage(`[
		{
			"registryid": 1,
			"title_of_work": "Swapped",
			"geo_point_2d": {"lat": -123.1111, "lon": 49.2888}
		}
	]`)

	candidates, err := NewVancouverMapper().MapData(raw, "batch-1")
	if err != nil {
		t.Fatalf("MapData: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Location != nil {
		t.Fatalf("expected swapped coordinates to be dropped, got %+v", candidates[0].Location)
	}
}

func TestVancouverMapperGenerateImportID(t *testing.T) {
	mapper := NewVancouverMapper()
	if got := mapper.GenerateImportID("0547"); got != "registryid/547" {
		t.Errorf("expected leading zeros normalized, got %q", got)
	}
	if got := mapper.GenerateImportID(" 547 "); got != "registryid/547" {
		t.Errorf("expected whitespace trimmed, got %q", got)
	}
}

func TestVancouverMapperValidateBounds(t *testing.T) {
	mapper := NewVancouverMapper()
	if !mapper.ValidateBounds(massimport.LatLon{Lat: 49.2827, Lon: -123.1207}) {
		t.Error("downtown Vancouver should be in bounds")
	}
	if mapper.ValidateBounds(massimport.LatLon{Lat: 43.6532, Lon: -79.3832}) {
		t.Error("Toronto should be out of bounds")
	}
}
