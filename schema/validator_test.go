package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateArtworkCandidatePayload_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"vancouver-opendata",
		"source_item_id":"547",
		"title":"Digital Orca",
		"description":"A pixelated killer whale sculpture near the convention centre.",
		"artists":["Douglas Coupland"],
		"lat":49.2888,
		"lon":-123.1111,
		"tags":{"material":"aluminum","artwork_type":"sculpture"},
		"photo_urls":["https://example.com/photos/orca.jpg"],
		"source_url":"https://opendata.vancouver.ca/explore/dataset/public-art/547"
	}`)

	candidate, err := ValidateArtworkCandidatePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	if candidate.Source != "vancouver-opendata" {
		t.Fatalf("expected source=vancouver-opendata, got %q", candidate.Source)
	}
	if len(candidate.Artists) != 1 || candidate.Artists[0] != "Douglas Coupland" {
		t.Fatalf("unexpected artists: %v", candidate.Artists)
	}
	if candidate.Lat == nil || *candidate.Lat != 49.2888 {
		t.Fatalf("unexpected lat: %v", candidate.Lat)
	}
	if candidate.Tags["material"] != "aluminum" {
		t.Fatalf("unexpected tags: %v", candidate.Tags)
	}
}

func TestValidateArtworkCandidatePayload_SingleArtistString(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"source_item_id":"node/123",
		"title":"Fountain",
		"artists":"Jane Doe"
	}`)

	candidate, err := ValidateArtworkCandidatePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if len(candidate.Artists) != 1 || candidate.Artists[0] != "Jane Doe" {
		t.Fatalf("expected single artist to decode into list, got %v", candidate.Artists)
	}
}

func TestValidateArtworkCandidatePayload_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"title":"Missing source item id"
	}`)

	if _, err := ValidateArtworkCandidatePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for missing source_item_id")
	}
}

func TestValidateArtworkCandidatePayload_LatWithoutLon(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"source_item_id":"node/9",
		"lat":49.28
	}`)

	if _, err := ValidateArtworkCandidatePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for lat without lon")
	}
}

func TestValidateArtworkCandidatePayload_LatitudeOutOfRange(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"source_item_id":"node/9",
		"lat":95.0,
		"lon":-123.0
	}`)

	if _, err := ValidateArtworkCandidatePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for latitude out of range")
	}
}

func TestValidateArtworkCandidatePayload_NonStringTagValue(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"source_item_id":"node/9",
		"tags":{"height":12}
	}`)

	if _, err := ValidateArtworkCandidatePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for non-string tag value")
	}
}

func TestValidateArtworkCandidatePayload_BadPhotoURL(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"source_item_id":"node/9",
		"photo_urls":["not a url"]
	}`)

	_, err := ValidateArtworkCandidatePayload(payload)
	if err == nil {
		t.Fatalf("expected validation to fail for malformed photo url")
	}
	if !strings.Contains(err.Error(), "photo_urls[0]") {
		t.Fatalf("expected photo url semantic error, got: %v", err)
	}
}

func TestValidateArtworkCandidatePayload_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"payload_version":"v1","source":"osm","source_item_id":"1"} {}`)

	if _, err := ValidateArtworkCandidatePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}

func TestValidateArtworkCandidatePayload_UnknownField(t *testing.T) {
	payload := json.RawMessage(`{
		"payload_version":"v1",
		"source":"osm",
		"source_item_id":"node/9",
		"surprise":"field"
	}`)

	if _, err := ValidateArtworkCandidatePayload(payload); err == nil {
		t.Fatalf("expected validation to fail for unknown field")
	}
}
