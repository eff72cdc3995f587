package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed artwork_candidate.schema.json
var artworkCandidateSchemaJSON string

// ArtworkCandidate is the validated shape of one record in a source payload.
// Artists accepts either a single string or a list; sources disagree on that.
type ArtworkCandidate struct {
	PayloadVersion string            `json:"payload_version"`
	Source         string            `json:"source"`
	SourceItemID   string            `json:"source_item_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Artists        ArtistList        `json:"artists"`
	Lat            *float64          `json:"lat,omitempty"`
	Lon            *float64          `json:"lon,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	PhotoURLs      []string          `json:"photo_urls,omitempty"`
	SourceURL      *string           `json:"source_url,omitempty"`
}

// ArtistList unmarshals from either a JSON string or an array of strings.
type ArtistList []string

func (a *ArtistList) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*a = nil
		return nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*a = ArtistList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return err
	}
	*a = ArtistList(many)
	return nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateArtworkCandidatePayload checks one raw record against the payload
// schema plus semantic rules the schema cannot express, and returns the
// decoded candidate.
func ValidateArtworkCandidatePayload(payload json.RawMessage) (*ArtworkCandidate, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var candidate ArtworkCandidate
	if err := json.Unmarshal(normalized, &candidate); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&candidate); err != nil {
		return nil, err
	}

	return &candidate, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("artwork_candidate.schema.json", strings.NewReader(artworkCandidateSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("artwork_candidate.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(candidate *ArtworkCandidate) error {
	if candidate == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(candidate.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if strings.TrimSpace(candidate.SourceItemID) == "" {
		return fmt.Errorf("source_item_id must not be empty")
	}
	if strings.TrimSpace(candidate.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}

	if (candidate.Lat == nil) != (candidate.Lon == nil) {
		return fmt.Errorf("lat and lon must be provided together")
	}

	if candidate.SourceURL != nil {
		if err := validateURI("source_url", *candidate.SourceURL); err != nil {
			return err
		}
	}
	for i, photoURL := range candidate.PhotoURLs {
		if err := validateURI(fmt.Sprintf("photo_urls[%d]", i), photoURL); err != nil {
			return err
		}
	}

	for key := range candidate.Tags {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("tag keys must not be empty")
		}
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
