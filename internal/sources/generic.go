package sources

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
	payloadschema "github.com/funvill/cultural-archiver-sub007/schema"
)

const GenericSourceName = "generic"

// GenericMapper accepts the archiver's own candidate payload format: a JSON
// array of records matching the artwork candidate schema. It is the escape
// hatch for one-off data sets that have no dedicated mapper.
type GenericMapper struct{}

func NewGenericMapper() *GenericMapper {
	return &GenericMapper{}
}

func (m *GenericMapper) Name() string {
	return GenericSourceName
}

// MapData validates every record against the payload schema. Unlike the
// open-data mappers, a malformed record fails the whole parse; this format
// is produced by tooling, not scraped, so any error is a bug upstream.
func (m *GenericMapper) MapData(raw json.RawMessage, batchID string) ([]massimport.Candidate, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse candidate payload array: %w", err)
	}

	candidates := make([]massimport.Candidate, 0, len(records))
	for i, record := range records {
		validated, err := payloadschema.ValidateArtworkCandidatePayload(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		c := massimport.Candidate{
			SourceID:    m.GenerateImportID(validated.SourceItemID),
			Title:       strings.TrimSpace(validated.Title),
			Description: strings.TrimSpace(validated.Description),
			Artists:     validated.Artists,
			Tags:        validated.Tags,
			PhotoURLs:   validated.PhotoURLs,
			SourceName:  strings.TrimSpace(validated.Source),
			BatchID:     batchID,
		}
		if validated.SourceURL != nil {
			c.SourceURL = strings.TrimSpace(*validated.SourceURL)
		}
		if validated.Lat != nil && validated.Lon != nil {
			loc := massimport.LatLon{Lat: *validated.Lat, Lon: *validated.Lon}
			if m.ValidateBounds(loc) {
				c.Location = &loc
			}
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

func (m *GenericMapper) GenerateImportID(externalID string) string {
	return strings.TrimSpace(externalID)
}

func (m *GenericMapper) ValidateBounds(loc massimport.LatLon) bool {
	return loc.Valid()
}
