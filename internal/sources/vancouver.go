package sources

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

const VancouverSourceName = "vancouver-opendata"

// Vancouver's public art registry covers the metro area; anything outside
// this box is a lat/lon swap or a projection bug.
const (
	vancouverMinLat = 48.9
	vancouverMaxLat = 49.4
	vancouverMinLon = -123.4
	vancouverMaxLon = -122.4
)

// VancouverMapper parses exports of the City of Vancouver public art
// open-data set.
type VancouverMapper struct{}

func NewVancouverMapper() *VancouverMapper {
	return &VancouverMapper{}
}

func (m *VancouverMapper) Name() string {
	return VancouverSourceName
}

type vancouverRecord struct {
	RegistryID         json.Number `json:"registryid"`
	TitleOfWork        string      `json:"title_of_work"`
	DescriptionOfWork  string      `json:"descriptionofwork"`
	Artists            []string    `json:"artists"`
	Type               string      `json:"type"`
	PrimaryMaterial    string      `json:"primarymaterial"`
	Neighbourhood      string      `json:"neighbourhood"`
	SiteAddress        string      `json:"siteaddress"`
	YearOfInstallation string      `json:"yearofinstallation"`
	URL                string      `json:"url"`
	PhotoURL           *struct {
		URL string `json:"url"`
	} `json:"photourl"`
	GeoPoint *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"geo_point_2d"`
}

// MapData parses a registry export, which is a JSON array of records.
// Records without a registry id are dropped; everything else maps, even when
// sparse, and downstream validation decides what is importable.
func (m *VancouverMapper) MapData(raw json.RawMessage, batchID string) ([]massimport.Candidate, error) {
	var records []vancouverRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse vancouver export: %w", err)
	}

	candidates := make([]massimport.Candidate, 0, len(records))
	for _, rec := range records {
		externalID := strings.TrimSpace(rec.RegistryID.String())
		if externalID == "" || externalID == "0" {
			continue
		}

		c := massimport.Candidate{
			SourceID:    m.GenerateImportID(externalID),
			Title:       strings.TrimSpace(rec.TitleOfWork),
			Description: strings.TrimSpace(rec.DescriptionOfWork),
			SourceName:  VancouverSourceName,
			SourceURL:   strings.TrimSpace(rec.URL),
			BatchID:     batchID,
		}

		for _, artist := range rec.Artists {
			c.Artists = append(c.Artists, massimport.SplitArtists(artist)...)
		}

		if rec.GeoPoint != nil {
			loc := massimport.LatLon{Lat: rec.GeoPoint.Lat, Lon: rec.GeoPoint.Lon}
			if m.ValidateBounds(loc) {
				c.Location = &loc
			}
		}

		c.Tags = map[string]string{}
		setTag(c.Tags, "artwork_type", rec.Type)
		setTag(c.Tags, "material", rec.PrimaryMaterial)
		setTag(c.Tags, "neighbourhood", rec.Neighbourhood)
		setTag(c.Tags, "site_address", rec.SiteAddress)
		setTag(c.Tags, "year_installed", rec.YearOfInstallation)

		if rec.PhotoURL != nil {
			if photoURL := strings.TrimSpace(rec.PhotoURL.URL); photoURL != "" {
				c.PhotoURLs = append(c.PhotoURLs, photoURL)
			}
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

func (m *VancouverMapper) GenerateImportID(externalID string) string {
	trimmed := strings.TrimSpace(externalID)
	// Registry ids are numeric; normalize away leading zeros.
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		trimmed = strconv.FormatInt(n, 10)
	}
	return "registryid/" + trimmed
}

func (m *VancouverMapper) ValidateBounds(loc massimport.LatLon) bool {
	if !loc.Valid() {
		return false
	}
	return loc.Lat >= vancouverMinLat && loc.Lat <= vancouverMaxLat &&
		loc.Lon >= vancouverMinLon && loc.Lon <= vancouverMaxLon
}

func setTag(tags map[string]string, key, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return
	}
	tags[key] = trimmed
}
