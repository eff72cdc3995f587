package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

const defaultRequestTimeout = 10 * time.Second

// NominatimClient reverse-geocodes coordinates against a Nominatim endpoint.
// Failures resolve to (nil, error); callers treat geocoding as best-effort
// enrichment and never fail an import over it.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewNominatimClient(baseURL, userAgent string, logger zerolog.Logger) *NominatimClient {
	return &NominatimClient{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent: strings.TrimSpace(userAgent),
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		logger: logger,
	}
}

type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Province     string `json:"province"`
		Country      string `json:"country"`
	} `json:"address"`
	Error string `json:"error"`
}

// ReverseGeocode resolves coordinates to city, province and country names.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, loc massimport.LatLon) (*massimport.LocationInfo, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("nominatim client is not configured")
	}
	if !loc.Valid() {
		return nil, fmt.Errorf("invalid coordinates (lat=%f lon=%f)", loc.Lat, loc.Lon)
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(loc.Lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(loc.Lon, 'f', 6, 64))
	query.Set("zoom", "10")
	query.Set("addressdetails", "1")

	endpoint := c.baseURL + "/reverse?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build reverse geocode request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read reverse geocode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var parsed nominatimResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if parsed.Error != "" {
		// Nominatim reports "Unable to geocode" for open water and the like.
		c.logger.Debug().Str("error", parsed.Error).Float64("lat", loc.Lat).Float64("lon", loc.Lon).Msg("nominatim could not geocode")
		return nil, nil
	}

	info := &massimport.LocationInfo{
		City:     firstNonEmpty(parsed.Address.City, parsed.Address.Town, parsed.Address.Village, parsed.Address.Municipality),
		Province: firstNonEmpty(parsed.Address.State, parsed.Address.Province),
		Country:  strings.TrimSpace(parsed.Address.Country),
	}
	if info.City == "" && info.Province == "" && info.Country == "" {
		return nil, nil
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
