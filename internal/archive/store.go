package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/funvill/cultural-archiver-sub007/internal/db"
	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
)

// metersPerDegreeLat is close enough for a bounding-box prefilter; exact
// distances are recomputed by the candidate finder.
const metersPerDegreeLat = 111320.0

// Store is the SQL-backed archive. It implements the import engine's
// ArchiveIndex, Submitter, PhotoStore and ImportLedger collaborator
// contracts. Artworks are exposed by their UUID; numeric ids stay internal.
type Store struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewStore(pool *db.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger,
	}
}

// QueryNear returns archive records inside a lat/lon bounding box around
// center. The box over-approximates the radius; callers refine by haversine.
func (s *Store) QueryNear(ctx context.Context, center massimport.LatLon, radiusMeters float64, status string) ([]massimport.Artwork, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("archive store is not initialized")
	}
	if !center.Valid() || radiusMeters <= 0 {
		return nil, fmt.Errorf("invalid spatial query (lat=%f lon=%f radius=%f)", center.Lat, center.Lon, radiusMeters)
	}

	latDelta := radiusMeters / metersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonDelta := radiusMeters / (metersPerDegreeLat * cosLat)

	const q = `
SELECT
	a.artwork_uuid,
	a.title,
	a.lat,
	a.lon,
	a.artists,
	a.tags,
	a.status,
	a.created_at,
	COALESCE(
		(SELECT jsonb_agg(p.source_url ORDER BY p.photo_id)
		 FROM archive.artwork_photos p
		 WHERE p.artwork_id = a.artwork_id),
		'[]'::jsonb
	) AS photo_urls
FROM archive.artworks a
WHERE a.deleted_at IS NULL
  AND a.lat IS NOT NULL
  AND a.lon IS NOT NULL
  AND a.lat BETWEEN $1 AND $2
  AND a.lon BETWEEN $3 AND $4
  AND ($5 = '' OR a.status = $5)
ORDER BY a.artwork_id
`

	rows, err := s.pool.Query(ctx, q,
		center.Lat-latDelta, center.Lat+latDelta,
		center.Lon-lonDelta, center.Lon+lonDelta,
		strings.TrimSpace(status),
	)
	if err != nil {
		return nil, fmt.Errorf("query artworks near %.6f,%.6f: %w", center.Lat, center.Lon, err)
	}
	defer rows.Close()

	var artworks []massimport.Artwork
	for rows.Next() {
		var (
			a          massimport.Artwork
			lat, lon   *float64
			artistsRaw []byte
			tagsRaw    []byte
			photosRaw  []byte
		)
		if err := rows.Scan(&a.ID, &a.Title, &lat, &lon, &artistsRaw, &tagsRaw, &a.Status, &a.CreatedAt, &photosRaw); err != nil {
			return nil, fmt.Errorf("scan artwork row: %w", err)
		}
		if lat != nil && lon != nil {
			a.Location = &massimport.LatLon{Lat: *lat, Lon: *lon}
		}
		a.Artists = decodeStringSlice(artistsRaw)
		a.Tags = decodeStringMap(tagsRaw)
		a.Photos = decodeStringSlice(photosRaw)
		artworks = append(artworks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artwork rows: %w", err)
	}
	return artworks, nil
}

// SubmitArtwork inserts a new pending artwork and enqueues its photos.
// Returns the new record's UUID.
func (s *Store) SubmitArtwork(ctx context.Context, c massimport.Candidate) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("archive store is not initialized")
	}

	artistsJSON, err := json.Marshal(nonNilSlice(c.Artists))
	if err != nil {
		return "", fmt.Errorf("marshal artists: %w", err)
	}
	tagsJSON, err := json.Marshal(nonNilMap(c.Tags))
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}

	var lat, lon *float64
	if c.Location != nil && c.Location.Valid() {
		latCopy, lonCopy := c.Location.Lat, c.Location.Lon
		lat, lon = &latCopy, &lonCopy
	}

	const q = `
INSERT INTO archive.artworks (
	title,
	lat,
	lon,
	artists,
	tags,
	description,
	source_name,
	source_url,
	status,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, 'pending', now(), now())
RETURNING artwork_id, artwork_uuid
`

	var artworkID int64
	var artworkUUID string
	err = s.pool.QueryRow(ctx, q,
		strings.TrimSpace(c.Title),
		lat,
		lon,
		string(artistsJSON),
		string(tagsJSON),
		nullableString(c.Description),
		nullableString(c.SourceName),
		nullableString(c.SourceURL),
	).Scan(&artworkID, &artworkUUID)
	if err != nil {
		return "", fmt.Errorf("insert artwork: %w", err)
	}

	for _, rawURL := range c.PhotoURLs {
		if _, err := s.enqueuePhoto(ctx, artworkID, rawURL); err != nil {
			// Photo rows are best-effort on submission; the artwork exists.
			s.logger.Warn().Err(err).Str("artwork_uuid", artworkUUID).Str("url", rawURL).Msg("failed to enqueue photo")
		}
	}

	return artworkUUID, nil
}

// PatchArtworkTags applies only added tag entries. The existing tag map is
// the right-hand operand of the jsonb concat, so an existing key wins even
// if a racing writer introduced it after the merge delta was computed.
func (s *Store) PatchArtworkTags(ctx context.Context, artworkUUID string, added map[string]string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("archive store is not initialized")
	}
	if len(added) == 0 {
		return nil
	}

	addedJSON, err := json.Marshal(added)
	if err != nil {
		return fmt.Errorf("marshal added tags: %w", err)
	}

	const q = `
UPDATE archive.artworks
SET
	tags = $2::jsonb || COALESCE(tags, '{}'::jsonb),
	updated_at = now()
WHERE artwork_uuid = $1
  AND deleted_at IS NULL
`
	commandTag, err := s.pool.Exec(ctx, q, artworkUUID, string(addedJSON))
	if err != nil {
		return fmt.Errorf("patch artwork tags %s: %w", artworkUUID, err)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("artwork %s not found", artworkUUID)
	}
	return nil
}

// StorePhoto enqueues one source URL for the download pipeline and returns
// the queue ref. Re-enqueueing the same URL for the same artwork is a no-op
// returning the existing ref.
func (s *Store) StorePhoto(ctx context.Context, artworkUUID, rawURL string) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("archive store is not initialized")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("photo url is empty")
	}

	var artworkID int64
	err := s.pool.QueryRow(ctx,
		`SELECT artwork_id FROM archive.artworks WHERE artwork_uuid = $1 AND deleted_at IS NULL`,
		artworkUUID,
	).Scan(&artworkID)
	if err != nil {
		if db.IsNoRows(err) {
			return "", fmt.Errorf("artwork %s not found", artworkUUID)
		}
		return "", fmt.Errorf("resolve artwork %s: %w", artworkUUID, err)
	}

	return s.enqueuePhoto(ctx, artworkID, rawURL)
}

func (s *Store) enqueuePhoto(ctx context.Context, artworkID int64, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("photo url is empty")
	}

	var existing string
	err := s.pool.QueryRow(ctx,
		`SELECT photo_uuid FROM archive.artwork_photos WHERE artwork_id = $1 AND source_url = $2 ORDER BY photo_id LIMIT 1`,
		artworkID, rawURL,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !db.IsNoRows(err) {
		return "", fmt.Errorf("check existing photo: %w", err)
	}

	var photoUUID string
	err = s.pool.QueryRow(ctx, `
INSERT INTO archive.artwork_photos (artwork_id, source_url, enqueued_at, created_at)
VALUES ($1, $2, now(), now())
RETURNING photo_uuid
`, artworkID, rawURL).Scan(&photoUUID)
	if err != nil {
		return "", fmt.Errorf("enqueue photo: %w", err)
	}
	return photoUUID, nil
}

// ImportedSourceIDs returns every external id of the source that has already
// produced an archive-visible effect.
func (s *Store) ImportedSourceIDs(ctx context.Context, sourceName string) (map[string]struct{}, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("archive store is not initialized")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_item_id FROM archive.import_items WHERE source_name = $1`,
		sourceName,
	)
	if err != nil {
		return nil, fmt.Errorf("query import ledger for %q: %w", sourceName, err)
	}
	defer rows.Close()

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan import ledger row: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import ledger rows: %w", err)
	}
	return ids, nil
}

// RecordImport marks an external id as imported. Conflicting re-records are
// ignored, so concurrent or repeated runs cannot corrupt the ledger.
func (s *Store) RecordImport(ctx context.Context, sourceName, sourceID, artworkUUID, batchID string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("archive store is not initialized")
	}

	const q = `
INSERT INTO archive.import_items (source_name, source_item_id, artwork_id, batch_id, imported_at)
VALUES (
	$1,
	$2,
	(SELECT artwork_id FROM archive.artworks WHERE artwork_uuid = $3),
	$4,
	now()
)
ON CONFLICT (source_name, source_item_id) DO NOTHING
`
	if _, err := s.pool.Exec(ctx, q, sourceName, sourceID, artworkUUID, nullableString(batchID)); err != nil {
		return fmt.Errorf("record import %s/%s: %w", sourceName, sourceID, err)
	}
	return nil
}

func decodeStringSlice(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeStringMap(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func nonNilSlice(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMap(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}
	return values
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
