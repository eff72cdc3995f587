package db

import (
	"encoding/json"
	"time"
)

// Artwork maps archive.artworks. Tags and artists are jsonb so the flexible
// source payloads stay queryable without per-tag columns.
type Artwork struct {
	ArtworkID   int64           `gorm:"column:artwork_id;primaryKey;autoIncrement"`
	ArtworkUUID string          `gorm:"column:artwork_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Lat         *float64        `gorm:"column:lat;type:double precision;index:idx_artworks_lat"`
	Lon         *float64        `gorm:"column:lon;type:double precision;index:idx_artworks_lon"`
	Artists     json.RawMessage `gorm:"column:artists;type:jsonb"`
	Tags        json.RawMessage `gorm:"column:tags;type:jsonb"`
	Description *string         `gorm:"column:description;type:text"`
	SourceName  *string         `gorm:"column:source_name;type:text"`
	SourceURL   *string         `gorm:"column:source_url;type:text"`
	Status      string          `gorm:"column:status;type:text;not null;default:pending"`
	DeletedAt   *time.Time      `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Artwork) TableName() string { return "archive.artworks" }

// ArtworkPhoto maps archive.artwork_photos. Rows start as enqueued source
// URLs; the download pipeline fills stored_ref when it has fetched them.
type ArtworkPhoto struct {
	PhotoID     int64      `gorm:"column:photo_id;primaryKey;autoIncrement"`
	PhotoUUID   string     `gorm:"column:photo_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ArtworkID   int64      `gorm:"column:artwork_id;type:bigint;not null;index"`
	SourceURL   string     `gorm:"column:source_url;type:text;not null"`
	StoredRef   *string    `gorm:"column:stored_ref;type:text"`
	EnqueuedAt  time.Time  `gorm:"column:enqueued_at;type:timestamptz;not null;default:now()"`
	FetchedAt   *time.Time `gorm:"column:fetched_at;type:timestamptz"`
	LastError   *string    `gorm:"column:last_error;type:text"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArtworkPhoto) TableName() string { return "archive.artwork_photos" }

// ImportItem maps archive.import_items, the idempotency ledger. One row per
// (source, external id) that has ever produced an archive-visible effect.
type ImportItem struct {
	ImportItemID int64     `gorm:"column:import_item_id;primaryKey;autoIncrement"`
	SourceName   string    `gorm:"column:source_name;type:text;not null;uniqueIndex:uq_import_items_source,priority:1"`
	SourceItemID string    `gorm:"column:source_item_id;type:text;not null;uniqueIndex:uq_import_items_source,priority:2"`
	ArtworkID    *int64    `gorm:"column:artwork_id;type:bigint"`
	BatchID      *string   `gorm:"column:batch_id;type:text"`
	ImportedAt   time.Time `gorm:"column:imported_at;type:timestamptz;not null;default:now()"`
}

func (ImportItem) TableName() string { return "archive.import_items" }

// ImportRun maps archive.import_runs. The full report survives as jsonb so
// operators can review ambiguous matches long after a run.
type ImportRun struct {
	RunID         int64           `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID       string          `gorm:"column:run_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	SourceName    string          `gorm:"column:source_name;type:text;not null"`
	BatchID       string          `gorm:"column:batch_id;type:text;not null"`
	DryRun        bool            `gorm:"column:dry_run;not null;default:false"`
	Status        string          `gorm:"column:status;type:text;not null;default:running"`
	CircuitBroken bool            `gorm:"column:circuit_broken;not null;default:false"`
	Imported      int             `gorm:"column:imported;type:integer;not null;default:0"`
	Merged        int             `gorm:"column:merged;type:integer;not null;default:0"`
	Skipped       int             `gorm:"column:skipped;type:integer;not null;default:0"`
	Errored       int             `gorm:"column:errored;type:integer;not null;default:0"`
	NotAttempted  int             `gorm:"column:not_attempted;type:integer;not null;default:0"`
	Report        json.RawMessage `gorm:"column:report;type:jsonb"`
	ErrorMessage  *string         `gorm:"column:error_message;type:text"`
	StartedAt     time.Time       `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt    *time.Time      `gorm:"column:finished_at;type:timestamptz"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ImportRun) TableName() string { return "archive.import_runs" }

func autoMigrateModels() []any {
	return []any{
		&Artwork{},
		&ArtworkPhoto{},
		&ImportItem{},
		&ImportRun{},
	}
}
