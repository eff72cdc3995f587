package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/funvill/cultural-archiver-sub007/internal/archive"
	"github.com/funvill/cultural-archiver-sub007/internal/cli"
	"github.com/funvill/cultural-archiver-sub007/internal/config"
	"github.com/funvill/cultural-archiver-sub007/internal/db"
	"github.com/funvill/cultural-archiver-sub007/internal/geocode"
	"github.com/funvill/cultural-archiver-sub007/internal/langdetect"
	"github.com/funvill/cultural-archiver-sub007/internal/logging"
	"github.com/funvill/cultural-archiver-sub007/internal/massimport"
	"github.com/funvill/cultural-archiver-sub007/internal/sources"
)

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	sourceName := fs.String("source", "", "Data source mapper name (e.g. vancouver-opendata, osm, generic)")
	filePath := fs.String("file", "", "Path to the source export JSON file")
	batchID := fs.String("batch-id", "", "Batch identifier (default: random UUID)")
	dryRun := fs.Bool("dry-run", false, "Resolve and report without writing to the archive")
	threshold := fs.Float64("threshold", 0, "Duplicate similarity threshold (default from config)")
	radius := fs.Float64("radius", 0, "Candidate search radius in meters (default from config)")
	tieBand := fs.Float64("tie-band", -1, "Ambiguity tie band width (default from config)")
	noIdempotent := fs.Bool("no-idempotent", false, "Process records already in the import ledger")
	reportPath := fs.String("report", "", "Write the full run report JSON to this file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*sourceName) == "" {
		fmt.Fprintln(os.Stderr, "--source is required")
		return 2
	}
	if strings.TrimSpace(*filePath) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	registry := sources.NewRegistry()
	mapper, err := registry.Lookup(strings.TrimSpace(*sourceName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 2
	}

	raw, err := os.ReadFile(strings.TrimSpace(*filePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: read %s: %v\n", *filePath, err)
		return 1
	}

	batch := strings.TrimSpace(*batchID)
	if batch == "" {
		batch = uuid.NewString()
	}

	candidates, err := mapper.MapData(json.RawMessage(raw), batch)
	if err != nil {
		logger.Error().Err(err).Str("source", mapper.Name()).Msg("source export failed to parse")
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "Import failed: source export contains no candidates")
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("import failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	store := archive.NewStore(pool, logger)

	var geocoder massimport.Geocoder
	if !cfg.GeocoderDisabled {
		nominatim := geocode.NewNominatimClient(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, logger)
		cached, err := geocode.NewCachingGeocoder(nominatim, cfg.GeocoderCacheSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize geocoder: %v\n", err)
			return 1
		}
		geocoder = cached
	}

	service := massimport.NewService(massimport.Collaborators{
		Index:          store,
		Submitter:      store,
		Photos:         store,
		Geocoder:       geocoder,
		Ledger:         store,
		DetectLanguage: langdetect.DetectISO6391,
	}, logger)

	opts := massimport.DefaultOptions()
	opts.Threshold = cfg.ImportThreshold
	opts.SearchRadiusMeters = cfg.ImportRadiusMeters
	opts.TieBandWidth = cfg.ImportTieBand
	if *threshold > 0 {
		opts.Threshold = *threshold
	}
	if *radius > 0 {
		opts.SearchRadiusMeters = *radius
	}
	if *tieBand >= 0 {
		opts.TieBandWidth = *tieBand
	}
	opts.Idempotent = !*noIdempotent
	opts.DryRun = *dryRun

	ctx := context.Background()

	// Dry runs leave no trace in the database, including the run ledger.
	var runID int64
	if !opts.DryRun {
		var runUUID string
		runID, runUUID, err = store.BeginRun(ctx, mapper.Name(), batch, opts.DryRun)
		if err != nil {
			logger.Error().Err(err).Msg("failed to open import run")
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
			return 1
		}
		logger.Info().Str("run_uuid", runUUID).Str("batch_id", batch).Int("candidates", len(candidates)).Msg("import run started")
	}

	report := service.RunImport(ctx, candidates, opts)

	if !opts.DryRun {
		finishRun(ctx, store, runID, report, logger)
	}

	if strings.TrimSpace(*reportPath) != "" {
		if err := writeReportFile(strings.TrimSpace(*reportPath), report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	fmt.Printf(
		"import source=%s batch=%s dry_run=%t imported=%d merged=%d skipped=%d errors=%d not_attempted=%d circuit_broken=%t\n",
		mapper.Name(),
		batch,
		report.DryRun,
		report.Summary.Imported,
		report.Summary.MergedDuplicates,
		report.Summary.SkippedDuplicates,
		report.Summary.Errors,
		report.Summary.NotAttempted,
		report.CircuitBroken,
	)

	for _, outcome := range report.Outcomes {
		if outcome.Status != massimport.StatusError {
			continue
		}
		if len(outcome.AmbiguousTargets) > 0 {
			fmt.Fprintf(os.Stderr, "AMBIGUOUS %s: candidates %v\n", outcome.SourceID, outcome.AmbiguousTargets)
			continue
		}
		fmt.Fprintf(os.Stderr, "ERROR %s: %s\n", outcome.SourceID, outcome.ErrorDetail)
	}

	if report.CircuitBroken || report.Summary.Errors > 0 {
		return 1
	}
	return 0
}

// runRecorder is the slice of the archive store that closes out an import run.
type runRecorder interface {
	CompleteRun(ctx context.Context, runID int64, report massimport.Report) error
	FailRun(ctx context.Context, runID int64, cause error) error
}

// finishRun persists the report for an open run. If the report cannot be
// persisted the run is marked failed instead so it never lingers as running.
func finishRun(ctx context.Context, runs runRecorder, runID int64, report massimport.Report, logger zerolog.Logger) {
	err := runs.CompleteRun(ctx, runID, report)
	if err == nil {
		return
	}
	logger.Error().Err(err).Int64("run_id", runID).Msg("failed to persist run report")
	if failErr := runs.FailRun(ctx, runID, err); failErr != nil {
		logger.Error().Err(failErr).Int64("run_id", runID).Msg("failed to mark run as failed")
	}
}

func writeReportFile(path string, report massimport.Report) error {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
