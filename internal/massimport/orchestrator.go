package massimport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/funvill/cultural-archiver-sub007/internal/globaltime"
)

const DefaultMaxConsecutiveErrors = 3

// Submitter is the external submission API. It owns all archive mutation:
// the engine only proposes a new artwork or a tag patch.
type Submitter interface {
	SubmitArtwork(ctx context.Context, c Candidate) (string, error)
	PatchArtworkTags(ctx context.Context, artworkID string, added map[string]string) error
}

// PhotoStore is the external photo pipeline. Failures are per-photo and never
// roll back an already-applied tag merge.
type PhotoStore interface {
	StorePhoto(ctx context.Context, artworkID, rawURL string) (string, error)
}

// Geocoder is the optional reverse-geocoding collaborator. A nil result with
// a nil error means "no information", which the engine tolerates.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, loc LatLon) (*LocationInfo, error)
}

// ImportLedger persists which (source, sourceID) pairs have already produced
// an archive-visible effect, so re-running a batch stays idempotent across
// processes, not just within one run.
type ImportLedger interface {
	ImportedSourceIDs(ctx context.Context, sourceName string) (map[string]struct{}, error)
	RecordImport(ctx context.Context, sourceName, sourceID, artworkID, batchID string) error
}

// Collaborators bundles the orchestrator's external dependencies. Index and
// Submitter are required; the rest are optional and skipped when nil.
type Collaborators struct {
	Index          ArchiveIndex
	Submitter      Submitter
	Photos         PhotoStore
	Geocoder       Geocoder
	Ledger         ImportLedger
	DetectLanguage func(text string) string
}

// Options is the configuration surface of one import run.
type Options struct {
	Threshold            float64
	SearchRadiusMeters   float64
	TieBandWidth         float64
	Idempotent           bool
	MaxConsecutiveErrors int
	DryRun               bool
	Weights              ScoringWeights
}

func DefaultOptions() Options {
	return Options{
		Threshold:            DefaultDuplicateThreshold,
		SearchRadiusMeters:   DefaultSearchRadiusMeters,
		TieBandWidth:         DefaultTieBandWidth,
		Idempotent:           true,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		Weights:              DefaultScoringWeights(),
	}
}

func (o Options) normalized() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultDuplicateThreshold
	}
	if o.SearchRadiusMeters <= 0 {
		o.SearchRadiusMeters = DefaultSearchRadiusMeters
	}
	if o.TieBandWidth <= 0 {
		o.TieBandWidth = DefaultTieBandWidth
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if o.Weights == (ScoringWeights{}) {
		o.Weights = DefaultScoringWeights()
	}
	return o
}

type OutcomeStatus string

const (
	StatusImported         OutcomeStatus = "imported"
	StatusMergedDuplicate  OutcomeStatus = "merged-duplicate"
	StatusSkippedDuplicate OutcomeStatus = "skipped-duplicate"
	StatusError            OutcomeStatus = "error"
	StatusNotAttempted     OutcomeStatus = "not-attempted"
)

// Outcome is the per-candidate result. Created once when the candidate
// finishes processing and never mutated afterwards.
type Outcome struct {
	SourceID         string            `json:"source_id"`
	Title            string            `json:"title,omitempty"`
	Status           OutcomeStatus     `json:"status"`
	TargetArtworkID  string            `json:"target_artwork_id,omitempty"`
	AmbiguousTargets []string          `json:"ambiguous_targets,omitempty"`
	Similarity       *SimilarityResult `json:"similarity,omitempty"`
	TagDelta         *TagMergeDelta    `json:"tag_delta,omitempty"`
	ErrorDetail      string            `json:"error_detail,omitempty"`
}

type Summary struct {
	Imported          int `json:"imported"`
	MergedDuplicates  int `json:"merged_duplicates"`
	SkippedDuplicates int `json:"skipped_duplicates"`
	Errors            int `json:"errors"`
	NotAttempted      int `json:"not_attempted"`
}

// Report is the only artifact that survives a run. Outcomes preserve batch
// input order so dry runs diff cleanly against real runs.
type Report struct {
	BatchID       string    `json:"batch_id,omitempty"`
	SourceName    string    `json:"source_name,omitempty"`
	DryRun        bool      `json:"dry_run"`
	CircuitBroken bool      `json:"circuit_broken"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Summary       Summary   `json:"summary"`
	Outcomes      []Outcome `json:"outcomes"`
}

// Service drives an import batch end to end: normalize, resolve, then submit
// or merge, one candidate at a time. Candidates are processed sequentially so
// that records imported earlier in the batch are visible to duplicate
// detection for later ones.
type Service struct {
	collab Collaborators
	logger zerolog.Logger
}

func NewService(collab Collaborators, logger zerolog.Logger) *Service {
	return &Service{
		collab: collab,
		logger: logger,
	}
}

// RunImport processes the batch and always returns a complete report; it
// never panics or errors out for a well-formed batch. Per-candidate failures
// are recovered locally. The only batch-level abort is the circuit breaker:
// after MaxConsecutiveErrors collaborator failures in a row, remaining
// candidates are reported as not-attempted instead of hammering a down API.
func (s *Service) RunImport(ctx context.Context, batch []Candidate, opts Options) Report {
	opts = opts.normalized()

	report := Report{
		DryRun:    opts.DryRun,
		StartedAt: globaltime.UTC(),
		Outcomes:  make([]Outcome, 0, len(batch)),
	}
	if len(batch) > 0 {
		report.BatchID = batch[0].BatchID
		report.SourceName = batch[0].SourceName
	}

	if s == nil || s.collab.Index == nil || s.collab.Submitter == nil {
		for _, c := range batch {
			report.Outcomes = append(report.Outcomes, Outcome{
				SourceID:    c.SourceID,
				Title:       c.Title,
				Status:      StatusError,
				ErrorDetail: "import service is not initialized",
			})
			report.Summary.Errors++
		}
		report.FinishedAt = globaltime.UTC()
		return report
	}

	imported := s.seedImportedSet(ctx, report.SourceName, opts)
	finder := NewCandidateFinder(s.collab.Index, opts.SearchRadiusMeters)
	resolver := NewResolver(finder, opts.Weights, opts.Threshold, opts.TieBandWidth)

	consecutiveErrors := 0
	for _, candidate := range batch {
		if report.CircuitBroken || ctx.Err() != nil {
			report.Outcomes = append(report.Outcomes, Outcome{
				SourceID:    candidate.SourceID,
				Title:       candidate.Title,
				Status:      StatusNotAttempted,
				ErrorDetail: "skipped: batch aborted before this candidate",
			})
			report.Summary.NotAttempted++
			continue
		}

		outcome, procErr := s.processCandidate(ctx, resolver, candidate, imported, opts)
		report.Outcomes = append(report.Outcomes, outcome)
		tally(&report.Summary, outcome.Status)

		// Only external-boundary failures count toward the breaker; a bad
		// record or an ambiguous match says nothing about collaborator health.
		if IsCollaboratorError(procErr) {
			consecutiveErrors++
			if consecutiveErrors >= opts.MaxConsecutiveErrors {
				report.CircuitBroken = true
				s.logger.Error().
					Int("consecutive_errors", consecutiveErrors).
					Str("source", report.SourceName).
					Msg("circuit breaker tripped; aborting remaining batch")
			}
		} else {
			consecutiveErrors = 0
		}
	}

	report.FinishedAt = globaltime.UTC()
	s.logger.Info().
		Str("batch_id", report.BatchID).
		Str("source", report.SourceName).
		Bool("dry_run", report.DryRun).
		Bool("circuit_broken", report.CircuitBroken).
		Int("imported", report.Summary.Imported).
		Int("merged", report.Summary.MergedDuplicates).
		Int("skipped", report.Summary.SkippedDuplicates).
		Int("errors", report.Summary.Errors).
		Int("not_attempted", report.Summary.NotAttempted).
		Msg("import run finished")
	return report
}

// processCandidate walks one candidate through the per-record state machine.
// The returned error classifies the failure for the caller: CollaboratorError
// means an external boundary failed and feeds the circuit breaker, anything
// else is a per-record problem already captured on the outcome.
func (s *Service) processCandidate(
	ctx context.Context,
	resolver *Resolver,
	candidate Candidate,
	imported map[string]struct{},
	opts Options,
) (Outcome, error) {
	outcome := Outcome{
		SourceID: candidate.SourceID,
		Title:    candidate.Title,
	}

	if err := validateCandidate(candidate); err != nil {
		outcome.Status = StatusError
		outcome.ErrorDetail = err.Error()
		return outcome, err
	}

	key := ledgerKey(candidate.SourceName, candidate.SourceID)
	if opts.Idempotent && candidate.SourceID != "" {
		if _, seen := imported[key]; seen {
			outcome.Status = StatusSkippedDuplicate
			outcome.ErrorDetail = ""
			return outcome, nil
		}
	}

	candidate = s.enrich(ctx, candidate)

	resolution, err := resolver.Resolve(ctx, candidate)
	if err != nil {
		cErr := collaboratorErr("resolve duplicate", err)
		outcome.Status = StatusError
		outcome.ErrorDetail = cErr.Error()
		s.logger.Warn().Err(err).Str("source_id", candidate.SourceID).Msg("duplicate resolution failed")
		return outcome, cErr
	}

	switch resolution.Kind {
	case ResolutionNew:
		return s.applyNew(ctx, candidate, imported, key, opts, outcome)
	case ResolutionDuplicate:
		return s.applyMerge(ctx, candidate, resolution.Target, imported, key, opts, outcome)
	case ResolutionAmbiguous:
		// Never guess between near-equal matches; surface all of them for
		// manual review.
		ids := make([]string, 0, len(resolution.Candidates))
		for _, m := range resolution.Candidates {
			ids = append(ids, m.Artwork.ID)
		}
		sort.Strings(ids)
		outcome.Status = StatusError
		outcome.AmbiguousTargets = ids
		outcome.ErrorDetail = fmt.Sprintf("ambiguous match: %d candidates within tie band (%s)", len(ids), strings.Join(ids, ", "))
		top := resolution.Candidates[0].Similarity
		outcome.Similarity = &top
		return outcome, nil
	default:
		outcome.Status = StatusError
		outcome.ErrorDetail = fmt.Sprintf("unknown resolution kind %q", resolution.Kind)
		return outcome, nil
	}
}

func (s *Service) applyNew(
	ctx context.Context,
	candidate Candidate,
	imported map[string]struct{},
	key string,
	opts Options,
	outcome Outcome,
) (Outcome, error) {
	outcome.Status = StatusImported
	if opts.DryRun {
		imported[key] = struct{}{}
		return outcome, nil
	}

	artworkID, err := s.collab.Submitter.SubmitArtwork(ctx, candidate)
	if err != nil {
		cErr := collaboratorErr("submit artwork", err)
		outcome.Status = StatusError
		outcome.ErrorDetail = cErr.Error()
		s.logger.Warn().Err(err).Str("source_id", candidate.SourceID).Msg("artwork submission failed")
		return outcome, cErr
	}
	outcome.TargetArtworkID = artworkID

	s.recordImport(ctx, candidate, artworkID)
	imported[key] = struct{}{}
	return outcome, nil
}

func (s *Service) applyMerge(
	ctx context.Context,
	candidate Candidate,
	target MatchCandidate,
	imported map[string]struct{},
	key string,
	opts Options,
	outcome Outcome,
) (Outcome, error) {
	sim := target.Similarity
	outcome.TargetArtworkID = target.Artwork.ID
	outcome.Similarity = &sim

	delta := MergeTags(target.Artwork.Tags, candidate.Tags)
	outcome.TagDelta = &delta
	for tagKey, existingValue := range delta.KeptExisting {
		s.logger.Info().
			Str("source_id", candidate.SourceID).
			Str("artwork_id", target.Artwork.ID).
			Str("tag", tagKey).
			Str("existing", existingValue).
			Str("discarded_incoming", candidate.Tags[tagKey]).
			Msg("conflicting import tag discarded; existing value kept")
	}

	outcome.Status = StatusMergedDuplicate
	if opts.DryRun {
		imported[key] = struct{}{}
		return outcome, nil
	}

	if delta.HasAdditions() {
		if err := s.collab.Submitter.PatchArtworkTags(ctx, target.Artwork.ID, delta.Added); err != nil {
			cErr := collaboratorErr("patch artwork tags", err)
			outcome.Status = StatusError
			outcome.ErrorDetail = cErr.Error()
			s.logger.Warn().Err(err).Str("artwork_id", target.Artwork.ID).Msg("tag patch failed")
			return outcome, cErr
		}
	}

	// Photos are forwarded regardless of whether the tag patch changed
	// anything. There is no cross-collaborator transactionality: a photo
	// failure is noted on the outcome but does not undo the tag merge.
	var photoFailures []string
	if s.collab.Photos != nil {
		for _, rawURL := range newPhotoURLs(candidate.PhotoURLs, target.Artwork.Photos) {
			if _, err := s.collab.Photos.StorePhoto(ctx, target.Artwork.ID, rawURL); err != nil {
				photoFailures = append(photoFailures, fmt.Sprintf("%s: %v", rawURL, err))
				s.logger.Warn().Err(err).Str("artwork_id", target.Artwork.ID).Str("url", rawURL).Msg("photo store failed")
			}
		}
	}
	if len(photoFailures) > 0 {
		outcome.ErrorDetail = "partial: tag merge applied, photo store failed for " + strings.Join(photoFailures, "; ")
	}

	s.recordImport(ctx, candidate, target.Artwork.ID)
	imported[key] = struct{}{}
	return outcome, nil
}

// enrich adds inferred tags (description language, reverse-geocoded place
// names) without ever overriding what the source supplied. Best-effort only.
func (s *Service) enrich(ctx context.Context, candidate Candidate) Candidate {
	needsLanguage := s.collab.DetectLanguage != nil &&
		strings.TrimSpace(candidate.Description) != "" &&
		candidate.Tags["language"] == ""
	needsPlace := s.collab.Geocoder != nil && validLocation(candidate.Location)
	if !needsLanguage && !needsPlace {
		return candidate
	}

	tags := make(map[string]string, len(candidate.Tags)+4)
	for k, v := range candidate.Tags {
		tags[k] = v
	}

	if needsLanguage {
		if code := s.collab.DetectLanguage(candidate.Description); code != "" {
			tags["language"] = code
		}
	}

	if needsPlace {
		info, err := s.collab.Geocoder.ReverseGeocode(ctx, *candidate.Location)
		if err != nil {
			s.logger.Warn().Err(err).Str("source_id", candidate.SourceID).Msg("reverse geocode failed; continuing without place tags")
		} else if info != nil {
			setIfAbsent(tags, "city", info.City)
			setIfAbsent(tags, "province", info.Province)
			setIfAbsent(tags, "country", info.Country)
		}
	}

	candidate.Tags = tags
	return candidate
}

func (s *Service) seedImportedSet(ctx context.Context, sourceName string, opts Options) map[string]struct{} {
	if !opts.Idempotent || s.collab.Ledger == nil || sourceName == "" {
		return map[string]struct{}{}
	}
	ids, err := s.collab.Ledger.ImportedSourceIDs(ctx, sourceName)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", sourceName).Msg("import ledger unavailable; idempotency limited to this run")
		return map[string]struct{}{}
	}
	seeded := make(map[string]struct{}, len(ids))
	for id := range ids {
		seeded[ledgerKey(sourceName, id)] = struct{}{}
	}
	return seeded
}

func (s *Service) recordImport(ctx context.Context, candidate Candidate, artworkID string) {
	if s.collab.Ledger == nil || candidate.SourceID == "" {
		return
	}
	if err := s.collab.Ledger.RecordImport(ctx, candidate.SourceName, candidate.SourceID, artworkID, candidate.BatchID); err != nil {
		s.logger.Warn().Err(err).Str("source_id", candidate.SourceID).Msg("failed to record import in ledger")
	}
}

func validateCandidate(c Candidate) error {
	if strings.TrimSpace(c.Title) == "" && !validLocation(c.Location) && len(c.Tags) == 0 {
		return &ValidationError{Reason: "record has no title, no coordinates and no tags"}
	}
	return nil
}

func ledgerKey(sourceName, sourceID string) string {
	return sourceName + "\x00" + sourceID
}

// newPhotoURLs filters out URLs the artwork already carries.
func newPhotoURLs(candidateURLs, existing []string) []string {
	if len(candidateURLs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		seen[u] = struct{}{}
	}
	var fresh []string
	for _, u := range candidateURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh
}

func setIfAbsent(tags map[string]string, key, value string) {
	if value == "" {
		return
	}
	if _, ok := tags[key]; ok {
		return
	}
	tags[key] = value
}

func tally(summary *Summary, status OutcomeStatus) {
	switch status {
	case StatusImported:
		summary.Imported++
	case StatusMergedDuplicate:
		summary.MergedDuplicates++
	case StatusSkippedDuplicate:
		summary.SkippedDuplicates++
	case StatusNotAttempted:
		summary.NotAttempted++
	default:
		summary.Errors++
	}
}
