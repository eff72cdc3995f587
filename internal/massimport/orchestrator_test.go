package massimport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// fakeArchive implements ArchiveIndex, Submitter, PhotoStore and ImportLedger
// over in-memory state. Submissions become immediately visible to QueryNear,
// matching the real store's behavior within a sequential run.
type fakeArchive struct {
	index       memoryIndex
	nextID      int
	submissions []Candidate
	patches     map[string]map[string]string
	photos      map[string][]string
	ledger      map[string]string

	submitErr    error
	patchErr     error
	photoErr     error
	submitErrFor map[string]error
}

func newFakeArchive(existing ...Artwork) *fakeArchive {
	f := &fakeArchive{
		patches: map[string]map[string]string{},
		photos:  map[string][]string{},
		ledger:  map[string]string{},
	}
	f.index.artworks = existing
	return f
}

func (f *fakeArchive) QueryNear(ctx context.Context, center LatLon, radius float64, status string) ([]Artwork, error) {
	return f.index.QueryNear(ctx, center, radius, status)
}

func (f *fakeArchive) SubmitArtwork(_ context.Context, c Candidate) (string, error) {
	if err := f.submitErrFor[c.SourceID]; err != nil {
		return "", err
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextID++
	id := fmt.Sprintf("art-%d", f.nextID)
	f.submissions = append(f.submissions, c)
	f.index.artworks = append(f.index.artworks, Artwork{
		ID:       id,
		Title:    c.Title,
		Artists:  c.Artists,
		Location: c.Location,
		Tags:     c.Tags,
		Status:   StatusPending,
	})
	return id, nil
}

func (f *fakeArchive) PatchArtworkTags(_ context.Context, artworkID string, added map[string]string) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	if f.patches[artworkID] == nil {
		f.patches[artworkID] = map[string]string{}
	}
	for k, v := range added {
		f.patches[artworkID][k] = v
	}
	for i := range f.index.artworks {
		if f.index.artworks[i].ID != artworkID {
			continue
		}
		tags := map[string]string{}
		for k, v := range f.index.artworks[i].Tags {
			tags[k] = v
		}
		for k, v := range added {
			if _, exists := tags[k]; !exists {
				tags[k] = v
			}
		}
		f.index.artworks[i].Tags = tags
	}
	return nil
}

func (f *fakeArchive) StorePhoto(_ context.Context, artworkID, rawURL string) (string, error) {
	if f.photoErr != nil {
		return "", f.photoErr
	}
	f.photos[artworkID] = append(f.photos[artworkID], rawURL)
	return "ref-" + rawURL, nil
}

func (f *fakeArchive) ImportedSourceIDs(_ context.Context, sourceName string) (map[string]struct{}, error) {
	ids := map[string]struct{}{}
	for key := range f.ledger {
		ids[key] = struct{}{}
	}
	return ids, nil
}

func (f *fakeArchive) RecordImport(_ context.Context, sourceName, sourceID, artworkID, batchID string) error {
	f.ledger[sourceID] = artworkID
	return nil
}

func newTestService(f *fakeArchive) *Service {
	return NewService(Collaborators{
		Index:     f,
		Submitter: f,
		Photos:    f,
		Ledger:    f,
	}, zerolog.Nop())
}

func arcCandidate(sourceID string) Candidate {
	return Candidate{
		SourceID:   sourceID,
		Title:      "Arc de Triomphe",
		Artists:    []string{"Jacques Huet"},
		Location:   latLon(49.278845, -122.915511),
		Tags:       map[string]string{"technique": "metal fabrication"},
		SourceName: "vancouver-public-art",
		BatchID:    "batch-1",
	}
}

func TestRunImport_ExactDuplicateMergesNewTag(t *testing.T) {
	t.Parallel()

	f := newFakeArchive(Artwork{
		ID:       "art-0",
		Title:    "Arc de Triomphe",
		Artists:  []string{"Jacques Huet"},
		Location: latLon(49.278845, -122.915511),
		Tags:     map[string]string{"material": "aluminum"},
		Status:   StatusApproved,
	})

	report := newTestService(f).RunImport(context.Background(), []Candidate{arcCandidate("van-001")}, DefaultOptions())
	if report.Summary.MergedDuplicates != 1 {
		t.Fatalf("expected one merged duplicate: %+v", report.Summary)
	}

	outcome := report.Outcomes[0]
	if outcome.Status != StatusMergedDuplicate || outcome.TargetArtworkID != "art-0" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.TagDelta == nil {
		t.Fatalf("merged outcome must carry the tag delta")
	}
	if outcome.TagDelta.Added["technique"] != "metal fabrication" {
		t.Fatalf("expected technique tag added: %+v", outcome.TagDelta)
	}
	if len(outcome.TagDelta.Unchanged) != 0 || len(outcome.TagDelta.KeptExisting) != 0 {
		t.Fatalf("material must not be resent: %+v", outcome.TagDelta)
	}
	if f.patches["art-0"]["technique"] != "metal fabrication" {
		t.Fatalf("patch was not applied: %+v", f.patches)
	}
}

func TestRunImport_ConflictingTagNeverOverwrites(t *testing.T) {
	t.Parallel()

	f := newFakeArchive(Artwork{
		ID:       "art-0",
		Title:    "Arc de Triomphe",
		Artists:  []string{"Jacques Huet"},
		Location: latLon(49.278845, -122.915511),
		Tags:     map[string]string{"material": "aluminum"},
		Status:   StatusApproved,
	})

	c := arcCandidate("van-001")
	c.Tags = map[string]string{"material": "bronze"}

	report := newTestService(f).RunImport(context.Background(), []Candidate{c}, DefaultOptions())
	outcome := report.Outcomes[0]
	if outcome.Status != StatusMergedDuplicate {
		t.Fatalf("unexpected status: %+v", outcome)
	}
	if outcome.TagDelta.KeptExisting["material"] != "aluminum" {
		t.Fatalf("existing value must win: %+v", outcome.TagDelta)
	}
	if len(f.patches) != 0 {
		t.Fatalf("a conflict-only delta must not patch anything: %+v", f.patches)
	}
	if f.index.artworks[0].Tags["material"] != "aluminum" {
		t.Fatalf("archive tag was overwritten: %+v", f.index.artworks[0].Tags)
	}
}

func TestRunImport_NewArtworkSubmitted(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	report := newTestService(f).RunImport(context.Background(), []Candidate{arcCandidate("van-001")}, DefaultOptions())

	if report.Summary.Imported != 1 {
		t.Fatalf("expected one import: %+v", report.Summary)
	}
	if len(f.submissions) != 1 {
		t.Fatalf("expected one submission, got %d", len(f.submissions))
	}
	if report.Outcomes[0].TargetArtworkID == "" {
		t.Fatalf("imported outcome must carry the new artwork id")
	}
}

func TestRunImport_LaterCandidateDuplicatesEarlierImport(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	batch := []Candidate{arcCandidate("van-001"), arcCandidate("van-002")}

	report := newTestService(f).RunImport(context.Background(), batch, DefaultOptions())
	if report.Summary.Imported != 1 || report.Summary.MergedDuplicates != 1 {
		t.Fatalf("second candidate must match the record imported moments earlier: %+v", report.Summary)
	}
	if report.Outcomes[1].TargetArtworkID != report.Outcomes[0].TargetArtworkID {
		t.Fatalf("expected match against the in-run import: %+v", report.Outcomes)
	}
}

func TestRunImport_IdempotentReRun(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	svc := newTestService(f)
	batch := []Candidate{arcCandidate("van-001")}

	first := svc.RunImport(context.Background(), batch, DefaultOptions())
	if first.Summary.Imported != 1 {
		t.Fatalf("first run should import: %+v", first.Summary)
	}

	second := svc.RunImport(context.Background(), batch, DefaultOptions())
	if second.Summary.Imported != 0 || second.Summary.SkippedDuplicates != 1 {
		t.Fatalf("second run must skip via source id tracking: %+v", second.Summary)
	}
	if len(f.submissions) != 1 || len(f.patches) != 0 {
		t.Fatalf("re-run produced side effects: submissions=%d patches=%v", len(f.submissions), f.patches)
	}
}

func TestRunImport_MalformedCandidateDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	batch := []Candidate{
		arcCandidate("van-001"),
		{SourceID: "van-bad", SourceName: "vancouver-public-art"}, // no title, coords or tags
		arcCandidate("van-003"),
	}
	// Distinct locations so the valid ones do not collapse into one artwork.
	batch[2].Title = "Spinning Chandelier"
	batch[2].Artists = []string{"Rodney Graham"}
	batch[2].Location = latLon(49.2712, -123.1381)

	report := newTestService(f).RunImport(context.Background(), batch, DefaultOptions())
	if report.Summary.Errors != 1 {
		t.Fatalf("expected exactly one error outcome: %+v", report.Summary)
	}
	if report.Summary.Imported != 2 {
		t.Fatalf("valid candidates must still import: %+v", report.Summary)
	}
	if report.Outcomes[1].Status != StatusError {
		t.Fatalf("outcome order must follow input order: %+v", report.Outcomes)
	}
}

func TestRunImport_AmbiguousIsReportedNotGuessed(t *testing.T) {
	t.Parallel()

	f := newFakeArchive(
		Artwork{ID: "art-a", Title: "Untitled Mural", Location: latLon(49.280000, -123.0), Status: StatusApproved},
		Artwork{ID: "art-b", Title: "Untitled Mural", Location: latLon(49.280090, -123.0), Status: StatusPending},
	)
	c := Candidate{
		SourceID:   "osm-1",
		Title:      "Untitled Mural",
		Location:   latLon(49.280045, -123.0),
		SourceName: "osm-artwork",
	}

	opts := DefaultOptions()
	opts.Threshold = 0.4
	report := newTestService(f).RunImport(context.Background(), []Candidate{c}, opts)

	outcome := report.Outcomes[0]
	if outcome.Status != StatusError {
		t.Fatalf("ambiguous matches must surface as errors: %+v", outcome)
	}
	if len(outcome.AmbiguousTargets) != 2 {
		t.Fatalf("expected both candidate targets listed: %+v", outcome.AmbiguousTargets)
	}
	if len(f.submissions) != 0 || len(f.patches) != 0 {
		t.Fatalf("ambiguous candidate must produce no side effects")
	}
}

func TestRunImport_CircuitBreaker(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	f.submitErr = errors.New("submission API down")

	batch := make([]Candidate, 6)
	for i := range batch {
		batch[i] = arcCandidate(fmt.Sprintf("van-%03d", i))
		batch[i].Location = latLon(49.1+float64(i)*0.01, -123.0)
	}

	report := newTestService(f).RunImport(context.Background(), batch, DefaultOptions())
	if !report.CircuitBroken {
		t.Fatalf("expected circuit breaker to trip")
	}
	if report.Summary.Errors != DefaultMaxConsecutiveErrors {
		t.Fatalf("expected %d attempted errors, got %+v", DefaultMaxConsecutiveErrors, report.Summary)
	}
	if report.Summary.NotAttempted != len(batch)-DefaultMaxConsecutiveErrors {
		t.Fatalf("remaining candidates must be reported, not omitted: %+v", report.Summary)
	}
	if len(report.Outcomes) != len(batch) {
		t.Fatalf("report must cover the whole batch: %d outcomes", len(report.Outcomes))
	}
}

func TestRunImport_CircuitBreakerResetsOnSuccess(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	batch := make([]Candidate, 7)
	for i := range batch {
		batch[i] = arcCandidate(fmt.Sprintf("van-%03d", i))
		batch[i].Location = latLon(49.1+float64(i)*0.01, -123.0)
	}
	f.submitErrFor = map[string]error{
		"van-000": errors.New("submission API down"),
		"van-001": errors.New("submission API down"),
		"van-003": errors.New("submission API down"),
		"van-004": errors.New("submission API down"),
		"van-005": errors.New("submission API down"),
	}

	report := newTestService(f).RunImport(context.Background(), batch, DefaultOptions())
	if !report.CircuitBroken {
		t.Fatalf("expected breaker to trip on the second failure streak")
	}
	// Two failures, one success, three failures: the success resets the
	// streak, so the trip happens on the fifth failure, not the third.
	if report.Outcomes[2].Status != StatusImported {
		t.Fatalf("candidate after two failures must be attempted: %+v", report.Outcomes[2])
	}
	for i := 3; i <= 5; i++ {
		if report.Outcomes[i].Status != StatusError {
			t.Fatalf("candidate %d must be attempted, not skipped: %+v", i, report.Outcomes[i])
		}
	}
	if report.Outcomes[6].Status != StatusNotAttempted {
		t.Fatalf("candidate after the trip must be not-attempted: %+v", report.Outcomes[6])
	}
	if report.Summary.Errors != 5 || report.Summary.Imported != 1 || report.Summary.NotAttempted != 1 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
}

func TestRunImport_ValidationErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	batch := []Candidate{
		{SourceID: "bad-1", SourceName: "vancouver-public-art"},
		{SourceID: "bad-2", SourceName: "vancouver-public-art"},
		{SourceID: "bad-3", SourceName: "vancouver-public-art"},
		{SourceID: "bad-4", SourceName: "vancouver-public-art"},
		arcCandidate("van-001"),
	}

	report := newTestService(f).RunImport(context.Background(), batch, DefaultOptions())
	if report.CircuitBroken {
		t.Fatalf("bad records must not trip the collaborator circuit breaker")
	}
	if report.Summary.Errors != 4 || report.Summary.Imported != 1 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
}

func TestRunImport_DryRunHasNoSideEffects(t *testing.T) {
	t.Parallel()

	f := newFakeArchive(Artwork{
		ID:       "art-0",
		Title:    "Arc de Triomphe",
		Artists:  []string{"Jacques Huet"},
		Location: latLon(49.278845, -122.915511),
		Tags:     map[string]string{"material": "aluminum"},
		Status:   StatusApproved,
	})

	opts := DefaultOptions()
	opts.DryRun = true
	batch := []Candidate{arcCandidate("van-001")}
	newBatchCandidate := arcCandidate("van-002")
	newBatchCandidate.Title = "Spinning Chandelier"
	newBatchCandidate.Artists = []string{"Rodney Graham"}
	newBatchCandidate.Location = latLon(49.2712, -123.1381)
	batch = append(batch, newBatchCandidate)

	report := newTestService(f).RunImport(context.Background(), batch, opts)
	if report.Summary.MergedDuplicates != 1 || report.Summary.Imported != 1 {
		t.Fatalf("dry run must still record decisions: %+v", report.Summary)
	}
	if len(f.submissions) != 0 || len(f.patches) != 0 || len(f.photos) != 0 || len(f.ledger) != 0 {
		t.Fatalf("dry run produced side effects")
	}
}

func TestRunImport_PhotoFailureDoesNotRollBackMerge(t *testing.T) {
	t.Parallel()

	f := newFakeArchive(Artwork{
		ID:       "art-0",
		Title:    "Arc de Triomphe",
		Artists:  []string{"Jacques Huet"},
		Location: latLon(49.278845, -122.915511),
		Tags:     map[string]string{"material": "aluminum"},
		Status:   StatusApproved,
	})
	f.photoErr = errors.New("storage full")

	c := arcCandidate("van-001")
	c.PhotoURLs = []string{"https://example.com/p.jpg"}

	report := newTestService(f).RunImport(context.Background(), []Candidate{c}, DefaultOptions())
	outcome := report.Outcomes[0]
	if outcome.Status != StatusMergedDuplicate {
		t.Fatalf("photo failure must not fail the merge: %+v", outcome)
	}
	if outcome.ErrorDetail == "" {
		t.Fatalf("partial photo failure must be recorded on the outcome")
	}
	if f.patches["art-0"]["technique"] != "metal fabrication" {
		t.Fatalf("tag merge must remain applied: %+v", f.patches)
	}
}

func TestRunImport_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	batch := make([]Candidate, 5)
	for i := range batch {
		batch[i] = arcCandidate(fmt.Sprintf("van-%03d", i))
		batch[i].Location = latLon(49.1+float64(i)*0.01, -123.0)
	}

	report := newTestService(f).RunImport(context.Background(), batch, DefaultOptions())
	if len(report.Outcomes) != len(batch) {
		t.Fatalf("expected %d outcomes, got %d", len(batch), len(report.Outcomes))
	}
	for i, outcome := range report.Outcomes {
		if outcome.SourceID != batch[i].SourceID {
			t.Fatalf("outcome %d out of order: %q", i, outcome.SourceID)
		}
	}
}

func TestRunImport_GeocodeEnrichmentAddsPlaceTags(t *testing.T) {
	t.Parallel()

	f := newFakeArchive()
	svc := NewService(Collaborators{
		Index:     f,
		Submitter: f,
		Ledger:    f,
		Geocoder: geocoderFunc(func(ctx context.Context, loc LatLon) (*LocationInfo, error) {
			return &LocationInfo{City: "Vancouver", Province: "British Columbia", Country: "Canada"}, nil
		}),
	}, zerolog.Nop())

	report := svc.RunImport(context.Background(), []Candidate{arcCandidate("van-001")}, DefaultOptions())
	if report.Summary.Imported != 1 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
	tags := f.submissions[0].Tags
	if tags["city"] != "Vancouver" || tags["country"] != "Canada" {
		t.Fatalf("expected place tags on submission: %v", tags)
	}
	if tags["technique"] != "metal fabrication" {
		t.Fatalf("source tags must be preserved: %v", tags)
	}
}

type geocoderFunc func(ctx context.Context, loc LatLon) (*LocationInfo, error)

func (f geocoderFunc) ReverseGeocode(ctx context.Context, loc LatLon) (*LocationInfo, error) {
	return f(ctx, loc)
}
