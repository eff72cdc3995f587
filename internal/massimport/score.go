package massimport

import "math"

const (
	// DefaultDuplicateThreshold is the composite score at or above which two
	// records are treated as the same real-world artwork.
	DefaultDuplicateThreshold = 0.7

	earthRadiusMeters = 6371000
)

// ScoringWeights controls the contribution caps of each similarity signal.
type ScoringWeights struct {
	TitleMax            float64
	ArtistMax           float64
	LocationMax         float64
	PerTagMatch         float64
	ArtistFuzzyFloor    float64
	LocationDecayMeters float64
}

func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		TitleMax:            0.2,
		ArtistMax:           0.2,
		LocationMax:         0.3,
		PerTagMatch:         0.05,
		ArtistFuzzyFloor:    0.8,
		LocationDecayMeters: 50,
	}
}

// SimilarityBreakdown holds the per-signal sub-scores behind a composite score.
type SimilarityBreakdown struct {
	Title    float64 `json:"title"`
	Artist   float64 `json:"artist"`
	Location float64 `json:"location"`
	Tags     float64 `json:"tags"`
}

// SimilarityResult is one candidate-vs-archive-record comparison. Score is
// the unweighted sum of the breakdown components. The tag component is
// uncapped, so the composite can exceed 1.0 for heavily tagged records.
type SimilarityResult struct {
	Score            float64             `json:"score"`
	Breakdown        SimilarityBreakdown `json:"breakdown"`
	IsDuplicate      bool                `json:"is_duplicate"`
	MatchedArtworkID string              `json:"matched_artwork_id,omitempty"`
}

// ScoreCandidate computes the composite similarity between an import
// candidate and an existing archive record. Absent or malformed fields
// contribute zero; the scorer never fails.
func ScoreCandidate(c Candidate, existing Artwork, weights ScoringWeights, threshold float64) SimilarityResult {
	breakdown := SimilarityBreakdown{
		Title:    titleScore(c.Title, existing.Title, weights),
		Artist:   artistScore(c.Artists, existing.Artists, weights),
		Location: locationScore(c.Location, existing.Location, weights),
		Tags:     tagScore(c.Tags, existing.Tags, weights),
	}
	score := breakdown.Title + breakdown.Artist + breakdown.Location + breakdown.Tags

	return SimilarityResult{
		Score:            score,
		Breakdown:        breakdown,
		IsDuplicate:      score >= threshold,
		MatchedArtworkID: existing.ID,
	}
}

func titleScore(left, right string, weights ScoringWeights) float64 {
	a := NormalizeText(left)
	b := NormalizeText(right)
	if a == "" || b == "" {
		return 0
	}
	return editSimilarity(a, b) * weights.TitleMax
}

// artistScore awards the full artist weight when any name on one side
// fuzzy-matches any name on the other. Missing artist data on either side is
// neutral, never a penalty.
func artistScore(left, right []string, weights ScoringWeights) float64 {
	leftNames := normalizedNames(left)
	rightNames := normalizedNames(right)
	if len(leftNames) == 0 || len(rightNames) == 0 {
		return 0
	}

	for _, a := range leftNames {
		for _, b := range rightNames {
			if editSimilarity(a, b) >= weights.ArtistFuzzyFloor {
				return weights.ArtistMax
			}
		}
	}
	return 0
}

// locationScore decays linearly from the full weight at 0 m to zero at the
// decay distance. Invalid coordinates on either side score zero rather than
// letting NaN leak into the sum.
func locationScore(left, right *LatLon, weights ScoringWeights) float64 {
	if !validLocation(left) || !validLocation(right) {
		return 0
	}
	distance := HaversineMeters(*left, *right)
	if weights.LocationDecayMeters <= 0 {
		return 0
	}
	return math.Max(0, weights.LocationMax*(1-distance/weights.LocationDecayMeters))
}

// tagScore contributes PerTagMatch for every key present in both records
// whose normalized values agree. Uncapped on purpose: heavy tag overlap is
// strong evidence, and real tag sets are small.
func tagScore(left, right map[string]string, weights ScoringWeights) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	score := 0.0
	for key, leftValue := range left {
		rightValue, ok := right[key]
		if !ok {
			continue
		}
		if NormalizeText(leftValue) == NormalizeText(rightValue) {
			score += weights.PerTagMatch
		}
	}
	return score
}

func normalizedNames(names []string) []string {
	var out []string
	for _, name := range NormalizeArtists(names) {
		if n := NormalizeText(name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// editSimilarity is 1 - levenshtein/maxlen over rune counts, in [0,1].
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// HaversineMeters is the great-circle distance between two coordinate pairs.
func HaversineMeters(a, b LatLon) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
