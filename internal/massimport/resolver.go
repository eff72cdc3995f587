package massimport

import (
	"context"
	"sort"
)

// DefaultTieBandWidth is the score-difference window within which two
// qualifying matches are considered equally plausible.
const DefaultTieBandWidth = 0.05

type ResolutionKind string

const (
	ResolutionNew       ResolutionKind = "new"
	ResolutionDuplicate ResolutionKind = "duplicate"
	ResolutionAmbiguous ResolutionKind = "ambiguous"
)

// MatchCandidate pairs an archive record with the similarity that qualified it.
type MatchCandidate struct {
	Artwork    Artwork          `json:"artwork"`
	Similarity SimilarityResult `json:"similarity"`
}

// Resolution is the resolver's verdict for one candidate. Target is set for
// duplicates; Candidates carries every qualifying match for ambiguous cases.
type Resolution struct {
	Kind       ResolutionKind   `json:"kind"`
	Target     MatchCandidate   `json:"target,omitempty"`
	Candidates []MatchCandidate `json:"candidates,omitempty"`
}

// Resolver decides whether an incoming candidate is new, a duplicate of a
// single archive record, or ambiguous between several. Deterministic for a
// given archive state, threshold and tie band.
type Resolver struct {
	finder    *CandidateFinder
	weights   ScoringWeights
	threshold float64
	tieBand   float64
}

func NewResolver(finder *CandidateFinder, weights ScoringWeights, threshold, tieBand float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	if tieBand <= 0 {
		tieBand = DefaultTieBandWidth
	}
	return &Resolver{
		finder:    finder,
		weights:   weights,
		threshold: threshold,
		tieBand:   tieBand,
	}
}

func (r *Resolver) Resolve(ctx context.Context, c Candidate) (Resolution, error) {
	// Without usable coordinates there is no bounded candidate set to compare
	// against; degrade to "new" rather than scanning the whole archive.
	if !validLocation(c.Location) {
		return Resolution{Kind: ResolutionNew}, nil
	}

	nearby, err := r.finder.FindNear(ctx, *c.Location)
	if err != nil {
		return Resolution{}, err
	}

	var qualifying []MatchCandidate
	for _, existing := range nearby {
		sim := ScoreCandidate(c, existing, r.weights, r.threshold)
		if !sim.IsDuplicate {
			continue
		}
		qualifying = append(qualifying, MatchCandidate{Artwork: existing, Similarity: sim})
	}

	if len(qualifying) == 0 {
		return Resolution{Kind: ResolutionNew}, nil
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].Similarity.Score != qualifying[j].Similarity.Score {
			return qualifying[i].Similarity.Score > qualifying[j].Similarity.Score
		}
		return qualifying[i].Artwork.ID < qualifying[j].Artwork.ID
	})

	if len(qualifying) == 1 {
		return Resolution{Kind: ResolutionDuplicate, Target: qualifying[0]}, nil
	}

	// Two or more qualify. Only treat as ambiguous when the top two are
	// within the tie band; a clear winner is still a plain duplicate.
	if qualifying[0].Similarity.Score-qualifying[1].Similarity.Score < r.tieBand {
		return Resolution{Kind: ResolutionAmbiguous, Candidates: qualifying}, nil
	}
	return Resolution{Kind: ResolutionDuplicate, Target: qualifying[0]}, nil
}
