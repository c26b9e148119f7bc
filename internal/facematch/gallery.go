package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Gallery is the immutable set of embeddings eligible for matching in one session.
// Entries keep roster order; on equal distance the earlier entry wins.
type Gallery struct {
	entries []Entry
	dim     int
	index   *Index // nil for small galleries
}

// BuildGallery collects registered embeddings from the roster.
// Students without a registered face are skipped. All embeddings must have the same length.
func BuildGallery(roster []database.Student) (*Gallery, error) {
	g := &Gallery{}
	for _, s := range roster {
		if !s.FaceRegistered || len(s.Embedding) == 0 {
			continue
		}
		if g.dim == 0 {
			g.dim = len(s.Embedding)
		} else if len(s.Embedding) != g.dim {
			return nil, fmt.Errorf("student %s has %d values, gallery has %d: %w",
				s.ID, len(s.Embedding), g.dim, ErrDimensionMismatch)
		}
		g.entries = append(g.entries, Entry{StudentID: s.ID, Embedding: s.Embedding})
	}

	if len(g.entries) > constants.HNSWMinGallerySize {
		g.index = NewIndex(g.entries)
	}
	return g, nil
}

// Empty reports whether the gallery holds no embeddings; AI matching is unavailable then.
func (g *Gallery) Empty() bool {
	return g == nil || len(g.entries) == 0
}

// Len returns the number of entries
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Dim returns the embedding dimension, or 0 for an empty gallery
func (g *Gallery) Dim() int {
	if g == nil {
		return 0
	}
	return g.dim
}

// CheckDim verifies that embeddings of the given length can be matched against the gallery.
func (g *Gallery) CheckDim(dim int) error {
	if g.Empty() || dim == g.dim {
		return nil
	}
	return fmt.Errorf("detector produces %d values, gallery has %d: %w", dim, g.dim, ErrDimensionMismatch)
}

// Match finds the nearest gallery entry. The face is Known only if the
// distance is at most threshold.
func (g *Gallery) Match(embedding []float32, threshold float64) (Match, error) {
	if g.Empty() {
		return Match{}, ErrEmptyGallery
	}
	if err := g.CheckDim(len(embedding)); err != nil {
		return Match{}, err
	}

	// The graph only seeds the bound; every entry is still compared so the
	// result is the exact nearest neighbour with the earliest entry on ties.
	best, bestSq := -1, math.Inf(1)
	consider := func(i int) {
		sq, ok := squaredDistanceWithin(embedding, g.entries[i].Embedding, bestSq)
		if ok && (best < 0 || sq < bestSq || i < best) {
			best, bestSq = i, sq
		}
	}

	if g.index != nil {
		for _, i := range g.index.Candidates(embedding, constants.HNSWCandidates) {
			consider(i)
		}
	}
	for i := range g.entries {
		consider(i)
	}
	bestDist := math.Sqrt(bestSq)

	m := Match{Distance: bestDist}
	if bestDist <= threshold {
		m.StudentID = g.entries[best].StudentID
		m.Known = true
	}
	return m, nil
}
