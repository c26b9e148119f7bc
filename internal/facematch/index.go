package facematch

import (
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW graph parameters for face embeddings
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswEfSearch is the search candidate pool size
	hnswEfSearch = 64
)

// Index wraps an HNSW graph keyed by gallery position.
// It only orders the search; the caller still compares every entry exactly.
type Index struct {
	graph *hnsw.Graph[int]
	mu    sync.RWMutex
}

// NewIndex builds the graph from gallery entries.
func NewIndex(entries []Entry) *Index {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1 / math.Log(float64(hnswMaxNeighbors))
	g.EfSearch = hnswEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, e.Embedding))
	}
	return &Index{graph: g}
}

// Candidates returns the gallery positions of the k approximate nearest entries.
func (x *Index) Candidates(query []float32, k int) []int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || x.graph.Len() == 0 {
		return nil
	}

	neighbors := x.graph.Search(query, k)
	ids := make([]int, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids
}

// Len returns the number of indexed entries
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.graph == nil {
		return 0
	}
	return x.graph.Len()
}
