// Package vectorstore implements the vector-search client (Module B):
// per-view query embedding lookup and article-conditioned nearest
// neighbor search over image embeddings, backed by the pure-Go coder/hnsw
// graph. A small LRU cache absorbs repeated query-embedding lookups
// across the many view collections a family searches.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrDimensionMismatch is returned when a vector's length does not match
// a collection's configured dimensionality.
type ErrDimensionMismatch struct {
	Collection string
	Expected   int
	Got        int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: collection %q expects dimension %d, got %d", e.Collection, e.Expected, e.Got)
}

// Result is one nearest-neighbor hit.
type Result struct {
	ID         string
	Similarity float64
	Rank       int
}

// Registry holds the query-embedding tables (one per view collection)
// and the image search collections (one per model family's search
// collection) that together back Module B's two operations.
type Registry struct {
	mu sync.RWMutex

	queryEmbeddings map[string]map[string][]float32
	collections     map[string]*Collection

	cache *lru.Cache[string, []float32]
}

// NewRegistry creates an empty registry. cacheSize bounds the number of
// query-embedding lookups cached across view collections; 0 disables
// caching.
func NewRegistry(cacheSize int) (*Registry, error) {
	r := &Registry{
		queryEmbeddings: make(map[string]map[string][]float32),
		collections:     make(map[string]*Collection),
	}
	if cacheSize > 0 {
		c, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: create lru cache: %w", err)
		}
		r.cache = c
	}
	return r, nil
}

// LoadQueryEmbeddings registers the embedding table for one view
// collection, replacing any previously loaded table of the same name.
func (r *Registry) LoadQueryEmbeddings(viewCollection string, embeddings map[string][]float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queryEmbeddings[viewCollection] = embeddings
	if r.cache != nil {
		r.cache.Purge()
	}
}

// GetQueryEmbedding looks up the stored embedding for a query under a
// view collection. A missing collection or query ID is a non-error:
// found is false and the vector is nil.
func (r *Registry) GetQueryEmbedding(ctx context.Context, viewCollection, queryID string) (vec []float32, found bool, err error) {
	key := viewCollection + "\x00" + queryID
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v, true, nil
		}
	}

	r.mu.RLock()
	table, ok := r.queryEmbeddings[viewCollection]
	if !ok {
		r.mu.RUnlock()
		return nil, false, nil
	}
	v, ok := table[queryID]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if r.cache != nil {
		r.cache.Add(key, v)
	}
	return v, true, nil
}

// EnsureCollection returns the named search collection, creating it with
// the given dimensionality and metric ("cos" or "l2") if it does not
// already exist.
func (r *Registry) EnsureCollection(name string, dim int, metric string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.collections[name]; ok {
		return c, nil
	}
	c, err := newCollection(name, dim, metric)
	if err != nil {
		return nil, err
	}
	r.collections[name] = c
	return c, nil
}

// Search runs nearest-neighbor search against a named search collection.
// A nil or empty candidateIDs set means unrestricted search; otherwise
// results are filtered to that membership set before truncation to
// top-k, matching the candidate-filter semantics of Module B.
func (r *Registry) Search(ctx context.Context, searchCollection string, vector []float32, candidateIDs map[string]bool, topK int) ([]Result, error) {
	r.mu.RLock()
	c, ok := r.collections[searchCollection]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return c.search(vector, candidateIDs, topK)
}

// Collection is one named image-embedding search collection.
type Collection struct {
	mu     sync.RWMutex
	name   string
	dim    int
	metric string
	graph  *hnsw.Graph[uint64]
	idMap  map[string]uint64
	keyMap map[uint64]string
	next   uint64
}

func newCollection(name string, dim int, metric string) (*Collection, error) {
	if metric == "" {
		metric = "cos"
	}
	g := hnsw.NewGraph[uint64]()
	switch metric {
	case "cos":
		g.Distance = hnsw.CosineDistance
	case "l2":
		g.Distance = hnsw.EuclideanDistance
	default:
		return nil, fmt.Errorf("vectorstore: unknown metric %q", metric)
	}
	g.M = 16
	g.EfSearch = 40
	g.Ml = 0.25
	return &Collection{
		name:   name,
		dim:    dim,
		metric: metric,
		graph:  g,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

// Add inserts or replaces the vectors for the given image IDs.
func (c *Collection) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("vectorstore: ids/vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range ids {
		v := vectors[i]
		if len(v) != c.dim {
			return ErrDimensionMismatch{Collection: c.name, Expected: c.dim, Got: len(v)}
		}
		if oldKey, exists := c.idMap[id]; exists {
			delete(c.keyMap, oldKey)
			delete(c.idMap, id)
		}
		vec := make([]float32, len(v))
		copy(vec, v)
		if c.metric == "cos" {
			normalize(vec)
		}
		key := c.next
		c.next++
		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[id] = key
		c.keyMap[key] = id
	}
	return nil
}

// search finds nearest neighbors to vector, optionally filtered to
// candidateIDs, truncated to topK and sorted by descending similarity.
func (c *Collection) search(vector []float32, candidateIDs map[string]bool, topK int) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(vector) != c.dim {
		return nil, ErrDimensionMismatch{Collection: c.name, Expected: c.dim, Got: len(vector)}
	}
	if c.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(vector))
	copy(q, vector)
	if c.metric == "cos" {
		normalize(q)
	}

	k := topK
	if len(candidateIDs) > 0 {
		// Membership filtering happens after the ANN search, so over-fetch
		// the full graph to avoid missing candidates ranked beyond topK.
		k = c.graph.Len()
	}
	if k <= 0 {
		k = topK
	}

	nodes := c.graph.Search(q, k)
	results := make([]Result, 0, len(nodes))
	for _, n := range nodes {
		id, ok := c.keyMap[n.Key]
		if !ok {
			continue
		}
		if len(candidateIDs) > 0 && !candidateIDs[id] {
			continue
		}
		dist := c.graph.Distance(q, n.Value)
		results = append(results, Result{ID: id, Similarity: distanceToSimilarity(dist, c.metric)})
	}

	sortResultsDesc(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func sortResultsDesc(r []Result) {
	// Small result sets (bounded by topK or graph size); insertion sort
	// keeps this dependency-free and stable on similarity ties.
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].Similarity > r[j-1].Similarity; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}

func distanceToSimilarity(distance float64, metric string) float64 {
	switch metric {
	case "cos":
		return 1 - distance
	default:
		return 1 / (1 + distance)
	}
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
