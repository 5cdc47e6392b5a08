package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"yobot/internal/catalog"
	"yobot/internal/model"
	"yobot/internal/utils"
)

// DefaultTopK is how many listings feed the answering agent
const DefaultTopK = 5

// Retriever ranks catalog listings by cosine similarity to a query
type Retriever struct {
	embedder Embedder
	k        int
	metrics  *Metrics
}

// NewRetriever creates a retriever returning the top k listings
func NewRetriever(embedder Embedder, k int, metrics *Metrics) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		k:        k,
		metrics:  metrics,
	}
}

// Retrieve embeds the normalized query once and returns the k most similar
// listings, highest score first with catalog order breaking ties.
// There is no score threshold. Embedding failures are returned as-is.
func (r *Retriever) Retrieve(ctx context.Context, cat *catalog.Catalog, query string) ([]model.RetrievedListing, error) {
	if cat == nil || cat.Len() == 0 {
		return []model.RetrievedListing{}, nil
	}

	start := time.Now()
	vecs, err := r.embedder.CreateEmbeddings(ctx, []string{utils.Normalize(query)})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected one query embedding, got %d", len(vecs))
	}
	queryVec := vecs[0]
	if len(queryVec) != cat.Dimension() {
		return nil, fmt.Errorf("query has %d dimensions, catalog has %d: %w",
			len(queryVec), cat.Dimension(), catalog.ErrDimensionMismatch)
	}

	hits := TopK(cat, queryVec, r.k)
	r.metrics.ObserveRetrieval(time.Since(start))
	return hits, nil
}

// TopK scores every catalog entry against queryVec and keeps the best k
func TopK(cat *catalog.Catalog, queryVec []float32, k int) []model.RetrievedListing {
	n := cat.Len()
	order := make([]int, n)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		order[i] = i
		scores[i] = CosineSimilarity(queryVec, cat.Embedding(i))
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > n {
		k = n
	}
	hits := make([]model.RetrievedListing, k)
	for rank := 0; rank < k; rank++ {
		e := cat.Entry(order[rank])
		hits[rank] = model.RetrievedListing{
			Listing:   e.Listing,
			Rendering: e.Rendering,
			Score:     scores[order[rank]],
		}
	}
	return hits
}

// CosineSimilarity returns 0 when lengths differ or either vector is zero
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
