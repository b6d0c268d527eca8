package index

import (
	"context"
	"fmt"

	"github.com/campusbot/campusbot/internal/log"
)

// DefaultTopK is the number of chunks retrieved when the caller passes k <= 0.
const DefaultTopK = 3

// Result is a retrieved chunk with its similarity to the query.
type Result struct {
	Content    string
	Metadata   map[string]string
	Similarity float32 // cosine similarity, higher is closer
}

// Retriever answers nearest-chunk queries against a Manager's collection.
// Safe for concurrent use while the index is not being rebuilt.
type Retriever struct {
	manager *Manager
	logger  log.Logger
}

// NewRetriever creates a Retriever reading from the given manager.
func NewRetriever(manager *Manager, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{manager: manager, logger: logger}
}

// Retrieve returns up to k chunks ranked by descending similarity to query.
// k <= 0 uses DefaultTopK. Fewer than k results are returned when the index
// holds fewer chunks; an empty index yields an empty result set, not an
// error. Result order between equal similarities follows insertion order but
// is not part of the contract.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	col := r.manager.Collection()
	if col == nil {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection, so clamp.
	if count := col.Count(); count == 0 {
		return nil, nil
	} else if k > count {
		k = count
	}

	hits, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Similarity: hit.Similarity,
		})
	}

	r.logger.Debug("retrieved chunks", "query_len", len(query), "k", k, "results", len(results))
	return results, nil
}
