// Package searcher is the public library surface over the retrieval
// core: a thin facade over internal/pipeline and internal/rrf for
// callers embedding the engine directly (as opposed to driving it
// through the CLI or the MCP server).
package searcher

import (
	"context"
	"errors"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/rrf"
)

// ErrNilOrchestrator is returned when constructing a Searcher without an
// orchestrator.
var ErrNilOrchestrator = errors.New("searcher: orchestrator is required")

// ErrNilTextIndex is returned when constructing a Searcher without a
// text index.
var ErrNilTextIndex = errors.New("searcher: text index is required")

// ErrEmptyCaption is returned when a query carries no caption text.
var ErrEmptyCaption = errors.New("searcher: query caption is required")

// Searcher performs article and image retrieval and exposes the
// standalone reranker, for embedding directly in a Go program.
//
// Implementations must be safe for concurrent use.
type Searcher interface {
	// SearchArticles runs the entity-weighted stage-1 retriever alone and
	// returns up to limit ranked articles (0 uses the configured
	// ArticleTopK).
	SearchArticles(ctx context.Context, q model.Query, limit int) (model.RankedList, error)

	// SearchImages runs the full two-stage cascade for a single query:
	// stage-1 article retrieval, article-conditioned stage-2 image search
	// across every active family and view, rank-aware boosting, and
	// two-level fusion.
	SearchImages(ctx context.Context, q model.Query) (model.RankedList, error)

	// SearchImagesBatch runs SearchImages concurrently over many queries,
	// bounded by the Searcher's configured worker cap.
	SearchImagesBatch(ctx context.Context, queries []model.Query) ([]model.RankedList, error)

	// Rerank fuses already-ranked ID lists for the same queries via
	// reciprocal rank fusion.
	Rerank(cfg rrf.Config, files []rrf.FileResult, queryIDs []string) map[string][]string
}
