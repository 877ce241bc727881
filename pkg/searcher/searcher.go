package searcher

import (
	"context"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/pipeline"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/rrf"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/textindex"
)

// retrievalSearcher is the default Searcher, wrapping a pipeline
// orchestrator and the stage-1 text index it shares.
type retrievalSearcher struct {
	orchestrator *pipeline.Orchestrator
	textIndex    *textindex.Index
	articleTopK  int
}

// New builds a Searcher from an already-wired orchestrator and its text
// index. Use pkg/indexer.Load to build the underlying indices from raw
// corpus records.
func New(orchestrator *pipeline.Orchestrator, text *textindex.Index, cfg config.Config) (Searcher, error) {
	if orchestrator == nil {
		return nil, ErrNilOrchestrator
	}
	if text == nil {
		return nil, ErrNilTextIndex
	}
	return &retrievalSearcher{orchestrator: orchestrator, textIndex: text, articleTopK: cfg.ArticleTopK}, nil
}

func (s *retrievalSearcher) SearchArticles(ctx context.Context, q model.Query, limit int) (model.RankedList, error) {
	if q.Caption == "" {
		return model.RankedList{}, ErrEmptyCaption
	}
	if limit <= 0 {
		limit = s.articleTopK
	}
	return s.textIndex.Search(ctx, q, limit)
}

func (s *retrievalSearcher) SearchImages(ctx context.Context, q model.Query) (model.RankedList, error) {
	if q.Caption == "" {
		return model.RankedList{}, ErrEmptyCaption
	}
	lists, err := s.orchestrator.Run(ctx, []model.Query{q})
	if err != nil {
		return model.RankedList{}, err
	}
	return lists[0], nil
}

func (s *retrievalSearcher) SearchImagesBatch(ctx context.Context, queries []model.Query) ([]model.RankedList, error) {
	for _, q := range queries {
		if q.Caption == "" {
			return nil, ErrEmptyCaption
		}
	}
	return s.orchestrator.Run(ctx, queries)
}

func (s *retrievalSearcher) Rerank(cfg rrf.Config, files []rrf.FileResult, queryIDs []string) map[string][]string {
	return rrf.Rerank(cfg, files, queryIDs)
}
