// Package pipeline implements the orchestrator (Module G): per query it
// runs the stage-1 entity-weighted article retrieval, the stage-2
// article-conditioned image search over every active family and view,
// applies the rank-aware booster, and fuses results two levels deep
// (per-family, then cross-family) using internal/fusion.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/booster"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	retrievalerrors "github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/errors"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/fusion"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/textindex"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/vectorstore"
)

// sentinelArticleRank is used for images whose article never appears in
// the stage-1 list, matching the reference pipeline's default of 999.
const sentinelArticleRank = 999

// Corpus resolves the Article<->Image relationship the orchestrator
// needs for candidate filtering and rank-aware boosting.
type Corpus interface {
	// ImagesForArticles returns the set of image IDs belonging to any of
	// the given articles, used as the stage-2 candidate filter.
	ImagesForArticles(articleIDs []string) map[string]bool
	// ArticleForImage returns the owning article ID for an image, if known.
	ArticleForImage(imageID string) (articleID string, ok bool)
}

// QueryFailure records a single query's cascade failure. Query failures
// never abort the batch; they are classified through internal/errors and
// collected so the caller can build a per-run error summary while the
// query's output slot still gets a sentinel (empty) RankedList.
type QueryFailure struct {
	QueryID string
	Err     *retrievalerrors.RetrievalError
}

// Orchestrator wires together Modules A-F for a batch of queries.
type Orchestrator struct {
	cfg       config.Config
	text      *textindex.Index
	vectors   *vectorstore.Registry
	corpus    Corpus
	workerCap int

	mu       sync.Mutex
	failures []QueryFailure
}

// New builds an Orchestrator. workerCap bounds the number of queries
// processed concurrently; 0 means unbounded.
func New(cfg config.Config, text *textindex.Index, vectors *vectorstore.Registry, corpus Corpus, workerCap int) *Orchestrator {
	return &Orchestrator{cfg: cfg, text: text, vectors: vectors, corpus: corpus, workerCap: workerCap}
}

// Run processes every query and returns its fused final RankedList, in
// the same order as the input. A single query's cascade failure never
// aborts the batch: it is logged, classified, recorded for Failures,
// and the query's slot gets an empty RankedList (which output writers
// render as a sentinel row) so every query still appears in the run's
// output. Run only returns a non-nil error for failures outside any
// single query, such as the caller's context being canceled.
func (o *Orchestrator) Run(ctx context.Context, queries []model.Query) ([]model.RankedList, error) {
	out := make([]model.RankedList, len(queries))

	o.mu.Lock()
	o.failures = make([]QueryFailure, 0)
	o.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	if o.workerCap > 0 {
		g.SetLimit(o.workerCap)
	}

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			rl, err := o.runQuery(gctx, q)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				classified := retrievalerrors.Wrap(retrievalerrors.ErrCodeSearchFailed, err)
				slog.Warn("query cascade failed, recording sentinel result",
					slog.String("query_id", q.ID),
					slog.String("code", classified.Code),
					slog.Bool("retryable", classified.Retryable),
					slog.String("error", err.Error()))
				o.mu.Lock()
				o.failures = append(o.failures, QueryFailure{QueryID: q.ID, Err: classified})
				o.mu.Unlock()
				out[i] = model.RankedList{QueryID: q.ID}
				return nil
			}
			out[i] = rl
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Failures returns the per-query failures recorded by the most recent
// Run call, in completion order.
func (o *Orchestrator) Failures() []QueryFailure {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]QueryFailure(nil), o.failures...)
}

// runQuery executes the full cascade for a single query.
func (o *Orchestrator) runQuery(ctx context.Context, q model.Query) (model.RankedList, error) {
	articles, err := o.text.Search(ctx, q, o.cfg.ArticleTopK)
	if err != nil {
		return model.RankedList{}, err
	}

	hasArticles := q.HasArticles && len(articles.Entries) > 0

	articleRank := make(map[string]int, len(articles.Entries))
	articleIDs := make([]string, len(articles.Entries))
	for i, e := range articles.Entries {
		articleRank[e.ID] = e.Rank
		articleIDs[i] = e.ID
	}

	var candidateIDs map[string]bool
	if hasArticles && o.corpus != nil {
		candidateIDs = o.corpus.ImagesForArticles(articleIDs)
	}

	active := o.cfg.ActiveFamilies()
	familyLists := make([]fusion.List, 0, len(active))

	for familyName, fc := range active {
		views := o.cfg.ActiveViews(familyName)
		if !hasArticles {
			views = o.cfg.OptimizedViews(familyName)
			candidateIDs = nil
		}

		viewLists := make([]fusion.List, 0, len(views))
		for _, view := range views {
			vec, found, err := o.vectors.GetQueryEmbedding(ctx, view.Name, q.ID)
			if err != nil || !found {
				continue
			}

			hits, err := o.vectors.Search(ctx, fc.SearchCollection, vec, candidateIDs, o.cfg.ImageTopK)
			if err != nil {
				classified := retrievalerrors.Wrap(retrievalerrors.ErrCodeCollectionMissing, err)
				slog.Debug("view search failed, skipping view",
					slog.String("query_id", q.ID), slog.String("family", familyName), slog.String("view", view.Name),
					slog.String("code", classified.Code))
				continue
			}

			boosted := model.RankedList{QueryID: q.ID}
			for _, h := range hits {
				rank := sentinelArticleRank
				if o.corpus != nil {
					if artID, ok := o.corpus.ArticleForImage(h.ID); ok {
						if r, ok := articleRank[artID]; ok {
							rank = r
						}
					}
				}
				final := booster.FinalScore(o.cfg.Booster, h.Similarity, rank)
				boosted.Entries = append(boosted.Entries, model.RankedEntry{ID: h.ID, Score: final})
			}
			boosted.SortByScoreDesc()

			ranks := make(map[string]int, len(boosted.Entries))
			for _, e := range boosted.Entries {
				ranks[e.ID] = e.Rank
			}
			viewLists = append(viewLists, fusion.List{Name: view.Name, Weight: view.Weight, Ranks: ranks})
		}

		collectionResult := fusion.Fuse(fusion.Config{K: o.cfg.RRFConstant, UseVoting: o.cfg.UseVoting}, viewLists)
		if o.cfg.FinalTopK > 0 && len(collectionResult.Entries) > o.cfg.FinalTopK {
			collectionResult.Entries = collectionResult.Entries[:o.cfg.FinalTopK]
		}

		ranks := make(map[string]int, len(collectionResult.Entries))
		for _, e := range collectionResult.Entries {
			ranks[e.ID] = e.Rank
		}
		familyLists = append(familyLists, fusion.List{Name: familyName, Weight: fc.Weight, Ranks: ranks})
	}

	final := fusion.Fuse(fusion.Config{K: o.cfg.FamilyRRFConstant, UseVoting: o.cfg.UseVoting}, familyLists)
	final.QueryID = q.ID
	if o.cfg.FinalTopK > 0 && len(final.Entries) > o.cfg.FinalTopK {
		final.Entries = final.Entries[:o.cfg.FinalTopK]
	}
	return final, nil
}
