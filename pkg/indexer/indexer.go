// Package indexer is the public startup-loader API: given raw corpus
// records (articles with their entities, the image-to-article mapping,
// and per-collection embedding vectors) it builds the in-memory indices
// the retrieval pipeline reads from. It is the library entry point for
// any program that needs to build a searchable corpus without going
// through the CLI.
package indexer

import (
	"context"
	"fmt"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/corpus"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/textindex"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/vectorstore"
)

// ArticleRecord is one article and its extracted entities, as loaded
// from the upstream NER/ingestion step.
type ArticleRecord struct {
	ID       string
	Entities []model.Entity
}

// ImageRecord associates an image with its owning article.
type ImageRecord struct {
	ID        string
	ArticleID string
}

// VectorCollection is a named set of embedding vectors to register with
// the vector store, either a search collection (image embeddings) or a
// query/view collection (per-query caption embeddings).
type VectorCollection struct {
	Name    string
	Dim     int
	Metric  string // "cos" or "l2", forwarded to vectorstore.EnsureCollection
	IDs     []string
	Vectors [][]float32
}

// Built holds the fully constructed indices a pipeline.Orchestrator
// needs: the entity-weighted text index, the vector store registry, and
// the corpus relationship store.
type Built struct {
	Text    *textindex.Index
	Vectors *vectorstore.Registry
	Corpus  *corpus.Store
}

// Close releases every resource Built holds.
func (b *Built) Close() error {
	var firstErr error
	if b.Text != nil {
		if err := b.Text.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.Corpus != nil {
		if err := b.Corpus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Options configures a Load run.
type Options struct {
	// TextIndexPath is the on-disk Bleve index path; empty opens an
	// in-memory index.
	TextIndexPath string
	// CorpusPath is the on-disk SQLite database path; empty opens an
	// in-memory database.
	CorpusPath string
	// EntityWeights overrides the default per-label weight table.
	EntityWeights map[model.EntityLabel]float64
	// VectorCacheSize bounds the query-embedding LRU cache; 0 or less
	// uses 1024.
	VectorCacheSize int
}

// Load builds a complete Built set from raw records: it indexes every
// article's entities for stage-1 retrieval, records the article/image
// relationship in the corpus store, and registers every vector
// collection (search and query/view) with the vector store.
func Load(ctx context.Context, opts Options, articles []ArticleRecord, images []ImageRecord, collections []VectorCollection) (*Built, error) {
	text, err := textindex.New(opts.TextIndexPath, opts.EntityWeights)
	if err != nil {
		return nil, fmt.Errorf("indexer: open text index: %w", err)
	}

	docs := make([]textindex.Document, len(articles))
	for i, a := range articles {
		docs[i] = textindex.Document{ID: a.ID, Entities: a.Entities}
	}
	if err := text.IndexDocuments(ctx, docs); err != nil {
		text.Close()
		return nil, fmt.Errorf("indexer: index articles: %w", err)
	}

	store, err := corpus.Open(opts.CorpusPath)
	if err != nil {
		text.Close()
		return nil, fmt.Errorf("indexer: open corpus: %w", err)
	}
	for _, a := range articles {
		if err := store.PutArticle(ctx, a.ID, a.Entities); err != nil {
			text.Close()
			store.Close()
			return nil, fmt.Errorf("indexer: put article %s: %w", a.ID, err)
		}
	}
	for _, img := range images {
		if err := store.PutImage(ctx, img.ID, img.ArticleID); err != nil {
			text.Close()
			store.Close()
			return nil, fmt.Errorf("indexer: put image %s: %w", img.ID, err)
		}
	}

	cacheSize := opts.VectorCacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	vectors, err := vectorstore.NewRegistry(cacheSize)
	if err != nil {
		text.Close()
		store.Close()
		return nil, fmt.Errorf("indexer: create vector registry: %w", err)
	}

	for _, c := range collections {
		if c.Dim > 0 {
			col, err := vectors.EnsureCollection(c.Name, c.Dim, c.Metric)
			if err != nil {
				text.Close()
				store.Close()
				return nil, fmt.Errorf("indexer: ensure collection %s: %w", c.Name, err)
			}
			if err := col.Add(c.IDs, c.Vectors); err != nil {
				text.Close()
				store.Close()
				return nil, fmt.Errorf("indexer: populate collection %s: %w", c.Name, err)
			}
			continue
		}

		idToVec := make(map[string][]float32, len(c.IDs))
		for i, id := range c.IDs {
			idToVec[id] = c.Vectors[i]
		}
		vectors.LoadQueryEmbeddings(c.Name, idToVec)
	}

	return &Built{Text: text, Vectors: vectors, Corpus: store}, nil
}
