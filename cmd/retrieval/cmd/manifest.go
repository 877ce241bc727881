package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/indexer"
)

// corpusManifest is the on-disk JSON shape a corpus file loads into
// pkg/indexer.Load: articles and their entities, the image/article
// relationship, and every vector collection (search collections carry a
// non-zero dim, query/view collections leave it at 0).
type corpusManifest struct {
	Articles []struct {
		ID       string `json:"id"`
		Entities []struct {
			Text  string `json:"text"`
			Label string `json:"label"`
		} `json:"entities"`
	} `json:"articles"`
	Images []struct {
		ID        string `json:"id"`
		ArticleID string `json:"article_id"`
	} `json:"images"`
	Collections []struct {
		Name    string      `json:"name"`
		Dim     int         `json:"dim"`
		Metric  string      `json:"metric"`
		IDs     []string    `json:"ids"`
		Vectors [][]float32 `json:"vectors"`
	} `json:"collections"`
}

// queryManifest is the on-disk JSON shape for the query batch a search
// run processes.
type queryManifest []struct {
	ID          string `json:"id"`
	Caption     string `json:"caption"`
	HasArticles bool   `json:"has_articles"`
	Entities    []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
	} `json:"entities"`
}

// loadCorpusManifest reads a corpusManifest from path and builds the
// in-memory indices via pkg/indexer.Load.
func loadCorpusManifest(ctx context.Context, path string, opts indexer.Options) (*indexer.Built, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: read corpus manifest %s: %w", path, err)
	}
	var m corpusManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cmd: parse corpus manifest %s: %w", path, err)
	}

	articles := make([]indexer.ArticleRecord, len(m.Articles))
	for i, a := range m.Articles {
		entities := make([]model.Entity, len(a.Entities))
		for j, e := range a.Entities {
			entities[j] = model.Entity{Text: e.Text, Label: model.EntityLabel(e.Label)}
		}
		articles[i] = indexer.ArticleRecord{ID: a.ID, Entities: entities}
	}

	images := make([]indexer.ImageRecord, len(m.Images))
	for i, img := range m.Images {
		images[i] = indexer.ImageRecord{ID: img.ID, ArticleID: img.ArticleID}
	}

	collections := make([]indexer.VectorCollection, len(m.Collections))
	for i, c := range m.Collections {
		collections[i] = indexer.VectorCollection{
			Name: c.Name, Dim: c.Dim, Metric: c.Metric, IDs: c.IDs, Vectors: c.Vectors,
		}
	}

	return indexer.Load(ctx, opts, articles, images, collections)
}

// loadQueryManifest reads a queryManifest from path into model.Query values.
func loadQueryManifest(path string) ([]model.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: read query manifest %s: %w", path, err)
	}
	var m queryManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cmd: parse query manifest %s: %w", path, err)
	}

	out := make([]model.Query, len(m))
	for i, q := range m {
		entities := make([]model.Entity, len(q.Entities))
		for j, e := range q.Entities {
			entities[j] = model.Entity{Text: e.Text, Label: model.EntityLabel(e.Label)}
		}
		out[i] = model.Query{ID: q.ID, Caption: q.Caption, Entities: entities, HasArticles: q.HasArticles}
	}
	return out, nil
}
