//go:build ignore

// Package main generates a synthetic corpus manifest and query batch for
// benchmarking the retrieval pipeline.
// Usage: go run scripts/generate-test-corpus.go -articles 1000 -output testdata/bench
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numArticles  = flag.Int("articles", 1000, "number of articles to generate")
	imagesPerArt = flag.Int("images-per-article", 3, "average images generated per article")
	numQueries   = flag.Int("queries", 200, "number of queries to generate")
	dim          = flag.Int("dim", 32, "embedding dimension for the synthetic vector collection")
	outputDir    = flag.String("output", "testdata/bench", "output directory")
	seed         = flag.Int64("seed", 42, "random seed for reproducibility")
)

var entityLabels = []string{"PERSON", "ORG", "GPE", "EVENT", "DATE", "PRODUCT"}

var entityPool = []string{
	"Mariners", "FIFA", "United Nations", "Berlin", "NASA", "Olympics",
	"Hurricane Milton", "European Union", "Tokyo", "World Cup", "NATO",
	"SpaceX", "Senate", "Wimbledon", "G7 Summit", "Red Cross",
	"Apple", "Amazon River", "Everest", "Biden", "Zelensky",
}

// corpusManifest / queryManifest mirror the on-disk JSON shapes consumed
// by cmd/retrieval's search command.
type corpusManifest struct {
	Articles    []articleRec `json:"articles"`
	Images      []imageRec   `json:"images"`
	Collections []collection `json:"collections"`
}

type articleRec struct {
	ID       string     `json:"id"`
	Entities []entityRec `json:"entities"`
}

type imageRec struct {
	ID        string `json:"id"`
	ArticleID string `json:"article_id"`
}

type entityRec struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type collection struct {
	Name    string      `json:"name"`
	Dim     int         `json:"dim"`
	Metric  string      `json:"metric"`
	IDs     []string    `json:"ids"`
	Vectors [][]float32 `json:"vectors"`
}

type queryRec struct {
	ID          string      `json:"id"`
	Caption     string      `json:"caption"`
	HasArticles bool        `json:"has_articles"`
	Entities    []entityRec `json:"entities"`
}

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("generating %d articles, ~%d images/article, %d queries in %s...\n",
		*numArticles, *imagesPerArt, *numQueries, *outputDir)

	manifest, articleIDs, imageIDs := generateCorpus()
	queries := generateQueries(articleIDs)

	if err := writeJSON(filepath.Join(*outputDir, "corpus.json"), manifest); err != nil {
		fmt.Fprintf(os.Stderr, "error writing corpus manifest: %v\n", err)
		os.Exit(1)
	}
	if err := writeJSON(filepath.Join(*outputDir, "queries.json"), queries); err != nil {
		fmt.Fprintf(os.Stderr, "error writing query manifest: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d articles, %d images, %d queries.\n", len(articleIDs), len(imageIDs), len(queries))
}

func generateCorpus() (corpusManifest, []string, []string) {
	articles := make([]articleRec, 0, *numArticles)
	articleIDs := make([]string, 0, *numArticles)
	images := make([]imageRec, 0, *numArticles**imagesPerArt)
	imageIDs := make([]string, 0, *numArticles**imagesPerArt)

	for i := 0; i < *numArticles; i++ {
		id := fmt.Sprintf("article-%05d", i)
		articleIDs = append(articleIDs, id)
		articles = append(articles, articleRec{ID: id, Entities: randomEntities()})

		n := 1 + rand.Intn(2**imagesPerArt)
		for j := 0; j < n; j++ {
			imgID := fmt.Sprintf("%s-img-%02d", id, j)
			imageIDs = append(imageIDs, imgID)
			images = append(images, imageRec{ID: imgID, ArticleID: id})
		}
	}

	collections := []collection{
		{
			Name:    "clip-vit-l14",
			Dim:     *dim,
			Metric:  "cos",
			IDs:     imageIDs,
			Vectors: randomVectors(len(imageIDs), *dim),
		},
	}

	return corpusManifest{Articles: articles, Images: images, Collections: collections}, articleIDs, imageIDs
}

func generateQueries(articleIDs []string) []queryRec {
	queries := make([]queryRec, 0, *numQueries)
	for i := 0; i < *numQueries; i++ {
		entities := randomEntities()
		caption := "a photo showing "
		for j, e := range entities {
			if j > 0 {
				caption += " and "
			}
			caption += e.Text
		}
		queries = append(queries, queryRec{
			ID:          fmt.Sprintf("query-%04d", i),
			Caption:     caption,
			HasArticles: len(articleIDs) > 0,
			Entities:    entities,
		})
	}
	return queries
}

func randomEntities() []entityRec {
	n := 1 + rand.Intn(3)
	entities := make([]entityRec, n)
	for i := range entities {
		entities[i] = entityRec{
			Text:  entityPool[rand.Intn(len(entityPool))],
			Label: entityLabels[rand.Intn(len(entityLabels))],
		}
	}
	return entities
}

func randomVectors(n, d int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, d)
		var norm float64
		for j := range v {
			v[j] = rand.Float32()*2 - 1
			norm += float64(v[j]) * float64(v[j])
		}
		vectors[i] = v
	}
	return vectors
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
