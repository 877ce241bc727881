// Package model defines the shared data types that flow through the
// retrieval pipeline: queries with their extracted entities, candidate
// articles and images, ranked result lists, and model family descriptors.
package model

import "sort"

// Sentinel is written into an output cell when a query has no result at
// that rank. It matches the marker used by the original submission format.
const Sentinel = "#"

// EntityLabel identifies the NER category of an extracted entity.
type EntityLabel string

// Entity labels recognized by the scorer. MISC and DEFAULT are fallback
// buckets for labels with no dedicated weight.
const (
	LabelPerson      EntityLabel = "PERSON"
	LabelOrg         EntityLabel = "ORG"
	LabelGPE         EntityLabel = "GPE"
	LabelCardinal    EntityLabel = "CARDINAL"
	LabelEvent       EntityLabel = "EVENT"
	LabelFac         EntityLabel = "FAC"
	LabelNorp        EntityLabel = "NORP"
	LabelTime        EntityLabel = "TIME"
	LabelDate        EntityLabel = "DATE"
	LabelProduct     EntityLabel = "PRODUCT"
	LabelLaw         EntityLabel = "LAW"
	LabelLoc         EntityLabel = "LOC"
	LabelWorkOfArt   EntityLabel = "WORK_OF_ART"
	LabelMoney       EntityLabel = "MONEY"
	LabelPercent     EntityLabel = "PERCENT"
	LabelQuantity    EntityLabel = "QUANTITY"
	LabelLanguage    EntityLabel = "LANGUAGE"
	LabelOrdinal     EntityLabel = "ORDINAL"
	LabelMisc        EntityLabel = "MISC"
	LabelDefault     EntityLabel = "DEFAULT"
)

// Entity is a single named entity extracted from a query caption.
type Entity struct {
	Text  string
	Label EntityLabel
}

// Query is a single retrieval request: a caption already broken into
// entities by an upstream NER step.
type Query struct {
	ID       string
	Caption  string
	Entities []Entity
	// HasArticles is false when the query was classified as having no
	// candidate stage-1 articles; it drives the "optimized" view-set
	// restriction in family aggregation.
	HasArticles bool
}

// Article is a stage-1 text document scored against a query's entities.
type Article struct {
	ID    string
	Score float64
}

// Image is a stage-2 candidate scored against a query embedding, with an
// optional rank-aware boost applied on top of the raw similarity.
type Image struct {
	ID          string
	BaseScore   float64
	ArticleRank int
	Boost       float64
	FinalScore  float64
}

// RankedList is an ordered set of scored IDs for a single query, used
// uniformly across articles, images, and fused results.
type RankedList struct {
	QueryID string
	Entries []RankedEntry
}

// RankedEntry is one (id, score) pair within a RankedList. Rank is
//1-indexed position after sorting by descending Score.
type RankedEntry struct {
	ID    string
	Score float64
	Rank  int
}

// SortByScoreDesc sorts entries by descending score and assigns 1-indexed
// ranks, breaking ties by ID for determinism.
func (rl *RankedList) SortByScoreDesc() {
	sort.SliceStable(rl.Entries, func(i, j int) bool {
		if rl.Entries[i].Score != rl.Entries[j].Score {
			return rl.Entries[i].Score > rl.Entries[j].Score
		}
		return rl.Entries[i].ID < rl.Entries[j].ID
	})
	for i := range rl.Entries {
		rl.Entries[i].Rank = i + 1
	}
}

// IDs returns the entry IDs in their current order, up to limit (0 = all).
func (rl *RankedList) IDs(limit int) []string {
	n := len(rl.Entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = rl.Entries[i].ID
	}
	return out
}

// QueryCollection is one named vector collection within a model family,
// carrying its own fusion weight (e.g. a "Query", "Summary", or "Concise"
// view of the same embedding space).
type QueryCollection struct {
	Name   string
	Weight float64
}

// ModelFamily groups the view collections produced by one embedding model
// (e.g. a CLIP checkpoint) along with the family-level fusion weight used
// when combining results across families.
type ModelFamily struct {
	Name             string
	Weight           float64
	SearchCollection string
	QueryCollections []QueryCollection
}
