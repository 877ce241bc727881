// Package textindex implements the entity-weighted article retriever
// (stage-1 text search). It wraps a Bleve index over the nested entity
// field of each article and scores articles by summing, per query
// entity, the maximum of an exact/fuzzy/prefix match boost scaled by a
// per-label weight, plus a same-label bonus clause.
package textindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

// Inner match boosts, per SPEC_FULL 4.A.
const (
	ExactBoost            = 5.0
	FuzzyBoost             = 2.0
	PrefixBoost            = 1.5
	SameLabelBonusFactor   = 1.3
)

// DefaultEntityWeights returns the empirically tuned per-label weight
// table carried over from the reference scorer. DEFAULT is always
// present and used as the fallback for unrecognized labels.
func DefaultEntityWeights() map[model.EntityLabel]float64 {
	return map[model.EntityLabel]float64{
		model.LabelPerson:    0.5,
		model.LabelOrg:       1.2,
		model.LabelGPE:       1.5,
		model.LabelCardinal:  0.8,
		model.LabelEvent:     2.0,
		model.LabelFac:       2.5,
		model.LabelNorp:      1.0,
		model.LabelTime:      1.5,
		model.LabelDate:      5.0,
		model.LabelProduct:   1.8,
		model.LabelLaw:       2.2,
		model.LabelLoc:       1.5,
		model.LabelWorkOfArt: 2.0,
		model.LabelMoney:     1.0,
		model.LabelPercent:   0.8,
		model.LabelQuantity:  0.8,
		model.LabelLanguage:  1.0,
		model.LabelOrdinal:   0.6,
		model.LabelMisc:      0.7,
		model.LabelDefault:   1.0,
	}
}

// Document is one article's indexable payload: its identifier and the
// entities extracted from its caption or body.
type Document struct {
	ID       string
	Entities []model.Entity
}

type bleveArticleDoc struct {
	Text    string   `json:"text"`
	Labeled []string `json:"labeled"`
}

// Index is the entity-weighted text retriever (Module A).
type Index struct {
	mu      sync.RWMutex
	bi      bleve.Index
	weights map[model.EntityLabel]float64
	closed  bool
}

// New creates or opens an entity index at path. An empty path creates an
// in-memory index, useful for tests.
func New(path string, weights map[model.EntityLabel]float64) (*Index, error) {
	if weights == nil {
		weights = DefaultEntityWeights()
	}
	if _, ok := weights[model.LabelDefault]; !ok {
		weights[model.LabelDefault] = 1.0
	}

	im, err := buildMapping()
	if err != nil {
		return nil, fmt.Errorf("textindex: build mapping: %w", err)
	}

	var bi bleve.Index
	if path == "" {
		bi, err = bleve.NewMemOnly(im)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("textindex: create directory: %w", err)
		}
		bi, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			bi, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("textindex: open index: %w", err)
	}

	return &Index{bi: bi, weights: weights}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "standard"

	labeledField := bleve.NewTextFieldMapping()
	labeledField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("labeled", labeledField)

	im.DefaultMapping = docMapping
	return im, nil
}

// IndexDocuments adds or replaces articles in the index.
func (x *Index) IndexDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return fmt.Errorf("textindex: index is closed")
	}

	batch := x.bi.NewBatch()
	for _, d := range docs {
		texts := make([]string, 0, len(d.Entities))
		labeled := make([]string, 0, len(d.Entities))
		for _, e := range d.Entities {
			t := strings.ToLower(strings.TrimSpace(e.Text))
			if t == "" {
				continue
			}
			texts = append(texts, t)
			if e.Label != "" {
				labeled = append(labeled, strings.ToLower(string(e.Label))+"::"+t)
			}
		}
		doc := bleveArticleDoc{Text: strings.Join(texts, " "), Labeled: labeled}
		if err := batch.Index(d.ID, doc); err != nil {
			return fmt.Errorf("textindex: index document %s: %w", d.ID, err)
		}
	}
	if err := x.bi.Batch(batch); err != nil {
		return fmt.Errorf("textindex: execute batch: %w", err)
	}
	return nil
}

// Close releases the underlying index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.bi.Close()
}

func (x *Index) weightFor(label model.EntityLabel) float64 {
	if w, ok := x.weights[label]; ok {
		return w
	}
	if w, ok := x.weights[model.LabelMisc]; ok {
		return w
	}
	return x.weights[model.LabelDefault]
}

// Search scores every article against the query's entities and returns
// the top-k by descending aggregate score. An empty entity list yields
// an empty (non-error) result, per the retriever's contract.
func (x *Index) Search(ctx context.Context, q model.Query, topK int) (model.RankedList, error) {
	result := model.RankedList{QueryID: q.ID}
	if len(q.Entities) == 0 {
		return result, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return result, fmt.Errorf("textindex: index is closed")
	}

	scores := make(map[string]float64)
	for _, e := range q.Entities {
		txt := strings.ToLower(strings.TrimSpace(e.Text))
		if txt == "" {
			continue
		}
		w := x.weightFor(e.Label)

		exact, err := x.hitSet(ctx, bleve.NewTermQuery(txt), "text")
		if err != nil {
			return model.RankedList{QueryID: q.ID}, nil // transport failure -> empty, never an exception
		}
		fuzzy, err := x.hitSet(ctx, fuzzyQuery(txt), "text")
		if err != nil {
			return model.RankedList{QueryID: q.ID}, nil
		}
		prefix, err := x.hitSet(ctx, bleve.NewPrefixQuery(txt), "text")
		if err != nil {
			return model.RankedList{QueryID: q.ID}, nil
		}

		var sameLabel map[string]bool
		if e.Label != "" {
			term := strings.ToLower(string(e.Label)) + "::" + txt
			sameLabel, err = x.hitSet(ctx, bleve.NewTermQuery(term), "labeled")
			if err != nil {
				return model.RankedList{QueryID: q.ID}, nil
			}
		}

		seen := make(map[string]struct{}, len(exact)+len(fuzzy)+len(prefix))
		for id := range exact {
			seen[id] = struct{}{}
		}
		for id := range fuzzy {
			seen[id] = struct{}{}
		}
		for id := range prefix {
			seen[id] = struct{}{}
		}
		for id := range seen {
			clause := 0.0
			if exact[id] {
				clause = max(clause, ExactBoost)
			}
			if fuzzy[id] {
				clause = max(clause, FuzzyBoost)
			}
			if prefix[id] {
				clause = max(clause, PrefixBoost)
			}
			entityScore := w * clause
			if sameLabel[id] {
				entityScore += w * SameLabelBonusFactor
			}
			scores[id] += entityScore
		}
	}

	result.Entries = make([]model.RankedEntry, 0, len(scores))
	for id, s := range scores {
		result.Entries = append(result.Entries, model.RankedEntry{ID: id, Score: s})
	}
	result.SortByScoreDesc()
	if topK > 0 && len(result.Entries) > topK {
		result.Entries = result.Entries[:topK]
	}
	return result, nil
}

// hitSet runs query against field and returns the set of matching
// document IDs, ignoring relevance score: the aggregate scorer only
// needs matcher presence, not Bleve's own BM25-ish ranking.
func (x *Index) hitSet(ctx context.Context, q query.Query, field string) (map[string]bool, error) {
	if fq, ok := q.(interface{ SetField(string) }); ok {
		fq.SetField(field)
	}
	req := bleve.NewSearchRequest(q)
	req.Fields = nil
	req.Size = 100000
	res, err := x.bi.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(res.Hits))
	for _, h := range res.Hits {
		out[h.ID] = true
	}
	return out, nil
}

func fuzzyQuery(txt string) query.Query {
	q := bleve.NewFuzzyQuery(txt)
	switch {
	case len(txt) <= 2:
		q.Fuzziness = 0
	case len(txt) <= 5:
		q.Fuzziness = 1
	default:
		q.Fuzziness = 2
	}
	return q
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
