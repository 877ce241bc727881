package textindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

func scoreFor(t *testing.T, rl model.RankedList, id string) (float64, bool) {
	t.Helper()
	for _, e := range rl.Entries {
		if e.ID == id {
			return e.Score, true
		}
	}
	return 0, false
}

func TestSearch_EntityWeightOrdering(t *testing.T) {
	// Concrete scenario 1: a DATE match (weight 5.0) must outscore a
	// PERSON match (weight 0.5) when both hit via exact keyword only.
	weights := map[model.EntityLabel]float64{
		model.LabelPerson:  0.5,
		model.LabelDate:    5.0,
		model.LabelDefault: 1.0,
	}
	idx, err := New("", weights)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexDocuments(context.Background(), []Document{
		{ID: "dateArticle", Entities: []model.Entity{{Text: "2018", Label: model.LabelDate}}},
		{ID: "personArticle", Entities: []model.Entity{{Text: "Messi", Label: model.LabelPerson}}},
	}))

	q := model.Query{
		ID: "q1",
		Entities: []model.Entity{
			{Text: "Messi", Label: model.LabelPerson},
			{Text: "2018", Label: model.LabelDate},
		},
	}
	rl, err := idx.Search(context.Background(), q, 10)
	require.NoError(t, err)
	require.Len(t, rl.Entries, 2)

	dateScore, ok := scoreFor(t, rl, "dateArticle")
	require.True(t, ok)
	personScore, ok := scoreFor(t, rl, "personArticle")
	require.True(t, ok)

	assert.Greater(t, dateScore, personScore)
	assert.Equal(t, "dateArticle", rl.Entries[0].ID, "higher-weight entity match must rank first")
}

func TestSearch_SameLabelBonus(t *testing.T) {
	// Concrete scenario 2: for query entity ("Messi", PERSON), an article
	// tagging "Messi" as PERSON must strictly outscore one tagging the
	// same text as ORG, because only the label-matching article earns
	// the same-label bonus clause.
	weights := map[model.EntityLabel]float64{
		model.LabelPerson:  1.0,
		model.LabelOrg:     1.0,
		model.LabelDefault: 1.0,
	}
	idx, err := New("", weights)
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexDocuments(context.Background(), []Document{
		{ID: "personArticle", Entities: []model.Entity{{Text: "Messi", Label: model.LabelPerson}}},
		{ID: "orgArticle", Entities: []model.Entity{{Text: "Messi", Label: model.LabelOrg}}},
	}))

	q := model.Query{ID: "q1", Entities: []model.Entity{{Text: "Messi", Label: model.LabelPerson}}}
	rl, err := idx.Search(context.Background(), q, 10)
	require.NoError(t, err)
	require.Len(t, rl.Entries, 2)

	personScore, ok := scoreFor(t, rl, "personArticle")
	require.True(t, ok)
	orgScore, ok := scoreFor(t, rl, "orgArticle")
	require.True(t, ok)

	assert.Greater(t, personScore, orgScore)
	assert.InDelta(t, 1.0*ExactBoost+1.0*SameLabelBonusFactor, personScore, 1e-9)
	assert.InDelta(t, 1.0*ExactBoost, orgScore, 1e-9)
	assert.Equal(t, "personArticle", rl.Entries[0].ID)
}

func TestSearch_NoEntitiesYieldsEmptyResult(t *testing.T) {
	idx, err := New("", DefaultEntityWeights())
	require.NoError(t, err)
	defer idx.Close()

	rl, err := idx.Search(context.Background(), model.Query{ID: "q1"}, 10)
	require.NoError(t, err)
	assert.Empty(t, rl.Entries)
}

func TestSearch_TopKTruncatesResults(t *testing.T) {
	idx, err := New("", DefaultEntityWeights())
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexDocuments(context.Background(), []Document{
		{ID: "a", Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}}},
		{ID: "b", Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}}},
		{ID: "c", Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}}},
	}))

	rl, err := idx.Search(context.Background(), model.Query{
		ID:       "q1",
		Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}},
	}, 2)
	require.NoError(t, err)
	assert.Len(t, rl.Entries, 2)
}

func TestSearch_ClosedIndexReturnsError(t *testing.T) {
	idx, err := New("", DefaultEntityWeights())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), model.Query{
		ID:       "q1",
		Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}},
	}, 10)
	assert.Error(t, err)
}
