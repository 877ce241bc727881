package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

func TestLoad_BuildsSearchableIndices(t *testing.T) {
	ctx := context.Background()

	articles := []ArticleRecord{
		{ID: "art1", Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}}},
		{ID: "art2", Entities: []model.Entity{{Text: "ronaldo", Label: model.LabelPerson}}},
	}
	images := []ImageRecord{
		{ID: "img1", ArticleID: "art1"},
		{ID: "img2", ArticleID: "art2"},
	}
	collections := []VectorCollection{
		{
			Name:    "Images",
			Dim:     2,
			Metric:  "cos",
			IDs:     []string{"img1", "img2"},
			Vectors: [][]float32{{1, 0}, {0, 1}},
		},
		{
			Name: "Query_ckpt",
			IDs:  []string{"q1"},
			Vectors: [][]float32{
				{1, 0},
			},
		},
	}

	built, err := Load(ctx, Options{}, articles, images, collections)
	require.NoError(t, err)
	defer built.Close()

	require.NotNil(t, built.Text)
	require.NotNil(t, built.Vectors)
	require.NotNil(t, built.Corpus)

	imgs := built.Corpus.ImagesForArticles([]string{"art1"})
	assert.True(t, imgs["img1"])

	vec, found, err := built.Vectors.GetQueryEmbedding(ctx, "Query_ckpt", "q1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{1, 0}, vec)

	results, err := built.Vectors.Search(ctx, "Images", []float32{1, 0}, nil, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "img1", results[0].ID)
}

func TestLoad_MissingQueryCollection_NotFound(t *testing.T) {
	ctx := context.Background()

	built, err := Load(ctx, Options{}, nil, nil, nil)
	require.NoError(t, err)
	defer built.Close()

	_, found, err := built.Vectors.GetQueryEmbedding(ctx, "Query_missing", "q1")
	require.NoError(t, err)
	assert.False(t, found)
}
