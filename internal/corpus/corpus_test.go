package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

func TestStore_ArticleImageRelationship(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutArticle(ctx, "art1", []model.Entity{{Text: "messi", Label: model.LabelPerson}}))
	require.NoError(t, s.PutImage(ctx, "img1", "art1"))
	require.NoError(t, s.PutImage(ctx, "img2", "art1"))

	imgs := s.ImagesForArticles([]string{"art1"})
	assert.Len(t, imgs, 2)
	assert.True(t, imgs["img1"])

	art, ok := s.ArticleForImage("img2")
	assert.True(t, ok)
	assert.Equal(t, "art1", art)

	entities, err := s.ArticleEntities(ctx, "art1")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, model.LabelPerson, entities[0].Label)
}

func TestStore_CheckConsistency_NoOrphans(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutArticle(ctx, "art1", nil))
	require.NoError(t, s.PutImage(ctx, "img1", "art1"))

	orphans, err := s.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestStore_Compact_RemovesOrphanedImages(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutArticle(ctx, "art1", nil))
	require.NoError(t, s.PutImage(ctx, "img1", "art1"))
	require.NoError(t, s.PutImage(ctx, "img2", "deleted-article"))

	removed, err := s.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := s.ArticleForImage("img2")
	assert.False(t, ok)

	imgs := s.ImagesForArticles([]string{"art1"})
	assert.True(t, imgs["img1"])

	orphans, err := s.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
