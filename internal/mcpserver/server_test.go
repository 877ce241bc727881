package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/pipeline"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/textindex"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/vectorstore"
)

type fakeCorpus struct {
	articleImages map[string][]string
	imageArticle  map[string]string
}

func (f *fakeCorpus) ImagesForArticles(articleIDs []string) map[string]bool {
	out := make(map[string]bool)
	for _, a := range articleIDs {
		for _, img := range f.articleImages[a] {
			out[img] = true
		}
	}
	return out
}

func (f *fakeCorpus) ArticleForImage(imageID string) (string, bool) {
	a, ok := f.imageArticle[imageID]
	return a, ok
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	text, err := textindex.New("", textindex.DefaultEntityWeights())
	require.NoError(t, err)
	t.Cleanup(func() { text.Close() })

	require.NoError(t, text.IndexDocuments(context.Background(), []textindex.Document{
		{ID: "art1", Entities: []model.Entity{{Text: "messi", Label: model.LabelPerson}}},
	}))

	vectors, err := vectorstore.NewRegistry(16)
	require.NoError(t, err)
	col, err := vectors.EnsureCollection("Images", 2, "cos")
	require.NoError(t, err)
	require.NoError(t, col.Add([]string{"img1", "img2"}, [][]float32{{1, 0}, {0, 1}}))
	vectors.LoadQueryEmbeddings("Query_ckpt", map[string][]float32{"q1": {1, 0}})

	corpus := &fakeCorpus{
		articleImages: map[string][]string{"art1": {"img1", "img2"}},
		imageArticle:  map[string]string{"img1": "art1", "img2": "art1"},
	}

	cfg := config.Default()
	cfg.Families["F1"] = config.FamilyConfig{
		Weight:           1.0,
		SearchCollection: "Images",
		QueryCollections: []config.ViewWeight{{Name: "Query_ckpt", Weight: 1.0}},
	}

	orch := pipeline.New(cfg, text, vectors, corpus, 4)
	s, err := NewServer(orch, text)
	require.NoError(t, err)
	return s
}

func TestSearchArticlesHandler_ReturnsRankedArticles(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.searchArticlesHandler(context.Background(), nil, SearchArticlesInput{
		QueryID: "q1",
		Caption: "messi scores",
		Entities: []EntityInput{
			{Text: "messi", Label: "PERSON"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Articles)
	require.Equal(t, "art1", out.Articles[0].ID)
}

func TestSearchArticlesHandler_RejectsEmptyCaption(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.searchArticlesHandler(context.Background(), nil, SearchArticlesInput{QueryID: "q1"})
	require.Error(t, err)
}

func TestSearchImagesHandler_ReturnsFusedImages(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.searchImagesHandler(context.Background(), nil, SearchImagesInput{
		QueryID:     "q1",
		Caption:     "messi scores",
		HasArticles: true,
		Entities: []EntityInput{
			{Text: "messi", Label: "PERSON"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Images)
	require.Equal(t, "img1", out.Images[0].ID)
}

func TestRerankHandler_FusesRankedLists(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.rerankHandler(context.Background(), nil, RerankInput{
		Files: []RerankFileInput{
			{Name: "a", QueryEntries: map[string][]string{"q1": {"x", "y", "z"}}},
			{Name: "b", QueryEntries: map[string][]string{"q1": {"y", "x", "z"}}},
		},
		QueryIDs: []string{"q1"},
		TopN:     3,
	})
	require.NoError(t, err)
	require.Len(t, out.Results["q1"], 3)
}

func TestRerankHandler_RequiresFiles(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.rerankHandler(context.Background(), nil, RerankInput{QueryIDs: []string{"q1"}})
	require.Error(t, err)
}
