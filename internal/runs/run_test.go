package runs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesPendingRun(t *testing.T) {
	r := New("nightly", "config.json", "corpus.db", "queries.csv")

	require.NotEmpty(t, r.ID)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, "nightly", r.Label)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestRun_StartThenComplete(t *testing.T) {
	r := New("", "config.json", "corpus.db", "queries.csv")

	r.Start()
	assert.Equal(t, StatusRunning, r.Status)
	assert.False(t, r.StartedAt.IsZero())

	r.Complete(10, 8, 40, "out.csv", "out.json")
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, 10, r.QueryCount)
	assert.Equal(t, 8, r.ArticleHits)
	assert.Equal(t, 40, r.ImageHits)
	assert.Equal(t, "out.csv", r.OutputCSV)
	assert.False(t, r.EndedAt.IsZero())
}

func TestRun_Fail_RecordsErrorMessage(t *testing.T) {
	r := New("", "config.json", "corpus.db", "queries.csv")

	r.Fail(errors.New("no active family"))

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "no active family", r.Error)
	assert.False(t, r.EndedAt.IsZero())
}
