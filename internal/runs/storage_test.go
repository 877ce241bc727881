package runs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	r := New("smoke", "config.json", "corpus.db", "queries.csv")
	r.Complete(3, 2, 9, "out.csv", "out.json")

	require.NoError(t, Save(dir, r))

	loaded, err := Load(dir, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, loaded.ID)
	assert.Equal(t, r.Label, loaded.Label)
	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, 9, loaded.ImageHits)
	assert.Equal(t, filepath.Join(dir, r.ID), loaded.RunDir)
}

func TestLoad_MissingRun_ReturnsError(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir, "does-not-exist")
	assert.Error(t, err)
}

func TestList_OrdersMostRecentFirst(t *testing.T) {
	dir := t.TempDir()

	r1 := New("first", "c.json", "corpus.db", "q.csv")
	require.NoError(t, Save(dir, r1))

	r2 := New("second", "c.json", "corpus.db", "q.csv")
	r2.CreatedAt = r1.CreatedAt.Add(1)
	require.NoError(t, Save(dir, r2))

	all, err := List(dir)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r2.ID, all[0].ID)
	assert.Equal(t, r1.ID, all[1].ID)
}

func TestList_MissingDirectory_ReturnsNil(t *testing.T) {
	dir := t.TempDir()

	all, err := List(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Nil(t, all)
}

func TestDelete_RemovesRunDirectory(t *testing.T) {
	dir := t.TempDir()
	r := New("", "c.json", "corpus.db", "q.csv")
	require.NoError(t, Save(dir, r))

	require.NoError(t, Delete(dir, r.ID))

	_, err := Load(dir, r.ID)
	assert.Error(t, err)
}
