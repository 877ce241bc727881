package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_CheckCorpusDatabase_Exists(t *testing.T) {
	checker := New()

	tmpDir := t.TempDir()
	corpusPath := filepath.Join(tmpDir, "corpus.db")
	require.NoError(t, os.WriteFile(corpusPath, []byte("sqlite placeholder"), 0644))

	result := checker.CheckCorpusDatabase(corpusPath)

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "corpus_database", result.Name)
	assert.True(t, result.Required)
}

func TestChecker_CheckCorpusDatabase_Missing(t *testing.T) {
	checker := New()

	tmpDir := t.TempDir()
	result := checker.CheckCorpusDatabase(filepath.Join(tmpDir, "missing.db"))

	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, "corpus_database", result.Name)
	assert.Contains(t, result.Message, "not found")
}

func TestChecker_CheckCorpusDatabase_RejectsDirectory(t *testing.T) {
	checker := New()

	tmpDir := t.TempDir()
	result := checker.CheckCorpusDatabase(tmpDir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "directory")
}

func TestChecker_CheckQueryEmbeddingsDiskSpace_ResultFormat(t *testing.T) {
	checker := New()

	result := checker.CheckQueryEmbeddingsDiskSpace(t.TempDir())

	assert.Equal(t, "vectorstore_disk_space", result.Name)
	assert.False(t, result.Required, "disk space check should not be required")
	assert.NotEmpty(t, result.Message)
}
