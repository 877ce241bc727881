package preflight

import (
	"fmt"
	"os"
	"path/filepath"
)

// MinVectorStoreDiskSpaceBytes is the minimum disk space needed to hold a
// typical vector collection on disk (~1.5GB of embeddings and HNSW graph data).
const MinVectorStoreDiskSpaceBytes = 1.5 * 1024 * 1024 * 1024 // 1.5 GB

// CheckCorpusDatabase checks whether the SQLite corpus database exists and
// is readable.
func (c *Checker) CheckCorpusDatabase(corpusPath string) CheckResult {
	result := CheckResult{
		Name:     "corpus_database",
		Required: true,
	}

	info, err := os.Stat(corpusPath)
	if err != nil {
		if os.IsNotExist(err) {
			result.Status = StatusFail
			result.Message = "corpus database not found"
			result.Details = fmt.Sprintf("Path: %s", corpusPath)
			return result
		}
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot access corpus database: %v", err)
		return result
	}

	if info.IsDir() {
		result.Status = StatusFail
		result.Message = "corpus path is a directory, expected a SQLite file"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("corpus database ready (%s)", formatBytes(uint64(info.Size())))
	result.Details = fmt.Sprintf("Path: %s", corpusPath)
	return result
}

// CheckQueryEmbeddingsDiskSpace checks if there's enough disk space to cache
// a view collection's query embeddings alongside the corpus.
func (c *Checker) CheckQueryEmbeddingsDiskSpace(dir string) CheckResult {
	result := CheckResult{
		Name:     "vectorstore_disk_space",
		Required: false,
	}

	if dir == "" {
		var err error
		dir, err = os.UserHomeDir()
		if err != nil {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("cannot determine home directory: %v", err)
			return result
		}
	}

	available, err := availableDiskBytes(dir)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot check disk space: %v", err)
		return result
	}

	if available < uint64(MinVectorStoreDiskSpaceBytes) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s available (embeddings cache needs ~1.5 GB)", formatBytes(available))
		result.Details = fmt.Sprintf("Directory: %s", filepath.Clean(dir))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s available for embeddings cache", formatBytes(available))
	return result
}
