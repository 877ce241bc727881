// Package preflight provides system validation and pre-flight checks
// to ensure the retrieval CLI can run successfully before starting operations.
//
// The package validates:
//   - Disk space availability (minimum 100MB)
//   - Memory availability (minimum 1GB)
//   - Write permissions in project directory
//   - File descriptor limits (minimum 1024)
//   - Corpus database presence
//   - Free disk space for query embeddings (warning only)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, "/path/to/project", "/path/to/corpus.db")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
