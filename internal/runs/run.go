// Package runs tracks metadata about individual pipeline executions:
// which config and corpus were used, how many queries were processed,
// and where the resulting artifacts were written. Each run is persisted
// as its own JSON file so it can be audited after the fact; nothing in
// this package resumes a run.
package runs

import (
	"time"

	"github.com/google/uuid"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/version"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one pipeline execution's metadata.
type Run struct {
	ID      string `json:"id"`
	Label   string `json:"label,omitempty"`
	Version string `json:"version"`

	ConfigPath string `json:"config_path"`
	CorpusPath string `json:"corpus_path"`
	QueryFile  string `json:"query_file"`

	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`

	QueryCount  int `json:"query_count"`
	ArticleHits int `json:"article_hits"`
	ImageHits   int `json:"image_hits"`

	OutputCSV  string `json:"output_csv,omitempty"`
	OutputJSON string `json:"output_json,omitempty"`

	// RunDir is where this run's metadata file lives. Computed, not persisted.
	RunDir string `json:"-"`
}

// New creates a pending run with a fresh ID.
func New(label, configPath, corpusPath, queryFile string) *Run {
	return &Run{
		ID:         uuid.NewString(),
		Label:      label,
		Version:    version.Version,
		ConfigPath: configPath,
		CorpusPath: corpusPath,
		QueryFile:  queryFile,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

// Start marks the run as running.
func (r *Run) Start() {
	r.Status = StatusRunning
	r.StartedAt = time.Now()
}

// Complete marks the run as finished successfully with its result counts.
func (r *Run) Complete(queryCount, articleHits, imageHits int, outputCSV, outputJSON string) {
	r.Status = StatusCompleted
	r.EndedAt = time.Now()
	r.QueryCount = queryCount
	r.ArticleHits = articleHits
	r.ImageHits = imageHits
	r.OutputCSV = outputCSV
	r.OutputJSON = outputJSON
}

// Fail marks the run as failed.
func (r *Run) Fail(err error) {
	r.Status = StatusFailed
	r.EndedAt = time.Now()
	if err != nil {
		r.Error = err.Error()
	}
}
