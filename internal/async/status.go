// Package async provides background processing infrastructure for long
// retrieval runs: a goroutine-backed runner with progress tracking and a
// lock file so a caller can poll a run and detect one that did not
// finish. Nothing here resumes an interrupted run.
package async

import (
	"sync"
	"time"
)

// RunStatus represents the overall state of a background run.
type RunStatus string

const (
	// StatusRunning indicates the run is in progress.
	StatusRunning RunStatus = "running"
	// StatusReady indicates the run completed and its artifacts are available.
	StatusReady RunStatus = "ready"
	// StatusError indicates the run failed with an error.
	StatusError RunStatus = "error"
)

// RunStage represents the current stage of a background retrieval run.
type RunStage string

const (
	// StageLoading indicates the corpus manifest and config loading phase.
	StageLoading RunStage = "loading"
	// StageArticleSearch indicates the stage-1 entity-weighted retrieval phase.
	StageArticleSearch RunStage = "article_search"
	// StageVectorSearch indicates the stage-2 article-conditioned vector search phase.
	StageVectorSearch RunStage = "vector_search"
	// StageFusion indicates the RRF fusion phase.
	StageFusion RunStage = "fusion"
)

// RunProgressSnapshot is an immutable snapshot of a background run's progress.
type RunProgressSnapshot struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage"`
	QueriesTotal   int     `json:"queries_total"`
	QueriesDone    int     `json:"queries_done"`
	ResultsTotal   int     `json:"results_total"`
	ResultsFused   int     `json:"results_fused"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// RunProgress provides thread-safe tracking of a background run's progress.
type RunProgress struct {
	mu sync.RWMutex

	status       RunStatus
	stage        RunStage
	queriesTotal int
	queriesDone  int
	resultsTotal int
	resultsFused int
	startTime    time.Time
	errorMessage string
}

// NewRunProgress creates a new progress tracker initialized for a run.
func NewRunProgress() *RunProgress {
	return &RunProgress{
		status:    StatusRunning,
		stage:     StageLoading,
		startTime: time.Now(),
	}
}

// SetStage updates the current run stage and resets the query total.
func (p *RunProgress) SetStage(stage RunStage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.queriesTotal = total
}

// UpdateQueries updates the number of queries processed so far.
func (p *RunProgress) UpdateQueries(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queriesDone = done
}

// SetResultsTotal sets the total number of result entries expected.
func (p *RunProgress) SetResultsTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resultsTotal = total
}

// UpdateResults updates the number of fused result entries written so far.
func (p *RunProgress) UpdateResults(fused int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resultsFused = fused
}

// SetError marks the run as failed with an error message.
func (p *RunProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the run as complete and its artifacts as ready.
func (p *RunProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsRunning returns true if the run is still in progress.
func (p *RunProgress) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusRunning
}

// Snapshot returns an immutable copy of the current progress state.
func (p *RunProgress) Snapshot() RunProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.queriesTotal > 0 {
		progressPct = float64(p.queriesDone) / float64(p.queriesTotal) * 100.0
	}

	return RunProgressSnapshot{
		Status:         string(p.status),
		Stage:          string(p.stage),
		QueriesTotal:   p.queriesTotal,
		QueriesDone:    p.queriesDone,
		ResultsTotal:   p.resultsTotal,
		ResultsFused:   p.resultsFused,
		ProgressPct:    progressPct,
		ElapsedSeconds: int(time.Since(p.startTime).Seconds()),
		ErrorMessage:   p.errorMessage,
	}
}
