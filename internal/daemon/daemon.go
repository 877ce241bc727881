package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/pipeline"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/indexer"
)

// FamilyProbe reports the readiness of the model family backing stage-2
// vector search. A daemon run without one still serves stage-1 article
// search; GetStatus reports the family as unavailable.
type FamilyProbe interface {
	FamilyName() string
	Dimensions() int
	Available(ctx context.Context) bool
	Close() error
}

// Option configures a Daemon at construction time.
type Option func(*Daemon)

// WithFamilyProbe overrides the family readiness probe, letting tests
// substitute a stub instead of a real model family loader.
func WithFamilyProbe(p FamilyProbe) Option {
	return func(d *Daemon) { d.family = p }
}

// corpusState is one corpus kept warm in memory. Daemon evicts the least
// recently used state once MaxCorpora is exceeded.
type corpusState struct {
	corpusPath string
	built      *indexer.Built
	orch       *pipeline.Orchestrator
	loadedAt   time.Time
	lastUsed   time.Time
}

// Close releases the indices held by a corpus state.
func (s *corpusState) Close() error {
	if s.built == nil {
		return nil
	}
	return s.built.Close()
}

// Daemon keeps corpora and the active model family loaded in memory and
// serves search requests over the Server's Unix socket.
type Daemon struct {
	cfg     Config
	server  *Server
	family  FamilyProbe
	started time.Time

	mu      sync.Mutex
	corpora map[string]*corpusState
}

// NewDaemon creates a daemon from cfg, applying any options, and wires
// itself as the server's request handler.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("daemon: invalid config: %w", err)
	}

	server, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: create server: %w", err)
	}

	d := &Daemon{
		cfg:     cfg,
		server:  server,
		corpora: make(map[string]*corpusState),
	}
	for _, opt := range opts {
		opt(d)
	}
	server.SetHandler(d)
	return d, nil
}

// Start runs the daemon until ctx is cancelled: it writes a PID file,
// listens on the configured Unix socket, and cleans up loaded corpora
// and the family probe on exit.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return fmt.Errorf("daemon: ensure dir: %w", err)
	}

	pf := NewPIDFile(d.cfg.PIDPath)
	if err := pf.Write(); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}
	defer pf.Remove()

	d.started = time.Now()
	defer d.cleanup()

	return d.server.ListenAndServe(ctx)
}

// HandleSearch implements RequestHandler. It loads (or reuses) the
// requested corpus and runs stage-1 article search, plus stage-2 image
// search unless the caller asked for articles only.
func (d *Daemon) HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	state, err := d.loadCorpus(ctx, params.CorpusPath)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	q := model.Query{ID: "daemon", Caption: params.Query}
	articleList, err := state.built.Text.Search(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("daemon: article search: %w", err)
	}

	var results []SearchResult
	if params.Target != "images" {
		for i, e := range articleList.Entries {
			if i >= limit {
				break
			}
			results = append(results, SearchResult{ID: e.ID, Kind: "article", Score: e.Score})
		}
	}

	if params.ArticlesOnly || params.Target == "articles" {
		return results, nil
	}

	imageLists, err := state.orch.Run(ctx, []model.Query{q})
	if err != nil {
		return nil, fmt.Errorf("daemon: image search: %w", err)
	}
	if len(imageLists) > 0 {
		for i, e := range imageLists[0].Entries {
			if i >= limit {
				break
			}
			results = append(results, SearchResult{ID: e.ID, Kind: "image", Score: e.Score, Family: params.Family})
		}
	}

	return results, nil
}

// GetStatus implements RequestHandler.
func (d *Daemon) GetStatus() StatusResult {
	d.mu.Lock()
	loaded := len(d.corpora)
	d.mu.Unlock()

	status := StatusResult{
		Running:       true,
		PID:           os.Getpid(),
		Uptime:        time.Since(d.started).Round(time.Second).String(),
		FamilyType:    "unavailable",
		FamilyStatus:  "unavailable",
		CorporaLoaded: loaded,
	}
	if d.family != nil {
		status.FamilyType = d.family.FamilyName()
		status.FamilyStatus = "ready"
	}
	return status
}

// loadCorpus returns the cached corpusState for path, building it from
// the on-disk manifest on first use.
func (d *Daemon) loadCorpus(ctx context.Context, corpusPath string) (*corpusState, error) {
	d.mu.Lock()
	if s, ok := d.corpora[corpusPath]; ok {
		s.lastUsed = time.Now()
		d.mu.Unlock()
		return s, nil
	}
	d.mu.Unlock()

	built, err := readCorpusManifest(ctx, corpusPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: no index found for %s: %w", corpusPath, err)
	}

	now := time.Now()
	state := &corpusState{
		corpusPath: corpusPath,
		built:      built,
		orch:       pipeline.New(config.Default(), built.Text, built.Vectors, built.Corpus, 0),
		loadedAt:   now,
		lastUsed:   now,
	}

	d.mu.Lock()
	d.corpora[corpusPath] = state
	d.mu.Unlock()

	d.evictLRU()
	return state, nil
}

// evictLRU drops the least recently used corpus once MaxCorpora is
// exceeded.
func (d *Daemon) evictLRU() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.corpora) <= d.cfg.MaxCorpora {
		return
	}

	var oldestPath string
	var oldestTime time.Time
	for path, s := range d.corpora {
		if oldestPath == "" || s.lastUsed.Before(oldestTime) {
			oldestPath = path
			oldestTime = s.lastUsed
		}
	}
	if oldestPath != "" {
		_ = d.corpora[oldestPath].Close()
		delete(d.corpora, oldestPath)
	}
}

// cleanup releases every loaded corpus and the family probe.
func (d *Daemon) cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for path, s := range d.corpora {
		_ = s.Close()
		delete(d.corpora, path)
	}
	if d.family != nil {
		_ = d.family.Close()
		d.family = nil
	}
}

// manifest mirrors the on-disk JSON shape cmd/retrieval's corpus loader
// consumes; kept local to avoid an import of the cmd tree.
type manifest struct {
	Articles []struct {
		ID       string `json:"id"`
		Entities []struct {
			Text  string `json:"text"`
			Label string `json:"label"`
		} `json:"entities"`
	} `json:"articles"`
	Images []struct {
		ID        string `json:"id"`
		ArticleID string `json:"article_id"`
	} `json:"images"`
	Collections []struct {
		Name    string      `json:"name"`
		Dim     int         `json:"dim"`
		Metric  string      `json:"metric"`
		IDs     []string    `json:"ids"`
		Vectors [][]float32 `json:"vectors"`
	} `json:"collections"`
}

func readCorpusManifest(ctx context.Context, path string) (*indexer.Built, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	articles := make([]indexer.ArticleRecord, len(m.Articles))
	for i, a := range m.Articles {
		entities := make([]model.Entity, len(a.Entities))
		for j, e := range a.Entities {
			entities[j] = model.Entity{Text: e.Text, Label: model.EntityLabel(e.Label)}
		}
		articles[i] = indexer.ArticleRecord{ID: a.ID, Entities: entities}
	}

	images := make([]indexer.ImageRecord, len(m.Images))
	for i, img := range m.Images {
		images[i] = indexer.ImageRecord{ID: img.ID, ArticleID: img.ArticleID}
	}

	collections := make([]indexer.VectorCollection, len(m.Collections))
	for i, c := range m.Collections {
		collections[i] = indexer.VectorCollection{
			Name: c.Name, Dim: c.Dim, Metric: c.Metric, IDs: c.IDs, Vectors: c.Vectors,
		}
	}

	return indexer.Load(ctx, indexer.Options{}, articles, images, collections)
}
