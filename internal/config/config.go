// Package config loads and validates the retrieval pipeline's family
// configuration (Module H): the JSON shape {"families": {name: {weight,
// search_collection, query_collections: [{name, weight}]}}, ...} (a flat
// {name: {...}} document without the "families" key is not recognized),
// plus a legacy flat-parameter mode that expands to
// the same internal structure, private-test-mode view prefixing, and
// fsnotify-backed hot reload.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/booster"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/textindex"
)

// PrivateViewPrefix is prepended to view-collection names (never search
// collections) when PrivateTestMode is on.
const PrivateViewPrefix = "Private_"

// ViewWeight is one query-view collection within a family, carrying its
// own fusion weight.
type ViewWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FamilyConfig is one model family's entry in the JSON config.
type FamilyConfig struct {
	Weight           float64      `json:"weight"`
	SearchCollection string       `json:"search_collection,omitempty"`
	QueryCollections []ViewWeight `json:"query_collections"`
}

// Config is the fully resolved pipeline configuration.
type Config struct {
	Families          map[string]FamilyConfig      `json:"families"`
	RRFConstant       float64                      `json:"rrf_constant"`
	FamilyRRFConstant float64                      `json:"family_rrf_constant"`
	UseVoting         bool                         `json:"use_voting"`
	ArticleTopK       int                          `json:"article_top_k"`
	ImageTopK         int                          `json:"image_top_k"`
	FinalTopK         int                          `json:"final_top_k"`
	PrivateTestMode   bool                         `json:"private_test_mode"`
	Booster           booster.Config               `json:"booster"`
	EntityWeights     map[model.EntityLabel]float64 `json:"entity_weights,omitempty"`
}

// Default returns a config with the reference pipeline's tuned defaults
// and no families; callers populate Families via LoadJSON or
// BuildLegacyConfig.
func Default() Config {
	return Config{
		Families:          map[string]FamilyConfig{},
		RRFConstant:        60,
		FamilyRRFConstant:  50,
		UseVoting:          false,
		ArticleTopK:        1000,
		ImageTopK:          50,
		FinalTopK:          50,
		Booster:            booster.DefaultConfig(),
		EntityWeights:      textindex.DefaultEntityWeights(),
	}
}

// LoadJSON reads a family config from path, overlaying it on Default().
func LoadJSON(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(onDisk.Families) > 0 {
		cfg.Families = onDisk.Families
	}
	if onDisk.RRFConstant != 0 {
		cfg.RRFConstant = onDisk.RRFConstant
	}
	if onDisk.FamilyRRFConstant != 0 {
		cfg.FamilyRRFConstant = onDisk.FamilyRRFConstant
	}
	cfg.UseVoting = onDisk.UseVoting
	if onDisk.ArticleTopK != 0 {
		cfg.ArticleTopK = onDisk.ArticleTopK
	}
	if onDisk.ImageTopK != 0 {
		cfg.ImageTopK = onDisk.ImageTopK
	}
	if onDisk.FinalTopK != 0 {
		cfg.FinalTopK = onDisk.FinalTopK
	}
	cfg.PrivateTestMode = onDisk.PrivateTestMode
	if onDisk.Booster != (booster.Config{}) {
		cfg.Booster = onDisk.Booster
	}
	if len(onDisk.EntityWeights) > 0 {
		cfg.EntityWeights = onDisk.EntityWeights
	}
	return cfg, nil
}

// LegacyParams is the flat-parameter shape the reference pipeline
// accepted before the JSON family config existed. BuildLegacyConfig
// expands it into the same internal Families structure.
type LegacyParams struct {
	Checkpoint      string
	LargeWeight     float64
	BaseWeight      float64
	SummaryWeight   float64
	ConciseWeight   float64
	IncludeH14      bool
	H14Weight       float64
	DatabaseMapping map[string]string // family name -> search collection override
}

// BuildLegacyConfig expands flat legacy parameters into the family
// config shape, mirroring the reference pipeline's internal legacy
// builder: a Query/Summary/Concise view per checkpoint, each split into
// Large/Base weights, plus an optional H14 Laion family.
func BuildLegacyConfig(p LegacyParams) Config {
	cfg := Default()

	views := func(prefix string) []ViewWeight {
		return []ViewWeight{
			{Name: fmt.Sprintf("%s_%s_Large", prefix, p.Checkpoint), Weight: p.LargeWeight},
			{Name: fmt.Sprintf("%s_%s_Base", prefix, p.Checkpoint), Weight: p.BaseWeight},
		}
	}

	openEvents := FamilyConfig{
		Weight:           1.0,
		SearchCollection: "Flickr30k",
		QueryCollections: append(append(
			views("Query"),
			ViewWeight{Name: fmt.Sprintf("Summary_%s", p.Checkpoint), Weight: p.SummaryWeight}),
			ViewWeight{Name: fmt.Sprintf("Concise_%s", p.Checkpoint), Weight: p.ConciseWeight}),
	}
	if sc, ok := p.DatabaseMapping["OpenEvents_v1"]; ok {
		openEvents.SearchCollection = sc
	}
	cfg.Families["OpenEvents_v1"] = openEvents

	if p.IncludeH14 {
		cfg.Families["H14_Laion"] = FamilyConfig{
			Weight:           p.H14Weight,
			SearchCollection: "H14_Laion",
			QueryCollections: []ViewWeight{{Name: "Query_H14_Laion", Weight: 1.0}},
		}
	}

	return cfg
}

// ActiveFamilies returns the families with Weight > 0, per the
// "active iff weight > 0" invariant.
func (c Config) ActiveFamilies() map[string]FamilyConfig {
	out := make(map[string]FamilyConfig)
	for name, fc := range c.Families {
		if fc.Weight > 0 {
			out[name] = fc
		}
	}
	return out
}

// ActiveViews returns a family's view collections with Weight > 0,
// applying the Private_ prefix to their names when PrivateTestMode is
// set. Search collections are never prefixed.
func (c Config) ActiveViews(family string) []ViewWeight {
	fc, ok := c.Families[family]
	if !ok {
		return nil
	}
	out := make([]ViewWeight, 0, len(fc.QueryCollections))
	for _, v := range fc.QueryCollections {
		if v.Weight <= 0 {
			continue
		}
		name := v.Name
		if c.PrivateTestMode && !strings.HasPrefix(name, PrivateViewPrefix) {
			name = PrivateViewPrefix + name
		}
		out = append(out, ViewWeight{Name: name, Weight: v.Weight})
	}
	return out
}

// OptimizedViews restricts a family's active views to those usable for a
// query with no stage-1 articles: the "Query" view is dropped entirely,
// leaving only summary/concise-style views, per the optimization in
// SPEC_FULL §9.
func (c Config) OptimizedViews(family string) []ViewWeight {
	all := c.ActiveViews(family)
	out := make([]ViewWeight, 0, len(all))
	for _, v := range all {
		unprefixed := strings.TrimPrefix(v.Name, PrivateViewPrefix)
		if strings.HasPrefix(unprefixed, "Query_") || strings.HasPrefix(unprefixed, "Query-") {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Validate checks the invariants Module H relies on.
func (c Config) Validate() error {
	if _, ok := c.EntityWeights[model.LabelDefault]; !ok {
		return fmt.Errorf("config: entity weight table missing DEFAULT")
	}
	if len(c.ActiveFamilies()) == 0 {
		return fmt.Errorf("config: at least one family must be active (weight > 0)")
	}
	for name := range c.ActiveFamilies() {
		if len(c.ActiveViews(name)) == 0 {
			return fmt.Errorf("config: family %q is active but has no active view collections", name)
		}
	}
	return nil
}

// Watcher reloads a family config file whenever it changes on disk,
// invoking onChange with the newly parsed (and still-valid) config.
// Parse or validation failures are logged via onError and the previous
// config keeps serving.
type Watcher struct {
	mu       sync.Mutex
	path     string
	watcher  *fsnotify.Watcher
	onChange func(Config)
	onError  func(error)
	done     chan struct{}
}

// WatchFile starts watching path for changes and returns a Watcher the
// caller must Close when done.
func WatchFile(path string, onChange func(Config), onError func(error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		onChange: onChange,
		onError:  onError,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadJSON(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			if err := cfg.Validate(); err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
