// Package validation checks a retrieval configuration and its entity
// weight table for internal consistency before a run starts. Catching
// these problems here means a bad config fails fast with a clear message
// instead of surfacing as silently wrong rankings deep in the pipeline.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/config"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

// Issue is a single validation finding.
type Issue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Fatal    bool   `json:"fatal"`
}

// Result is the outcome of validating a config.
type Result struct {
	Issues []Issue `json:"issues"`
}

// OK reports whether no fatal issues were found.
func (r Result) OK() bool {
	for _, i := range r.Issues {
		if i.Fatal {
			return false
		}
	}
	return true
}

// String renders the result as a human-readable report.
func (r Result) String() string {
	if len(r.Issues) == 0 {
		return "config valid, no issues found"
	}
	var b strings.Builder
	for _, i := range r.Issues {
		level := "warning"
		if i.Fatal {
			level = "error"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", level, i.Field, i.Message)
	}
	return b.String()
}

// Validate runs every check against cfg and returns the combined result.
func Validate(cfg *config.Config) Result {
	var issues []Issue

	if err := cfg.Validate(); err != nil {
		issues = append(issues, Issue{Field: "config", Message: err.Error(), Fatal: true})
	}

	issues = append(issues, validateWeights(cfg)...)
	issues = append(issues, validateEntityWeights(cfg)...)
	issues = append(issues, validateFamilies(cfg)...)

	return Result{Issues: issues}
}

// validateWeights flags fusion constants and top-k bounds that would
// silently produce degenerate rankings.
func validateWeights(cfg *config.Config) []Issue {
	var issues []Issue

	if cfg.RRFConstant <= 0 {
		issues = append(issues, Issue{
			Field:   "rrf_constant",
			Message: fmt.Sprintf("must be positive, got %.3f", cfg.RRFConstant),
			Fatal:   true,
		})
	}
	if cfg.FamilyRRFConstant <= 0 {
		issues = append(issues, Issue{
			Field:   "family_rrf_constant",
			Message: fmt.Sprintf("must be positive, got %.3f", cfg.FamilyRRFConstant),
			Fatal:   true,
		})
	}
	if cfg.ArticleTopK <= 0 {
		issues = append(issues, Issue{Field: "article_top_k", Message: "must be positive", Fatal: true})
	}
	if cfg.ImageTopK <= 0 {
		issues = append(issues, Issue{Field: "image_top_k", Message: "must be positive", Fatal: true})
	}
	if cfg.FinalTopK <= 0 {
		issues = append(issues, Issue{Field: "final_top_k", Message: "must be positive", Fatal: true})
	}
	if cfg.FinalTopK > cfg.ImageTopK {
		issues = append(issues, Issue{
			Field:   "final_top_k",
			Message: fmt.Sprintf("final_top_k (%d) exceeds image_top_k (%d), truncation is a no-op", cfg.FinalTopK, cfg.ImageTopK),
			Fatal:   false,
		})
	}

	b := cfg.Booster
	if !b.Simple {
		if b.FloorThreshold < 0 || b.FloorThreshold > 1 {
			issues = append(issues, Issue{
				Field:   "booster.floor_threshold",
				Message: fmt.Sprintf("expected a similarity in [0,1], got %.3f", b.FloorThreshold),
				Fatal:   true,
			})
		}
		if b.MaxBoost < 0 {
			issues = append(issues, Issue{Field: "booster.max_boost", Message: "must be non-negative", Fatal: true})
		}
	} else if b.SimpleConstant <= 0 {
		issues = append(issues, Issue{Field: "booster.simple_constant", Message: "must be positive in simple mode", Fatal: true})
	}

	return issues
}

// validateEntityWeights checks that every weight is non-negative and
// reports every offending label, in sorted order. The DEFAULT fallback
// entry is checked by cfg.Validate, not here.
func validateEntityWeights(cfg *config.Config) []Issue {
	var issues []Issue

	labels := make([]string, 0, len(cfg.EntityWeights))
	for label := range cfg.EntityWeights {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)

	for _, label := range labels {
		w := cfg.EntityWeights[model.EntityLabel(label)]
		if w < 0 {
			issues = append(issues, Issue{
				Field:   "entity_weights." + label,
				Message: fmt.Sprintf("negative weight %.3f would invert entity scoring", w),
				Fatal:   true,
			})
		}
	}

	return issues
}

// validateFamilies checks each model family's view weights and per-view
// query collection weights for obviously broken setups (all zero, missing
// search collection).
func validateFamilies(cfg *config.Config) []Issue {
	var issues []Issue

	for name, fam := range cfg.Families {
		if fam.SearchCollection == "" {
			issues = append(issues, Issue{
				Field:   "families." + name + ".search_collection",
				Message: "search_collection is required",
				Fatal:   true,
			})
		}
		if len(fam.QueryCollections) == 0 {
			issues = append(issues, Issue{
				Field:   "families." + name + ".query_collections",
				Message: "family has no views and will never contribute images",
				Fatal:   false,
			})
			continue
		}

		allZero := true
		for _, v := range fam.QueryCollections {
			if v.Weight > 0 {
				allZero = false
			}
			if v.Weight < 0 {
				issues = append(issues, Issue{
					Field:   fmt.Sprintf("families.%s.query_collections.%s", name, v.Name),
					Message: fmt.Sprintf("negative weight %.3f", v.Weight),
					Fatal:   true,
				})
			}
		}
		if allZero {
			issues = append(issues, Issue{
				Field:   "families." + name + ".query_collections",
				Message: "every view has weight <= 0, family will be skipped by Fuse",
				Fatal:   false,
			})
		}
	}

	return issues
}
