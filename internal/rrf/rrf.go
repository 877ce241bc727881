// Package rrf implements the standalone RRF reranker (Module F): it
// combines several already-ranked id lists for the same set of queries
// (e.g. several submission files) into one fused ranking, in either
// anti-biased "normal" mode or a per-query adaptive-cap mode.
package rrf

import (
	"sort"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

// FileResult is one input source: for every query it covers, an ordered
// list of IDs (sentinel-padded trailing entries are fine and ignored).
type FileResult struct {
	Name          string
	QueryEntries  map[string][]string
}

// Config selects the reranker's mode and constants.
type Config struct {
	K        float64 // RRF constant
	TopN     int     // output width L
	Adaptive bool
}

// Rerank fuses files for every query in queryIDs and returns, per query,
// an L-wide slice padded with model.Sentinel.
func Rerank(cfg Config, files []FileResult, queryIDs []string) map[string][]string {
	out := make(map[string][]string, len(queryIDs))

	if len(files) == 1 {
		// Degenerate case: nothing to fuse, just truncate/pad the source.
		for _, qid := range queryIDs {
			out[qid] = padTo(nonSentinelPrefix(files[0].QueryEntries[qid]), cfg.TopN)
		}
		return out
	}

	for _, qid := range queryIDs {
		prefixes := make([][]string, len(files))
		for i, f := range files {
			prefixes[i] = nonSentinelPrefix(f.QueryEntries[qid])
		}

		if anyEmpty(prefixes) {
			out[qid] = sentinelRow(cfg.TopN)
			continue
		}

		limits := make([]int, len(prefixes))
		for i, p := range prefixes {
			limits[i] = len(p)
		}
		if cfg.Adaptive {
			limit := dynamicLimit(limits)
			for i := range limits {
				if limits[i] > limit {
					limits[i] = limit
				}
			}
		}

		scores := make(map[string]float64)
		order := make(map[string]int) // first-seen order, for deterministic tie-break
		seq := 0
		for i, p := range prefixes {
			limit := limits[i]
			for rank := 0; rank < limit && rank < len(p); rank++ {
				id := p[rank]
				if _, ok := order[id]; !ok {
					order[id] = seq
					seq++
				}
				scores[id] += rrfScore(rank+1, cfg.K)
			}
		}

		out[qid] = padTo(topSorted(scores, order), cfg.TopN)
	}

	return out
}

func rrfScore(rank int, k float64) float64 {
	if rank <= 0 {
		return 0
	}
	return 1.0 / (k + float64(rank))
}

// nonSentinelPrefix returns the leading run of non-sentinel, non-empty
// entries of ids.
func nonSentinelPrefix(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == model.Sentinel {
			break
		}
		out = append(out, id)
	}
	return out
}

func anyEmpty(prefixes [][]string) bool {
	for _, p := range prefixes {
		if len(p) == 0 {
			return true
		}
	}
	return false
}

// dynamicLimit implements the adaptive cap: min(2*m, max) where m is the
// smallest per-file valid count and max is the largest.
func dynamicLimit(counts []int) int {
	if len(counts) == 0 {
		return 0
	}
	min, max := counts[0], counts[0]
	for _, c := range counts[1:] {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	limit := 2 * min
	if limit > max {
		limit = max
	}
	return limit
}

func topSorted(scores map[string]float64, order map[string]int) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si != sj {
			return si > sj
		}
		return order[ids[i]] < order[ids[j]]
	})
	return ids
}

func sentinelRow(l int) []string {
	row := make([]string, l)
	for i := range row {
		row[i] = model.Sentinel
	}
	return row
}

func padTo(ids []string, l int) []string {
	row := make([]string, l)
	for i := 0; i < l; i++ {
		if i < len(ids) {
			row[i] = ids[i]
		} else {
			row[i] = model.Sentinel
		}
	}
	return row
}
