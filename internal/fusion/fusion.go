// Package fusion implements the two-level RRF/voting aggregator used by
// both the collection aggregator (Module D, per family) and the family
// aggregator (Module E, cross-family): a single primitive parameterized
// by (weights, k, useVoting) covers both levels and both fusion modes.
package fusion

import (
	"sort"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

// List is one weighted, ranked input to the fusion: the ranks an
// upstream stage assigned to each ID, scoped to that source's own
// result set (a view collection's image ranking, or a family's image
// ranking). Only entries the source actually produced should be present
// in Ranks; absence means "not in this list", not rank zero.
type List struct {
	Name   string
	Weight float64
	Ranks  map[string]int // id -> 1-indexed rank
}

// Config selects the fusion kernel and its constant.
type Config struct {
	K         float64 // RRF constant k
	UseVoting bool    // true: weight-sum voting; false: RRF
}

// contribution is the per-id accumulator. The tie-break key is the
// order the id was first seen across lists, not a property derivable
// from the score itself, so it is tracked alongside the score.
type contribution struct {
	id    string
	score float64
}

// Fuse combines any number of weighted ranked lists into one fused,
// descending-sorted list. Lists with Weight <= 0 are skipped entirely,
// matching the "active iff weight > 0" invariant. Ties are broken by
// first-seen insertion order: lists are walked in the order given, and
// within a list ids are walked in rank order, so the first id to
// contribute a score wins any tie (mirrors internal/rrf.Rerank).
func Fuse(cfg Config, lists []List) model.RankedList {
	acc := make(map[string]*contribution)
	order := make(map[string]int)
	seq := 0

	for _, l := range lists {
		if l.Weight <= 0 {
			continue
		}
		for _, id := range idsByRank(l.Ranks) {
			rank := l.Ranks[id]
			c, ok := acc[id]
			if !ok {
				c = &contribution{id: id}
				acc[id] = c
				order[id] = seq
				seq++
			}
			if cfg.UseVoting {
				c.score += l.Weight
			} else {
				c.score += l.Weight / (cfg.K + float64(rank))
			}
		}
	}

	out := toSortedSlice(acc, order)
	rl := model.RankedList{Entries: make([]model.RankedEntry, len(out))}
	for i, c := range out {
		rl.Entries[i] = model.RankedEntry{ID: c.id, Score: c.score, Rank: i + 1}
	}
	return rl
}

// idsByRank returns ranks' keys in ascending-rank order, so a list's
// first-seen walk visits its best entries first regardless of map
// iteration order.
func idsByRank(ranks map[string]int) []string {
	ids := make([]string, 0, len(ranks))
	for id := range ranks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ranks[ids[i]] < ranks[ids[j]] })
	return ids
}

func toSortedSlice(acc map[string]*contribution, order map[string]int) []*contribution {
	out := make([]*contribution, 0, len(acc))
	for _, c := range acc {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return compare(out[i], out[j], order)
	})
	return out
}

// compare orders a before b: higher score first, then first-seen
// insertion order — giving a fully deterministic order independent of
// map iteration.
func compare(a, b *contribution, order map[string]int) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return order[a.id] < order[b.id]
}
