// Package resolver turns overlapping candidate spans from patterns and the
// model into a single non-overlapping set. Conflicts are settled by entity
// type priority first, span length second.
package resolver

import (
	"sort"

	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

// Resolver merges candidate spans into resolved entities.
type Resolver struct {
	logger *logger.Logger
}

func New(log *logger.Logger) *Resolver {
	return &Resolver{logger: log}
}

// Resolve returns the winning candidates in document order. Candidates from
// both sources are treated uniformly. The algorithm is a single left-to-right
// sweep over candidates sorted by (start ascending, end descending): a
// candidate starting at or after the last committed end is accepted;
// otherwise it conflicts with the last committed span and displaces it when
// it carries a higher type priority, or the same priority and a longer span.
// Displacement can cascade, so a chain of pairwise-overlapping candidates
// with rising priority collapses to its highest-priority member. Rejected
// candidates are discarded, never retried against earlier spans.
//
// The output never contains two spans that share a byte.
func (r *Resolver) Resolve(candidates []entity.CandidateSpan) []entity.ResolvedEntity {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]entity.CandidateSpan, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	var kept []entity.CandidateSpan
	for _, cand := range ordered {
		if len(kept) == 0 || cand.Start >= kept[len(kept)-1].End {
			kept = append(kept, cand)
			continue
		}
		last := kept[len(kept)-1]
		pc, pl := entity.Priority(cand.Type), entity.Priority(last.Type)
		if pc < pl || (pc == pl && cand.End-cand.Start > last.End-last.Start) {
			kept[len(kept)-1] = cand
		}
	}
	dropped := len(ordered) - len(kept)

	resolved := make([]entity.ResolvedEntity, 0, len(kept))
	for _, cand := range kept {
		resolved = append(resolved, entity.ResolvedEntity{
			CandidateSpan: cand,
			Role:          entity.RoleUnspecified,
			CanonicalKey:  entity.CanonicalKey(cand.Text),
		})
	}

	if dropped > 0 {
		r.logger.Debug("Overlap resolution dropped candidates",
			zap.Int("candidates", len(candidates)),
			zap.Int("kept", len(kept)),
			zap.Int("dropped", dropped),
		)
	}

	return resolved
}
