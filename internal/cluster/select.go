package cluster

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/toporag/internal/model"
)

// Scoring weights for representative selection
const (
	nearbyWeight    = 2.0
	contextWeight   = 1.0
	contextNorm     = 500.0 // Characters at which the context-length term saturates
	diversityWeight = 1.0
)

// Selection defaults
const (
	DefaultK          = 3
	DefaultMinSpacing = 0.1
)

// Selector picks the most informative, well spread mentions of a cluster
type Selector struct {
	k          int
	minSpacing float64
}

// NewSelector creates a selector returning at most k mentions spaced more than minSpacing apart
func NewSelector(k int, minSpacing float64) *Selector {
	if k <= 0 {
		k = DefaultK
	}
	if minSpacing < 0 {
		minSpacing = 0
	}
	return &Selector{k: k, minSpacing: minSpacing}
}

// Score is the position-independent informativeness of a mention
func Score(m model.Mention) float64 {
	ctx := math.Min(float64(utf8.RuneCountInString(m.Context))/contextNorm, 1)
	return nearbyWeight*float64(len(m.Nearby)) + contextWeight*ctx
}

// Select returns up to k member mentions in document order.
//
// The first pick is the highest scoring member. Each further pick maximizes
// score plus distance to the picks so far among members farther than
// minSpacing from all of them; when none qualifies the highest raw score is taken.
func (s *Selector) Select(record *model.ToponymRecord, cluster model.ReferentCluster) []model.Mention {
	members := cluster.Members
	if len(members) == 0 {
		return nil
	}

	base := make(map[int]float64, len(members))
	for _, i := range members {
		base[i] = Score(record.Mention(i))
	}

	var picked []int
	used := make(map[int]bool, s.k)

	for len(picked) < s.k && len(picked) < len(members) {
		best, bestScore := -1, 0.0
		for _, i := range members {
			if used[i] {
				continue
			}
			score := base[i]
			if len(picked) > 0 {
				d := s.minDistance(record, i, picked)
				if d <= s.minSpacing {
					continue
				}
				score += diversityWeight * d
			}
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}

		if best < 0 {
			for _, i := range members {
				if used[i] {
					continue
				}
				if best < 0 || base[i] > bestScore {
					best, bestScore = i, base[i]
				}
			}
		}

		used[best] = true
		picked = append(picked, best)
	}

	sort.Ints(picked)
	out := make([]model.Mention, len(picked))
	for j, i := range picked {
		out[j] = record.Mention(i)
	}
	return out
}

func (s *Selector) minDistance(record *model.ToponymRecord, i int, picked []int) float64 {
	pos := record.Mention(i).Position
	d := math.Inf(1)
	for _, p := range picked {
		d = math.Min(d, math.Abs(pos-record.Mention(p).Position))
	}
	return d
}
