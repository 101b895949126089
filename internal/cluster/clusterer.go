// Package cluster groups a toponym's mentions into hypothesized referents
// using the similarity of their co-occurrence sets.
package cluster

import (
	"sort"

	"github.com/ppiankov/toporag/internal/model"
)

// DefaultSimilarityThreshold is the minimum average linkage for two clusters to merge
const DefaultSimilarityThreshold = 0.3

// Clusterer performs average-linkage agglomerative clustering on Jaccard similarity
type Clusterer struct {
	threshold float64
}

// NewClusterer creates a clusterer; thresholds outside [0,1] fall back to the default.
// A threshold of 0 merges every informative mention into one cluster.
func NewClusterer(threshold float64) *Clusterer {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Clusterer{threshold: threshold}
}

// Threshold returns the merge threshold
func (c *Clusterer) Threshold() float64 {
	return c.threshold
}

// Jaccard returns |a∩b| / |a∪b| for two sorted distinct name sets.
// Two empty sets have similarity 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	i, j, inter := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Cluster partitions the record's mentions. Every mention lands in exactly one
// cluster, and clusters are ordered by their first member.
//
// Mentions without nearby names take no part in linkage; each joins the cluster
// of the informative mention closest in document offset. When no mention is
// informative the whole record forms one cluster.
func (c *Clusterer) Cluster(record *model.ToponymRecord) []model.ReferentCluster {
	mentions := record.Mentions()
	n := len(mentions)

	var informative, empty []int
	for i, m := range mentions {
		if m.HasNearby() {
			informative = append(informative, i)
		} else {
			empty = append(empty, i)
		}
	}

	if len(informative) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return []model.ReferentCluster{c.describe(mentions, all)}
	}

	groups := c.agglomerate(mentions, informative)

	owner := make(map[int]int, len(informative))
	for gi, g := range groups {
		for _, m := range g {
			owner[m] = gi
		}
	}
	for _, e := range empty {
		best, bestDist := -1, 0
		for _, inf := range informative {
			d := abs(mentions[inf].Start - mentions[e].Start)
			if best < 0 || d < bestDist || (d == bestDist && owner[inf] < owner[best]) {
				best, bestDist = inf, d
			}
		}
		gi := owner[best]
		groups[gi] = append(groups[gi], e)
	}

	for _, g := range groups {
		sort.Ints(g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	clusters := make([]model.ReferentCluster, len(groups))
	for i, g := range groups {
		clusters[i] = c.describe(mentions, g)
	}
	return clusters
}

// agglomerate merges informative mentions until no pair of clusters reaches the threshold.
// Groups are kept in order of their smallest member; among equal linkages the
// earliest pair in that order merges first.
func (c *Clusterer) agglomerate(mentions []model.Mention, members []int) [][]int {
	k := len(members)
	groups := make([][]int, k)
	// sums[i][j] is the total pairwise similarity between groups i and j
	sums := make([][]float64, k)
	for i := range members {
		groups[i] = []int{members[i]}
		sums[i] = make([]float64, k)
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			s := Jaccard(mentions[members[i]].Nearby, mentions[members[j]].Nearby)
			sums[i][j] = s
			sums[j][i] = s
		}
	}

	alive := make([]bool, k)
	for i := range alive {
		alive[i] = true
	}

	for {
		bestA, bestB, bestLink := -1, -1, 0.0
		for a := 0; a < k; a++ {
			if !alive[a] {
				continue
			}
			for b := a + 1; b < k; b++ {
				if !alive[b] {
					continue
				}
				link := sums[a][b] / float64(len(groups[a])*len(groups[b]))
				if link >= c.threshold && (bestA < 0 || link > bestLink) {
					bestA, bestB, bestLink = a, b, link
				}
			}
		}
		if bestA < 0 {
			break
		}

		// b > a, so the merged group keeps a's slot and its smallest member
		groups[bestA] = append(groups[bestA], groups[bestB]...)
		alive[bestB] = false
		groups[bestB] = nil
		for x := 0; x < k; x++ {
			if !alive[x] || x == bestA {
				continue
			}
			sums[bestA][x] += sums[bestB][x]
			sums[x][bestA] = sums[bestA][x]
		}
	}

	var out [][]int
	for i, g := range groups {
		if alive[i] {
			out = append(out, g)
		}
	}
	return out
}

// describe computes cohesion, signature and support for a set of member indices
func (c *Clusterer) describe(mentions []model.Mention, members []int) model.ReferentCluster {
	counts := make(map[string]int)
	var informative []int
	for _, i := range members {
		if mentions[i].HasNearby() {
			informative = append(informative, i)
		}
		for _, name := range mentions[i].Nearby {
			counts[name]++
		}
	}

	signature := make([]model.SignatureEntry, 0, len(counts))
	for name, count := range counts {
		signature = append(signature, model.SignatureEntry{Name: name, Count: count})
	}
	sort.Slice(signature, func(i, j int) bool {
		if signature[i].Count != signature[j].Count {
			return signature[i].Count > signature[j].Count
		}
		return signature[i].Name < signature[j].Name
	})

	out := make([]int, len(members))
	copy(out, members)

	return model.ReferentCluster{
		Members:   out,
		Cohesion:  cohesion(mentions, informative),
		Signature: signature,
		Support:   len(members),
		Tier:      model.SupportTier(len(members), len(mentions)),
	}
}

func cohesion(mentions []model.Mention, informative []int) float64 {
	switch len(informative) {
	case 0:
		return 0
	case 1:
		return 1
	}

	total, pairs := 0.0, 0
	for i := 0; i < len(informative); i++ {
		for j := i + 1; j < len(informative); j++ {
			total += Jaccard(mentions[informative[i]].Nearby, mentions[informative[j]].Nearby)
			pairs++
		}
	}
	v := total / float64(pairs)
	if v > 1 {
		v = 1
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
