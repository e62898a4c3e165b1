// Package patterns implements the pattern analyzer: a pure function over
// a set of retrieved slices and the keywords of the query that produced
// them, surfacing the observations the reasoning chain generator draws
// its inference rules from.
package patterns

import (
	"fmt"
	"sort"
	"time"

	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

const (
	TypeMemoryTypeDistribution = "memory_type_distribution"
	TypeKeywordClustering      = "keyword_clustering"
	TypeTemporalClustering     = "temporal_clustering"
	TypeRelevanceDistribution  = "relevance_distribution"
)

// Analyze returns up to four patterns observed across slices, given the
// keywords of the query that retrieved them. An empty slice set yields
// an empty pattern list.
func Analyze(slices []vaultmodel.MemorySlice, queryKeywords []string) []vaultmodel.Pattern {
	if len(slices) == 0 {
		return nil
	}

	var out []vaultmodel.Pattern
	out = append(out, memoryTypeDistribution(slices))
	out = append(out, keywordClustering(slices, queryKeywords))
	if temporal, ok := temporalClustering(slices); ok {
		out = append(out, temporal)
	}
	out = append(out, relevanceDistribution(slices))
	return out
}

func memoryTypeDistribution(slices []vaultmodel.MemorySlice) vaultmodel.Pattern {
	counts := make(map[string]int)
	for _, s := range slices {
		counts[string(s.MemoryType)]++
	}

	majority, majorityCount := "", -1
	for _, t := range []string{"episodic", "semantic", "procedural", "working"} {
		if counts[t] > majorityCount {
			majority, majorityCount = t, counts[t]
		}
	}

	return vaultmodel.Pattern{
		Type:        TypeMemoryTypeDistribution,
		Description: fmt.Sprintf("majority memory type is %s", majority),
		Data:        map[string]any{"counts": counts},
		Confidence:  0.8,
	}
}

func keywordClustering(slices []vaultmodel.MemorySlice, queryKeywords []string) vaultmodel.Pattern {
	freq := make(map[string]int)
	order := make([]string, 0)
	for _, s := range slices {
		for _, kw := range s.Keywords {
			if _, seen := freq[kw]; !seen {
				order = append(order, kw)
			}
			freq[kw]++
		}
	}

	rank := make(map[string]int, len(order))
	for i, kw := range order {
		rank[kw] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if freq[a] != freq[b] {
			return freq[a] > freq[b]
		}
		return rank[a] < rank[b]
	})
	top5 := order
	if len(top5) > 5 {
		top5 = top5[:5]
	}

	queryKwSet := make(map[string]bool, len(queryKeywords))
	for _, kw := range queryKeywords {
		queryKwSet[kw] = true
	}
	overlap := 0
	for _, kw := range top5 {
		if queryKwSet[kw] {
			overlap++
		}
	}
	denominator := len(queryKeywords)
	if denominator == 0 {
		denominator = 1
	}
	overlapRatio := float64(overlap) / float64(denominator)

	return vaultmodel.Pattern{
		Type:        TypeKeywordClustering,
		Description: fmt.Sprintf("top keywords across context overlap query terms at ratio %.2f", overlapRatio),
		Data: map[string]any{
			"top_keywords":  top5,
			"overlap_ratio": overlapRatio,
		},
		Confidence: 0.7,
	}
}

func temporalClustering(slices []vaultmodel.MemorySlice) (vaultmodel.Pattern, bool) {
	var timestamps []time.Time
	for _, s := range slices {
		t, err := time.Parse(time.RFC3339Nano, s.CreatedAt)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, t)
	}
	if len(timestamps) < 2 {
		return vaultmodel.Pattern{}, false
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	var gapSum time.Duration
	for i := 1; i < len(timestamps); i++ {
		gapSum += timestamps[i].Sub(timestamps[i-1])
	}
	meanGapHours := gapSum.Hours() / float64(len(timestamps)-1)
	spanHours := timestamps[len(timestamps)-1].Sub(timestamps[0]).Hours()

	return vaultmodel.Pattern{
		Type:        TypeTemporalClustering,
		Description: fmt.Sprintf("memories span %.1f hours with a mean gap of %.1f hours", spanHours, meanGapHours),
		Data: map[string]any{
			"mean_gap_hours": meanGapHours,
			"span_hours":     spanHours,
		},
		Confidence: 0.6,
	}, true
}

func relevanceDistribution(slices []vaultmodel.MemorySlice) vaultmodel.Pattern {
	var sum float64
	highRelevance := 0
	for _, s := range slices {
		sum += s.RelevanceScore
		if s.RelevanceScore > 0.7 {
			highRelevance++
		}
	}
	mean := sum / float64(len(slices))

	return vaultmodel.Pattern{
		Type:        TypeRelevanceDistribution,
		Description: fmt.Sprintf("mean relevance %.2f across %d memories, %d highly relevant", mean, len(slices), highRelevance),
		Data: map[string]any{
			"mean_relevance":       mean,
			"high_relevance_count": highRelevance,
		},
		Confidence: 0.8,
	}
}
