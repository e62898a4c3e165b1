// Package retrieval implements the lexical/keyword-overlap retrieval
// engine: candidate prefetch from the full-text index, TF-IDF-like
// similarity scoring against every row in scope, ranking, and usage-stat
// feedback into relevance_score.
package retrieval

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/amaydixit11/memvault/internal/keywords"
	"github.com/amaydixit11/memvault/internal/sliceindex"
	"github.com/amaydixit11/memvault/internal/vaultclock"
	"github.com/amaydixit11/memvault/internal/vaultmodel"
)

// wordPattern mirrors keywords.Extract's tokenization rule but without
// stopword filtering: word_similarity is defined over the query's full
// token set, not its extracted keywords.
var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// overlapBoost is the weight B in the combined-similarity formula.
const overlapBoost = 1.5

// Options configures a single Retrieve call; zero values fall back to
// the documented defaults.
type Options struct {
	MemoryTypes   []vaultmodel.MemoryType
	MaxResults    int
	MinSimilarity float64
}

func (o Options) maxResults() int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return 10
}

func (o Options) minSimilarity() float64 {
	if o.MinSimilarity > 0 {
		return o.MinSimilarity
	}
	return 0.3
}

// ScoredSlice pairs a slice with the similarity score that ranked it.
type ScoredSlice struct {
	Slice vaultmodel.MemorySlice
	Score float64
}

// Result is the outcome of a single Retrieve call.
type Result struct {
	Slices         []ScoredSlice
	TotalRelevance float64
	ElapsedMillis  int64
	QueryKeywords  []string
}

// Engine retrieves memory slices by lexical similarity against a query.
type Engine struct {
	index *sliceindex.Store
	clock vaultclock.Clock
}

// New returns a retrieval Engine over index.
func New(index *sliceindex.Store, clock vaultclock.Clock) *Engine {
	return &Engine{index: index, clock: clock}
}

// Retrieve runs the full candidate-fetch, score, rank, and stat-update
// pipeline for query against the named owner/persona scope.
func (e *Engine) Retrieve(query, ownerID, personaID string, opts Options) (Result, error) {
	start := time.Now()

	queryKeywords := keywords.Extract(query)
	queryWords := wordSet(query)

	candidates, err := e.index.SearchCandidates(queryKeywords, 2*opts.maxResults())
	if err != nil {
		return Result{}, err
	}

	rows, err := e.index.ListSlices(ownerID, personaID, opts.MemoryTypes)
	if err != nil {
		return Result{}, err
	}

	scored := make([]ScoredSlice, 0, len(rows))
	for _, row := range rows {
		boosted := score(queryKeywords, queryWords, row, candidates[row.SliceID])
		if boosted >= opts.minSimilarity() {
			scored = append(scored, ScoredSlice{Slice: row, Score: boosted})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Slice.SliceID < scored[j].Slice.SliceID
	})

	if len(scored) > opts.maxResults() {
		scored = scored[:opts.maxResults()]
	}

	now := e.clock.Now()
	ids := make([]string, len(scored))
	var total float64
	for i, s := range scored {
		ids[i] = s.Slice.SliceID
		total += s.Score
		s.Slice.RetrievalCount++
		s.Slice.LastAccessed = now
		scored[i] = s
	}
	if len(ids) > 0 {
		if err := e.index.UpdateRetrievalStats(ids, now); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Slices:         scored,
		TotalRelevance: total,
		ElapsedMillis:  time.Since(start).Milliseconds(),
		QueryKeywords:  queryKeywords,
	}, nil
}

func score(queryKeywords []string, queryWords map[string]bool, row vaultmodel.MemorySlice, isCandidate bool) float64 {
	keywordSim := jaccard(toSet(queryKeywords), toSet(row.Keywords))
	wordSim := jaccard(queryWords, wordSet(row.Content))

	combined := (keywordSim*overlapBoost + wordSim) / (overlapBoost + 1)
	if isCandidate {
		combined = min(combined*1.2, 1.0)
	}
	return combined * (0.5 + 0.5*row.RelevanceScore)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func wordSet(text string) map[string]bool {
	return toSet(wordPattern.FindAllString(strings.ToLower(text), -1))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a)
	for k := range b {
		if !a[k] {
			union++
		}
	}
	if union == 0 {
		union = 1
	}
	return float64(intersection) / float64(union)
}
