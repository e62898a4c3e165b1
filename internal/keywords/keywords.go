// Package keywords implements deterministic keyword extraction for slice
// content: the same fixed pipeline every time, with no external NLP
// dependency, so retrieval and pattern analysis can rely on reproducible
// output for identical input.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// stopwords is the fixed set of common English function words dropped
// before ranking. Tokens shorter than 3 letters ("a", "an", "or", "in",
// "on", "at", "to", "by", "is", "do", "I", "he", "we", "me", "us", "my")
// never reach this set since the extraction regex already excludes them.
var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"was": true, "were": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "you": true, "she": true, "they": true, "him": true,
	"her": true, "them": true, "your": true, "his": true, "its": true,
	"our": true, "their": true, "this": true, "that": true, "these": true,
	"those": true, "are": true,
}

// Extract returns up to the top 10 keywords in text: maximal runs of
// letters of length >= 3, lowercased, stopwords dropped, ranked by
// descending frequency with ties broken by first occurrence.
func Extract(text string) []string {
	matches := wordPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, word := range matches {
		if stopwords[word] {
			continue
		}
		if _, seen := counts[word]; !seen {
			order = append(order, word)
		}
		counts[word]++
	}

	rank := make(map[string]int, len(order))
	for i, word := range order {
		rank[word] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return rank[a] < rank[b]
	})

	if len(order) > 10 {
		order = order[:10]
	}
	return order
}
