// Package dedup detects near-duplicate posts by word-sequence similarity.
package dedup

import (
	"strings"

	"newsrelay/internal/model"
)

// Tokenize splits text into whitespace-separated words.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Similarity returns LCS(a,b) / max(len(a), len(b)) * 100.
// Two empty sequences are identical.
func Similarity(a, b []string) float64 {
	n, m := len(a), len(b)
	if n == 0 && m == 0 {
		return 100
	}
	if n == 0 || m == 0 {
		return 0
	}

	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return float64(prev[m]) / float64(max(n, m)) * 100
}

// Match is the best near-duplicate found among recent records.
type Match struct {
	Record model.NewsRecord
	Score  float64
}

// Detector compares candidates against recently published records.
type Detector struct {
	// Threshold is the minimum score (inclusive) that counts as a near duplicate.
	Threshold float64
}

// Best returns the highest-scoring record at or above the threshold.
// On equal scores the more recent record (earlier in recent) wins.
func (d Detector) Best(text string, recent []model.NewsRecord) (Match, bool) {
	words := Tokenize(text)
	if len(words) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, r := range recent {
		other := Tokenize(r.OriginalText)
		if len(other) == 0 {
			continue
		}
		score := Similarity(words, other)
		if score < d.Threshold {
			continue
		}
		if !found || score > best.Score {
			best = Match{Record: r, Score: score}
			found = true
		}
	}
	return best, found
}
