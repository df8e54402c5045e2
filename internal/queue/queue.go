// Package queue builds the per-run candidate queue from a newest-first feed.
package queue

import "newsrelay/internal/model"

// Build scans at most depth entries of a newest-first feed, stops at the entry
// whose hash equals the cursor and returns the unseen candidates oldest first.
// A zero cursor treats the whole scanned depth as unseen.
func Build(entries []model.Entry, cursor model.BoundaryCursor, depth int) []model.Candidate {
	if depth <= 0 || depth > len(entries) {
		depth = len(entries)
	}

	unseen := make([]model.Candidate, 0, depth)
	for i, e := range entries[:depth] {
		h := model.HashText(e.Text)
		if !cursor.IsZero() && h == cursor.Hash {
			break
		}
		unseen = append(unseen, model.Candidate{
			Index:  i,
			Text:   e.Text,
			Hash:   h,
			Author: e.Author,
			Media:  e.Media,
		})
	}

	for i, j := 0, len(unseen)-1; i < j; i, j = i+1, j-1 {
		unseen[i], unseen[j] = unseen[j], unseen[i]
	}
	return unseen
}
