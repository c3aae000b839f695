// Package fusion merges two independently-ranked result lists into one
// using Reciprocal Rank Fusion. It is pure and safe for concurrent use.
package fusion

import "sort"

// DefaultK is the standard RRF constant, preventing top ranks from
// dominating the fused score.
const DefaultK = 60

// Candidate is one entry of a ranked input list, best match first.
type Candidate struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Result is one fused entry. VectorScore and KeywordScore are the raw,
// unweighted RRF contributions of each side; zero when the item was
// absent from that list.
type Result struct {
	ID           string
	Content      string
	Score        float64
	VectorScore  float64
	KeywordScore float64
	Metadata     map[string]any
}

// rrf returns the reciprocal-rank contribution for a 1-indexed rank.
func rrf(rank int) float64 {
	return 1.0 / float64(DefaultK+rank)
}

// Fuse merges vector and keyword results with weighted RRF. An item at
// 1-indexed rank r contributes 1/(k+r) on each side it appears in;
// the fused score is alpha*vectorRRF + (1-alpha)*keywordRRF. The output
// is the union of both input id sets sorted by fused score descending,
// ties broken by better vector rank, then better keyword rank. Either
// input may be empty; the result degrades to the other side.
func Fuse(vector, keyword []Candidate, alpha float64) []Result {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	const absent = 1 << 30

	type entry struct {
		result      Result
		vectorRank  int
		keywordRank int
	}

	merged := make(map[string]*entry)
	order := make([]string, 0, len(vector)+len(keyword))

	add := func(c Candidate, rank int, isVector bool) {
		e, ok := merged[c.ID]
		if !ok {
			e = &entry{
				result:      Result{ID: c.ID},
				vectorRank:  absent,
				keywordRank: absent,
			}
			merged[c.ID] = e
			order = append(order, c.ID)
		}
		if e.result.Content == "" {
			e.result.Content = c.Content
		}
		if e.result.Metadata == nil {
			e.result.Metadata = c.Metadata
		}
		if isVector {
			e.vectorRank = rank
			e.result.VectorScore = rrf(rank)
		} else {
			e.keywordRank = rank
			e.result.KeywordScore = rrf(rank)
		}
	}

	for i, c := range vector {
		add(c, i+1, true)
	}
	for i, c := range keyword {
		add(c, i+1, false)
	}

	results := make([]Result, 0, len(order))
	ranks := make(map[string][2]int, len(order))
	for _, id := range order {
		e := merged[id]
		e.result.Score = alpha*e.result.VectorScore + (1-alpha)*e.result.KeywordScore
		results = append(results, e.result)
		ranks[id] = [2]int{e.vectorRank, e.keywordRank}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ri, rj := ranks[results[i].ID], ranks[results[j].ID]
		if ri[0] != rj[0] {
			return ri[0] < rj[0]
		}
		return ri[1] < rj[1]
	})

	return results
}
