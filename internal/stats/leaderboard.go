package stats

import (
	"github.com/tidwall/btree"

	"evonas/internal/model"
)

type TopCandidate struct {
	Rank        int     `json:"rank"`
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name"`
	Ordinal     int     `json:"ordinal"`
	Score       float64 `json:"score"`
	Fingerprint string  `json:"fingerprint"`
	Phase       string  `json:"phase"`
}

// Leaderboard keeps candidates ordered by score, highest first. Equal scores
// keep evaluation order, so the first ranked entry matches the search's own
// choice of best candidate.
type Leaderboard struct {
	tree *btree.BTreeG[model.CandidateRecord]
}

func leaderboardLess(a, b model.CandidateRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Ordinal != b.Ordinal {
		return a.Ordinal < b.Ordinal
	}
	return a.ID < b.ID
}

func NewLeaderboard(candidates ...model.CandidateRecord) *Leaderboard {
	lb := &Leaderboard{tree: btree.NewBTreeG[model.CandidateRecord](leaderboardLess)}
	for _, c := range candidates {
		lb.Add(c)
	}
	return lb
}

func (lb *Leaderboard) Add(c model.CandidateRecord) {
	lb.tree.Set(c)
}

func (lb *Leaderboard) Len() int {
	return lb.tree.Len()
}

// Top returns at most k entries in rank order. k <= 0 returns every entry.
func (lb *Leaderboard) Top(k int) []TopCandidate {
	if k <= 0 || k > lb.tree.Len() {
		k = lb.tree.Len()
	}
	out := make([]TopCandidate, 0, k)
	lb.tree.Scan(func(c model.CandidateRecord) bool {
		if len(out) == k {
			return false
		}
		out = append(out, TopCandidate{
			Rank:        len(out) + 1,
			CandidateID: c.ID,
			Name:        c.Name,
			Ordinal:     c.Ordinal,
			Score:       c.Score,
			Fingerprint: c.Fingerprint,
			Phase:       c.Phase,
		})
		return true
	})
	return out
}
