package game

import (
	"sort"

	"impostor/pkg/types"
)

// TallyResult is the outcome of one voting phase. Exactly one of
// Eliminated and Reason is non-empty.
type TallyResult struct {
	Eliminated string
	Reason     string
	Counts     map[string]int
	Cast       int
	TopCount   int
}

// Tally counts a ballot map. Skip ballots count as cast but are never
// candidates. No real votes, a shared maximum, or a leader that isAlive
// rejects all produce a no-elimination result. The output depends only on
// the inputs.
func Tally(votes map[string]string, isAlive func(id string) bool) TallyResult {
	result := TallyResult{
		Counts: make(map[string]int),
		Cast:   len(votes),
	}

	for _, target := range votes {
		if target == types.SkipVote || target == "" {
			continue
		}
		result.Counts[target]++
	}

	if len(result.Counts) == 0 {
		result.Reason = types.NoEliminationNoVotes
		return result
	}

	var leaders []string
	for target, count := range result.Counts {
		switch {
		case count > result.TopCount:
			result.TopCount = count
			leaders = []string{target}
		case count == result.TopCount:
			leaders = append(leaders, target)
		}
	}
	sort.Strings(leaders)

	if len(leaders) > 1 {
		result.Reason = types.NoEliminationTie
		return result
	}

	if isAlive != nil && !isAlive(leaders[0]) {
		result.Reason = types.NoEliminationNoVotes
		return result
	}

	result.Eliminated = leaders[0]
	return result
}
