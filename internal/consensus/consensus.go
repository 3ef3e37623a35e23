// Package consensus reconciles the replica outcomes of one test case into a
// single verdict. Aggregation is a pure function of its input set: no I/O,
// no hidden state, and no dependence on outcome order.
package consensus

import (
	"fmt"
	"sort"
	"strings"

	"gametester/internal/types"
)

// minSharedErrorLen is the shortest common error fragment worth reporting as
// a stable root-cause signal rather than coincidence.
const minSharedErrorLen = 12

// lowReproducibilityThreshold marks tests worth flagging for instability even
// before they flip to an outright FLAKY verdict across cycles.
const lowReproducibilityThreshold = 0.7

// Aggregate combines N replica outcomes for the same test into one verdict.
//
// success_count/total_count gives the reproducibility score: 1.0 is PASS,
// 0.0 is FAIL, anything strictly between is FLAKY. An empty outcome set
// yields FAIL with zero confidence.
func Aggregate(outcomes []types.RunOutcome) types.ConsensusVerdict {
	v := types.ConsensusVerdict{
		TotalCount:  len(outcomes),
		TriageNotes: []string{},
	}
	if len(outcomes) == 0 {
		v.Verdict = types.VerdictFail
		v.TriageNotes = append(v.TriageNotes, "no replica outcomes recorded")
		return v
	}

	// Work on a sorted copy so note generation cannot observe arrival order.
	sorted := make([]types.RunOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Replica < sorted[j].Replica })

	v.TestID = sorted[0].TestID
	for _, o := range sorted {
		if o.Status == types.RunPass {
			v.SuccessCount++
		}
	}
	v.ReproducibilityScore = float64(v.SuccessCount) / float64(v.TotalCount)

	switch {
	case v.SuccessCount == v.TotalCount:
		v.Verdict = types.VerdictPass
	case v.SuccessCount == 0:
		v.Verdict = types.VerdictFail
	default:
		v.Verdict = types.VerdictFlaky
	}

	v.Confidence = confidence(v.ReproducibilityScore, v.TotalCount)
	v.TriageNotes = triageNotes(v, sorted)
	v.Outcomes = sorted
	return v
}

// Relative weight of the agreement margin versus the replica-count term in
// the confidence score.
const marginWeight = 0.7

// confidence combines the distance of the reproducibility score from a coin
// flip with the replica count, scaled to [0,1]. A unanimous outcome always
// scores above a split one at the same replica count, and more replicas at
// the same ratio strictly increase confidence.
func confidence(ratio float64, n int) float64 {
	margin := 2 * abs(ratio-0.5) // 0 at 50/50, 1 at the extremes
	countWeight := float64(n) / float64(n+1)
	return marginWeight*margin + (1-marginWeight)*countWeight
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// triageNotes derives actionable notes deterministically from the outcome
// set.
func triageNotes(v types.ConsensusVerdict, outcomes []types.RunOutcome) []string {
	notes := []string{}

	if v.Verdict == types.VerdictFlaky {
		notes = append(notes, fmt.Sprintf(
			"replicas disagree: %d of %d passed - investigate flakiness",
			v.SuccessCount, v.TotalCount))
	}
	if v.Verdict == types.VerdictFail {
		notes = append(notes, fmt.Sprintf(
			"test failed in all %d executions", v.TotalCount))
	}
	if v.ReproducibilityScore > 0 && v.ReproducibilityScore < lowReproducibilityThreshold {
		notes = append(notes, fmt.Sprintf(
			"low reproducibility score (%.2f) - test may be unstable", v.ReproducibilityScore))
	}

	var errDetails []string
	timeouts := 0
	for _, o := range outcomes {
		if o.Error != "" {
			errDetails = append(errDetails, o.Error)
			if strings.Contains(o.Error, "timed out") || strings.Contains(o.Error, "timeout") {
				timeouts++
			}
		}
	}
	if timeouts > 0 {
		notes = append(notes, fmt.Sprintf("%d of %d replicas hit the execution timeout", timeouts, v.TotalCount))
	}
	if shared := sharedErrorFragment(errDetails); shared != "" {
		notes = append(notes, fmt.Sprintf(
			"%d failing replicas share an error fragment (stable root cause likely): %q",
			len(errDetails), shared))
	}

	if variance := stepVariance(outcomes); variance > 0 {
		notes = append(notes, fmt.Sprintf("step completion variance across replicas: %d steps", variance))
	}

	return notes
}

// sharedErrorFragment returns the longest substring common to every error
// detail, or "" when there are fewer than two errors or the overlap is too
// short to signal a stable root cause. Inputs are sorted first so the result
// is independent of outcome order.
func sharedErrorFragment(errs []string) string {
	if len(errs) < 2 {
		return ""
	}
	sorted := make([]string, len(errs))
	copy(sorted, errs)
	sort.Strings(sorted)

	common := sorted[0]
	for _, e := range sorted[1:] {
		common = longestCommonSubstring(common, e)
		if len(common) < minSharedErrorLen {
			return ""
		}
	}
	return common
}

func longestCommonSubstring(a, b string) string {
	if len(a) == 0 || len(b) == 0 {
		return ""
	}
	// O(len(a)*len(b)) dynamic programming over suffix lengths.
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best, bestEnd := 0, 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
					bestEnd = i
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return a[bestEnd-best : bestEnd]
}

// stepVariance returns the spread between the most and least steps completed
// across replicas.
func stepVariance(outcomes []types.RunOutcome) int {
	if len(outcomes) == 0 {
		return 0
	}
	min, max := outcomes[0].StepsCompleted, outcomes[0].StepsCompleted
	for _, o := range outcomes[1:] {
		if o.StepsCompleted < min {
			min = o.StepsCompleted
		}
		if o.StepsCompleted > max {
			max = o.StepsCompleted
		}
	}
	return max - min
}
