package group

import (
	"fmt"
	"math"
	"sort"

	"github.com/ArnBdev/oneagent/core"
)

// WeightTolerance is the floating tolerance applied when checking that a
// category's weight table sums to 1.0.
const WeightTolerance = 1e-6

// TieBreakFirstListed names the rule applied when the highest-weight voter
// cannot decide: the option listed first in the decision point wins.
const TieBreakFirstListed = "first_listed_option"

// TieBreakHighestWeight names the rule preferring the option favored by the
// participant with the highest single weight in the deciding category.
const TieBreakHighestWeight = "highest_single_weight"

// ValidateWeights checks that every category's weights lie in [0,1] and sum
// to 1.0 within WeightTolerance across the participants in the table.
func ValidateWeights(req ConsensusRequest) error {
	for _, dp := range req.DecisionPoints {
		weights, ok := req.Weights[dp.Category]
		if !ok || len(weights) == 0 {
			return core.NewError(core.KindInvalidInput, "consensus.validate",
				"no weights for category "+dp.Category)
		}
		sum := 0.0
		for participant, w := range weights {
			if w < 0 || w > 1 {
				return core.NewError(core.KindInvalidInput, "consensus.validate",
					fmt.Sprintf("weight %g for %s in %s outside [0,1]", w, participant, dp.Category))
			}
			sum += w
		}
		if math.Abs(sum-1.0) > WeightTolerance {
			return core.NewError(core.KindInvalidInput, "consensus.validate",
				fmt.Sprintf("weights for %s sum to %g, want 1.0", dp.Category, sum))
		}
	}
	return nil
}

// AggregateCategory computes the weighted outcome for one decision point.
// Weights are renormalized over only the participants present in votes (the
// responders); non-responders never act as zero-weight abstentions against
// a full-weight denominator. Participants who responded but carry no weight
// in this category are excluded and listed as such.
//
// Tie-break: equal aggregated scores fall to the option favored by the
// responder with the highest single weight; a still-standing tie falls to
// the option listed first in the decision point.
func AggregateCategory(dp DecisionPoint, weights map[string]float64, votes map[string]string) CategoryResult {
	result := CategoryResult{Category: dp.Category, Scores: map[string]float64{}}

	voters := make([]string, 0, len(votes))
	for participant := range votes {
		if w, ok := weights[participant]; ok && w > 0 {
			voters = append(voters, participant)
		} else {
			result.Excluded = append(result.Excluded, participant)
		}
	}
	sort.Strings(voters)
	sort.Strings(result.Excluded)
	result.Voters = voters
	if len(voters) == 0 {
		return result
	}

	total := 0.0
	for _, participant := range voters {
		total += weights[participant]
	}
	for _, participant := range voters {
		result.Scores[votes[participant]] += weights[participant] / total
	}

	// Rank options by score, breaking exact ties deterministically.
	best := ""
	bestScore := math.Inf(-1)
	tied := []string{}
	for option, score := range result.Scores {
		switch {
		case score > bestScore+WeightTolerance:
			best, bestScore = option, score
			tied = []string{option}
		case math.Abs(score-bestScore) <= WeightTolerance:
			tied = append(tied, option)
		}
	}
	if len(tied) <= 1 {
		result.Winner = best
		return result
	}

	sort.Strings(tied)
	if favored, ok := highestWeightFavorite(voters, weights, votes); ok {
		for _, option := range tied {
			if option == favored {
				result.Winner = option
				result.TieBreak = TieBreakHighestWeight
				return result
			}
		}
	}
	result.Winner = firstListed(dp.Options, tied)
	result.TieBreak = TieBreakFirstListed
	return result
}

// highestWeightFavorite returns the option favored by the single
// highest-weight responder. Reports false when two top-weight responders
// disagree, leaving the decision to the first-listed rule.
func highestWeightFavorite(voters []string, weights map[string]float64, votes map[string]string) (string, bool) {
	top := math.Inf(-1)
	favored := ""
	unique := true
	for _, participant := range voters {
		w := weights[participant]
		switch {
		case w > top+WeightTolerance:
			top, favored, unique = w, votes[participant], true
		case math.Abs(w-top) <= WeightTolerance && votes[participant] != favored:
			unique = false
		}
	}
	return favored, unique
}

// firstListed picks the tied option appearing earliest in the decision
// point's option list, falling back to lexical order for options the list
// never named.
func firstListed(options, tied []string) string {
	inTie := make(map[string]bool, len(tied))
	for _, option := range tied {
		inTie[option] = true
	}
	for _, option := range options {
		if inTie[option] {
			return option
		}
	}
	return tied[0]
}
