// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import "fmt"

// Mark is a voter selecting an option on a traditional or approval ballot
type Mark struct {
	VoterID  string
	OptionID string
}

// Result is the outcome of a single-round count
type Result struct {
	Options []OptionTally
	// Voters is the number of unique voters with at least one mark
	Voters int
	// WinnerIDs lists every option sharing the top count, empty with no votes
	WinnerIDs []string
}

// Plurality counts first-past-the-post ballots. Each voter may mark one option.
func Plurality(options []Option, marks []Mark) (Result, error) {
	return count(options, marks, true)
}

// Approval counts approval ballots. A voter may mark any number of options;
// shares are relative to unique voters and can sum past 100.
func Approval(options []Option, marks []Mark) (Result, error) {
	return count(options, marks, false)
}

func count(options []Option, marks []Mark, single bool) (Result, error) {
	index, err := indexOptions(options)
	if err != nil {
		return Result{}, err
	}

	votes := make([]int, len(options))
	picked := make(map[string]map[int]bool)
	for _, m := range marks {
		opt, ok := index[m.OptionID]
		if !ok {
			return Result{}, fmt.Errorf("%w: voter %q marked %q", ErrUnknownOption, m.VoterID, m.OptionID)
		}

		seen, ok := picked[m.VoterID]
		if !ok {
			seen = make(map[int]bool)
			picked[m.VoterID] = seen
		}
		if seen[opt] {
			continue
		}
		if single && len(seen) > 0 {
			return Result{}, fmt.Errorf("%w: voter %q", ErrMultipleSelections, m.VoterID)
		}
		seen[opt] = true
		votes[opt]++
	}

	voters := len(picked)
	top := 0
	tallies := make([]OptionTally, len(options))
	for i, opt := range options {
		tallies[i] = OptionTally{
			ID:    opt.ID,
			Name:  opt.Name,
			Votes: votes[i],
			Share: share(votes[i], voters),
		}
		top = max(top, votes[i])
	}

	winners := []string{}
	if top > 0 {
		for _, t := range tallies {
			if t.Votes == top {
				winners = append(winners, t.ID)
			}
		}
	}

	return Result{Options: tallies, Voters: voters, WinnerIDs: winners}, nil
}
