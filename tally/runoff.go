// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"fmt"
	"sort"
)

// RankedEntry is a single ranked choice; a voter's ballot is every entry
// sharing a VoterID. Rank 1 is the most preferred.
type RankedEntry struct {
	VoterID  string
	OptionID string
	Rank     int
}

// Round is an immutable snapshot of one runoff iteration
type Round struct {
	Number     int
	LiveVoters int
	// Exhausted counts ballots emptied by earlier eliminations
	Exhausted int
	Tallies   []OptionTally
	// Eliminated is the option removed at the end of this round, "" if final
	Eliminated string
}

// RunoffResult is the outcome of InstantRunoff
type RunoffResult struct {
	// Options holds the final tallies in input order
	Options             []OptionTally
	Rounds              []Round
	RoundsExecuted      int
	UniqueVotersAtStart int
	// WinnerID is empty when the runoff ended without a single majority
	WinnerID   string
	Conclusive bool
}

// Winner returns the winning option's final tally
func (r RunoffResult) Winner() (OptionTally, bool) {
	if r.WinnerID == "" {
		return OptionTally{}, false
	}
	for _, t := range r.Options {
		if t.ID == r.WinnerID {
			return t, true
		}
	}
	return OptionTally{}, false
}

// ballot holds a voter's remaining choices as option indexes, most preferred first
type ballot struct {
	voter   string
	choices []int
}

// InstantRunoff tabulates ranked ballots round by round. Each round counts
// every ballot for its most preferred live option; the runoff stops when a
// live option holds at least MajorityShare of the counted voters, or when the
// round number reaches the number of options. Otherwise the weakest live
// option is eliminated and its ballots transfer to their next choice.
//
// Ties for weakest are broken by the tied options' counts in earlier rounds,
// most recent first; options tied in every round are eliminated in
// descending id order.
func InstantRunoff(options []Option, entries []RankedEntry) (RunoffResult, error) {
	index, err := indexOptions(options)
	if err != nil {
		return RunoffResult{}, err
	}

	ballots, err := buildBallots(index, entries)
	if err != nil {
		return RunoffResult{}, err
	}

	eliminatedIn := make([]int, len(options))
	var (
		rounds []Round
		result RunoffResult
	)

	for number := 1; ; number++ {
		votes := make([]int, len(options))
		for _, b := range ballots {
			votes[b.choices[0]]++
		}
		live := len(ballots)

		round := Round{
			Number:     number,
			LiveVoters: live,
			Tallies:    snapshot(options, votes, live, eliminatedIn),
		}
		if number == 1 {
			result.UniqueVotersAtStart = live
		} else {
			round.Exhausted = result.UniqueVotersAtStart - live
		}

		winner, conclusive, majority := leader(round.Tallies)
		if majority || number >= len(options) {
			rounds = append(rounds, round)
			result.WinnerID = winner
			result.Conclusive = conclusive
			break
		}

		loser := weakest(round.Tallies, rounds, options)
		eliminatedIn[loser] = number
		round.Eliminated = options[loser].ID
		rounds = append(rounds, round)

		ballots = dropChoice(ballots, loser)
	}

	final := rounds[len(rounds)-1].Tallies
	result.Options = make([]OptionTally, len(final))
	copy(result.Options, final)
	result.Rounds = rounds
	result.RoundsExecuted = len(rounds)

	return result, nil
}

// buildBallots groups entries by voter in first-seen order. A voter ranking
// the same option twice keeps the better rank; equal ranks on different
// options fall back to input option order.
func buildBallots(index map[string]int, entries []RankedEntry) ([]ballot, error) {
	var order []string
	ranksByVoter := make(map[string]map[int]int)

	for _, e := range entries {
		opt, ok := index[e.OptionID]
		if !ok {
			return nil, fmt.Errorf("%w: voter %q ranked %q", ErrUnknownOption, e.VoterID, e.OptionID)
		}
		if e.Rank < 1 {
			return nil, fmt.Errorf("%w: voter %q ranked %q at %d", ErrInvalidRank, e.VoterID, e.OptionID, e.Rank)
		}

		ranks, ok := ranksByVoter[e.VoterID]
		if !ok {
			ranks = make(map[int]int)
			ranksByVoter[e.VoterID] = ranks
			order = append(order, e.VoterID)
		}
		if prev, seen := ranks[opt]; !seen || e.Rank < prev {
			ranks[opt] = e.Rank
		}
	}

	ballots := make([]ballot, 0, len(order))
	for _, voter := range order {
		ranks := ranksByVoter[voter]
		choices := make([]int, 0, len(ranks))
		for opt := range ranks {
			choices = append(choices, opt)
		}
		sort.Slice(choices, func(i, j int) bool {
			ri, rj := ranks[choices[i]], ranks[choices[j]]
			if ri != rj {
				return ri < rj
			}
			return choices[i] < choices[j]
		})
		ballots = append(ballots, ballot{voter: voter, choices: choices})
	}

	return ballots, nil
}

// dropChoice returns new ballots without the given option, omitting ballots
// left with no choices
func dropChoice(ballots []ballot, opt int) []ballot {
	kept := make([]ballot, 0, len(ballots))
	for _, b := range ballots {
		choices := make([]int, 0, len(b.choices))
		for _, c := range b.choices {
			if c != opt {
				choices = append(choices, c)
			}
		}
		if len(choices) > 0 {
			kept = append(kept, ballot{voter: b.voter, choices: choices})
		}
	}
	return kept
}

func snapshot(options []Option, votes []int, live int, eliminatedIn []int) []OptionTally {
	tallies := make([]OptionTally, len(options))
	for i, opt := range options {
		tallies[i] = OptionTally{
			ID:              opt.ID,
			Name:            opt.Name,
			Votes:           votes[i],
			Share:           share(votes[i], live),
			Eliminated:      eliminatedIn[i] > 0,
			EliminatedRound: eliminatedIn[i],
		}
	}
	return tallies
}

// leader reports whether any live option reached a majority. Two options
// sharing the top count at a majority share stop the runoff without a winner.
func leader(tallies []OptionTally) (winner string, conclusive, majority bool) {
	best := -1
	tied := false
	for i, t := range tallies {
		if t.Eliminated || t.Share < MajorityShare {
			continue
		}
		switch {
		case best < 0 || t.Votes > tallies[best].Votes:
			best = i
			tied = false
		case t.Votes == tallies[best].Votes:
			tied = true
		}
	}

	if best < 0 {
		return "", false, false
	}
	if tied {
		return "", false, true
	}
	return tallies[best].ID, true, true
}

// weakest picks the live option to eliminate from the current tallies
func weakest(tallies []OptionTally, history []Round, options []Option) int {
	loser := -1
	for i, t := range tallies {
		if t.Eliminated {
			continue
		}
		if loser < 0 || eliminateFirst(i, loser, tallies, history, options) {
			loser = i
		}
	}
	return loser
}

// eliminateFirst reports whether option a should go before option b
func eliminateFirst(a, b int, tallies []OptionTally, history []Round, options []Option) bool {
	if tallies[a].Votes != tallies[b].Votes {
		return tallies[a].Votes < tallies[b].Votes
	}

	for r := len(history) - 1; r >= 0; r-- {
		va, vb := history[r].Tallies[a].Votes, history[r].Tallies[b].Votes
		if va != vb {
			return va < vb
		}
	}

	return options[a].ID > options[b].ID
}
