// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoOptions          = errors.New("no options to tabulate")
	ErrDuplicateOption    = errors.New("duplicate or empty option id")
	ErrUnknownOption      = errors.New("unknown option")
	ErrInvalidRank        = errors.New("rank must be at least 1")
	ErrMultipleSelections = errors.New("voter selected more than one option")
)

// MajorityShare is the share (in percent) a live option needs to win a round
const MajorityShare = 50.0

// Option is a candidate as loaded from storage
type Option struct {
	ID   string
	Name string
}

// OptionTally is one option's count as of a single round
type OptionTally struct {
	ID    string
	Name  string
	Votes int
	// Percentage of counted voters, one decimal place
	Share float64
	// Eliminated never reverts once set
	Eliminated bool
	// EliminatedRound is the round at whose end the option was removed, 0 while live
	EliminatedRound int
}

// share returns votes as a percentage of voters rounded to one decimal.
// Zero voters yields a zero share.
func share(votes, voters int) float64 {
	if voters == 0 {
		return 0
	}
	return math.Round(float64(votes)*1000/float64(voters)) / 10
}

// indexOptions maps option IDs to their position in the input slice
func indexOptions(options []Option) (map[string]int, error) {
	if len(options) == 0 {
		return nil, ErrNoOptions
	}

	index := make(map[string]int, len(options))
	for i, opt := range options {
		if opt.ID == "" {
			return nil, fmt.Errorf("%w: option at position %d has no id", ErrDuplicateOption, i)
		}
		if _, dup := index[opt.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateOption, opt.ID)
		}
		index[opt.ID] = i
	}
	return index, nil
}
