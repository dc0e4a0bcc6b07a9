// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally counts ballots for the three poll methods.

Everything here is a pure function over an in-memory snapshot of options and
ballots. Nothing is cached between calls, so concurrent calls for different
polls are safe.

# Instant Runoff

Ranked polls use InstantRunoff:

	result, err := tally.InstantRunoff(options, entries)

Every round counts each ballot for its most preferred live option. Shares are
percentages of the voters counted in that round, rounded to one decimal. A
live option at 50.0% or more wins. Otherwise the weakest live option is
eliminated, its ballots move to their next choice, and the next round starts.
Ballots with no live choice left are exhausted and drop out of the
denominator.

The loop stops at round N for N options even without a majority. That result
is inconclusive: WinnerID is empty and Conclusive is false.

# Tie-Breaking

When several live options share the lowest count, the one with the lower
count in the most recent earlier round where they differ is eliminated. If
they were level in every round, the option whose ID sorts last goes first.

# Single-Round Counts

Traditional polls use Plurality (one mark per voter), approval polls use
Approval (any number of marks per voter):

	result, err := tally.Approval(options, marks)

Shares are relative to unique voters. WinnerIDs lists every option tied at the
top count.

# Errors

Precondition failures are returned as wrapped sentinels:

  - ErrNoOptions: empty option list
  - ErrDuplicateOption: repeated or empty option ID
  - ErrUnknownOption: ballot references an option not in the list
  - ErrInvalidRank: rank below 1
  - ErrMultipleSelections: more than one mark on a plurality ballot
*/
package tally
