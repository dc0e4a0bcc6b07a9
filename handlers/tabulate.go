// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calebloveshockey/polls-capstone/auth"
	"github.com/calebloveshockey/polls-capstone/models"
	"github.com/calebloveshockey/polls-capstone/tally"
)

var (
	tabulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "polls",
		Name:      "tabulations_total",
		Help:      "Result computations by voting method.",
	}, []string{"method"})

	runoffRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "polls",
		Name:      "runoff_rounds",
		Help:      "Rounds executed per instant runoff.",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})
)

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// ComputeResults tallies every ballot of a poll with the poll's voting method.
// The returned snapshot has no ID or ComputedAt; the caller assigns them.
func ComputeResults(q Querier, pollID, method string) (models.ResultSnapshot, error) {
	var (
		options []tally.Option
		entries []tally.RankedEntry
		err     error
	)
	if method == models.MethodRanked {
		options, entries, err = LoadRankedBallots(q, pollID)
	} else {
		options, err = loadOptions(q, pollID)
		if err != nil {
			err = fmt.Errorf("failed to load options: %w", err)
		}
	}
	if err != nil {
		return models.ResultSnapshot{}, err
	}

	ballotIDs, err := loadBallotIDs(q, pollID)
	if err != nil {
		return models.ResultSnapshot{}, fmt.Errorf("failed to load ballots: %w", err)
	}

	snapshot := models.ResultSnapshot{
		PollID:     pollID,
		Method:     method,
		Rankings:   []models.OptionResult{},
		WinnerIDs:  []string{},
		InputsHash: auth.InputsHash(ballotIDs),
	}

	// Nothing to tabulate; publishing requires options so only stray rows get here
	if len(options) == 0 {
		return snapshot, nil
	}

	switch method {
	case models.MethodRanked:
		result, err := tally.InstantRunoff(options, entries)
		if err != nil {
			return models.ResultSnapshot{}, fmt.Errorf("instant runoff for poll %s: %w", pollID, err)
		}
		runoffRounds.Observe(float64(result.RoundsExecuted))

		snapshot.Rankings = rankRunoff(result)
		snapshot.RoundsExecuted = result.RoundsExecuted
		snapshot.Voters = result.UniqueVotersAtStart
		snapshot.Conclusive = result.Conclusive
		if winner, ok := result.Winner(); ok {
			snapshot.WinnerIDs = append(snapshot.WinnerIDs, winner.ID)
		}
		for _, round := range result.Rounds {
			snapshot.Rounds = append(snapshot.Rounds, models.RunoffRound{
				Round:      round.Number,
				LiveVoters: round.LiveVoters,
				Exhausted:  round.Exhausted,
				Tallies:    toOptionResults(round.Tallies),
				Eliminated: round.Eliminated,
			})
		}

	case models.MethodTraditional, models.MethodApproval:
		marks, err := loadMarks(q, pollID)
		if err != nil {
			return models.ResultSnapshot{}, fmt.Errorf("failed to load choices: %w", err)
		}
		var result tally.Result
		if method == models.MethodTraditional {
			result, err = tally.Plurality(options, marks)
		} else {
			result, err = tally.Approval(options, marks)
		}
		if err != nil {
			return models.ResultSnapshot{}, fmt.Errorf("%s count for poll %s: %w", method, pollID, err)
		}

		snapshot.Rankings = rankCount(result)
		snapshot.Voters = result.Voters
		snapshot.WinnerIDs = result.WinnerIDs
		snapshot.Conclusive = len(result.WinnerIDs) == 1

	default:
		return models.ResultSnapshot{}, fmt.Errorf("unsupported voting method %q", method)
	}

	tabulationsTotal.WithLabelValues(method).Inc()
	return snapshot, nil
}

// LoadRankedBallots returns a poll's options ordered by id and one entry per
// ranked response. The voter of an entry is its ballot id.
func LoadRankedBallots(q Querier, pollID string) ([]tally.Option, []tally.RankedEntry, error) {
	options, err := loadOptions(q, pollID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load options: %w", err)
	}
	entries, err := loadRankedEntries(q, pollID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rankings: %w", err)
	}
	return options, entries, nil
}

func loadOptions(q Querier, pollID string) ([]tally.Option, error) {
	rows, err := q.Query(`
		SELECT id, label FROM option WHERE poll_id = $1 ORDER BY id
	`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []tally.Option
	for rows.Next() {
		var opt tally.Option
		if err := rows.Scan(&opt.ID, &opt.Name); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	return options, rows.Err()
}

func loadRankedEntries(q Querier, pollID string) ([]tally.RankedEntry, error) {
	rows, err := q.Query(`
		SELECT r.ballot_id, r.option_id, r.ranking
		FROM response r
		JOIN ballot b ON r.ballot_id = b.id
		WHERE b.poll_id = $1 AND r.ranking IS NOT NULL
		ORDER BY r.ballot_id, r.ranking
	`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []tally.RankedEntry
	for rows.Next() {
		var e tally.RankedEntry
		if err := rows.Scan(&e.VoterID, &e.OptionID, &e.Rank); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func loadMarks(q Querier, pollID string) ([]tally.Mark, error) {
	rows, err := q.Query(`
		SELECT r.ballot_id, r.option_id
		FROM response r
		JOIN ballot b ON r.ballot_id = b.id
		WHERE b.poll_id = $1
		ORDER BY r.ballot_id, r.option_id
	`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var marks []tally.Mark
	for rows.Next() {
		var m tally.Mark
		if err := rows.Scan(&m.VoterID, &m.OptionID); err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}

	return marks, rows.Err()
}

func loadBallotIDs(q Querier, pollID string) ([]string, error) {
	rows, err := q.Query(`
		SELECT id FROM ballot WHERE poll_id = $1 ORDER BY id
	`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func toOptionResults(tallies []tally.OptionTally) []models.OptionResult {
	results := make([]models.OptionResult, len(tallies))
	for i, t := range tallies {
		results[i] = models.OptionResult{
			OptionID:        t.ID,
			Label:           t.Name,
			Votes:           t.Votes,
			Share:           t.Share,
			Eliminated:      t.Eliminated,
			EliminatedRound: t.EliminatedRound,
		}
	}
	return results
}

// rankRunoff orders final runoff tallies: winner, then votes, then options
// that survived longer, then option ID
func rankRunoff(result tally.RunoffResult) []models.OptionResult {
	results := toOptionResults(result.Options)

	survived := func(r models.OptionResult) int {
		if !r.Eliminated {
			return result.RoundsExecuted + 1
		}
		return r.EliminatedRound
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]

		if (a.OptionID == result.WinnerID) != (b.OptionID == result.WinnerID) {
			return a.OptionID == result.WinnerID
		}
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		if sa, sb := survived(a), survived(b); sa != sb {
			return sa > sb
		}
		return a.OptionID < b.OptionID
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// rankCount orders single-round counts by votes, then option ID
func rankCount(result tally.Result) []models.OptionResult {
	results := toOptionResults(result.Options)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Votes != results[j].Votes {
			return results[i].Votes > results[j].Votes
		}
		return results[i].OptionID < results[j].OptionID
	})

	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
