// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebloveshockey/polls-capstone/models"
	"github.com/calebloveshockey/polls-capstone/testutil"
)

// concurrently runs fn n times in parallel and tallies the returned status codes.
func concurrently(n int, fn func(i int) int) map[int]int {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		codes = make(map[int]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := fn(i)
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return codes
}

func slugPath(slug string) map[string]string {
	return map[string]string{"slug": slug}
}

func voterHeader(token string) map[string]string {
	return map[string]string{"X-Voter-Token": token}
}

func TestConcurrentBallotSubmissions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewVotingHandler(db, cfg)

	pollID, _, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	opts := []string{
		testutil.AddTestOption(t, db, pollID, "Option A"),
		testutil.AddTestOption(t, db, pollID, "Option B"),
		testutil.AddTestOption(t, db, pollID, "Option C"),
	}

	const voters = 10
	tokens := make([]string, voters)
	for i := range tokens {
		tokens[i] = testutil.CreateTestVoter(t, db, pollID, "ConcurrentVoter"+string(rune('A'+i)))
	}

	codes := concurrently(voters, func(i int) int {
		// Rotated so every option collects first preferences
		rankings := map[string]int{opts[i%3]: 1, opts[(i+1)%3]: 2, opts[(i+2)%3]: 3}
		return call(h.SubmitBallot, "POST", "/polls/"+slug+"/ballots", slugPath(slug), voterHeader(tokens[i]),
			models.SubmitBallotRequest{Rankings: rankings}).Code
	})
	assert.Equal(t, map[int]int{http.StatusCreated: voters}, codes)

	var ballots, distinctVoters, responses int
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT voter_token) FROM ballot WHERE poll_id = $1
	`, pollID).Scan(&ballots, &distinctVoters))
	require.NoError(t, db.QueryRow(`
		SELECT COUNT(*) FROM response r JOIN ballot b ON r.ballot_id = b.id WHERE b.poll_id = $1
	`, pollID).Scan(&responses))

	assert.Equal(t, voters, ballots)
	assert.Equal(t, voters, distinctVoters)
	assert.Equal(t, voters*len(opts), responses)
}

func TestConcurrentUsernameClaims(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewVotingHandler(db, cfg)

	pollID, _, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	testutil.AddTestOption(t, db, pollID, "A")
	testutil.AddTestOption(t, db, pollID, "B")

	codes := concurrently(5, func(int) int {
		return call(h.ClaimUsername, "POST", "/polls/"+slug+"/claim-username", slugPath(slug), nil,
			models.ClaimUsernameRequest{Username: "RaceConditionUser"}).Code
	})
	assert.Equal(t, map[int]int{http.StatusCreated: 1, http.StatusConflict: 4}, codes)

	var claims int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM username_claim WHERE poll_id = $1 AND username = $2",
		pollID, "RaceConditionUser").Scan(&claims))
	assert.Equal(t, 1, claims)
}

func TestConcurrentPollClose(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewPollHandler(db, cfg)

	pollID, adminKey, _ := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	optionA := testutil.AddTestOption(t, db, pollID, "A")
	optionB := testutil.AddTestOption(t, db, pollID, "B")
	voter := testutil.CreateTestVoter(t, db, pollID, "closer")
	testutil.SubmitTestRanking(t, db, pollID, voter, optionA, optionB)

	codes := concurrently(5, func(int) int {
		return call(h.ClosePoll, "POST", "/polls/"+pollID+"/close", pollPath(pollID), adminHeader(adminKey), nil).Code
	})
	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusConflict: 4}, codes)

	var status string
	var finalSnapshot *string
	require.NoError(t, db.QueryRow("SELECT status, final_snapshot_id FROM poll WHERE id = $1", pollID).
		Scan(&status, &finalSnapshot))
	assert.Equal(t, models.StatusClosed, status)
	assert.NotNil(t, finalSnapshot)

	var snapshots int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM result_snapshot WHERE poll_id = $1", pollID).Scan(&snapshots))
	assert.Equal(t, 1, snapshots, "only the winning close stores a snapshot")
}

func TestConcurrentBallotUpdates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	h := NewVotingHandler(db, cfg)

	pollID, _, slug := testutil.CreateTestPoll(t, db, cfg, models.StatusOpen)
	opt1 := testutil.AddTestOption(t, db, pollID, "A")
	opt2 := testutil.AddTestOption(t, db, pollID, "B")

	token := testutil.CreateTestVoter(t, db, pollID, "UpdaterVoter")
	testutil.SubmitTestRanking(t, db, pollID, token, opt1, opt2)

	// Any update may win
	concurrently(10, func(i int) int {
		rankings := map[string]int{opt1: 1, opt2: 2}
		if i%2 == 1 {
			rankings = map[string]int{opt1: 2, opt2: 1}
		}
		return call(h.SubmitBallot, "POST", "/polls/"+slug+"/ballots", slugPath(slug), voterHeader(token),
			models.SubmitBallotRequest{Rankings: rankings}).Code
	})

	var ballots int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM ballot WHERE poll_id = $1 AND voter_token = $2",
		pollID, token).Scan(&ballots))
	assert.Equal(t, 1, ballots)

	// The surviving ballot is one whole ranking, never a mix
	rows, err := db.Query(`
		SELECT r.ranking FROM response r
		JOIN ballot b ON r.ballot_id = b.id
		WHERE b.poll_id = $1 AND b.voter_token = $2
		ORDER BY r.ranking
	`, pollID, token)
	require.NoError(t, err)
	defer rows.Close()

	var ranks []int
	for rows.Next() {
		var rank int
		require.NoError(t, rows.Scan(&rank))
		ranks = append(ranks, rank)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{1, 2}, ranks)
}

// TestParallelPolls drives independent polls of every method through their
// whole lifecycle at once.
func TestParallelPolls(t *testing.T) {
	t.Parallel()

	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	polls := NewPollHandler(db, cfg)
	voting := NewVotingHandler(db, cfg)

	methods := []string{
		models.MethodRanked, models.MethodTraditional, models.MethodApproval,
		models.MethodRanked, models.MethodApproval,
	}

	// step fails the lifecycle when a call does not return want and decodes
	// the body into out otherwise.
	step := func(idx int, what string, w *httptest.ResponseRecorder, want int, out interface{}) bool {
		if !assert.Equal(t, want, w.Code, "poll %d: %s: %s", idx, what, w.Body.String()) {
			return false
		}
		if out != nil {
			return assert.NoError(t, json.NewDecoder(w.Body).Decode(out), "poll %d: %s", idx, what)
		}
		return true
	}

	concurrently(len(methods), func(idx int) int {
		method := methods[idx]

		var created models.CreatePollResponse
		if !step(idx, "create", call(polls.CreatePoll, "POST", "/polls", nil, nil, models.CreatePollRequest{
			Title:       "Parallel Poll " + string(rune('A'+idx)),
			CreatorName: "Tester",
			Method:      method,
		}), http.StatusCreated, &created) {
			return 0
		}
		id, admin := pollPath(created.PollID), adminHeader(created.AdminKey)

		var optionIDs []string
		for j := 0; j < 3; j++ {
			var opt models.AddOptionResponse
			if !step(idx, "add option", call(polls.AddOption, "POST", "/polls/"+created.PollID+"/options", id, admin,
				models.AddOptionRequest{Label: "Option " + string(rune('A'+j))}), http.StatusCreated, &opt) {
				return 0
			}
			optionIDs = append(optionIDs, opt.OptionID)
		}

		var published models.PublishPollResponse
		if !step(idx, "publish", call(polls.PublishPoll, "POST", "/polls/"+created.PollID+"/publish", id, admin, nil),
			http.StatusOK, &published) {
			return 0
		}
		slug := slugPath(published.ShareSlug)

		var claim models.ClaimUsernameResponse
		if !step(idx, "claim", call(voting.ClaimUsername, "POST", "/polls/"+published.ShareSlug+"/claim-username", slug, nil,
			models.ClaimUsernameRequest{Username: "Voter" + string(rune('A'+idx))}), http.StatusCreated, &claim) {
			return 0
		}

		ballot := models.SubmitBallotRequest{Choices: []string{optionIDs[0]}}
		if method == models.MethodRanked {
			ballot = models.SubmitBallotRequest{Rankings: map[string]int{optionIDs[0]: 1, optionIDs[1]: 2}}
		}
		if !step(idx, "vote", call(voting.SubmitBallot, "POST", "/polls/"+published.ShareSlug+"/ballots", slug,
			voterHeader(claim.VoterToken), ballot), http.StatusCreated, nil) {
			return 0
		}

		var closed models.ClosePollResponse
		if !step(idx, "close", call(polls.ClosePoll, "POST", "/polls/"+created.PollID+"/close", id, admin, nil),
			http.StatusOK, &closed) {
			return 0
		}
		assert.Equal(t, method, closed.Snapshot.Method, "poll %d", idx)
		assert.Equal(t, []string{optionIDs[0]}, closed.Snapshot.WinnerIDs, "poll %d", idx)
		return http.StatusOK
	})

	var closedPolls int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM poll WHERE status = $1", models.StatusClosed).Scan(&closedPolls))
	assert.Equal(t, len(methods), closedPolls)
}
