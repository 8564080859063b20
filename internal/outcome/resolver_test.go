package outcome_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chvlpont/typesprint/internal/models"
	"github.com/chvlpont/typesprint/internal/outcome"
)

func player(name string, finished bool, score int) models.Player {
	return models.Player{Name: name, Finished: finished, Score: score}
}

func TestAllFinished(t *testing.T) {
	assert.False(t, outcome.AllFinished(nil), "an empty room is never finished")
	assert.False(t, outcome.AllFinished([]models.Player{
		player("a", true, 10),
		player("b", false, 0),
	}))
	assert.True(t, outcome.AllFinished([]models.Player{
		player("a", true, 10),
		player("b", true, 5),
	}))
}

func TestRankings(t *testing.T) {
	players := []models.Player{
		player("slow-but-precise", true, 70),
		player("fast-but-sloppy", true, 76),
		player("gave-up", false, 0),
	}

	ranked := outcome.Rankings(players)
	require.Len(t, ranked, 2, "only finished players appear on the leaderboard")
	assert.Equal(t, "fast-but-sloppy", ranked[0].Name)
	assert.Equal(t, 76, ranked[0].Score)
	assert.Equal(t, "slow-but-precise", ranked[1].Name)
}

func TestRankingsTieKeepsRegistryOrder(t *testing.T) {
	players := []models.Player{
		player("first-joined", true, 50),
		player("second-joined", true, 50),
	}
	ranked := outcome.Rankings(players)
	assert.Equal(t, "first-joined", ranked[0].Name, "stable sort leaves ties in creation order")
}

func TestRankSuffix(t *testing.T) {
	tests := []struct {
		rank int
		want string
	}{
		{1, "st"},
		{2, "nd"},
		{3, "rd"},
		{4, "th"},
		{10, "th"},
		// The mapping matches exact ranks, so the English 11th/12th/13th
		// exceptions never come into play; they land on "th" anyway.
		{11, "th"},
		{12, "th"},
		{13, "th"},
		{21, "th"},
		{101, "th"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.rank), func(t *testing.T) {
			assert.Equal(t, tt.want, outcome.RankSuffix(tt.rank))
		})
	}
}

func TestResolverRecordsWinnerOnceAndDelaysResults(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var gotWinner string
	var gotRankings []models.Player
	fired := 0

	r := outcome.NewResolver(clock, func(winner string, rankings []models.Player) {
		mu.Lock()
		defer mu.Unlock()
		gotWinner = winner
		gotRankings = rankings
		fired++
	})

	racing := []models.Player{
		player("alice", true, 76),
		player("bob", false, 0),
	}
	r.Observe(racing)
	_, ok := r.Winner()
	assert.False(t, ok, "no winner while anyone is still typing")

	done := []models.Player{
		player("alice", true, 76),
		player("bob", true, 70),
	}
	r.Observe(done)

	winner, ok := r.Winner()
	require.True(t, ok)
	assert.Equal(t, "alice", winner)

	mu.Lock()
	assert.Zero(t, fired, "results wait out the settle delay")
	mu.Unlock()

	// A later refresh with different scores must not change the recorded
	// winner or re-arm the timer.
	r.Observe([]models.Player{
		player("alice", true, 10),
		player("bob", true, 99),
	})

	clock.Advance(outcome.ResultsDelay)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired == 1
	}, time.Second, 10*time.Millisecond)

	clock.Advance(outcome.ResultsDelay)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "alice", gotWinner)
	require.Len(t, gotRankings, 2)
	assert.Equal(t, "alice", gotRankings[0].Name)
	assert.Equal(t, 1, fired, "the results transition fires exactly once")
}

func TestResolverStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fired := false
	r := outcome.NewResolver(clock, func(string, []models.Player) { fired = true })

	r.Observe([]models.Player{player("solo", true, 42)})
	r.Stop()
	clock.Advance(2 * outcome.ResultsDelay)
	assert.False(t, fired, "a stopped resolver never fires")
}
