// Package outcome decides when a race is over and what the final standings
// are. Every client runs its own resolver against its own registry view;
// there is no authoritative instance.
package outcome

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chvlpont/typesprint/internal/models"
)

// ResultsDelay is how long after the all-finished refresh the RESULTS
// transition fires, giving the last finisher's own view time to settle.
const ResultsDelay = 2 * time.Second

// AllFinished reports whether the race is complete: at least one player,
// and every one of them finished.
func AllFinished(players []models.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.Finished {
			return false
		}
	}
	return true
}

// Rankings returns the finished players sorted by score descending. The sort
// is stable, so ties keep registry order (creation time ascending).
func Rankings(players []models.Player) []models.Player {
	var finished []models.Player
	for _, p := range players {
		if p.Finished {
			finished = append(finished, p)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].Score > finished[j].Score
	})
	return finished
}

// RankSuffix maps a rank to its English ordinal suffix. The mapping matches
// on the exact rank, so 11, 12 and 13 fall through to "th".
func RankSuffix(rank int) string {
	switch rank {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// ResultsFunc receives the recorded winner and final rankings when the
// RESULTS transition fires.
type ResultsFunc func(winner string, rankings []models.Player)

// Resolver evaluates the terminal condition once per registry refresh and
// schedules the results transition exactly once.
type Resolver struct {
	clock     clockwork.Clock
	onResults ResultsFunc

	mu        sync.Mutex
	winner    string
	hasWinner bool
	scheduled bool
	rankings  []models.Player
	timer     clockwork.Timer
}

// NewResolver creates a resolver reporting results through onResults.
func NewResolver(clock clockwork.Clock, onResults ResultsFunc) *Resolver {
	return &Resolver{clock: clock, onResults: onResults}
}

// Observe evaluates one refreshed player snapshot. On the refresh where
// every player is first seen finished, it records the winner and schedules
// the results callback after ResultsDelay. Later refreshes never change the
// winner or re-arm the timer.
func (r *Resolver) Observe(players []models.Player) {
	if !AllFinished(players) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasWinner {
		ranked := Rankings(players)
		if len(ranked) > 0 {
			r.winner = ranked[0].Name
			r.hasWinner = true
			r.rankings = ranked
		}
	}
	if r.scheduled || !r.hasWinner {
		return
	}
	r.scheduled = true
	r.timer = r.clock.AfterFunc(ResultsDelay, r.fire)
}

// Winner returns the recorded winner's name, if one has been recorded.
func (r *Resolver) Winner() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner, r.hasWinner
}

// Stop cancels a pending results transition, for a client leaving the room
// before the delay elapses.
func (r *Resolver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Resolver) fire() {
	r.mu.Lock()
	winner := r.winner
	rankings := make([]models.Player, len(r.rankings))
	copy(rankings, r.rankings)
	r.mu.Unlock()

	if r.onResults != nil {
		r.onResults(winner, rankings)
	}
}
