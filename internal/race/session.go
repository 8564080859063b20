// Package race tracks one local player's typing progress against a fixed
// reference text, computes live metrics on every input change, and publishes
// absolute snapshots to that player's own row in the shared store. No other
// row is ever written by a session.
package race

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/chvlpont/typesprint/internal/store"
)

// Snapshot is the full metric state after one input change. It mirrors what
// was published to the store.
type Snapshot struct {
	Progress   int        `json:"progress"`
	WPM        int        `json:"wpm"`
	Accuracy   int        `json:"accuracy"`
	Finished   bool       `json:"finished"`
	FinishTime *time.Time `json:"finish_time,omitempty"`
	Score      int        `json:"score"`
}

// Session is a multiplayer race session for one player. It is the sole
// writer of that player's row.
type Session struct {
	store    store.Store
	clock    clockwork.Clock
	playerID uuid.UUID
	text     []rune

	mu         sync.Mutex
	input      []rune
	started    bool
	startTime  time.Time
	finished   bool
	finishTime time.Time
	score      int
}

// NewSession creates a race session for the given player and reference text.
func NewSession(st store.Store, clock clockwork.Clock, playerID uuid.UUID, text string) *Session {
	return &Session{
		store:    st,
		clock:    clock,
		playerID: playerID,
		text:     []rune(text),
	}
}

// Text returns the session's reference text.
func (s *Session) Text() string {
	return string(s.text)
}

// SetInput records the player's current typed input, recomputes every metric
// and publishes the snapshot to the player's row. Input after the finish
// transition is ignored: finished is a one-way flag and the score stays
// fixed at whatever it was at that instant.
func (s *Session) SetInput(ctx context.Context, input string) (Snapshot, error) {
	s.mu.Lock()
	if s.finished {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}

	s.input = []rune(input)

	// The timer starts on the first typed character only. A multi-character
	// first change (a paste) leaves the timer unset and WPM at zero until
	// the next single-step change.
	if !s.started && len(s.input) == 1 {
		s.started = true
		s.startTime = s.clock.Now()
	}

	acc := accuracy(s.input, s.text)
	words := 0
	currentWPM := 0
	if s.started {
		words = wordCount(input)
		currentWPM = wpm(words, s.clock.Now().Sub(s.startTime))
	}

	// Completion is length-based, not correctness-based: typing the whole
	// passage wrong still finishes the race, just with a low score.
	finished := len(s.input) == len(s.text)
	if finished {
		s.finished = true
		s.finishTime = s.clock.Now()
		s.score = scoreOf(currentWPM, acc)
	}

	up := store.ProgressUpdate{
		Progress: len(s.input),
		WPM:      currentWPM,
		Accuracy: int(math.Round(acc)),
		Finished: finished,
		Score:    s.score,
	}
	if finished {
		ft := s.finishTime
		up.FinishTime = &ft
	}
	snap := Snapshot{
		Progress:   up.Progress,
		WPM:        up.WPM,
		Accuracy:   up.Accuracy,
		Finished:   up.Finished,
		FinishTime: up.FinishTime,
		Score:      up.Score,
	}
	s.mu.Unlock()

	if err := s.store.UpdatePlayerProgress(ctx, s.playerID, up); err != nil {
		return snap, fmt.Errorf("publish progress: %w", err)
	}
	return snap, nil
}

// Finished reports whether this session's player has completed the passage.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *Session) snapshotLocked() Snapshot {
	ft := s.finishTime
	snap := Snapshot{
		Progress: len(s.input),
		WPM:      0,
		Accuracy: int(math.Round(accuracy(s.input, s.text))),
		Finished: s.finished,
		Score:    s.score,
	}
	if s.finished {
		snap.FinishTime = &ft
	}
	if s.started && s.finished {
		snap.WPM = wpm(wordCount(string(s.input)), s.finishTime.Sub(s.startTime))
	}
	return snap
}
