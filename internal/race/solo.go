package race

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SoloSession is a single-player practice run against a random passage.
// Nothing is published anywhere; all state is local. Unlike multiplayer
// completion, a solo run only finishes when the input matches the text
// exactly.
type SoloSession struct {
	clock clockwork.Clock

	mu        sync.Mutex
	text      []rune
	input     []rune
	started   bool
	startTime time.Time
	ended     bool
	endTime   time.Time
	finalWPM  int
}

// SoloStats is the local view a solo screen renders from.
type SoloStats struct {
	Text     string  `json:"text"`
	Progress int     `json:"progress"`
	WPM      int     `json:"wpm"`
	Accuracy int     `json:"accuracy"`
	Finished bool    `json:"finished"`
	Elapsed  float64 `json:"elapsed_seconds"`
}

// NewSoloSession starts a practice run with a random text from the pool.
func NewSoloSession(clock clockwork.Clock) *SoloSession {
	s := &SoloSession{clock: clock}
	s.Reset()
	return s
}

// Reset draws a fresh random text and clears all progress.
func (s *SoloSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = []rune(RandomText())
	s.input = nil
	s.started = false
	s.ended = false
	s.finalWPM = 0
}

// SetInput records the current typed input and returns updated stats.
func (s *SoloSession) SetInput(input string) SoloStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return s.statsLocked()
	}

	s.input = []rune(input)
	if !s.started && len(s.input) == 1 {
		s.started = true
		s.startTime = s.clock.Now()
	}

	if input == string(s.text) {
		s.ended = true
		s.endTime = s.clock.Now()
		if s.started {
			s.finalWPM = wpm(wordCount(string(s.text)), s.endTime.Sub(s.startTime))
		}
	}
	return s.statsLocked()
}

// Stats returns the current view, recomputing live WPM from the clock when a
// run is underway.
func (s *SoloSession) Stats() SoloStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *SoloSession) statsLocked() SoloStats {
	stats := SoloStats{
		Text:     string(s.text),
		Progress: len(s.input),
		Accuracy: int(math.Round(accuracy(s.input, s.text))),
		Finished: s.ended,
	}
	switch {
	case s.ended:
		stats.WPM = s.finalWPM
		stats.Elapsed = s.endTime.Sub(s.startTime).Seconds()
	case s.started:
		stats.WPM = wpm(wordCount(string(s.input)), s.clock.Now().Sub(s.startTime))
		stats.Elapsed = s.clock.Now().Sub(s.startTime).Seconds()
	}
	return stats
}
