package race

import (
	"math"
	"strings"
	"time"
)

// countCorrect counts positions where the typed input matches the reference
// text. Positions beyond the shorter of the two never count.
func countCorrect(input, text []rune) int {
	n := len(input)
	if len(text) < n {
		n = len(text)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if input[i] == text[i] {
			correct++
		}
	}
	return correct
}

// accuracy returns the percentage of typed positions that match the
// reference. An empty input is 100 percent accurate.
func accuracy(input, text []rune) float64 {
	if len(input) == 0 {
		return 100
	}
	return float64(countCorrect(input, text)) / float64(len(input)) * 100
}

// wordCount splits on single spaces. The empty string splits into one empty
// field and therefore counts as one word; live WPM inherits that quirk.
func wordCount(input string) int {
	return len(strings.Split(input, " "))
}

// wpm estimates words per minute for the given word count over the elapsed
// duration, floored at zero.
func wpm(words int, elapsed time.Duration) int {
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		return 0
	}
	w := int(math.Round(float64(words) / minutes))
	if w < 0 {
		return 0
	}
	return w
}

// scoreOf fixes the final score at the finish instant: WPM scaled by the
// unrounded accuracy fraction.
func scoreOf(wpm int, accuracy float64) int {
	return int(math.Round(float64(wpm) * accuracy / 100))
}
