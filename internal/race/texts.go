package race

import "math/rand"

// SampleTexts is the fixed reference-text pool. Solo sessions draw from it
// uniformly at random; multiplayer races all type the first entry so every
// participant shares the same passage.
var SampleTexts = []string{
	"The quick brown fox jumps over the lazy dog near the riverbank while the sun sets behind mountains.",
	"Programming is not about what you know it is about what you can figure out when faced with challenging problems.",
	"Success is not final failure is not fatal it is the courage to continue that counts when you face obstacles.",
	"The only way to do great work is to love what you do and keep learning new skills every day.",
	"Practice makes perfect but perfect practice makes champions in any field whether you are learning to code.",
}

// RaceText returns the shared passage for multiplayer races.
func RaceText() string {
	return SampleTexts[0]
}

// RandomText returns a uniformly random passage for solo practice.
func RandomText() string {
	return SampleTexts[rand.Intn(len(SampleTexts))]
}

// SetPool replaces the reference-text pool, for deployments that configure
// their own passages. An empty slice leaves the built-in pool in place.
func SetPool(texts []string) {
	if len(texts) > 0 {
		SampleTexts = texts
	}
}
