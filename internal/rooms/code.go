package rooms

import (
	"math/rand"
	"strings"
)

// Room codes are 6 characters drawn from the uppercase base-36 alphabet.
// Uniqueness is not checked against existing rooms: collisions are
// statistically rare at lobby scale and are not handled.
const (
	codeLength  = 6
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateCode returns a new random room code.
func GenerateCode() string {
	var sb strings.Builder
	sb.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		sb.WriteByte(codeCharset[rand.Intn(len(codeCharset))])
	}
	return sb.String()
}
