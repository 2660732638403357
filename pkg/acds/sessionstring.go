package acds

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// maxGenerateAttempts bounds the rejection-sampling loop generate_session_string
// runs against the live registry before giving up, so a pathologically full
// registry fails loudly instead of spinning forever.
const maxGenerateAttempts = 64

// randomIndex returns a uniform random index in [0, n) using rejection
// sampling over crypto/rand, avoiding the modulo bias a naive `% n` would
// introduce.
func randomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("acds: empty word list")
	}
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(i.Int64()), nil
}

// randomSegment produces one session-string segment: a lowercase adjective
// immediately followed by a lowercase noun, each drawn independently and
// uniformly at random.
func randomSegment() (string, error) {
	ai, err := randomIndex(len(adjectives))
	if err != nil {
		return "", err
	}
	ni, err := randomIndex(len(nouns))
	if err != nil {
		return "", err
	}
	return adjectives[ai] + nouns[ni], nil
}

// generateSessionString produces a fresh three-segment, hyphen-joined
// session string (e.g. "quietotter-brightwolf-calmfox"), carrying at least
// 40 bits of entropy (see wordlist.go).
func generateSessionString() (string, error) {
	segs := make([]string, 3)
	for i := range segs {
		s, err := randomSegment()
		if err != nil {
			return "", err
		}
		segs[i] = s
	}
	return strings.Join(segs, "-"), nil
}
