package acds

import (
	"math"
	"regexp"
	"strings"
	"testing"
)

func TestGenerateSessionStringShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z]+$`)
	for i := 0; i < 100; i++ {
		s, err := generateSessionString()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(s) {
			t.Fatalf("malformed session string %q", s)
		}
		if parts := strings.Split(s, "-"); len(parts) != 3 {
			t.Fatalf("%q has %d segments, want 3", s, len(parts))
		}
	}
}

func TestSessionStringEntropyFloor(t *testing.T) {
	perSegment := math.Log2(float64(len(adjectives)) * float64(len(nouns)))
	if total := 3 * perSegment; total < 40 {
		t.Fatalf("session string entropy %.1f bits, want at least 40", total)
	}
}

func TestRandomIndexBounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n, err := randomIndex(7)
		if err != nil {
			t.Fatalf("randomIndex: %v", err)
		}
		if n < 0 || n >= 7 {
			t.Fatalf("index %d out of [0,7)", n)
		}
	}
	if _, err := randomIndex(0); err == nil {
		t.Fatal("randomIndex(0) succeeded")
	}
}
