// Package seed provides explicit, string-keyed pseudo-randomness.
//
// Every random decision in the emitter is a pure function of a key, so the
// same block rendered twice with the same seed produces byte-identical markup.
// Callers build keys from a base seed plus a per-decision suffix:
//
//	base := seed.Minute(time.Now())          // "2024-05-01-13-37"
//	f := seed.Float(seed.Key(base, "anim", i)) // in [0, 1)
package seed

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"
)

// MinuteLayout formats the minute-resolution seed.
const MinuteLayout = "2006-01-02-15-04"

// Float returns a deterministic value in [0, 1) for key.
func Float(key string) float64 {
	return New(key).Float64()
}

// IntN returns a deterministic value in [0, n) for key. It panics if n <= 0.
func IntN(key string, n int) int {
	return New(key).IntN(n)
}

// New returns a generator seeded from key, for callers that need a stream of
// values under one key.
func New(key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	s := h.Sum64()
	return rand.New(rand.NewPCG(s, s^0xdeadbeef))
}

// Key joins parts with "-".
func Key(parts ...any) string {
	ss := make([]string, len(parts))
	for i, p := range parts {
		ss[i] = fmt.Sprint(p)
	}
	return strings.Join(ss, "-")
}

// Minute returns the UTC date-hour-minute of t, the default base seed. All
// renders within the same minute share it.
func Minute(t time.Time) string {
	return t.UTC().Format(MinuteLayout)
}
