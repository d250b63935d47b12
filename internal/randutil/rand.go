// Package randutil derives math/rand/v2 generators from integer seeds so
// that shuffles can be replayed.
package randutil

import (
	crand "crypto/rand"
	"encoding/binary"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from seed.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// ForHand derives the deck generator for one hand of a game. Hands of the
// same game get independent streams.
func ForHand(gameSeed int64, handNumber int) *rand.Rand {
	return New(int64(mix(uint64(gameSeed)) ^ mix(uint64(handNumber)*goldenRatio64)))
}

// Seed draws a fresh non-zero seed from crypto/rand.
func Seed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic("randutil: failed to read random seed: " + err.Error())
	}
	s := int64(binary.LittleEndian.Uint64(b[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
