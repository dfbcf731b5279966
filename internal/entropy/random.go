// Package entropy seeds the game's pseudo-random source.
// A configured seed makes decks and block placement reproducible; otherwise
// the seed is drawn from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"time"
)

// NewSeed returns a seed read from crypto/rand.
func NewSeed() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// NewRand builds the game RNG. A zero seed is replaced with a crypto seed,
// or the current time if crypto/rand fails. The seed in use is returned so
// it can be logged and replayed.
func NewRand(seed int64) (*mrand.Rand, int64) {
	if seed == 0 {
		s, err := NewSeed()
		if err != nil {
			slog.Warn("crypto seed unavailable, using clock", "error", err)
			s = time.Now().UnixNano()
		}
		seed = s
	}
	return mrand.New(mrand.NewSource(seed)), seed
}
