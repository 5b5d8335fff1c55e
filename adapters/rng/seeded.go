package rng

import (
	"context"
	"math/rand/v2"

	"orcacast/ports"
)

// Seeded implements ports.RNGPort with PCG streams. Streams are pure functions of their
// arguments, so two calls with the same run/stage/key/seed replay identical draws.
type Seeded struct{}

// NewSeeded creates the production RNG adapter
func NewSeeded() ports.RNGPort {
	return &Seeded{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (s *Seeded) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(seed), hashString(name))), nil
}

// Stream derives an independent stream for one unit of work inside a run
func (s *Seeded) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := hashString(runID)
	h = mix(h, hashString(stageName))
	h = mix(h, hashString(key))
	return rand.New(rand.NewPCG(uint64(baseSeed), h)), nil
}

// hashString is djb2 widened to 64 bits
func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// mix folds b into a with a splitmix64 finaliser so that ("ab","c") and ("a","bc") differ
func mix(a, b uint64) uint64 {
	z := a ^ (b + 0x9e3779b97f4a7c15 + (a << 6) + (a >> 2))
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
