// Package rng implements the deterministic generator shared by every peer.
// Same seed and call sequence must produce the same outputs on every
// platform. All arithmetic is exact uint64 wraparound; nothing here may go
// through floats except the final mantissa extraction in NextFloat.
package rng

import "unicode/utf16"

// Generator is a xoroshiro128** generator whose state is expanded from a
// 64-bit seed with SplitMix64. Instances never share state.
type Generator struct {
	s0, s1 uint64
}

func New(seed uint64) *Generator {
	g := &Generator{}
	g.Reseed(seed)
	return g
}

// Reseed reinitializes the generator from a 64-bit seed.
func (g *Generator) Reseed(seed uint64) {
	sm := seed
	g.s0 = splitmix64(&sm)
	g.s1 = splitmix64(&sm)
	// A zero state would lock the recurrence at zero forever.
	if g.s0 == 0 && g.s1 == 0 {
		g.s1 = 0x9e3779b97f4a7c15
	}
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func rotl(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}

// Next returns the next raw 64-bit value.
func (g *Generator) Next() uint64 {
	s0, s1 := g.s0, g.s1
	result := rotl(s0*5, 7) * 9

	s1 ^= s0
	g.s0 = rotl(s0, 24) ^ s1 ^ (s1 << 16)
	g.s1 = rotl(s1, 37)

	return result
}

// NextFloat returns a float64 in [0, 1) built from the top 53 bits.
func (g *Generator) NextFloat() float64 {
	return float64(g.Next()>>11) * (1.0 / (1 << 53))
}

// NextRange returns a float64 in [min, max).
func (g *Generator) NextRange(min, max float64) float64 {
	return min + (max-min)*g.NextFloat()
}

// NextInt returns an int in [0, maxExclusive).
func (g *Generator) NextInt(maxExclusive int) int {
	if maxExclusive <= 0 {
		return 0
	}
	return int(g.NextFloat() * float64(maxExclusive))
}

// SeedFromString hashes an opaque seed string into a 64-bit seed using an
// FNV-1a style mix over the string's UTF-16 code units. The code-unit walk
// (not bytes, not runes) is part of the wire contract: peers hash the same
// room seed to the same value regardless of host platform.
func SeedFromString(s string) uint64 {
	const (
		offset = 0xcbf29ce484222325
		prime  = 0x100000001b3
	)
	h := uint64(offset)
	for _, u := range utf16.Encode([]rune(s)) {
		h ^= uint64(u)
		h *= prime
	}
	return h
}
