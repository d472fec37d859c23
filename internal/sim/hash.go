package sim

import "math"

// Determinism hash: a rolling FNV-1a fold over the world state in a fixed
// order. Two peers running the same seed and input sequence must produce the
// same hash after every tick; a mismatch means the simulation has diverged.
// Floats are quantized to three decimal digits before mixing so the hash is
// stable against last-bit representation drift across platforms.

const (
	fnvOffset64 = 0xcbf29ce484222325
	fnvPrime64  = 0x100000001b3
)

func fold(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= (v >> (8 * i)) & 0xff
		h *= fnvPrime64
	}
	return h
}

func foldFloat(h uint64, v float64) uint64 {
	return fold(h, uint64(int64(math.Trunc(v*1000))))
}

func foldBool(h uint64, v bool) uint64 {
	if v {
		return fold(h, 1)
	}
	return fold(h, 0)
}

// Hash returns the determinism hash of the current world state.
func (w *World) Hash() uint64 {
	h := uint64(fnvOffset64)

	h = fold(h, uint64(w.Tick))
	h = fold(h, uint64(w.Score))

	h = foldFloat(h, w.Player.Position.X)
	h = foldFloat(h, w.Player.Position.Y)
	h = foldFloat(h, w.Player.Velocity.X)
	h = foldFloat(h, w.Player.Velocity.Y)
	h = fold(h, uint64(w.Player.State))

	for _, pl := range w.Platforms {
		h = fold(h, uint64(pl.ID))
		h = foldFloat(h, pl.Position.X)
		h = foldFloat(h, pl.Position.Y)
		h = fold(h, uint64(pl.Type))
		h = foldBool(h, pl.Broken)
	}

	for _, pu := range w.Powerups {
		h = fold(h, uint64(pu.ID))
		h = foldFloat(h, pu.Position.X)
		h = foldFloat(h, pu.Position.Y)
		h = fold(h, uint64(pu.Type))
		h = foldBool(h, pu.Active)
	}

	h = foldFloat(h, w.HighestHeight)

	return h
}
