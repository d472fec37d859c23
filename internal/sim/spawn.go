package sim

import (
	"math"

	"skyhopper/internal/core/mathx"
	"skyhopper/internal/core/rng"
	"skyhopper/internal/sim/tuning"
)

const (
	// The first platforms of a run are pinned near world center so every
	// seed gives a fair start.
	fairStartPlatforms = 6
	fairStartJitter    = 40.0
	spawnEdgeMargin    = 40.0
)

type PlatformSpawn struct {
	X, Y     float64
	Type     PlatformType
	Movement *Movement
}

type PowerupSpawn struct {
	X, Y               float64
	Type               PowerupType
	AttachedPlatformID int64
}

// SpawnRules generates platforms and powerups ahead of the player. It draws
// from the World's generator, so the exact order of draws below is part of
// the cross-peer contract: adding, removing or reordering a draw desyncs
// every existing seed.
type SpawnRules struct {
	cfg *tuning.Tuning
	rng *rng.Generator

	platformIndex int
}

func NewSpawnRules(cfg *tuning.Tuning, gen *rng.Generator) *SpawnRules {
	return &SpawnRules{cfg: cfg, rng: gen}
}

func (s *SpawnRules) Reset() {
	s.platformIndex = 0
}

func (s *SpawnRules) difficulty(height float64) float64 {
	return mathx.Smoothstep(0, s.cfg.Difficulty.CeilingHeight, height)
}

// NextPlatform produces the next platform above lastY, scaled by the current
// difficulty factor.
func (s *SpawnRules) NextPlatform(lastY, currentHeight float64) PlatformSpawn {
	d := s.cfg.Difficulty
	w := s.cfg.World
	difficulty := s.difficulty(currentHeight)

	gapMin := mathx.Lerp(d.GapMinStart, d.GapMinEnd, difficulty)
	gapMax := mathx.Lerp(d.GapMaxStart, d.GapMaxEnd, difficulty)
	gap := mathx.Lerp(gapMin, gapMax, s.rng.NextFloat())
	y := lastY + gap

	var x float64
	if s.platformIndex < fairStartPlatforms {
		center := w.Width/2 - w.PlatformWidth/2
		jitter := (s.rng.NextFloat() - 0.5) * fairStartJitter
		x = center + jitter
	} else {
		x = s.rng.NextRange(spawnEdgeMargin, w.Width-w.PlatformWidth-spawnEdgeMargin)
	}

	typeRoll := s.rng.NextFloat()
	typ := PlatformStatic
	var movement *Movement
	switch {
	case typeRoll < 0.1+difficulty*0.1:
		typ = PlatformMoving
		movement = &Movement{
			Amplitude:   80 + s.rng.NextFloat()*80,
			PeriodTicks: 180 + int(math.Floor(s.rng.NextFloat()*240)),
			Phase:       s.rng.NextFloat() * 2 * math.Pi,
		}
	case typeRoll < 0.15+difficulty*0.15:
		typ = PlatformBreakable
	case typeRoll < 0.22+difficulty*0.15:
		typ = PlatformOneShot
	}

	s.platformIndex++
	return PlatformSpawn{X: x, Y: y, Type: typ, Movement: movement}
}

// MaybeSpawnPowerup rolls for a powerup on a freshly spawned platform.
// Spring is checked before jetpack; both rolls always happen in that order.
func (s *SpawnRules) MaybeSpawnPowerup(platform *Platform, height float64) (PowerupSpawn, bool) {
	d := s.cfg.Difficulty
	difficulty := s.difficulty(height)
	springChance := mathx.Lerp(d.SpringChanceStart, d.SpringChanceEnd, difficulty)

	if s.rng.NextFloat() < springChance {
		return s.spawnForPlatform(platform, PowerupSpring), true
	}

	if s.rng.NextFloat() < d.JetpackChance {
		return s.spawnForPlatform(platform, PowerupJetpack), true
	}

	return PowerupSpawn{}, false
}

func (s *SpawnRules) spawnForPlatform(platform *Platform, typ PowerupType) PowerupSpawn {
	return PowerupSpawn{
		X:                  platform.Position.X + platform.Width/2,
		Y:                  platform.Position.Y + platform.Height + powerupPerchOffset,
		Type:               typ,
		AttachedPlatformID: platform.ID,
	}
}
