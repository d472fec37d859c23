package sim

import (
	"math"

	"skyhopper/internal/core/mathx"
	"skyhopper/internal/sim/tuning"
)

type PlatformType int

const (
	PlatformStatic PlatformType = iota
	PlatformMoving
	PlatformBreakable
	PlatformOneShot
)

// Movement makes a platform oscillate horizontally. X is a pure function of
// tick and phase, so render code can evaluate it at fractional ticks without
// stored history.
type Movement struct {
	Amplitude   float64
	PeriodTicks int
	Phase       float64
}

type Platform struct {
	ID        int64
	Type      PlatformType
	Position  Vec2
	Width     float64
	Height    float64
	Movement  *Movement
	Broken    bool
	SpawnTick Tick

	oscillationCenterX float64
}

func (pl *Platform) init(cfg *tuning.Tuning, id int64, x, y float64, typ PlatformType, tick Tick, movement *Movement) *Platform {
	pl.ID = id
	pl.Type = typ
	pl.Position.X = x
	pl.Position.Y = y
	pl.Width = cfg.World.PlatformWidth
	pl.Height = cfg.World.PlatformHeight
	pl.Movement = movement
	pl.SpawnTick = tick
	pl.oscillationCenterX = x
	pl.Broken = false
	return pl
}

// Passable reports whether the player falls through this platform.
func (pl *Platform) Passable() bool {
	return pl.Type == PlatformBreakable && pl.Broken
}

func (pl *Platform) Update(cfg *tuning.Tuning, tick Tick) {
	if pl.Movement == nil {
		pl.Position.X = mathx.WrapX(pl.oscillationCenterX, cfg.World.Width)
		return
	}
	pl.Position.X = pl.oscillateX(cfg, float64(tick))
}

// RenderX evaluates the oscillation at a fractional tick for interpolated
// rendering.
func (pl *Platform) RenderX(cfg *tuning.Tuning, tick Tick, alpha float64) float64 {
	if pl.Movement == nil {
		return pl.Position.X
	}
	return pl.oscillateX(cfg, float64(tick)+alpha)
}

func (pl *Platform) oscillateX(cfg *tuning.Tuning, tick float64) float64 {
	m := pl.Movement
	theta := 2 * math.Pi * (tick + m.Phase) / float64(m.PeriodTicks)
	return mathx.WrapX(pl.oscillationCenterX+math.Sin(theta)*m.Amplitude, cfg.World.Width)
}

// PlatformPool is a free list keeping the per-tick spawn/cull loop free of
// allocation churn. Released ids are retired, never reissued: the id counter
// lives in World and only counts up.
type PlatformPool struct {
	free []*Platform
}

func (p *PlatformPool) Get(cfg *tuning.Tuning, id int64, x, y float64, typ PlatformType, tick Tick, movement *Movement) *Platform {
	var pl *Platform
	if n := len(p.free); n > 0 {
		pl = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		pl = &Platform{}
	}
	return pl.init(cfg, id, x, y, typ, tick, movement)
}

func (p *PlatformPool) Release(pl *Platform) {
	pl.Broken = false
	pl.Movement = nil
	p.free = append(p.free, pl)
}
