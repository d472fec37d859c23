package sim

import (
	"skyhopper/internal/core/mathx"
	"skyhopper/internal/sim/tuning"
)

// PlayerState is the player life-cycle state machine. Alive and Jetpacking
// alternate while the jetpack timer runs; Dead is terminal until Reset.
type PlayerState int

const (
	StateAlive PlayerState = iota
	StateJetpacking
	StateDead
)

// Player is the locally simulated avatar. There is exactly one per World and
// only World.Step mutates it.
type Player struct {
	Position Vec2
	// PreviousPosition is kept for sub-tick render interpolation.
	PreviousPosition Vec2
	Velocity         Vec2
	State            PlayerState

	jetpackTicksRemaining int
}

func (p *Player) Reset(cfg *tuning.Tuning) {
	p.Position.X = cfg.World.Width / 2
	p.Position.Y = cfg.World.PlatformHeight + 180
	p.PreviousPosition = p.Position
	p.Velocity = Vec2{}
	p.State = StateAlive
	p.jetpackTicksRemaining = 0
}

// Step advances the player by one fixed tick.
func (p *Player) Step(cfg *tuning.Tuning, in Input) {
	if p.State == StateDead {
		p.cachePrevious()
		return
	}

	p.cachePrevious()

	dt := 1.0 / float64(cfg.TPS)
	axis := mathx.Clamp(in.AxisX, -1, 1)
	p.Velocity.X += cfg.World.Accel * axis * dt

	if axis == 0 {
		p.Velocity.X *= cfg.World.Friction
	}

	p.Velocity.X = mathx.Clamp(p.Velocity.X, -cfg.World.MaxVx, cfg.World.MaxVx)

	if p.jetpackTicksRemaining > 0 {
		p.State = StateJetpacking
		p.Velocity.Y = cfg.World.JetpackVy
		p.jetpackTicksRemaining--
	} else if p.State == StateJetpacking {
		p.State = StateAlive
	}

	p.Velocity.Y += cfg.World.Gravity * dt

	p.Position.X += p.Velocity.X * dt
	p.Position.Y += p.Velocity.Y * dt

	// Horizontal wraparound. The interpolation history is reset so a wrap
	// does not render as a full-width teleport.
	if p.Position.X < 0 {
		p.Position.X += cfg.World.Width
		p.PreviousPosition.X = p.Position.X
	} else if p.Position.X > cfg.World.Width {
		p.Position.X -= cfg.World.Width
		p.PreviousPosition.X = p.Position.X
	}

	if p.Position.Y < -cfg.Camera.CullMargin {
		p.State = StateDead
	}
}

// ApplyBounce sets the landing bounce velocity.
func (p *Player) ApplyBounce(cfg *tuning.Tuning) {
	p.Velocity.Y = cfg.World.JumpVy * cfg.Player.BounceDamp
}

func (p *Player) ApplySpring(cfg *tuning.Tuning) {
	p.Velocity.Y = cfg.World.SpringVy
}

func (p *Player) ApplyJetpack(cfg *tuning.Tuning) {
	p.jetpackTicksRemaining = cfg.Powerups.JetpackDurationTicks
	p.State = StateJetpacking
	p.Velocity.Y = cfg.World.JetpackVy
}

func (p *Player) Die() {
	p.State = StateDead
}

func (p *Player) FeetY() float64         { return p.Position.Y }
func (p *Player) PreviousFeetY() float64 { return p.PreviousPosition.Y }

// RenderPosition returns the position interpolated between the previous and
// current tick by alpha in [0,1).
func (p *Player) RenderPosition(alpha float64) Vec2 {
	return Vec2{
		X: mathx.Lerp(p.PreviousPosition.X, p.Position.X, alpha),
		Y: mathx.Lerp(p.PreviousPosition.Y, p.Position.Y, alpha),
	}
}

func (p *Player) cachePrevious() {
	p.PreviousPosition = p.Position
}
