package sim

import (
	"math"
	"testing"
)

func TestJetpackTimerAndStateMachine(t *testing.T) {
	cfg := testCfg()
	var player Player
	player.Reset(cfg)

	player.ApplyJetpack(cfg)
	if player.State != StateJetpacking {
		t.Fatalf("state = %v, want Jetpacking", player.State)
	}

	for tick := Tick(0); tick < Tick(cfg.Powerups.JetpackDurationTicks); tick++ {
		player.Step(cfg, Input{Tick: tick, AxisX: 0})
		if player.State != StateJetpacking {
			t.Fatalf("jetpack expired early at tick %d", tick)
		}
	}

	player.Step(cfg, Input{Tick: Tick(cfg.Powerups.JetpackDurationTicks), AxisX: 0})
	if player.State != StateAlive {
		t.Fatalf("state = %v after timer expiry, want Alive", player.State)
	}
}

func TestHorizontalSpeedClamped(t *testing.T) {
	cfg := testCfg()
	var player Player
	player.Reset(cfg)

	for tick := Tick(0); tick < 600; tick++ {
		player.Step(cfg, Input{Tick: tick, AxisX: 1})
		if player.Velocity.X > cfg.World.MaxVx+1e-9 {
			t.Fatalf("vx %v exceeds max %v", player.Velocity.X, cfg.World.MaxVx)
		}
	}
}

func TestFrictionStopsDrift(t *testing.T) {
	cfg := testCfg()
	var player Player
	player.Reset(cfg)

	player.Velocity.X = 500
	player.Velocity.Y = cfg.World.JetpackVy // stay alive long enough for friction to bite
	for tick := Tick(0); tick < 300; tick++ {
		player.Step(cfg, Input{Tick: tick, AxisX: 0})
	}
	if math.Abs(player.Velocity.X) > 1 {
		t.Fatalf("vx %v did not decay under friction", player.Velocity.X)
	}
}

func TestWraparoundResetsInterpolationHistory(t *testing.T) {
	cfg := testCfg()
	var player Player
	player.Reset(cfg)

	player.Position.X = 1
	player.Velocity.X = -cfg.World.MaxVx
	player.Velocity.Y = cfg.World.JetpackVy // stay clear of the death line
	player.Step(cfg, Input{Tick: 0, AxisX: -1})

	if player.Position.X < 0 || player.Position.X > cfg.World.Width {
		t.Fatalf("x %v outside [0,%v]", player.Position.X, cfg.World.Width)
	}
	if player.PreviousPosition.X != player.Position.X {
		t.Fatal("wrap must reset interpolation history to avoid a teleport artifact")
	}
}

func TestFallBelowCullMarginDies(t *testing.T) {
	cfg := testCfg()
	var player Player
	player.Reset(cfg)

	player.Position.Y = -cfg.Camera.CullMargin - 1
	player.Step(cfg, Input{Tick: 0, AxisX: 0})
	if player.State != StateDead {
		t.Fatalf("state = %v below cull margin, want Dead", player.State)
	}
}

func TestRenderPositionInterpolates(t *testing.T) {
	cfg := testCfg()
	var player Player
	player.Reset(cfg)

	player.PreviousPosition = Vec2{X: 100, Y: 200}
	player.Position = Vec2{X: 110, Y: 220}

	mid := player.RenderPosition(0.5)
	if !(math.Abs(mid.X-105) < 1e-9 && math.Abs(mid.Y-210) < 1e-9) {
		t.Fatalf("render position at alpha 0.5 = %+v", mid)
	}
}
