package sim

import (
	"math"
	"testing"

	"skyhopper/internal/sim/tuning"
)

func testCfg() *tuning.Tuning {
	cfg := tuning.Default()
	return &cfg
}

func TestWorldDeterministicForIdenticalInputs(t *testing.T) {
	cfg := testCfg()
	worldA := NewWorld(cfg, "det-seed")
	worldB := NewWorld(cfg, "det-seed")

	for tick := Tick(0); tick < 5000; tick++ {
		in := Input{
			Tick:  tick,
			AxisX: math.Sin(float64(tick) * 0.123),
			Jump:  tick%240 == 0,
		}
		worldA.Step(in)
		worldB.Step(in)
		if ha, hb := worldA.Hash(), worldB.Hash(); ha != hb {
			t.Fatalf("hash diverged at tick %d: %#x != %#x", tick, ha, hb)
		}
	}
}

func TestWorldDivergesForDifferentInputs(t *testing.T) {
	cfg := testCfg()
	worldA := NewWorld(cfg, "hash-seed")
	worldB := NewWorld(cfg, "hash-seed")

	for tick := Tick(0); tick < 2000; tick++ {
		worldA.Step(Input{Tick: tick, AxisX: 0})
		axis := 0.5
		if tick%2 == 1 {
			axis = -0.5
		}
		worldB.Step(Input{Tick: tick, AxisX: axis})
	}

	if worldA.Hash() == worldB.Hash() {
		t.Fatal("divergent input sequences produced identical hashes")
	}
}

func TestPlatformGapsWithinBounds(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "spacing-seed")

	lastY := math.Inf(-1)
	for tick := Tick(0); tick < 2000; tick++ {
		world.Step(Input{Tick: tick, AxisX: 0})
		for _, pl := range world.Platforms {
			if pl.Position.Y <= lastY {
				continue
			}
			if !math.IsInf(lastY, -1) {
				gap := pl.Position.Y - lastY
				if gap < cfg.Difficulty.GapMinStart-1 {
					t.Fatalf("tick %d: gap %v below minimum %v", tick, gap, cfg.Difficulty.GapMinStart)
				}
				if gap > cfg.Difficulty.GapMaxEnd+40 {
					t.Fatalf("tick %d: gap %v above maximum %v", tick, gap, cfg.Difficulty.GapMaxEnd)
				}
			}
			lastY = pl.Position.Y
		}
	}
}

func TestResetMatchesFreshWorld(t *testing.T) {
	cfg := testCfg()
	fresh := NewWorld(cfg, "reset-seed")
	recycled := NewWorld(cfg, "reset-seed")

	for tick := Tick(0); tick < 500; tick++ {
		recycled.Step(Input{Tick: tick, AxisX: 0.3})
	}
	recycled.Reset("")

	if fh, rh := fresh.Hash(), recycled.Hash(); fh != rh {
		t.Fatalf("reset world hash %#x differs from fresh %#x", rh, fh)
	}

	for tick := Tick(0); tick < 200; tick++ {
		in := Input{Tick: tick, AxisX: math.Sin(float64(tick) * 0.05)}
		fresh.Step(in)
		recycled.Step(in)
	}
	if fresh.Hash() != recycled.Hash() {
		t.Fatal("reset world diverged from fresh world")
	}
}

func TestResetWithNewSeedChangesTrajectory(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "seed-one")
	other := NewWorld(cfg, "seed-two")
	world.Reset("seed-two")

	for tick := Tick(0); tick < 200; tick++ {
		in := Input{Tick: tick, AxisX: 0}
		world.Step(in)
		other.Step(in)
	}
	if world.Hash() != other.Hash() {
		t.Fatal("reset with new seed must follow the new seed's trajectory")
	}
}

func TestScoreMonotonicallyNonDecreasing(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "score-seed")

	prev := int64(-1)
	for tick := Tick(0); tick < 1500; tick++ {
		world.Step(Input{Tick: tick, AxisX: 0})
		if world.Score < prev {
			t.Fatalf("score decreased at tick %d: %d -> %d", tick, prev, world.Score)
		}
		prev = world.Score
	}
	if world.Score <= 0 {
		t.Fatal("expected a bouncing player to gain score")
	}
}

func TestDrainEventsClearsQueue(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "event-seed")

	var collected []Event
	for tick := Tick(0); tick < 600; tick++ {
		world.Step(Input{Tick: tick, AxisX: 0})
		collected = append(collected, world.DrainEvents()...)
		if extra := world.DrainEvents(); len(extra) != 0 {
			t.Fatalf("second drain at tick %d returned %d events", tick, len(extra))
		}
	}

	bounces := 0
	for _, ev := range collected {
		if ev.Kind == EventBounce {
			bounces++
		}
	}
	if bounces == 0 {
		t.Fatal("expected bounce events over 600 ticks")
	}
}

func TestDeadStateIsTerminal(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "death-seed")

	world.Player.Die()
	deadPos := world.Player.Position
	for tick := Tick(0); tick < 120; tick++ {
		world.Step(Input{Tick: tick, AxisX: 1})
	}
	if world.Player.State != StateDead {
		t.Fatalf("player state = %v, want Dead", world.Player.State)
	}
	if world.Player.Position != deadPos {
		t.Fatal("dead player must not move")
	}

	world.Reset("")
	if world.Player.State != StateAlive {
		t.Fatal("reset must revive the player")
	}
}

func TestSnapshotMirrorsState(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "snap-seed")
	for tick := Tick(0); tick < 100; tick++ {
		world.Step(Input{Tick: tick, AxisX: 0.2})
	}

	snap := world.Snapshot()
	if snap.Tick != world.Tick {
		t.Errorf("snapshot tick = %d, want %d", snap.Tick, world.Tick)
	}
	if snap.Score != world.Score {
		t.Errorf("snapshot score = %d, want %d", snap.Score, world.Score)
	}
	if len(snap.Platforms) != len(world.Platforms) {
		t.Errorf("snapshot has %d platforms, world has %d", len(snap.Platforms), len(world.Platforms))
	}
	if snap.Player.X != world.Player.Position.X || snap.Player.Y != world.Player.Position.Y {
		t.Error("snapshot player position mismatch")
	}
}

func TestPlatformIDsNeverReused(t *testing.T) {
	cfg := testCfg()
	world := NewWorld(cfg, "id-seed")

	seen := make(map[int64]Tick)
	for tick := Tick(0); tick < 2000; tick++ {
		world.Step(Input{Tick: tick, AxisX: 0})
		for _, pl := range world.Platforms {
			if first, ok := seen[pl.ID]; ok && pl.SpawnTick != first {
				t.Fatalf("platform id %d reused (spawn ticks %d and %d)", pl.ID, first, pl.SpawnTick)
			}
			seen[pl.ID] = pl.SpawnTick
		}
	}
}
