package sim

import (
	"math"

	"skyhopper/internal/core/rng"
	"skyhopper/internal/sim/tuning"
)

// Platforms are pre-spawned up to this height before the first tick so a
// fresh world has somewhere to land.
const bootstrapFillHeight = 800.0

// World is the aggregate simulation root. Step is the only mutator and must
// be called once per tick, in strictly increasing tick order. Network code
// never touches a World directly; remote peers live in a separate view.
type World struct {
	Player        Player
	Platforms     []*Platform
	Powerups      []*Powerup
	Tick          Tick
	Score         int64
	HighestHeight float64

	cfg   *tuning.Tuning
	rng   *rng.Generator
	spawn *SpawnRules

	platformPool PlatformPool
	powerupPool  PowerupPool

	highestPlatformY float64
	nextPlatformID   int64
	nextPowerupID    int64
	seed             string
	events           []Event

	// Scratch index rebuilt per tick for powerup attachment lookups.
	platformByID map[int64]*Platform
}

func NewWorld(cfg *tuning.Tuning, seed string) *World {
	w := &World{
		cfg:          cfg,
		seed:         seed,
		rng:          rng.New(rng.SeedFromString(seed)),
		platformByID: make(map[int64]*Platform),
	}
	w.spawn = NewSpawnRules(cfg, w.rng)
	w.bootstrap()
	return w
}

func (w *World) Seed() string { return w.seed }

func (w *World) Config() *tuning.Tuning { return w.cfg }

// Reset returns the world to tick zero, optionally with a new seed. All
// pooled entities are released and the generator is reseeded, so a reset
// world is indistinguishable from a newly constructed one.
func (w *World) Reset(newSeed string) {
	for _, pl := range w.Platforms {
		w.platformPool.Release(pl)
	}
	for _, pu := range w.Powerups {
		w.powerupPool.Release(pu)
	}
	w.Platforms = w.Platforms[:0]
	w.Powerups = w.Powerups[:0]
	w.events = nil
	w.Tick = 0
	w.Score = 0
	w.HighestHeight = 0
	w.highestPlatformY = 0
	w.nextPlatformID = 0
	w.nextPowerupID = 0
	if newSeed != "" {
		w.seed = newSeed
	}
	w.rng.Reseed(rng.SeedFromString(w.seed))
	w.spawn.Reset()
	w.bootstrap()
}

// Step advances the simulation by exactly one tick.
func (w *World) Step(in Input) {
	if in.Tick != w.Tick {
		w.Tick = in.Tick
	}

	w.Player.Step(w.cfg, in)
	w.Tick++

	w.updatePlatforms()
	w.handlePlatformCollisions()
	w.updatePowerups()
	w.handlePowerupCollisions()
	w.cull()
	w.spawnAhead()

	if w.Player.Position.Y > w.HighestHeight {
		w.HighestHeight = w.Player.Position.Y
	}
	if s := int64(math.Floor(w.HighestHeight)); s > w.Score {
		w.Score = s
	}

	// Falling behind the rising floor is fatal even when the absolute
	// cull-margin check in Player.Step has not tripped yet.
	if w.Player.Position.Y+w.cfg.Camera.VerticalOffset < w.HighestHeight-w.cfg.Camera.SpawnAhead {
		w.Player.Die()
	}
}

// DrainEvents returns and clears the events emitted since the last drain.
func (w *World) DrainEvents() []Event {
	out := w.events
	w.events = nil
	return out
}

// Snapshot copies the observable state. Platform and powerup order follows
// the live sequences, which is also the hashing order.
func (w *World) Snapshot() WorldSnapshot {
	snap := WorldSnapshot{
		Tick:  w.Tick,
		Score: w.Score,
		Player: PlayerSnapshot{
			X:     w.Player.Position.X,
			Y:     w.Player.Position.Y,
			Vx:    w.Player.Velocity.X,
			Vy:    w.Player.Velocity.Y,
			State: w.Player.State,
		},
		Platforms: make([]PlatformSnapshot, 0, len(w.Platforms)),
		Powerups:  make([]PowerupSnapshot, 0, len(w.Powerups)),
	}
	for _, pl := range w.Platforms {
		snap.Platforms = append(snap.Platforms, PlatformSnapshot{
			ID:     pl.ID,
			Type:   pl.Type,
			X:      pl.Position.X,
			Y:      pl.Position.Y,
			Broken: pl.Broken,
		})
	}
	for _, pu := range w.Powerups {
		snap.Powerups = append(snap.Powerups, PowerupSnapshot{
			ID:     pu.ID,
			Type:   pu.Type,
			X:      pu.Position.X,
			Y:      pu.Position.Y,
			Active: pu.Active,
		})
	}
	return snap
}

func (w *World) bootstrap() {
	w.Player.Reset(w.cfg)

	groundX := w.cfg.World.Width/2 - w.cfg.World.PlatformWidth/2
	ground := w.platformPool.Get(w.cfg, w.takePlatformID(), groundX, 0, PlatformStatic, 0, nil)
	w.Platforms = append(w.Platforms, ground)
	w.highestPlatformY = ground.Position.Y

	lastY := ground.Position.Y
	for w.highestPlatformY < bootstrapFillHeight {
		spawn := w.spawn.NextPlatform(lastY, w.HighestHeight)
		platform := w.platformPool.Get(w.cfg, w.takePlatformID(), spawn.X, spawn.Y, spawn.Type, w.Tick, spawn.Movement)
		w.Platforms = append(w.Platforms, platform)
		if platform.Position.Y > w.highestPlatformY {
			w.highestPlatformY = platform.Position.Y
		}
		lastY = platform.Position.Y
	}
}

// takePlatformID hands out monotonically increasing ids starting at 1.
// Released ids are retired for the whole World lifetime, so nothing stale
// (a powerup's attachment, a render key) can ever resolve to a different
// logical platform.
func (w *World) takePlatformID() int64 {
	w.nextPlatformID++
	return w.nextPlatformID
}

func (w *World) takePowerupID() int64 {
	w.nextPowerupID++
	return w.nextPowerupID
}

func (w *World) updatePlatforms() {
	for _, pl := range w.Platforms {
		pl.Update(w.cfg, w.Tick)
	}
}

func (w *World) handlePlatformCollisions() {
	for _, pl := range w.Platforms {
		if resolveLanding(w.cfg, &w.Player, pl) {
			w.emit(EventBounce, w.Player.Position.X, w.Player.Position.Y)
			if pl.Broken {
				w.emit(EventPlatformBreak, pl.Position.X, pl.Position.Y)
			}
		}
	}
}

func (w *World) updatePowerups() {
	for id := range w.platformByID {
		delete(w.platformByID, id)
	}
	for _, pl := range w.Platforms {
		w.platformByID[pl.ID] = pl
	}
	for _, pu := range w.Powerups {
		if !pu.Active || pu.AttachedPlatformID == 0 {
			continue
		}
		if parent, ok := w.platformByID[pu.AttachedPlatformID]; ok {
			pu.Position.X = parent.Position.X + parent.Width/2
			pu.Position.Y = parent.Position.Y + parent.Height + powerupPerchOffset
		}
	}
}

func (w *World) handlePowerupCollisions() {
	for _, pu := range w.Powerups {
		if !pu.Active {
			continue
		}
		if !w.overlapsPowerup(pu) {
			continue
		}
		pu.Active = false
		switch pu.Type {
		case PowerupSpring:
			w.Player.ApplySpring(w.cfg)
			w.emit(EventSpring, pu.Position.X, pu.Position.Y)
		case PowerupJetpack:
			w.Player.ApplyJetpack(w.cfg)
			w.emit(EventJetpack, pu.Position.X, pu.Position.Y)
		}
	}
}

func (w *World) overlapsPowerup(pu *Powerup) bool {
	half := w.cfg.Player.Width / 2
	playerLeft := w.Player.Position.X - half
	playerRight := w.Player.Position.X + half
	playerBottom := w.Player.Position.Y
	playerTop := w.Player.Position.Y + w.cfg.Player.Height
	puLeft := pu.Position.X - pu.Width/2
	puRight := pu.Position.X + pu.Width/2
	puBottom := pu.Position.Y
	puTop := pu.Position.Y + pu.Height

	return playerRight >= puLeft && playerLeft <= puRight &&
		playerTop >= puBottom && playerBottom <= puTop
}

func (w *World) cull() {
	minY := w.Player.Position.Y - w.cfg.Camera.CullMargin

	kept := w.Platforms[:0]
	for _, pl := range w.Platforms {
		if pl.Position.Y < minY || pl.Broken {
			w.platformPool.Release(pl)
			continue
		}
		kept = append(kept, pl)
	}
	w.Platforms = kept

	keptPu := w.Powerups[:0]
	for _, pu := range w.Powerups {
		if !pu.Active || pu.Position.Y < minY {
			w.powerupPool.Release(pu)
			continue
		}
		keptPu = append(keptPu, pu)
	}
	w.Powerups = keptPu
}

func (w *World) spawnAhead() {
	for w.highestPlatformY < w.Player.Position.Y+w.cfg.Camera.SpawnAhead {
		spawn := w.spawn.NextPlatform(w.highestPlatformY, w.HighestHeight)
		platform := w.platformPool.Get(w.cfg, w.takePlatformID(), spawn.X, spawn.Y, spawn.Type, w.Tick, spawn.Movement)
		w.Platforms = append(w.Platforms, platform)
		if platform.Position.Y > w.highestPlatformY {
			w.highestPlatformY = platform.Position.Y
		}

		if puSpawn, ok := w.spawn.MaybeSpawnPowerup(platform, w.HighestHeight); ok {
			pu := w.powerupPool.Get(w.takePowerupID(), puSpawn.X, puSpawn.Y, puSpawn.Type, puSpawn.AttachedPlatformID)
			w.Powerups = append(w.Powerups, pu)
		}
	}
}

func (w *World) emit(kind EventKind, x, y float64) {
	w.events = append(w.events, Event{Tick: w.Tick, Kind: kind, X: x, Y: y})
}
