package sim

import "skyhopper/internal/sim/tuning"

// testLanding reports whether the player lands on the platform this tick.
// One-way semantics: the player must be moving downward (or stationary), the
// platform must not be passable, the feet must have swept across the
// platform top between the previous and current tick, and the horizontal
// intervals must overlap, wraparound included. The sweep test is what keeps
// a fast fall from tunneling through a thin platform.
func testLanding(cfg *tuning.Tuning, player *Player, platform *Platform) bool {
	if player.Velocity.Y > 0 || platform.Passable() {
		return false
	}

	top := platform.Position.Y + platform.Height
	feet := player.FeetY()
	prevFeet := player.PreviousFeetY()
	wasAbove := prevFeet-cfg.Player.FootOffset >= top
	isBelow := feet <= top
	if !wasAbove || !isBelow {
		return false
	}

	return overlapsX(cfg, player, platform)
}

// resolveLanding applies the landing response: snap to the platform top,
// bounce, and break a Breakable/OneShot platform. Returns true on landing.
func resolveLanding(cfg *tuning.Tuning, player *Player, platform *Platform) bool {
	if !testLanding(cfg, player, platform) {
		return false
	}

	player.Position.Y = platform.Position.Y + platform.Height
	player.ApplyBounce(cfg)

	if platform.Type == PlatformBreakable || platform.Type == PlatformOneShot {
		platform.Broken = true
	}

	return true
}

func overlapsX(cfg *tuning.Tuning, player *Player, platform *Platform) bool {
	half := cfg.Player.Width / 2
	width := cfg.World.Width
	playerLeft := player.Position.X - half
	playerRight := player.Position.X + half
	platformLeft := platform.Position.X
	platformRight := platform.Position.X + platform.Width

	// A player AABB straddling an edge is checked at both the wrapped and
	// unwrapped positions.
	if playerLeft < 0 {
		return intervalsOverlap(playerLeft+width, playerRight+width, platformLeft, platformRight) ||
			intervalsOverlap(playerLeft, playerRight, platformLeft, platformRight)
	}

	if playerRight > width {
		return intervalsOverlap(playerLeft-width, playerRight-width, platformLeft, platformRight) ||
			intervalsOverlap(playerLeft, playerRight, platformLeft, platformRight)
	}

	return intervalsOverlap(playerLeft, playerRight, platformLeft, platformRight)
}

func intervalsOverlap(a1, a2, b1, b2 float64) bool {
	lo, hi := a1, a2
	if b1 > lo {
		lo = b1
	}
	if b2 < hi {
		hi = b2
	}
	return lo <= hi
}
