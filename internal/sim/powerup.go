package sim

type PowerupType int

const (
	PowerupSpring PowerupType = iota
	PowerupJetpack
)

const (
	powerupWidth  = 40.0
	powerupHeight = 40.0
	// Vertical offset of a powerup above its parent platform's top.
	powerupPerchOffset = 24.0
)

// Powerup sits on a platform until picked up. When attached, its position is
// derived from the parent platform each tick; the powerup does not own the
// platform and a culled parent simply leaves it where it was.
type Powerup struct {
	ID       int64
	Position Vec2
	Type     PowerupType
	Active   bool
	Width    float64
	Height   float64
	// AttachedPlatformID is 0 for free-standing powerups. Platform ids are
	// monotonic from 1 within a World lifetime, so 0 never aliases a live
	// platform.
	AttachedPlatformID int64
}

func (pu *Powerup) init(id int64, x, y float64, typ PowerupType, attachedPlatformID int64) *Powerup {
	pu.ID = id
	pu.Position.X = x
	pu.Position.Y = y
	pu.Type = typ
	pu.Active = true
	pu.Width = powerupWidth
	pu.Height = powerupHeight
	pu.AttachedPlatformID = attachedPlatformID
	return pu
}

type PowerupPool struct {
	free []*Powerup
}

func (p *PowerupPool) Get(id int64, x, y float64, typ PowerupType, attachedPlatformID int64) *Powerup {
	var pu *Powerup
	if n := len(p.free); n > 0 {
		pu = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		pu = &Powerup{}
	}
	return pu.init(id, x, y, typ, attachedPlatformID)
}

func (p *PowerupPool) Release(pu *Powerup) {
	pu.Active = false
	pu.AttachedPlatformID = 0
	p.free = append(p.free, pu)
}
