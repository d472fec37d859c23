// Package sim is the deterministic fixed-tick simulation. Given the same
// seed and the same input sequence, two World instances produce bit-identical
// state on every peer; the session layer depends on that property and the
// determinism hash in hash.go is the oracle for it. Nothing in this package
// performs I/O or reads the wall clock.
package sim

// Tick is the sole unit of simulation time.
type Tick int64

// Vec2 is a float pair in simulation space. Y increases upward.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Input is one sampled player input for one tick. Inputs must be applied in
// non-decreasing tick order; the simulation never reorders or interpolates.
type Input struct {
	Tick  Tick    `json:"tick"`
	AxisX float64 `json:"axisX"`
	Jump  bool    `json:"jump,omitempty"`
}

// EventKind tags a per-tick presentation event.
type EventKind string

const (
	EventBounce        EventKind = "bounce"
	EventSpring        EventKind = "spring"
	EventJetpack       EventKind = "jetpack"
	EventPlatformBreak EventKind = "platform-break"
)

// Event is a one-shot presentation trigger drained after each tick. Events
// are not part of the deterministic state and are never retransmitted.
type Event struct {
	Tick Tick      `json:"tick"`
	Kind EventKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// WorldSnapshot is a plain-data copy of the observable world state.
type WorldSnapshot struct {
	Tick      Tick               `json:"tick"`
	Score     int64              `json:"score"`
	Player    PlayerSnapshot     `json:"player"`
	Platforms []PlatformSnapshot `json:"platforms"`
	Powerups  []PowerupSnapshot  `json:"powerups"`
}

type PlayerSnapshot struct {
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Vx    float64     `json:"vx"`
	Vy    float64     `json:"vy"`
	State PlayerState `json:"state"`
}

type PlatformSnapshot struct {
	ID     int64        `json:"id"`
	Type   PlatformType `json:"type"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Broken bool         `json:"broken"`
}

type PowerupSnapshot struct {
	ID     int64       `json:"id"`
	Type   PowerupType `json:"type"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Active bool        `json:"active"`
}
