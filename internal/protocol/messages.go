package protocol

// Client -> server payloads.

type Join struct {
	Name          string        `json:"name"`
	ClientVersion string        `json:"clientVersion"`
	Device        string        `json:"device,omitempty"`
	Capabilities  *Capabilities `json:"capabilities,omitempty"`
}

type Capabilities struct {
	Tilt    bool `json:"tilt"`
	Vibrate bool `json:"vibrate"`
}

// InputFrame is one delta-encoded input inside a batch: D is the tick offset
// from the batch's StartTick, AxisX is rounded to three decimals before
// sending. The rounding is a deliberate lossy tradeoff for payload size.
type InputFrame struct {
	D     int64   `json:"d"`
	AxisX float64 `json:"axisX"`
	Jump  bool    `json:"jump,omitempty"`
}

type InputBatch struct {
	StartTick int64        `json:"startTick"`
	Frames    []InputFrame `json:"frames"`
}

type Ping struct {
	T0 int64 `json:"t0"`
}

type Reconnect struct {
	PlayerID    string `json:"playerId"`
	ResumeToken string `json:"resumeToken"`
	LastAckTick int64  `json:"lastAckTick"`
}

type ReadySet struct {
	Ready bool `json:"ready"`
}

type StartRequest struct {
	CountdownSec int `json:"countdownSec,omitempty"`
}

type CharacterSelect struct {
	CharacterID string `json:"characterId"`
}

// Server -> client payloads.

type LobbyPlayer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Ready       bool   `json:"ready"`
	Role        Role   `json:"role"`
	CharacterID string `json:"characterId,omitempty"`
}

type LobbySnapshot struct {
	Players    []LobbyPlayer `json:"players"`
	MaxPlayers int           `json:"maxPlayers"`
}

// WorldCfg and DifficultyCfg mirror the server-authoritative subset of the
// simulation tuning handed to clients in welcome.
type WorldCfg struct {
	WorldWidth     float64 `json:"worldWidth"`
	PlatformWidth  float64 `json:"platformWidth"`
	PlatformHeight float64 `json:"platformHeight"`
	GapMin         float64 `json:"gapMin"`
	GapMax         float64 `json:"gapMax"`
	Gravity        float64 `json:"gravity"`
	JumpVy         float64 `json:"jumpVy"`
	SpringVy       float64 `json:"springVy"`
	MaxVx          float64 `json:"maxVx"`
	TiltAccel      float64 `json:"tiltAccel"`
}

type DifficultyCfg struct {
	GapMinStart       float64 `json:"gapMinStart"`
	GapMinEnd         float64 `json:"gapMinEnd"`
	GapMaxStart       float64 `json:"gapMaxStart"`
	GapMaxEnd         float64 `json:"gapMaxEnd"`
	SpringChanceStart float64 `json:"springChanceStart"`
	SpringChanceEnd   float64 `json:"springChanceEnd"`
}

type NetConfig struct {
	TPS              int           `json:"tps"`
	SnapshotRateHz   int           `json:"snapshotRateHz"`
	MaxRollbackTicks int           `json:"maxRollbackTicks"`
	InputLeadTicks   int           `json:"inputLeadTicks"`
	World            WorldCfg      `json:"world"`
	Difficulty       DifficultyCfg `json:"difficulty"`
}

type Welcome struct {
	PlayerID     string          `json:"playerId"`
	ResumeToken  string          `json:"resumeToken"`
	RoomID       string          `json:"roomId"`
	Seed         string          `json:"seed"`
	Role         Role            `json:"role"`
	RoomState    RoomState       `json:"roomState"`
	Lobby        LobbySnapshot   `json:"lobby"`
	Cfg          NetConfig       `json:"cfg"`
	FeatureFlags map[string]bool `json:"featureFlags,omitempty"`
}

type LobbyState struct {
	RoomState  RoomState     `json:"roomState"`
	Players    []LobbyPlayer `json:"players"`
	MaxPlayers int           `json:"maxPlayers,omitempty"`
}

type StartCountdown struct {
	StartAtMs    int64 `json:"startAtMs"`
	ServerTick   int64 `json:"serverTick"`
	CountdownSec int   `json:"countdownSec"`
}

type Start struct {
	StartTick    int64         `json:"startTick"`
	ServerTick   int64         `json:"serverTick"`
	ServerTimeMs int64         `json:"serverTimeMs"`
	TPS          int           `json:"tps"`
	Players      []LobbyPlayer `json:"players,omitempty"`
}

// SnapshotPlayer carries partial per-player state; absent fields mean
// "unchanged since the client's view" in delta frames.
type SnapshotPlayer struct {
	ID    string   `json:"id"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Vx    *float64 `json:"vx,omitempty"`
	Vy    *float64 `json:"vy,omitempty"`
	Alive *bool    `json:"alive,omitempty"`
}

type WorldEvent struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Tick int64   `json:"tick"`
}

type SnapshotStats struct {
	DroppedSnapshots *int64 `json:"droppedSnapshots,omitempty"`
}

type Snapshot struct {
	Tick         int64            `json:"tick"`
	AckTick      *int64           `json:"ackTick,omitempty"`
	LastInputSeq *int64           `json:"lastInputSeq,omitempty"`
	Full         bool             `json:"full"`
	Players      []SnapshotPlayer `json:"players"`
	Events       []WorldEvent     `json:"events,omitempty"`
	Stats        *SnapshotStats   `json:"stats,omitempty"`
}

type RoleChanged struct {
	NewMasterID string `json:"newMasterId"`
}

type Pong struct {
	T0 int64 `json:"t0"`
	T1 int64 `json:"t1"`
}

type PlayerPresence struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type Finish struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
