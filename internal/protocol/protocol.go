// Package protocol defines the versioned wire format between game clients
// and the relay, and the guard layer that validates every inbound message
// before any field is trusted.
package protocol

import "encoding/json"

// Version is the protocol version pin. An envelope carrying any other value
// is rejected outright; this is a compatibility fence, not a negotiation.
const Version = 1

// Client -> server message types.
const (
	TypeJoin            = "join"
	TypeInputBatch      = "input_batch"
	TypePing            = "ping"
	TypeReconnect       = "reconnect"
	TypeReadySet        = "ready_set"
	TypeStartRequest    = "start_request"
	TypeCharacterSelect = "character_select"
)

// Server -> client message types.
const (
	TypeWelcome        = "welcome"
	TypeLobbyState     = "lobby_state"
	TypeStartCountdown = "start_countdown"
	TypeStart          = "start"
	TypeSnapshot       = "snapshot"
	TypeRoleChanged    = "role_changed"
	TypePong           = "pong"
	TypePlayerPresence = "player_presence"
	TypeFinish         = "finish"
	TypeError          = "error"
)

// Envelope wraps every message in both directions. Seq is client-assigned
// and monotonically increasing per connection; it is diagnostic only, the
// transport is trusted to preserve order.
type Envelope struct {
	Type    string          `json:"type"`
	PV      int             `json:"pv"`
	Seq     int64           `json:"seq"`
	Ts      int64           `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps a payload in an envelope and marshals it.
func Encode(typ string, seq, ts int64, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, PV: Version, Seq: seq, Ts: ts, Payload: raw})
}

// Role is a player's room role. Exactly one master exists per room.
type Role string

const (
	RoleMaster Role = "master"
	RoleMember Role = "member"
)

// RoomState is the room lifecycle state machine:
// lobby -> starting -> running -> finished. lobby -> running is invalid, and
// any state may jump to finished on disconnect or an explicit finish.
type RoomState string

const (
	RoomLobby    RoomState = "lobby"
	RoomStarting RoomState = "starting"
	RoomRunning  RoomState = "running"
	RoomFinished RoomState = "finished"
)

// PresenceState describes a roster member's connection status.
const (
	PresenceActive       = "active"
	PresenceDisconnected = "disconnected"
	PresenceLeft         = "left"
)

// Finish reasons.
const (
	FinishRoomClosed = "room_closed"
	FinishTimeout    = "timeout"
	FinishError      = "error"
)

// World event kinds carried in snapshots.
const (
	WorldEventSpring = "spring"
	WorldEventBreak  = "break"
)
