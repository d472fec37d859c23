package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// The guard is fail-closed: every field of an inbound message is checked for
// presence and type before it is handed to game logic, and the first
// violation aborts the parse with a path-qualified error. A malformed
// message never partially applies.

// ServerMessage is a validated server -> client envelope. Exactly one of the
// payload pointers matching Type is non-nil.
type ServerMessage struct {
	Type string
	Seq  int64
	Ts   int64

	Welcome        *Welcome
	LobbyState     *LobbyState
	StartCountdown *StartCountdown
	Start          *Start
	Snapshot       *Snapshot
	RoleChanged    *RoleChanged
	Pong           *Pong
	Presence       *PlayerPresence
	Finish         *Finish
	Err            *ErrorPayload
}

// ClientMessage is a validated client -> server envelope.
type ClientMessage struct {
	Type string
	Seq  int64
	Ts   int64

	Join            *Join
	InputBatch      *InputBatch
	Ping            *Ping
	Reconnect       *Reconnect
	ReadySet        *ReadySet
	StartRequest    *StartRequest
	CharacterSelect *CharacterSelect
}

func decodeEnvelope(data []byte) (typ string, seq, ts int64, payload map[string]any, err error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return "", 0, 0, nil, fmt.Errorf("envelope: %w", err)
	}
	env, err := asObject(root, "envelope")
	if err != nil {
		return "", 0, 0, nil, err
	}
	typ, err = asString(env["type"], "envelope.type")
	if err != nil {
		return "", 0, 0, nil, err
	}
	pv, err := asInt(env["pv"], "envelope.pv")
	if err != nil {
		return "", 0, 0, nil, err
	}
	if int(pv) != Version {
		return "", 0, 0, nil, &VersionError{Got: int(pv)}
	}
	seq, err = asInt(env["seq"], "envelope.seq")
	if err != nil {
		return "", 0, 0, nil, err
	}
	ts, err = asInt(env["ts"], "envelope.ts")
	if err != nil {
		return "", 0, 0, nil, err
	}
	payload, err = asObject(env["payload"], "envelope.payload")
	if err != nil {
		return "", 0, 0, nil, err
	}
	return typ, seq, ts, payload, nil
}

// ParseServerEnvelope validates a server -> client message. Unknown types
// and any structural violation are errors.
func ParseServerEnvelope(data []byte) (*ServerMessage, error) {
	typ, seq, ts, p, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	msg := &ServerMessage{Type: typ, Seq: seq, Ts: ts}
	switch typ {
	case TypeWelcome:
		msg.Welcome, err = parseWelcome(p)
	case TypeLobbyState:
		msg.LobbyState, err = parseLobbyState(p)
	case TypeStartCountdown:
		msg.StartCountdown, err = parseStartCountdown(p)
	case TypeStart:
		msg.Start, err = parseStart(p)
	case TypeSnapshot:
		msg.Snapshot, err = parseSnapshot(p)
	case TypeRoleChanged:
		msg.RoleChanged, err = parseRoleChanged(p)
	case TypePong:
		msg.Pong, err = parsePong(p)
	case TypePlayerPresence:
		msg.Presence, err = parsePresence(p)
	case TypeFinish:
		msg.Finish, err = parseFinish(p)
	case TypeError:
		msg.Err, err = parseError(p)
	default:
		return nil, guardErr("envelope.type", "a known server message type")
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ParseClientEnvelope validates a client -> server message.
func ParseClientEnvelope(data []byte) (*ClientMessage, error) {
	typ, seq, ts, p, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	msg := &ClientMessage{Type: typ, Seq: seq, Ts: ts}
	switch typ {
	case TypeJoin:
		msg.Join, err = parseJoin(p)
	case TypeInputBatch:
		msg.InputBatch, err = parseInputBatch(p)
	case TypePing:
		msg.Ping, err = parsePing(p)
	case TypeReconnect:
		msg.Reconnect, err = parseReconnect(p)
	case TypeReadySet:
		msg.ReadySet, err = parseReadySet(p)
	case TypeStartRequest:
		msg.StartRequest, err = parseStartRequest(p)
	case TypeCharacterSelect:
		msg.CharacterSelect, err = parseCharacterSelect(p)
	default:
		return nil, guardErr("envelope.type", "a known client message type")
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Typed accessors. Every inbound value passes through one of these so the
// error always names the offending path.

func asObject(v any, path string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, guardErr(path, "object")
	}
	return m, nil
}

func asArray(v any, path string) ([]any, error) {
	a, ok := v.([]any)
	if !ok {
		return nil, guardErr(path, "array")
	}
	return a, nil
}

func asString(v any, path string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", guardErr(path, "string")
	}
	return s, nil
}

func asBool(v any, path string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, guardErr(path, "boolean")
	}
	return b, nil
}

func asNumber(v any, path string) (float64, error) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, guardErr(path, "number")
	}
	return f, nil
}

func asInt(v any, path string) (int64, error) {
	f, err := asNumber(v, path)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, guardErr(path, "integer")
	}
	return int64(f), nil
}

// Optional variants: absent (or null) is fine, a present value of the wrong
// type is not.

func optString(m map[string]any, key, path string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	return asString(v, path)
}

func optBool(m map[string]any, key, path string) (bool, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, err := asBool(v, path)
	return b, err == nil, err
}

func optNumber(m map[string]any, key, path string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := asNumber(v, path)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func optInt(m map[string]any, key, path string) (*int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := asInt(v, path)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Payload parsers.

func parseJoin(p map[string]any) (*Join, error) {
	name, err := asString(p["name"], "join.name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, guardErr("join.name", "non-empty")
	}
	cv, err := asString(p["clientVersion"], "join.clientVersion")
	if err != nil {
		return nil, err
	}
	device, err := optString(p, "device", "join.device")
	if err != nil {
		return nil, err
	}
	j := &Join{Name: name, ClientVersion: cv, Device: device}
	if v, ok := p["capabilities"]; ok && v != nil {
		caps, err := asObject(v, "join.capabilities")
		if err != nil {
			return nil, err
		}
		tilt, _, err := optBool(caps, "tilt", "join.capabilities.tilt")
		if err != nil {
			return nil, err
		}
		vib, _, err := optBool(caps, "vibrate", "join.capabilities.vibrate")
		if err != nil {
			return nil, err
		}
		j.Capabilities = &Capabilities{Tilt: tilt, Vibrate: vib}
	}
	return j, nil
}

func parseInputBatch(p map[string]any) (*InputBatch, error) {
	start, err := asInt(p["startTick"], "input_batch.startTick")
	if err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, guardErr("input_batch.startTick", ">= 0")
	}
	raw, err := asArray(p["frames"], "input_batch.frames")
	if err != nil {
		return nil, err
	}
	batch := &InputBatch{StartTick: start, Frames: make([]InputFrame, 0, len(raw))}
	prev := int64(-1)
	for i, fv := range raw {
		path := fmt.Sprintf("input_batch.frames[%d]", i)
		fm, err := asObject(fv, path)
		if err != nil {
			return nil, err
		}
		d, err := asInt(fm["d"], path+".d")
		if err != nil {
			return nil, err
		}
		if d <= prev {
			return nil, guardErr(path+".d", "strictly increasing")
		}
		prev = d
		axis, err := asNumber(fm["axisX"], path+".axisX")
		if err != nil {
			return nil, err
		}
		if axis < -1 || axis > 1 {
			return nil, guardErr(path+".axisX", "in [-1,1]")
		}
		jump, _, err := optBool(fm, "jump", path+".jump")
		if err != nil {
			return nil, err
		}
		batch.Frames = append(batch.Frames, InputFrame{D: d, AxisX: axis, Jump: jump})
	}
	return batch, nil
}

func parsePing(p map[string]any) (*Ping, error) {
	t0, err := asInt(p["t0"], "ping.t0")
	if err != nil {
		return nil, err
	}
	return &Ping{T0: t0}, nil
}

func parseReconnect(p map[string]any) (*Reconnect, error) {
	id, err := asString(p["playerId"], "reconnect.playerId")
	if err != nil {
		return nil, err
	}
	tok, err := asString(p["resumeToken"], "reconnect.resumeToken")
	if err != nil {
		return nil, err
	}
	ack, err := asInt(p["lastAckTick"], "reconnect.lastAckTick")
	if err != nil {
		return nil, err
	}
	return &Reconnect{PlayerID: id, ResumeToken: tok, LastAckTick: ack}, nil
}

func parseReadySet(p map[string]any) (*ReadySet, error) {
	ready, err := asBool(p["ready"], "ready_set.ready")
	if err != nil {
		return nil, err
	}
	return &ReadySet{Ready: ready}, nil
}

func parseStartRequest(p map[string]any) (*StartRequest, error) {
	sec, err := optInt(p, "countdownSec", "start_request.countdownSec")
	if err != nil {
		return nil, err
	}
	req := &StartRequest{}
	if sec != nil {
		if *sec < 0 || *sec > 10 {
			return nil, guardErr("start_request.countdownSec", "in [0,10]")
		}
		req.CountdownSec = int(*sec)
	}
	return req, nil
}

func parseCharacterSelect(p map[string]any) (*CharacterSelect, error) {
	id, err := asString(p["characterId"], "character_select.characterId")
	if err != nil {
		return nil, err
	}
	return &CharacterSelect{CharacterID: id}, nil
}

func parseRole(v any, path string) (Role, error) {
	s, err := asString(v, path)
	if err != nil {
		return "", err
	}
	r := Role(s)
	if r != RoleMaster && r != RoleMember {
		return "", guardErr(path, `"master" or "member"`)
	}
	return r, nil
}

func parseRoomState(v any, path string) (RoomState, error) {
	s, err := asString(v, path)
	if err != nil {
		return "", err
	}
	rs := RoomState(s)
	switch rs {
	case RoomLobby, RoomStarting, RoomRunning, RoomFinished:
		return rs, nil
	}
	return "", guardErr(path, "a room state")
}

func parseLobbyPlayers(v any, path string) ([]LobbyPlayer, error) {
	raw, err := asArray(v, path)
	if err != nil {
		return nil, err
	}
	players := make([]LobbyPlayer, 0, len(raw))
	for i, pv := range raw {
		ppath := fmt.Sprintf("%s[%d]", path, i)
		pm, err := asObject(pv, ppath)
		if err != nil {
			return nil, err
		}
		id, err := asString(pm["id"], ppath+".id")
		if err != nil {
			return nil, err
		}
		name, err := asString(pm["name"], ppath+".name")
		if err != nil {
			return nil, err
		}
		ready, err := asBool(pm["ready"], ppath+".ready")
		if err != nil {
			return nil, err
		}
		role, err := parseRole(pm["role"], ppath+".role")
		if err != nil {
			return nil, err
		}
		charID, err := optString(pm, "characterId", ppath+".characterId")
		if err != nil {
			return nil, err
		}
		players = append(players, LobbyPlayer{ID: id, Name: name, Ready: ready, Role: role, CharacterID: charID})
	}
	return players, nil
}

func parseWorldCfg(v any, path string) (WorldCfg, error) {
	var cfg WorldCfg
	m, err := asObject(v, path)
	if err != nil {
		return cfg, err
	}
	fields := []struct {
		key string
		dst *float64
	}{
		{"worldWidth", &cfg.WorldWidth},
		{"platformWidth", &cfg.PlatformWidth},
		{"platformHeight", &cfg.PlatformHeight},
		{"gapMin", &cfg.GapMin},
		{"gapMax", &cfg.GapMax},
		{"gravity", &cfg.Gravity},
		{"jumpVy", &cfg.JumpVy},
		{"springVy", &cfg.SpringVy},
		{"maxVx", &cfg.MaxVx},
		{"tiltAccel", &cfg.TiltAccel},
	}
	for _, f := range fields {
		val, err := asNumber(m[f.key], path+"."+f.key)
		if err != nil {
			return cfg, err
		}
		*f.dst = val
	}
	return cfg, nil
}

func parseDifficultyCfg(v any, path string) (DifficultyCfg, error) {
	var cfg DifficultyCfg
	m, err := asObject(v, path)
	if err != nil {
		return cfg, err
	}
	fields := []struct {
		key string
		dst *float64
	}{
		{"gapMinStart", &cfg.GapMinStart},
		{"gapMinEnd", &cfg.GapMinEnd},
		{"gapMaxStart", &cfg.GapMaxStart},
		{"gapMaxEnd", &cfg.GapMaxEnd},
		{"springChanceStart", &cfg.SpringChanceStart},
		{"springChanceEnd", &cfg.SpringChanceEnd},
	}
	for _, f := range fields {
		val, err := asNumber(m[f.key], path+"."+f.key)
		if err != nil {
			return cfg, err
		}
		*f.dst = val
	}
	return cfg, nil
}

func parseNetConfig(v any, path string) (NetConfig, error) {
	var cfg NetConfig
	m, err := asObject(v, path)
	if err != nil {
		return cfg, err
	}
	tps, err := asInt(m["tps"], path+".tps")
	if err != nil {
		return cfg, err
	}
	if tps <= 0 {
		return cfg, guardErr(path+".tps", "> 0")
	}
	rate, err := asInt(m["snapshotRateHz"], path+".snapshotRateHz")
	if err != nil {
		return cfg, err
	}
	rollback, err := asInt(m["maxRollbackTicks"], path+".maxRollbackTicks")
	if err != nil {
		return cfg, err
	}
	lead, err := asInt(m["inputLeadTicks"], path+".inputLeadTicks")
	if err != nil {
		return cfg, err
	}
	world, err := parseWorldCfg(m["world"], path+".world")
	if err != nil {
		return cfg, err
	}
	diff, err := parseDifficultyCfg(m["difficulty"], path+".difficulty")
	if err != nil {
		return cfg, err
	}
	cfg = NetConfig{
		TPS:              int(tps),
		SnapshotRateHz:   int(rate),
		MaxRollbackTicks: int(rollback),
		InputLeadTicks:   int(lead),
		World:            world,
		Difficulty:       diff,
	}
	return cfg, nil
}

func parseWelcome(p map[string]any) (*Welcome, error) {
	playerID, err := asString(p["playerId"], "welcome.playerId")
	if err != nil {
		return nil, err
	}
	token, err := asString(p["resumeToken"], "welcome.resumeToken")
	if err != nil {
		return nil, err
	}
	roomID, err := asString(p["roomId"], "welcome.roomId")
	if err != nil {
		return nil, err
	}
	seed, err := asString(p["seed"], "welcome.seed")
	if err != nil {
		return nil, err
	}
	role, err := parseRole(p["role"], "welcome.role")
	if err != nil {
		return nil, err
	}
	state, err := parseRoomState(p["roomState"], "welcome.roomState")
	if err != nil {
		return nil, err
	}
	lobbyObj, err := asObject(p["lobby"], "welcome.lobby")
	if err != nil {
		return nil, err
	}
	players, err := parseLobbyPlayers(lobbyObj["players"], "welcome.lobby.players")
	if err != nil {
		return nil, err
	}
	maxPlayers, err := asInt(lobbyObj["maxPlayers"], "welcome.lobby.maxPlayers")
	if err != nil {
		return nil, err
	}
	cfg, err := parseNetConfig(p["cfg"], "welcome.cfg")
	if err != nil {
		return nil, err
	}
	w := &Welcome{
		PlayerID:    playerID,
		ResumeToken: token,
		RoomID:      roomID,
		Seed:        seed,
		Role:        role,
		RoomState:   state,
		Lobby:       LobbySnapshot{Players: players, MaxPlayers: int(maxPlayers)},
		Cfg:         cfg,
	}
	if v, ok := p["featureFlags"]; ok && v != nil {
		flagsObj, err := asObject(v, "welcome.featureFlags")
		if err != nil {
			return nil, err
		}
		w.FeatureFlags = make(map[string]bool, len(flagsObj))
		for k, fv := range flagsObj {
			b, err := asBool(fv, "welcome.featureFlags."+k)
			if err != nil {
				return nil, err
			}
			w.FeatureFlags[k] = b
		}
	}
	return w, nil
}

func parseLobbyState(p map[string]any) (*LobbyState, error) {
	state, err := parseRoomState(p["roomState"], "lobby_state.roomState")
	if err != nil {
		return nil, err
	}
	players, err := parseLobbyPlayers(p["players"], "lobby_state.players")
	if err != nil {
		return nil, err
	}
	maxPlayers, err := optInt(p, "maxPlayers", "lobby_state.maxPlayers")
	if err != nil {
		return nil, err
	}
	ls := &LobbyState{RoomState: state, Players: players}
	if maxPlayers != nil {
		ls.MaxPlayers = int(*maxPlayers)
	}
	return ls, nil
}

func parseStartCountdown(p map[string]any) (*StartCountdown, error) {
	startAt, err := asInt(p["startAtMs"], "start_countdown.startAtMs")
	if err != nil {
		return nil, err
	}
	tick, err := asInt(p["serverTick"], "start_countdown.serverTick")
	if err != nil {
		return nil, err
	}
	sec, err := asInt(p["countdownSec"], "start_countdown.countdownSec")
	if err != nil {
		return nil, err
	}
	return &StartCountdown{StartAtMs: startAt, ServerTick: tick, CountdownSec: int(sec)}, nil
}

func parseStart(p map[string]any) (*Start, error) {
	startTick, err := asInt(p["startTick"], "start.startTick")
	if err != nil {
		return nil, err
	}
	serverTick, err := asInt(p["serverTick"], "start.serverTick")
	if err != nil {
		return nil, err
	}
	serverTime, err := asInt(p["serverTimeMs"], "start.serverTimeMs")
	if err != nil {
		return nil, err
	}
	tps, err := asInt(p["tps"], "start.tps")
	if err != nil {
		return nil, err
	}
	if tps <= 0 {
		return nil, guardErr("start.tps", "> 0")
	}
	s := &Start{StartTick: startTick, ServerTick: serverTick, ServerTimeMs: serverTime, TPS: int(tps)}
	if v, ok := p["players"]; ok && v != nil {
		s.Players, err = parseLobbyPlayers(v, "start.players")
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseSnapshot(p map[string]any) (*Snapshot, error) {
	tick, err := asInt(p["tick"], "snapshot.tick")
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Tick: tick}
	snap.AckTick, err = optInt(p, "ackTick", "snapshot.ackTick")
	if err != nil {
		return nil, err
	}
	snap.LastInputSeq, err = optInt(p, "lastInputSeq", "snapshot.lastInputSeq")
	if err != nil {
		return nil, err
	}
	// Absent full means delta; a present full must be a boolean.
	if v, ok := p["full"]; ok && v != nil {
		snap.Full, err = asBool(v, "snapshot.full")
		if err != nil {
			return nil, err
		}
	}
	raw, err := asArray(p["players"], "snapshot.players")
	if err != nil {
		return nil, err
	}
	snap.Players = make([]SnapshotPlayer, 0, len(raw))
	for i, pv := range raw {
		path := fmt.Sprintf("snapshot.players[%d]", i)
		pm, err := asObject(pv, path)
		if err != nil {
			return nil, err
		}
		var sp SnapshotPlayer
		sp.ID, err = asString(pm["id"], path+".id")
		if err != nil {
			return nil, err
		}
		if sp.X, err = optNumber(pm, "x", path+".x"); err != nil {
			return nil, err
		}
		if sp.Y, err = optNumber(pm, "y", path+".y"); err != nil {
			return nil, err
		}
		if sp.Vx, err = optNumber(pm, "vx", path+".vx"); err != nil {
			return nil, err
		}
		if sp.Vy, err = optNumber(pm, "vy", path+".vy"); err != nil {
			return nil, err
		}
		if v, ok := pm["alive"]; ok && v != nil {
			alive, err := asBool(v, path+".alive")
			if err != nil {
				return nil, err
			}
			sp.Alive = &alive
		}
		if snap.Full && (sp.X == nil || sp.Y == nil || sp.Vx == nil || sp.Vy == nil || sp.Alive == nil) {
			return nil, guardErr(path, "complete in a full snapshot")
		}
		snap.Players = append(snap.Players, sp)
	}
	if v, ok := p["events"]; ok && v != nil {
		rawEvents, err := asArray(v, "snapshot.events")
		if err != nil {
			return nil, err
		}
		snap.Events = make([]WorldEvent, 0, len(rawEvents))
		for i, ev := range rawEvents {
			path := fmt.Sprintf("snapshot.events[%d]", i)
			em, err := asObject(ev, path)
			if err != nil {
				return nil, err
			}
			kind, err := asString(em["kind"], path+".kind")
			if err != nil {
				return nil, err
			}
			if kind != WorldEventSpring && kind != WorldEventBreak {
				return nil, guardErr(path+".kind", `"spring" or "break"`)
			}
			x, err := asNumber(em["x"], path+".x")
			if err != nil {
				return nil, err
			}
			y, err := asNumber(em["y"], path+".y")
			if err != nil {
				return nil, err
			}
			etick, err := asInt(em["tick"], path+".tick")
			if err != nil {
				return nil, err
			}
			snap.Events = append(snap.Events, WorldEvent{Kind: kind, X: x, Y: y, Tick: etick})
		}
	}
	if v, ok := p["stats"]; ok && v != nil {
		sm, err := asObject(v, "snapshot.stats")
		if err != nil {
			return nil, err
		}
		dropped, err := optInt(sm, "droppedSnapshots", "snapshot.stats.droppedSnapshots")
		if err != nil {
			return nil, err
		}
		snap.Stats = &SnapshotStats{DroppedSnapshots: dropped}
	}
	return snap, nil
}

func parseRoleChanged(p map[string]any) (*RoleChanged, error) {
	id, err := asString(p["newMasterId"], "role_changed.newMasterId")
	if err != nil {
		return nil, err
	}
	return &RoleChanged{NewMasterID: id}, nil
}

func parsePong(p map[string]any) (*Pong, error) {
	t0, err := asInt(p["t0"], "pong.t0")
	if err != nil {
		return nil, err
	}
	t1, err := asInt(p["t1"], "pong.t1")
	if err != nil {
		return nil, err
	}
	return &Pong{T0: t0, T1: t1}, nil
}

func parsePresence(p map[string]any) (*PlayerPresence, error) {
	id, err := asString(p["id"], "player_presence.id")
	if err != nil {
		return nil, err
	}
	state, err := asString(p["state"], "player_presence.state")
	if err != nil {
		return nil, err
	}
	switch state {
	case PresenceActive, PresenceDisconnected, PresenceLeft:
	default:
		return nil, guardErr("player_presence.state", "a presence state")
	}
	return &PlayerPresence{ID: id, State: state}, nil
}

func parseFinish(p map[string]any) (*Finish, error) {
	reason, err := asString(p["reason"], "finish.reason")
	if err != nil {
		return nil, err
	}
	return &Finish{Reason: reason}, nil
}

func parseError(p map[string]any) (*ErrorPayload, error) {
	code, err := asString(p["code"], "error.code")
	if err != nil {
		return nil, err
	}
	message, err := optString(p, "message", "error.message")
	if err != nil {
		return nil, err
	}
	return &ErrorPayload{Code: code, Message: message}, nil
}
