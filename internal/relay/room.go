// Package relay implements the authoritative multiplayer relay: rooms,
// lobby flow, per-player simulation advanced from input batches, and
// snapshot fan-out.
package relay

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyhopper/internal/protocol"
	"skyhopper/internal/sim"
	"skyhopper/internal/sim/tuning"
)

const (
	// Every fullSnapshotEvery-th snapshot to a player is a full frame; the
	// rest are deltas. Reconnects force the next one to be full.
	fullSnapshotEvery = 10

	outQueueSize = 32
)

type player struct {
	id          string
	name        string
	resumeToken string
	role        protocol.Role
	ready       bool
	characterID string
	connected   bool

	out chan []byte

	world        *sim.World
	ackTick      int64
	lastInputSeq int64
	needFull     bool
	snapshots    int64
	dropped      int64

	// World events since the player's last snapshot.
	events []protocol.WorldEvent
}

// Room owns one match from lobby to finish. All methods are safe for
// concurrent use by connection goroutines and the room ticker.
type Room struct {
	mu sync.Mutex

	id   string
	seed string
	cfg  *tuning.Tuning
	log  *log.Logger
	now  func() time.Time

	state   protocol.RoomState
	players map[string]*player
	order   []string

	seq       int64
	startAt   time.Time
	countdown int
	startTick int64
}

func NewRoom(id, seed string, cfg *tuning.Tuning, logger *log.Logger) *Room {
	return &Room{
		id:      id,
		seed:    seed,
		cfg:     cfg,
		log:     logger,
		now:     time.Now,
		state:   protocol.RoomLobby,
		players: make(map[string]*player),
	}
}

// SetClock overrides the time source, for tests.
func (r *Room) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func (r *Room) ID() string { return r.id }

func (r *Room) Seed() string { return r.seed }

func (r *Room) State() protocol.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Join admits a new player in the lobby. The first player in becomes
// master.
func (r *Room) Join(name string, out chan []byte) (*protocol.Welcome, *protocol.ErrorPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != protocol.RoomLobby {
		return nil, &protocol.ErrorPayload{Code: protocol.CodeRoomStateInvalid, Message: "room already started"}
	}
	if len(r.players) >= r.cfg.Net.MaxPlayers {
		return nil, &protocol.ErrorPayload{Code: protocol.CodeRoomFull, Message: "room is full"}
	}

	p := &player{
		id:          uuid.NewString(),
		name:        name,
		resumeToken: uuid.NewString(),
		role:        protocol.RoleMember,
		connected:   true,
		out:         out,
		world:       sim.NewWorld(r.cfg, r.seed),
	}
	p.characterID = protocol.PickDefaultCharacter(p.id)
	if len(r.players) == 0 {
		p.role = protocol.RoleMaster
	}
	r.players[p.id] = p
	r.order = append(r.order, p.id)

	w := r.welcomeLocked(p)
	r.broadcastLobbyLocked()
	r.log.Printf("room %s: %s joined as %s (%d/%d)", r.id, p.id, p.role, len(r.players), r.cfg.Net.MaxPlayers)
	return w, nil
}

// Reconnect resumes a dropped player by resume token. The next snapshot
// sent to them is a full frame.
func (r *Room) Reconnect(playerID, token string, out chan []byte) (*protocol.Welcome, *protocol.ErrorPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || p.resumeToken != token {
		return nil, &protocol.ErrorPayload{Code: protocol.CodeBadResumeToken, Message: "unknown player or token"}
	}
	p.connected = true
	p.out = out
	p.needFull = true

	r.broadcastLocked(protocol.TypePlayerPresence, protocol.PlayerPresence{ID: p.id, State: protocol.PresenceActive}, p.id)
	return r.welcomeLocked(p), nil
}

// SetReady updates the lobby ready flag. Only meaningful in the lobby.
func (r *Room) SetReady(playerID string, ready bool) *protocol.ErrorPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != protocol.RoomLobby {
		return &protocol.ErrorPayload{Code: protocol.CodeRoomStateInvalid, Message: "not in lobby"}
	}
	p, ok := r.players[playerID]
	if !ok {
		return &protocol.ErrorPayload{Code: protocol.CodeBadRequest, Message: "unknown player"}
	}
	p.ready = ready
	r.broadcastLobbyLocked()
	return nil
}

// SelectCharacter picks a cosmetic character in the lobby.
func (r *Room) SelectCharacter(playerID, characterID string) *protocol.ErrorPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !protocol.ValidCharacterID(characterID) {
		return &protocol.ErrorPayload{Code: protocol.CodeBadRequest, Message: "unknown character"}
	}
	p, ok := r.players[playerID]
	if !ok {
		return &protocol.ErrorPayload{Code: protocol.CodeBadRequest, Message: "unknown player"}
	}
	p.characterID = characterID
	if r.state == protocol.RoomLobby {
		r.broadcastLobbyLocked()
	}
	return nil
}

// RequestStart begins the countdown. Master only, lobby only, everyone
// ready.
func (r *Room) RequestStart(playerID string, countdownSec int) *protocol.ErrorPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return &protocol.ErrorPayload{Code: protocol.CodeBadRequest, Message: "unknown player"}
	}
	if p.role != protocol.RoleMaster {
		return &protocol.ErrorPayload{Code: protocol.CodeNotMaster, Message: "only the master may start"}
	}
	switch r.state {
	case protocol.RoomStarting:
		return &protocol.ErrorPayload{Code: protocol.CodeCountdownActive, Message: "countdown already running"}
	case protocol.RoomRunning:
		return &protocol.ErrorPayload{Code: protocol.CodeStartAlready, Message: "match already running"}
	case protocol.RoomFinished:
		return &protocol.ErrorPayload{Code: protocol.CodeRoomStateInvalid, Message: "room is finished"}
	}
	for _, id := range r.order {
		if q := r.players[id]; q.connected && !q.ready {
			return &protocol.ErrorPayload{Code: protocol.CodeRoomNotReady, Message: q.name + " is not ready"}
		}
	}

	if countdownSec <= 0 {
		countdownSec = 3
	}
	r.state = protocol.RoomStarting
	r.countdown = countdownSec
	r.startAt = r.now().Add(time.Duration(countdownSec) * time.Second)
	r.broadcastLocked(protocol.TypeStartCountdown, protocol.StartCountdown{
		StartAtMs:    r.startAt.UnixMilli(),
		ServerTick:   r.startTick,
		CountdownSec: countdownSec,
	}, "")
	return nil
}

// HandleInputBatch applies a player's inputs to their world. The world
// advances one step per in-order tick; stale and far-future frames are
// dropped. The resulting ackTick rides on the next snapshot.
func (r *Room) HandleInputBatch(playerID string, seq int64, batch *protocol.InputBatch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != protocol.RoomRunning {
		return
	}
	p, ok := r.players[playerID]
	if !ok {
		return
	}
	if seq > p.lastInputSeq {
		p.lastInputSeq = seq
	}

	for _, f := range batch.Frames {
		tick := batch.StartTick + f.D
		if tick != int64(p.world.Tick) {
			continue
		}
		p.world.Step(sim.Input{Tick: sim.Tick(tick), AxisX: f.AxisX, Jump: f.Jump})
		for _, ev := range p.world.DrainEvents() {
			kind := ""
			switch ev.Kind {
			case sim.EventSpring:
				kind = protocol.WorldEventSpring
			case sim.EventPlatformBreak:
				kind = protocol.WorldEventBreak
			}
			if kind != "" {
				p.events = append(p.events, protocol.WorldEvent{Kind: kind, X: ev.X, Y: ev.Y, Tick: int64(ev.Tick)})
			}
		}
		p.ackTick = tick
	}
}

// Pong answers a ping with the server receive time.
func (r *Room) Pong(playerID string, t0 int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return
	}
	r.sendLocked(p, protocol.TypePong, protocol.Pong{T0: t0, T1: r.now().UnixMilli()})
}

// SendError delivers an error payload to one player.
func (r *Room) SendError(playerID string, e *protocol.ErrorPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[playerID]; ok {
		r.sendLocked(p, protocol.TypeError, e)
	}
}

// Disconnect marks a player as dropped, migrates the master role if needed,
// and finishes the room when nobody is left.
func (r *Room) Disconnect(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok || !p.connected {
		return
	}
	p.connected = false
	p.ready = false
	r.broadcastLocked(protocol.TypePlayerPresence, protocol.PlayerPresence{ID: p.id, State: protocol.PresenceDisconnected}, p.id)

	if p.role == protocol.RoleMaster {
		r.migrateMasterLocked()
	}

	for _, id := range r.order {
		if r.players[id].connected {
			if r.state == protocol.RoomLobby {
				r.broadcastLobbyLocked()
			}
			return
		}
	}
	r.finishLocked(protocol.FinishRoomClosed)
}

// migrateMasterLocked promotes the earliest-joined connected member.
func (r *Room) migrateMasterLocked() {
	for _, id := range r.order {
		p := r.players[id]
		if p.connected {
			prevMaster := r.masterLocked()
			if prevMaster != nil {
				prevMaster.role = protocol.RoleMember
			}
			p.role = protocol.RoleMaster
			r.broadcastLocked(protocol.TypeRoleChanged, protocol.RoleChanged{NewMasterID: p.id}, "")
			r.log.Printf("room %s: master migrated to %s", r.id, p.id)
			return
		}
	}
}

func (r *Room) masterLocked() *player {
	for _, id := range r.order {
		if r.players[id].role == protocol.RoleMaster {
			return r.players[id]
		}
	}
	return nil
}

// Tick drives time-based transitions: the countdown firing and the
// snapshot cadence. The server calls it at the snapshot rate.
func (r *Room) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.state == protocol.RoomStarting && !now.Before(r.startAt) {
		r.state = protocol.RoomRunning
		r.broadcastLocked(protocol.TypeStart, protocol.Start{
			StartTick:    r.startTick,
			ServerTick:   r.startTick,
			ServerTimeMs: now.UnixMilli(),
			TPS:          r.cfg.TPS,
			Players:      r.lobbyPlayersLocked(),
		}, "")
		r.log.Printf("room %s: match started", r.id)
		// Clients rebase on the start message; snapshots begin next tick.
		return
	}

	if r.state == protocol.RoomRunning {
		r.sendSnapshotsLocked()
	}
}

// Finish ends the match explicitly.
func (r *Room) Finish(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked(reason)
}

func (r *Room) finishLocked(reason string) {
	if r.state == protocol.RoomFinished {
		return
	}
	r.state = protocol.RoomFinished
	r.broadcastLocked(protocol.TypeFinish, protocol.Finish{Reason: reason}, "")
	r.log.Printf("room %s: finished (%s)", r.id, reason)
}

// Scores returns each player's current score, for persistence at finish.
func (r *Room) Scores() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	scores := make(map[string]int64, len(r.players))
	for id, p := range r.players {
		scores[id] = p.world.Score
	}
	return scores
}

func (r *Room) sendSnapshotsLocked() {
	for _, id := range r.order {
		p := r.players[id]
		if !p.connected {
			continue
		}
		full := p.needFull || p.snapshots%fullSnapshotEvery == 0
		p.needFull = false
		p.snapshots++

		snap := protocol.Snapshot{
			Tick:    int64(p.world.Tick),
			Full:    full,
			Players: r.snapshotPlayersLocked(full),
		}
		ack := p.ackTick
		snap.AckTick = &ack
		lastSeq := p.lastInputSeq
		snap.LastInputSeq = &lastSeq
		if len(p.events) > 0 {
			snap.Events = p.events
			p.events = nil
		}
		if p.dropped > 0 {
			dropped := p.dropped
			snap.Stats = &protocol.SnapshotStats{DroppedSnapshots: &dropped}
		}
		r.sendLocked(p, protocol.TypeSnapshot, snap)
	}
}

func (r *Room) snapshotPlayersLocked(full bool) []protocol.SnapshotPlayer {
	out := make([]protocol.SnapshotPlayer, 0, len(r.order))
	for _, id := range r.order {
		q := r.players[id]
		st := q.world.Player
		x, y := st.Position.X, st.Position.Y
		vx, vy := st.Velocity.X, st.Velocity.Y
		alive := st.State != sim.StateDead
		sp := protocol.SnapshotPlayer{ID: q.id, X: &x, Y: &y}
		if full {
			sp.Vx = &vx
			sp.Vy = &vy
			sp.Alive = &alive
		} else if !alive {
			sp.Alive = &alive
		}
		out = append(out, sp)
	}
	return out
}

func (r *Room) welcomeLocked(p *player) *protocol.Welcome {
	return &protocol.Welcome{
		PlayerID:    p.id,
		ResumeToken: p.resumeToken,
		RoomID:      r.id,
		Seed:        r.seed,
		Role:        p.role,
		RoomState:   r.state,
		Lobby: protocol.LobbySnapshot{
			Players:    r.lobbyPlayersLocked(),
			MaxPlayers: r.cfg.Net.MaxPlayers,
		},
		Cfg: netConfig(r.cfg),
	}
}

func (r *Room) lobbyPlayersLocked() []protocol.LobbyPlayer {
	out := make([]protocol.LobbyPlayer, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		out = append(out, protocol.LobbyPlayer{
			ID:          p.id,
			Name:        p.name,
			Ready:       p.ready,
			Role:        p.role,
			CharacterID: p.characterID,
		})
	}
	return out
}

func (r *Room) broadcastLobbyLocked() {
	r.broadcastLocked(protocol.TypeLobbyState, protocol.LobbyState{
		RoomState:  r.state,
		Players:    r.lobbyPlayersLocked(),
		MaxPlayers: r.cfg.Net.MaxPlayers,
	}, "")
}

// broadcastLocked sends to every connected player except exceptID.
func (r *Room) broadcastLocked(typ string, payload any, exceptID string) {
	for _, id := range r.order {
		p := r.players[id]
		if !p.connected || p.id == exceptID {
			continue
		}
		r.sendLocked(p, typ, payload)
	}
}

// sendLocked enqueues a message without blocking. A full queue counts as a
// dropped snapshot; the client learns about it via snapshot stats.
func (r *Room) sendLocked(p *player, typ string, payload any) {
	r.seq++
	data, err := protocol.Encode(typ, r.seq, r.now().UnixMilli(), payload)
	if err != nil {
		r.log.Printf("room %s: encode %s: %v", r.id, typ, err)
		return
	}
	select {
	case p.out <- data:
	default:
		p.dropped++
	}
}

// netConfig maps the server tuning onto the wire config clients simulate
// with.
func netConfig(cfg *tuning.Tuning) protocol.NetConfig {
	return protocol.NetConfig{
		TPS:              cfg.TPS,
		SnapshotRateHz:   cfg.Net.SnapshotRateHz,
		MaxRollbackTicks: cfg.TPS * 2,
		InputLeadTicks:   int(math.Ceil(float64(cfg.Net.FlushIntervalMs) * float64(cfg.TPS) / 1000)),
		World: protocol.WorldCfg{
			WorldWidth:     cfg.World.Width,
			PlatformWidth:  cfg.World.PlatformWidth,
			PlatformHeight: cfg.World.PlatformHeight,
			GapMin:         cfg.Difficulty.GapMinStart,
			GapMax:         cfg.Difficulty.GapMaxEnd,
			Gravity:        cfg.World.Gravity,
			JumpVy:         cfg.World.JumpVy,
			SpringVy:       cfg.World.SpringVy,
			MaxVx:          cfg.World.MaxVx,
			TiltAccel:      cfg.World.Accel,
		},
		Difficulty: protocol.DifficultyCfg{
			GapMinStart:       cfg.Difficulty.GapMinStart,
			GapMinEnd:         cfg.Difficulty.GapMinEnd,
			GapMaxStart:       cfg.Difficulty.GapMaxStart,
			GapMaxEnd:         cfg.Difficulty.GapMaxEnd,
			SpringChanceStart: cfg.Difficulty.SpringChanceStart,
			SpringChanceEnd:   cfg.Difficulty.SpringChanceEnd,
		},
	}
}
