// Package netclient implements the game-side session client: joining a
// room, batching and flushing inputs, consuming snapshots, and tracking
// round-trip time against the relay.
package netclient

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"skyhopper/internal/protocol"
	"skyhopper/internal/sim"
)

const (
	DefaultFlushInterval = 50 * time.Millisecond
	DefaultPingInterval  = 5 * time.Second

	// A ping outstanding for longer than this many intervals is assumed
	// lost and dropped from the pending map so it cannot leak.
	pingPendingFactor = 3
)

// Handlers are the client's event callbacks. All fire on the goroutine that
// delivered the message.
type Handlers struct {
	Snapshot  func(*protocol.Snapshot)
	Countdown func(*protocol.StartCountdown)
	Start     func(*protocol.Start)
	Finish    func(*protocol.Finish)
	Presence  func(*protocol.PlayerPresence)
	Error     func(*protocol.ErrorPayload)
}

// Client drives one player's session against the relay. It is safe for
// concurrent use; the transport reader and the game loop may call in from
// different goroutines.
type Client struct {
	mu sync.Mutex

	tr    Transport
	log   *log.Logger
	store *Store
	now   func() time.Time

	handlers      Handlers
	flushInterval time.Duration
	pingInterval  time.Duration

	seq        int64
	startAcked bool

	// Inputs since the last acknowledged tick. Flush resends the whole
	// window every interval; redundancy is the loss-tolerance mechanism.
	pending []sim.Input

	// After a welcome or a reconnect every delta snapshot is garbage until
	// the relay sends a full frame to rebase on.
	awaitingFull     bool
	droppedSnapshots int64

	pendingPings map[int64]time.Time
	lastFlush    time.Time
	lastPing     time.Time
}

func New(tr Transport, store *Store, logger *log.Logger) *Client {
	return &Client{
		tr:            tr,
		log:           logger,
		store:         store,
		now:           time.Now,
		flushInterval: DefaultFlushInterval,
		pingInterval:  DefaultPingInterval,
		pendingPings:  make(map[int64]time.Time),
	}
}

// SetHandlers installs the event callbacks. Call before the transport starts
// delivering messages.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// SetTransport swaps the underlying transport. The client may be built
// before the connection exists because the dialer needs HandleMessage as
// its receive callback.
func (c *Client) SetTransport(tr Transport) {
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()
}

// SetClock overrides the time source, for tests.
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Client) Store() *Store { return c.store }

func (c *Client) send(typ string, payload any) error {
	c.seq++
	data, err := protocol.Encode(typ, c.seq, c.now().UnixMilli(), payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	return c.tr.Send(data)
}

// Join announces the player to the relay.
func (c *Client) Join(name, clientVersion string, caps *protocol.Capabilities) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(protocol.TypeJoin, protocol.Join{
		Name:          name,
		ClientVersion: clientVersion,
		Capabilities:  caps,
	})
}

// SetReady toggles the player's lobby ready flag.
func (c *Client) SetReady(ready bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(protocol.TypeReadySet, protocol.ReadySet{Ready: ready})
}

// RequestStart asks the relay to begin the countdown. Only the master may
// call this; the relay answers NOT_MASTER otherwise.
func (c *Client) RequestStart(countdownSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(protocol.TypeStartRequest, protocol.StartRequest{CountdownSec: countdownSec})
}

// SelectCharacter picks a cosmetic character in the lobby.
func (c *Client) SelectCharacter(id string) error {
	if !protocol.ValidCharacterID(id) {
		return fmt.Errorf("unknown character %q", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(protocol.TypeCharacterSelect, protocol.CharacterSelect{CharacterID: id})
}

// RecordInput buffers one tick's input for the next flush. Inputs are only
// accepted while the match is running and the start message has been seen;
// outside that window the buffer is cleared so stale inputs from a previous
// phase can never be sent.
func (c *Client) RecordInput(in sim.Input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.store.Get()
	if sess.RoomState != protocol.RoomRunning || !c.startAcked {
		c.pending = c.pending[:0]
		return
	}
	c.pending = append(c.pending, in)

	if max := sess.Cfg.MaxRollbackTicks; max > 0 && len(c.pending) > max {
		c.pending = c.pending[len(c.pending)-max:]
	}
}

// Tick runs the periodic duties: input flush and keepalive ping. Call it
// from the game loop; it is cheap when nothing is due.
func (c *Client) Tick() {
	now := c.now()
	c.mu.Lock()
	flushDue := now.Sub(c.lastFlush) >= c.flushInterval
	pingDue := now.Sub(c.lastPing) >= c.pingInterval
	c.mu.Unlock()

	if flushDue {
		c.Flush()
	}
	if pingDue {
		c.SendPing()
	}
}

// Flush sends the buffered input window as one delta-encoded batch.
func (c *Client) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFlush = c.now()

	if len(c.pending) == 0 {
		return
	}
	start := int64(c.pending[0].Tick)
	frames := make([]protocol.InputFrame, len(c.pending))
	for i, in := range c.pending {
		frames[i] = protocol.InputFrame{
			D:     int64(in.Tick) - start,
			AxisX: math.Round(in.AxisX*1000) / 1000,
			Jump:  in.Jump,
		}
	}
	if err := c.send(protocol.TypeInputBatch, protocol.InputBatch{StartTick: start, Frames: frames}); err != nil {
		c.log.Printf("flush: %v", err)
	}
}

// SendPing issues one RTT probe and prunes probes the relay never answered.
func (c *Client) SendPing() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lastPing = now
	t0 := now.UnixMilli()
	c.pendingPings[t0] = now

	deadline := now.Add(-time.Duration(pingPendingFactor) * c.pingInterval)
	for k, sent := range c.pendingPings {
		if sent.Before(deadline) {
			delete(c.pendingPings, k)
		}
	}

	if err := c.send(protocol.TypePing, protocol.Ping{T0: t0}); err != nil {
		c.log.Printf("ping: %v", err)
	}
}

// Reconnect resumes a session after the transport dropped. Until the relay
// answers with a full snapshot, delta snapshots are discarded.
func (c *Client) Reconnect(tr Transport, lastAckTick int64) error {
	sess := c.store.Get()

	c.mu.Lock()
	c.tr = tr
	c.awaitingFull = true
	c.pending = c.pending[:0]
	err := c.send(protocol.TypeReconnect, protocol.Reconnect{
		PlayerID:    sess.PlayerID,
		ResumeToken: sess.ResumeToken,
		LastAckTick: lastAckTick,
	})
	c.mu.Unlock()
	return err
}

// DroppedSnapshots counts delta snapshots discarded while waiting for a
// full frame after reconnect.
func (c *Client) DroppedSnapshots() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.droppedSnapshots
}

// PendingInputTicks returns the ticks currently buffered, oldest first.
func (c *Client) PendingInputTicks() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticks := make([]int64, len(c.pending))
	for i, in := range c.pending {
		ticks[i] = int64(in.Tick)
	}
	return ticks
}

// HandleMessage consumes one raw frame from the transport. Structural
// violations are logged and the frame is dropped whole; a version mismatch
// is surfaced as a BAD_VERSION error to the error handler.
func (c *Client) HandleMessage(data []byte) {
	msg, err := protocol.ParseServerEnvelope(data)
	if err != nil {
		if ve, ok := err.(*protocol.VersionError); ok {
			c.dispatchError(&protocol.ErrorPayload{Code: protocol.CodeBadVersion, Message: ve.Error()})
			return
		}
		c.log.Printf("drop malformed message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeWelcome:
		c.onWelcome(msg.Welcome)
	case protocol.TypeLobbyState:
		c.onLobbyState(msg.LobbyState)
	case protocol.TypeStartCountdown:
		c.onCountdown(msg.StartCountdown)
	case protocol.TypeStart:
		c.onStart(msg.Start)
	case protocol.TypeSnapshot:
		c.onSnapshot(msg.Snapshot)
	case protocol.TypeRoleChanged:
		c.onRoleChanged(msg.RoleChanged)
	case protocol.TypePong:
		c.onPong(msg.Pong)
	case protocol.TypePlayerPresence:
		c.onPresence(msg.Presence)
	case protocol.TypeFinish:
		c.onFinish(msg.Finish)
	case protocol.TypeError:
		c.dispatchError(msg.Err)
	}
}

func (c *Client) onWelcome(w *protocol.Welcome) {
	c.mu.Lock()
	// Fresh or resumed, the client holds no world state yet; only a full
	// frame can seed it. A welcome into a running room counts as the start
	// acknowledgement, since the relay never re-sends start mid-match.
	c.awaitingFull = true
	c.startAcked = w.RoomState == protocol.RoomRunning
	c.mu.Unlock()

	c.store.update(func(s *Session) {
		s.PlayerID = w.PlayerID
		s.ResumeToken = w.ResumeToken
		s.RoomID = w.RoomID
		s.Seed = w.Seed
		s.Role = w.Role
		s.RoomState = w.RoomState
		s.Players = w.Lobby.Players
		s.MaxPlayers = w.Lobby.MaxPlayers
		s.Cfg = w.Cfg
		s.ClockSkewMillis = 0
	})
	c.log.Printf("welcome player=%s room=%s role=%s state=%s", w.PlayerID, w.RoomID, w.Role, w.RoomState)
}

func (c *Client) onLobbyState(ls *protocol.LobbyState) {
	if ls.RoomState != protocol.RoomRunning {
		c.mu.Lock()
		c.startAcked = false
		c.mu.Unlock()
	}
	c.store.update(func(s *Session) {
		s.RoomState = ls.RoomState
		s.Players = ls.Players
		if ls.MaxPlayers > 0 {
			s.MaxPlayers = ls.MaxPlayers
		}
	})
}

func (c *Client) onCountdown(sc *protocol.StartCountdown) {
	// The scheduled start time is stamped on the server's clock, so the
	// offset to the local clock stands in for skew until the next pong.
	skew := sc.StartAtMs - c.now().UnixMilli()
	c.mu.Lock()
	c.startAcked = false
	c.pending = c.pending[:0]
	h := c.handlers.Countdown
	c.mu.Unlock()
	c.store.update(func(s *Session) {
		s.RoomState = protocol.RoomStarting
		s.ClockSkewMillis = skew
	})
	if h != nil {
		h(sc)
	}
}

func (c *Client) onStart(st *protocol.Start) {
	skew := st.ServerTimeMs - c.now().UnixMilli()
	c.store.update(func(s *Session) {
		s.RoomState = protocol.RoomRunning
		s.ClockSkewMillis = skew
		if len(st.Players) > 0 {
			s.Players = st.Players
		}
	})
	c.mu.Lock()
	c.startAcked = true
	c.pending = c.pending[:0]
	c.lastFlush = c.now()
	h := c.handlers.Start
	c.mu.Unlock()
	if h != nil {
		h(st)
	}
}

func (c *Client) onSnapshot(snap *protocol.Snapshot) {
	c.mu.Lock()
	if c.awaitingFull && !snap.Full {
		c.droppedSnapshots++
		c.mu.Unlock()
		return
	}
	if snap.Full {
		c.awaitingFull = false
	}
	if snap.AckTick != nil {
		c.trimAckedLocked(*snap.AckTick)
	}
	h := c.handlers.Snapshot
	c.mu.Unlock()
	if h != nil {
		h(snap)
	}
}

// trimAckedLocked drops buffered inputs for ticks the relay has applied.
func (c *Client) trimAckedLocked(ackTick int64) {
	keep := c.pending[:0]
	for _, in := range c.pending {
		if int64(in.Tick) > ackTick {
			keep = append(keep, in)
		}
	}
	c.pending = keep
}

func (c *Client) onRoleChanged(rc *protocol.RoleChanged) {
	c.store.update(func(s *Session) {
		if rc.NewMasterID == s.PlayerID {
			s.Role = protocol.RoleMaster
		} else {
			s.Role = protocol.RoleMember
		}
		for i := range s.Players {
			if s.Players[i].ID == rc.NewMasterID {
				s.Players[i].Role = protocol.RoleMaster
			} else {
				s.Players[i].Role = protocol.RoleMember
			}
		}
	})
}

func (c *Client) onPong(p *protocol.Pong) {
	now := c.now()
	c.mu.Lock()
	sent, ok := c.pendingPings[p.T0]
	if ok {
		delete(c.pendingPings, p.T0)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	rtt := now.Sub(sent).Milliseconds()
	// Server time at the midpoint of the round trip estimates skew.
	skew := p.T1 - (p.T0 + rtt/2)
	c.store.update(func(s *Session) {
		s.RTTMillis = rtt
		s.ClockSkewMillis = skew
	})
}

func (c *Client) onPresence(pp *protocol.PlayerPresence) {
	c.mu.Lock()
	h := c.handlers.Presence
	c.mu.Unlock()
	if h != nil {
		h(pp)
	}
}

func (c *Client) onFinish(f *protocol.Finish) {
	c.store.update(func(s *Session) { s.RoomState = protocol.RoomFinished })
	c.mu.Lock()
	c.startAcked = false
	c.pending = c.pending[:0]
	h := c.handlers.Finish
	c.mu.Unlock()
	if h != nil {
		h(f)
	}
}

func (c *Client) dispatchError(e *protocol.ErrorPayload) {
	if !protocol.IsKnownCode(e.Code) {
		c.log.Printf("server error with unknown code %s: %s", e.Code, e.Message)
	}
	c.mu.Lock()
	h := c.handlers.Error
	c.mu.Unlock()
	if h != nil {
		h(e)
	}
}
