package netclient

import (
	"encoding/json"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"skyhopper/internal/protocol"
	"skyhopper/internal/sim"
)

// memTransport records everything the client sends.
type memTransport struct {
	mu   sync.Mutex
	sent [][]byte
}

func (m *memTransport) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

func (m *memTransport) Close() error { return nil }

func (m *memTransport) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Envelope, len(m.sent))
	for i, b := range m.sent {
		if err := json.Unmarshal(b, &out[i]); err != nil {
			t.Fatalf("sent frame %d: %v", i, err)
		}
	}
	return out
}

func newTestClient() (*Client, *memTransport) {
	tr := &memTransport{}
	c := New(tr, NewStore(), log.New(io.Discard, "", 0))
	return c, tr
}

func serverMsg(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	data, err := protocol.Encode(typ, 1, 0, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	return data
}

func testWelcome() protocol.Welcome {
	return protocol.Welcome{
		PlayerID:    "p1",
		ResumeToken: "tok-1",
		RoomID:      "r1",
		Seed:        "seed-a",
		Role:        protocol.RoleMaster,
		RoomState:   protocol.RoomLobby,
		Lobby: protocol.LobbySnapshot{
			Players: []protocol.LobbyPlayer{
				{ID: "p1", Name: "ada", Role: protocol.RoleMaster},
			},
			MaxPlayers: 4,
		},
		Cfg: protocol.NetConfig{
			TPS: 60, SnapshotRateHz: 10, MaxRollbackTicks: 120, InputLeadTicks: 2,
			World: protocol.WorldCfg{
				WorldWidth: 720, PlatformWidth: 120, PlatformHeight: 18,
				GapMin: 120, GapMax: 240, Gravity: -2200, JumpVy: 1200,
				SpringVy: 1800, MaxVx: 900, TiltAccel: 2400,
			},
			Difficulty: protocol.DifficultyCfg{
				GapMinStart: 120, GapMinEnd: 180, GapMaxStart: 240, GapMaxEnd: 320,
				SpringChanceStart: 0.1, SpringChanceEnd: 0.03,
			},
		},
	}
}

func startRunning(t *testing.T, c *Client) {
	t.Helper()
	c.HandleMessage(serverMsg(t, protocol.TypeWelcome, testWelcome()))
	c.HandleMessage(serverMsg(t, protocol.TypeStart, protocol.Start{
		StartTick: 0, ServerTick: 0, ServerTimeMs: 0, TPS: 60,
	}))
	// The relay opens with a full frame; deltas only make sense after it.
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, protocol.Snapshot{
		Tick: 0, Full: true, Players: []protocol.SnapshotPlayer{},
	}))
}

func TestInputGatingBeforeStart(t *testing.T) {
	c, _ := newTestClient()
	c.HandleMessage(serverMsg(t, protocol.TypeWelcome, testWelcome()))

	// Still in the lobby: inputs must not accumulate.
	c.RecordInput(sim.Input{Tick: 0, AxisX: 1})
	c.RecordInput(sim.Input{Tick: 1, AxisX: 1})
	if got := c.PendingInputTicks(); len(got) != 0 {
		t.Fatalf("buffered %v before start", got)
	}

	startRunning(t, c)
	c.RecordInput(sim.Input{Tick: 5, AxisX: 0.5})
	if got := c.PendingInputTicks(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("buffer after start = %v", got)
	}
}

func TestFlushDeltaEncodesBatch(t *testing.T) {
	c, tr := newTestClient()
	startRunning(t, c)

	c.RecordInput(sim.Input{Tick: 100, AxisX: 0.123456, Jump: false})
	c.RecordInput(sim.Input{Tick: 101, AxisX: -0.5, Jump: true})
	c.RecordInput(sim.Input{Tick: 102, AxisX: 0})
	c.Flush()

	envs := tr.envelopes(t)
	last := envs[len(envs)-1]
	if last.Type != protocol.TypeInputBatch {
		t.Fatalf("last sent type = %s", last.Type)
	}
	var batch protocol.InputBatch
	if err := json.Unmarshal(last.Payload, &batch); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if batch.StartTick != 100 {
		t.Fatalf("startTick = %d", batch.StartTick)
	}
	if len(batch.Frames) != 3 {
		t.Fatalf("frames = %+v", batch.Frames)
	}
	if batch.Frames[0].D != 0 || batch.Frames[1].D != 1 || batch.Frames[2].D != 2 {
		t.Fatalf("offsets = %+v", batch.Frames)
	}
	// Axis is rounded to three decimals on the wire.
	if batch.Frames[0].AxisX != 0.123 {
		t.Fatalf("axisX = %v, want 0.123", batch.Frames[0].AxisX)
	}
	if !batch.Frames[1].Jump || batch.Frames[2].Jump {
		t.Fatalf("jump flags = %+v", batch.Frames)
	}
}

func TestAckTrimsInputBuffer(t *testing.T) {
	c, _ := newTestClient()
	startRunning(t, c)

	for _, tick := range []int64{10, 11, 12, 13} {
		c.RecordInput(sim.Input{Tick: sim.Tick(tick), AxisX: 0})
	}

	ack := int64(11)
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, protocol.Snapshot{
		Tick:    20,
		AckTick: &ack,
		Players: []protocol.SnapshotPlayer{},
	}))

	got := c.PendingInputTicks()
	if len(got) != 2 || got[0] != 12 || got[1] != 13 {
		t.Fatalf("buffer after ack 11 = %v, want [12 13]", got)
	}
}

func TestReconnectGatesOnFullSnapshot(t *testing.T) {
	c, _ := newTestClient()
	startRunning(t, c)

	var received []int64
	c.SetHandlers(Handlers{Snapshot: func(s *protocol.Snapshot) {
		received = append(received, s.Tick)
	}})

	if err := c.Reconnect(&memTransport{}, 50); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	f := func(full bool, tick int64) protocol.Snapshot {
		return protocol.Snapshot{Tick: tick, Full: full, Players: []protocol.SnapshotPlayer{}}
	}
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(false, 60)))
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(false, 61)))
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(true, 62)))
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(false, 63)))

	if len(received) != 2 || received[0] != 62 || received[1] != 63 {
		t.Fatalf("received = %v, want deltas dropped until the full frame", received)
	}
	if c.DroppedSnapshots() != 2 {
		t.Fatalf("dropped = %d, want 2", c.DroppedSnapshots())
	}
}

func TestFreshWelcomeGatesOnFullSnapshot(t *testing.T) {
	c, _ := newTestClient()
	c.HandleMessage(serverMsg(t, protocol.TypeWelcome, testWelcome()))
	c.HandleMessage(serverMsg(t, protocol.TypeStart, protocol.Start{TPS: 60}))

	var received []int64
	c.SetHandlers(Handlers{Snapshot: func(s *protocol.Snapshot) {
		received = append(received, s.Tick)
	}})

	f := func(full bool, tick int64) protocol.Snapshot {
		return protocol.Snapshot{Tick: tick, Full: full, Players: []protocol.SnapshotPlayer{}}
	}
	// A delta arriving before any full frame has nothing to apply onto.
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(false, 5)))
	if len(received) != 0 {
		t.Fatalf("delta before the first full frame was delivered: %v", received)
	}
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(true, 6)))
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, f(false, 7)))
	if len(received) != 2 || received[0] != 6 || received[1] != 7 {
		t.Fatalf("received = %v, want [6 7]", received)
	}
	if c.DroppedSnapshots() != 1 {
		t.Fatalf("dropped = %d, want 1", c.DroppedSnapshots())
	}
}

func TestWelcomeIntoRunningRoomAcceptsInput(t *testing.T) {
	c, _ := newTestClient()
	w := testWelcome()
	w.RoomState = protocol.RoomRunning
	c.HandleMessage(serverMsg(t, protocol.TypeWelcome, w))
	c.HandleMessage(serverMsg(t, protocol.TypeSnapshot, protocol.Snapshot{
		Tick: 80, Full: true, Players: []protocol.SnapshotPlayer{},
	}))

	// The relay never re-sends start mid-match; the welcome's room state is
	// the only start acknowledgement a resumed client gets.
	c.RecordInput(sim.Input{Tick: 81, AxisX: 0.5})
	if got := c.PendingInputTicks(); len(got) != 1 || got[0] != 81 {
		t.Fatalf("buffer after welcome into a running room = %v, want [81]", got)
	}
}

func TestCountdownClearsBufferAndRecordsSkew(t *testing.T) {
	c, _ := newTestClient()
	base := time.UnixMilli(1_000_000)
	c.SetClock(func() time.Time { return base })
	startRunning(t, c)
	c.RecordInput(sim.Input{Tick: 3, AxisX: 0.5})

	c.HandleMessage(serverMsg(t, protocol.TypeStartCountdown, protocol.StartCountdown{
		StartAtMs: base.UnixMilli() + 3000, ServerTick: 0, CountdownSec: 3,
	}))

	if got := c.PendingInputTicks(); len(got) != 0 {
		t.Fatalf("buffer survived countdown: %v", got)
	}
	sess := c.Store().Get()
	if sess.RoomState != protocol.RoomStarting {
		t.Fatalf("state = %s, want starting", sess.RoomState)
	}
	if sess.ClockSkewMillis != 3000 {
		t.Fatalf("skew = %d, want 3000", sess.ClockSkewMillis)
	}

	// Start refines the estimate with the server's own send time.
	c.HandleMessage(serverMsg(t, protocol.TypeStart, protocol.Start{
		ServerTimeMs: base.UnixMilli() + 250, TPS: 60,
	}))
	if got := c.Store().Get().ClockSkewMillis; got != 250 {
		t.Fatalf("skew after start = %d, want 250", got)
	}
}

func TestPongUpdatesRTTAndSkew(t *testing.T) {
	c, _ := newTestClient()
	base := time.UnixMilli(1_000_000)
	current := base
	c.SetClock(func() time.Time { return current })

	c.SendPing()

	// 80ms round trip; server clock 500ms ahead of the midpoint.
	current = base.Add(80 * time.Millisecond)
	t0 := base.UnixMilli()
	c.HandleMessage(serverMsg(t, protocol.TypePong, protocol.Pong{
		T0: t0,
		T1: t0 + 40 + 500,
	}))

	sess := c.Store().Get()
	if sess.RTTMillis != 80 {
		t.Fatalf("rtt = %d, want 80", sess.RTTMillis)
	}
	if sess.ClockSkewMillis != 500 {
		t.Fatalf("skew = %d, want 500", sess.ClockSkewMillis)
	}
}

func TestUnsolicitedPongIgnored(t *testing.T) {
	c, _ := newTestClient()
	c.HandleMessage(serverMsg(t, protocol.TypePong, protocol.Pong{T0: 42, T1: 43}))
	if sess := c.Store().Get(); sess.RTTMillis != 0 {
		t.Fatalf("rtt = %d from a pong that was never pinged", sess.RTTMillis)
	}
}

func TestRoleMigration(t *testing.T) {
	c, _ := newTestClient()
	w := testWelcome()
	w.Role = protocol.RoleMember
	w.Lobby.Players = []protocol.LobbyPlayer{
		{ID: "p0", Name: "boss", Role: protocol.RoleMaster},
		{ID: "p1", Name: "ada", Role: protocol.RoleMember},
	}
	c.HandleMessage(serverMsg(t, protocol.TypeWelcome, w))

	c.HandleMessage(serverMsg(t, protocol.TypeRoleChanged, protocol.RoleChanged{NewMasterID: "p1"}))

	sess := c.Store().Get()
	if sess.Role != protocol.RoleMaster {
		t.Fatalf("role = %s after promotion", sess.Role)
	}
	for _, p := range sess.Players {
		want := protocol.RoleMember
		if p.ID == "p1" {
			want = protocol.RoleMaster
		}
		if p.Role != want {
			t.Fatalf("roster role for %s = %s, want %s", p.ID, p.Role, want)
		}
	}
}

func TestVersionMismatchSurfacesAsError(t *testing.T) {
	c, _ := newTestClient()
	var got *protocol.ErrorPayload
	c.SetHandlers(Handlers{Error: func(e *protocol.ErrorPayload) { got = e }})

	c.HandleMessage([]byte(`{"type":"pong","pv":9,"seq":1,"ts":0,"payload":{"t0":1,"t1":2}}`))

	if got == nil || got.Code != protocol.CodeBadVersion {
		t.Fatalf("error = %+v, want BAD_VERSION", got)
	}
}

func TestFinishClearsInputState(t *testing.T) {
	c, _ := newTestClient()
	startRunning(t, c)
	c.RecordInput(sim.Input{Tick: 1, AxisX: 0.5})

	c.HandleMessage(serverMsg(t, protocol.TypeFinish, protocol.Finish{Reason: protocol.FinishRoomClosed}))

	if got := c.PendingInputTicks(); len(got) != 0 {
		t.Fatalf("buffer survived finish: %v", got)
	}
	if sess := c.Store().Get(); sess.RoomState != protocol.RoomFinished {
		t.Fatalf("state = %s, want finished", sess.RoomState)
	}
	// After finish, inputs are gated again.
	c.RecordInput(sim.Input{Tick: 2, AxisX: 0.5})
	if got := c.PendingInputTicks(); len(got) != 0 {
		t.Fatalf("input accepted after finish: %v", got)
	}
}

func TestStoreNotifiesSynchronously(t *testing.T) {
	st := NewStore()
	var order []string
	st.Subscribe(func(Session) { order = append(order, "a") })
	st.Subscribe(func(Session) { order = append(order, "b") })
	order = order[:0] // drop the initial notifications

	st.update(func(s *Session) { s.RoomID = "r1" })

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("listener order = %v", order)
	}
	if st.Get().RoomID != "r1" {
		t.Fatal("update not applied")
	}
}
