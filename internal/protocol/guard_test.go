package protocol

import (
	"errors"
	"strings"
	"testing"
)

func env(typ, payload string) []byte {
	return []byte(`{"type":"` + typ + `","pv":1,"seq":7,"ts":1000,"payload":` + payload + `}`)
}

const validSnapshot = `{
	"tick": 120,
	"ackTick": 118,
	"full": true,
	"players": [
		{"id":"p1","x":360,"y":900.5,"vx":0,"vy":-120,"alive":true}
	],
	"events": [{"kind":"spring","x":360,"y":880,"tick":119}]
}`

func TestParseValidSnapshot(t *testing.T) {
	msg, err := ParseServerEnvelope(env(TypeSnapshot, validSnapshot))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Snapshot == nil {
		t.Fatal("snapshot payload not populated")
	}
	snap := msg.Snapshot
	if snap.Tick != 120 || !snap.Full {
		t.Fatalf("tick=%d full=%v", snap.Tick, snap.Full)
	}
	if snap.AckTick == nil || *snap.AckTick != 118 {
		t.Fatalf("ackTick = %v", snap.AckTick)
	}
	if len(snap.Players) != 1 || snap.Players[0].ID != "p1" {
		t.Fatalf("players = %+v", snap.Players)
	}
	if snap.Players[0].Y == nil || *snap.Players[0].Y != 900.5 {
		t.Fatalf("y = %v", snap.Players[0].Y)
	}
	if len(snap.Events) != 1 || snap.Events[0].Kind != WorldEventSpring {
		t.Fatalf("events = %+v", snap.Events)
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	data := []byte(`{"type":"ping","pv":2,"seq":1,"ts":0,"payload":{"t0":5}}`)
	_, err := ParseClientEnvelope(data)
	var ve *VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want VersionError", err)
	}
	if ve.Got != 2 {
		t.Fatalf("got version %d", ve.Got)
	}
}

func TestGuardErrorsNamePath(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		wantSub string
	}{
		{
			"snapshot x wrong type",
			env(TypeSnapshot, `{"tick":1,"players":[{"id":"p1","x":"oops"}]}`),
			"snapshot.players[0].x must be number",
		},
		{
			"snapshot tick missing",
			env(TypeSnapshot, `{"players":[]}`),
			"snapshot.tick must be number",
		},
		{
			"snapshot tick fractional",
			env(TypeSnapshot, `{"tick":1.5,"players":[]}`),
			"snapshot.tick must be integer",
		},
		{
			"full snapshot with partial player",
			env(TypeSnapshot, `{"tick":1,"full":true,"players":[{"id":"p1","x":0}]}`),
			"snapshot.players[0] must be complete",
		},
		{
			"welcome role invalid",
			env(TypeWelcome, `{"playerId":"p1","resumeToken":"t","roomId":"r","seed":"s","role":"boss"}`),
			"welcome.role",
		},
		{
			"unknown server type",
			env("mystery", `{}`),
			"envelope.type",
		},
		{
			"payload not object",
			[]byte(`{"type":"pong","pv":1,"seq":1,"ts":0,"payload":42}`),
			"envelope.payload must be object",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseServerEnvelope(tc.data)
			if err == nil {
				t.Fatal("expected a guard error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("err %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestNonFiniteNumbersRejected(t *testing.T) {
	// JSON cannot encode NaN, but a hand-rolled peer might try.
	data := env(TypeSnapshot, `{"tick":1,"players":[{"id":"p1","x":null}]}`)
	msg, err := ParseServerEnvelope(data)
	if err != nil {
		t.Fatalf("null optional field should be treated as absent: %v", err)
	}
	if msg.Snapshot.Players[0].X != nil {
		t.Fatal("null x should parse as absent")
	}
}

func TestInputBatchValidation(t *testing.T) {
	good := env(TypeInputBatch, `{"startTick":100,"frames":[{"d":0,"axisX":0.5},{"d":1,"axisX":-0.25,"jump":true}]}`)
	msg, err := ParseClientEnvelope(good)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b := msg.InputBatch
	if b.StartTick != 100 || len(b.Frames) != 2 || !b.Frames[1].Jump {
		t.Fatalf("batch = %+v", b)
	}

	bad := []struct {
		name    string
		payload string
	}{
		{"axis out of range", `{"startTick":0,"frames":[{"d":0,"axisX":2}]}`},
		{"offsets not increasing", `{"startTick":0,"frames":[{"d":1,"axisX":0},{"d":1,"axisX":0}]}`},
		{"negative start", `{"startTick":-1,"frames":[]}`},
		{"frame not object", `{"startTick":0,"frames":[1]}`},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseClientEnvelope(env(TypeInputBatch, tc.payload)); err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestParseJoinRoundTrip(t *testing.T) {
	data, err := Encode(TypeJoin, 1, 500, Join{
		Name:          "ada",
		ClientVersion: "1.4.2",
		Capabilities:  &Capabilities{Tilt: true},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := ParseClientEnvelope(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Seq != 1 || msg.Ts != 500 {
		t.Fatalf("seq=%d ts=%d", msg.Seq, msg.Ts)
	}
	j := msg.Join
	if j == nil || j.Name != "ada" || j.Capabilities == nil || !j.Capabilities.Tilt {
		t.Fatalf("join = %+v", j)
	}
}

func TestParseEmptyJoinNameRejected(t *testing.T) {
	if _, err := ParseClientEnvelope(env(TypeJoin, `{"name":"","clientVersion":"1"}`)); err == nil {
		t.Fatal("empty name must be rejected")
	}
}

func TestParseWelcome(t *testing.T) {
	payload := `{
		"playerId":"p1","resumeToken":"tok","roomId":"r9","seed":"alpha-7",
		"role":"master","roomState":"lobby",
		"lobby":{"players":[{"id":"p1","name":"ada","ready":false,"role":"master"}],"maxPlayers":4},
		"cfg":{
			"tps":60,"snapshotRateHz":10,"maxRollbackTicks":120,"inputLeadTicks":2,
			"world":{"worldWidth":720,"platformWidth":120,"platformHeight":18,"gapMin":120,"gapMax":240,
				"gravity":-2200,"jumpVy":1200,"springVy":1800,"maxVx":900,"tiltAccel":2400},
			"difficulty":{"gapMinStart":120,"gapMinEnd":180,"gapMaxStart":240,"gapMaxEnd":320,
				"springChanceStart":0.1,"springChanceEnd":0.03}
		},
		"featureFlags":{"ghostTrails":true}
	}`
	msg, err := ParseServerEnvelope(env(TypeWelcome, payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	w := msg.Welcome
	if w.Role != RoleMaster || w.RoomState != RoomLobby || w.Seed != "alpha-7" {
		t.Fatalf("welcome = %+v", w)
	}
	if w.Cfg.TPS != 60 || w.Cfg.World.Gravity != -2200 {
		t.Fatalf("cfg = %+v", w.Cfg)
	}
	if !w.FeatureFlags["ghostTrails"] {
		t.Fatal("feature flags dropped")
	}
}

func TestParsePongAndPresence(t *testing.T) {
	msg, err := ParseServerEnvelope(env(TypePong, `{"t0":100,"t1":150}`))
	if err != nil || msg.Pong.T0 != 100 || msg.Pong.T1 != 150 {
		t.Fatalf("pong: msg=%+v err=%v", msg, err)
	}

	msg, err = ParseServerEnvelope(env(TypePlayerPresence, `{"id":"p2","state":"disconnected"}`))
	if err != nil || msg.Presence.State != PresenceDisconnected {
		t.Fatalf("presence: msg=%+v err=%v", msg, err)
	}

	if _, err := ParseServerEnvelope(env(TypePlayerPresence, `{"id":"p2","state":"zombie"}`)); err == nil {
		t.Fatal("unknown presence state must be rejected")
	}
}
