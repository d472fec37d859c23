package protocol

import "testing"

func TestKnownCodes(t *testing.T) {
	for _, code := range []string{
		CodeBadVersion, CodeBadRequest, CodeNotMaster, CodeRoomStateInvalid,
		CodeRoomNotReady, CodeStartAlready, CodeCountdownActive, CodeRoomFull,
		CodeBadResumeToken,
	} {
		if !IsKnownCode(code) {
			t.Errorf("%s missing from registry", code)
		}
	}
	if IsKnownCode("FLUX_CAPACITOR") {
		t.Error("unknown code reported as known")
	}
}

func TestStartBlockedCodes(t *testing.T) {
	blocked := []string{CodeRoomNotReady, CodeStartAlready, CodeCountdownActive}
	for _, code := range blocked {
		if !IsStartBlocked(code) {
			t.Errorf("%s should block start", code)
		}
	}
	if IsStartBlocked(CodeRoomFull) {
		t.Error("ROOM_FULL is a join error, not a start gate")
	}
}

func TestPickDefaultCharacterStable(t *testing.T) {
	a := PickDefaultCharacter("player-123")
	b := PickDefaultCharacter("player-123")
	if a != b {
		t.Fatalf("default character not stable: %s vs %s", a, b)
	}
	if !ValidCharacterID(a) {
		t.Fatalf("picked unregistered character %s", a)
	}
}
