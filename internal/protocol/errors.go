package protocol

import "fmt"

// Error codes carried in error payloads. Codes are stable wire contract;
// messages are free-form and may change.
const (
	CodeBadVersion       = "BAD_VERSION"
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotMaster        = "NOT_MASTER"
	CodeRoomStateInvalid = "ROOM_STATE_INVALID"
	CodeRoomNotReady     = "ROOM_NOT_READY"
	CodeStartAlready     = "START_ALREADY"
	CodeCountdownActive  = "COUNTDOWN_ACTIVE"
	CodeRoomFull         = "ROOM_FULL"
	CodeBadResumeToken   = "BAD_RESUME_TOKEN"
)

var knownCodes = map[string]struct{}{
	CodeBadVersion:       {},
	CodeBadRequest:       {},
	CodeNotMaster:        {},
	CodeRoomStateInvalid: {},
	CodeRoomNotReady:     {},
	CodeStartAlready:     {},
	CodeCountdownActive:  {},
	CodeRoomFull:         {},
	CodeBadResumeToken:   {},
}

// IsKnownCode reports whether code is part of the protocol's error registry.
// Unknown codes from a newer peer are surfaced, not dropped.
func IsKnownCode(code string) bool {
	_, ok := knownCodes[code]
	return ok
}

// IsStartBlocked reports whether the code describes a rejected start request
// that the requester can retry after the room changes.
func IsStartBlocked(code string) bool {
	switch code {
	case CodeRoomNotReady, CodeStartAlready, CodeCountdownActive:
		return true
	}
	return false
}

// VersionError is returned by the guard when an envelope's pv does not match
// Version. Callers answer it with a BAD_VERSION error payload and close.
type VersionError struct {
	Got int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("protocol version %d not supported, want %d", e.Got, Version)
}

// GuardError describes a structural violation at a specific path inside a
// decoded message, e.g. "snapshot.players[0].x must be number".
type GuardError struct {
	Path string
	Want string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s must be %s", e.Path, e.Want)
}

func guardErr(path, want string) error {
	return &GuardError{Path: path, Want: want}
}
