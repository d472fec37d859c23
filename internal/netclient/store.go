package netclient

import (
	"sync"

	"skyhopper/internal/protocol"
)

// Session is the client-side view of the multiplayer session. It is a value
// snapshot; listeners receive a copy and cannot mutate shared state.
type Session struct {
	PlayerID    string
	ResumeToken string
	RoomID      string
	Seed        string
	Role        protocol.Role
	RoomState   protocol.RoomState
	Players     []protocol.LobbyPlayer
	MaxPlayers  int
	Cfg         protocol.NetConfig

	RTTMillis       int64
	ClockSkewMillis int64
}

// Store holds the session state and notifies subscribers synchronously, in
// subscription order, after every change. Listeners run on the goroutine
// that triggered the change and must not call back into the store.
type Store struct {
	mu        sync.Mutex
	session   Session
	listeners map[int]func(Session)
	nextID    int
}

func NewStore() *Store {
	return &Store{listeners: make(map[int]func(Session))}
}

// Get returns a copy of the current session.
func (st *Store) Get() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshotLocked()
}

// Subscribe registers a listener and returns its cancel function. The
// listener is invoked immediately with the current state.
func (st *Store) Subscribe(fn func(Session)) func() {
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.listeners[id] = fn
	snap := st.snapshotLocked()
	st.mu.Unlock()

	fn(snap)
	return func() {
		st.mu.Lock()
		delete(st.listeners, id)
		st.mu.Unlock()
	}
}

func (st *Store) update(mutate func(*Session)) {
	st.mu.Lock()
	mutate(&st.session)
	snap := st.snapshotLocked()
	fns := make([]func(Session), 0, len(st.listeners))
	for i := 0; i < st.nextID; i++ {
		if fn, ok := st.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	st.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (st *Store) snapshotLocked() Session {
	snap := st.session
	snap.Players = append([]protocol.LobbyPlayer(nil), st.session.Players...)
	return snap
}
