package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"skyhopper/internal/persistence/scores"
	"skyhopper/internal/protocol"
	"skyhopper/internal/sim/tuning"
)

// Server hosts rooms and owns the websocket endpoint. One goroutine per
// connection reads; a writer goroutine per connection drains the player's
// outbound queue.
type Server struct {
	cfg    *tuning.Tuning
	log    *log.Logger
	scores *scores.Store

	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewServer creates a relay. scoreStore may be nil to disable high-score
// persistence.
func NewServer(cfg *tuning.Tuning, scoreStore *scores.Store, logger *log.Logger) *Server {
	return &Server{
		cfg:    cfg,
		log:    logger,
		scores: scoreStore,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		rooms: make(map[string]*Room),
	}
}

// EnsureRoom returns the room with the given id, creating it with the seed
// if it does not exist yet.
func (s *Server) EnsureRoom(id, seed string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r
	}
	if id == "" {
		id = uuid.NewString()
	}
	if seed == "" {
		seed = uuid.NewString()
	}
	r := NewRoom(id, seed, s.cfg, s.log)
	s.rooms[id] = r
	return r
}

// Run drives every room's countdown and snapshot cadence until ctx is done.
func (s *Server) Run(ctx context.Context) {
	interval := time.Second / time.Duration(s.cfg.Net.SnapshotRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickRooms()
		}
	}
}

func (s *Server) tickRooms() {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	for _, r := range rooms {
		r.Tick()
		if r.State() == protocol.RoomFinished {
			s.reapRoom(r)
		}
	}
}

func (s *Server) reapRoom(r *Room) {
	s.mu.Lock()
	if _, ok := s.rooms[r.ID()]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.rooms, r.ID())
	s.mu.Unlock()

	if s.scores != nil {
		for playerID, score := range r.Scores() {
			if err := s.scores.RecordScore(context.Background(), playerID, r.Seed(), score); err != nil {
				s.log.Printf("room %s: persist score for %s: %v", r.ID(), playerID, err)
			}
		}
	}
}

// Handler serves the websocket endpoint. The room is selected with the
// ?room= query parameter; an absent room id creates a fresh room.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		room := s.EnsureRoom(req.URL.Query().Get("room"), req.URL.Query().Get("seed"))
		playerID, out := s.handshake(conn, room)
		if playerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.dispatch(room, playerID, msg)
		}

		room.Disconnect(playerID)
	}
}

const (
	wsWriteTimeout     = 5 * time.Second
	wsReadTimeout      = 60 * time.Second
	handshakeTimeout   = 5 * time.Second
	handshakeQueueSize = outQueueSize
)

// handshake reads the first envelope, which must be a join or a reconnect,
// and answers with welcome or a terminal error.
func (s *Server) handshake(conn *websocket.Conn, room *Room) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	cm, err := protocol.ParseClientEnvelope(msg)
	if err != nil {
		if ve, ok := err.(*protocol.VersionError); ok {
			s.rejectConn(conn, protocol.CodeBadVersion, ve.Error())
		} else {
			s.rejectConn(conn, protocol.CodeBadRequest, err.Error())
		}
		return "", nil
	}

	out = make(chan []byte, handshakeQueueSize)
	var welcome *protocol.Welcome
	var errPayload *protocol.ErrorPayload
	switch cm.Type {
	case protocol.TypeJoin:
		welcome, errPayload = room.Join(cm.Join.Name, out)
	case protocol.TypeReconnect:
		welcome, errPayload = room.Reconnect(cm.Reconnect.PlayerID, cm.Reconnect.ResumeToken, out)
	default:
		s.rejectConn(conn, protocol.CodeBadRequest, "expected join or reconnect")
		return "", nil
	}
	if errPayload != nil {
		s.rejectConn(conn, errPayload.Code, errPayload.Message)
		return "", nil
	}

	data, err := protocol.Encode(protocol.TypeWelcome, 0, time.Now().UnixMilli(), welcome)
	if err != nil {
		return "", nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return "", nil
	}
	return welcome.PlayerID, out
}

func (s *Server) rejectConn(conn *websocket.Conn, code, message string) {
	data, err := protocol.Encode(protocol.TypeError, 0, time.Now().UnixMilli(), protocol.ErrorPayload{
		Code:    code,
		Message: message,
	})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(time.Second))
}

// dispatch routes one inbound frame to the room. Malformed frames get a
// BAD_REQUEST answer; a version mismatch is terminal for the frame only,
// since the handshake already pinned the version.
func (s *Server) dispatch(room *Room, playerID string, msg []byte) {
	cm, err := protocol.ParseClientEnvelope(msg)
	if err != nil {
		room.SendError(playerID, &protocol.ErrorPayload{Code: protocol.CodeBadRequest, Message: err.Error()})
		return
	}

	var errPayload *protocol.ErrorPayload
	switch cm.Type {
	case protocol.TypeInputBatch:
		room.HandleInputBatch(playerID, cm.Seq, cm.InputBatch)
	case protocol.TypePing:
		room.Pong(playerID, cm.Ping.T0)
	case protocol.TypeReadySet:
		errPayload = room.SetReady(playerID, cm.ReadySet.Ready)
	case protocol.TypeStartRequest:
		errPayload = room.RequestStart(playerID, cm.StartRequest.CountdownSec)
	case protocol.TypeCharacterSelect:
		errPayload = room.SelectCharacter(playerID, cm.CharacterSelect.CharacterID)
	default:
		errPayload = &protocol.ErrorPayload{Code: protocol.CodeBadRequest, Message: "unexpected " + cm.Type}
	}
	if errPayload != nil {
		room.SendError(playerID, errPayload)
	}
}

// RoomCount reports how many rooms are live, for the status endpoint.
func (s *Server) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// StatusHandler exposes a minimal JSON health view.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"rooms": s.RoomCount(),
			"pv":    protocol.Version,
		})
	}
}
