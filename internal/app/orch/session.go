package orch

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/VoiceRelay/internal/app"
	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/dkeye/VoiceRelay/internal/protocol"
)

type SessionOptions struct {
	Transport  string
	Remote     string
	Client     string
	MaxPayload uint32
}

// Session is the server-side state of one connection. The reassembler is
// only touched by the connection's own goroutine; the room binding is
// guarded so the admin API can read it.
type Session struct {
	id    domain.SessionID
	opts  SessionOptions
	conn  core.Member
	reasm *protocol.Reassembler

	closed atomic.Bool

	mu     sync.RWMutex
	userID domain.UserID
	roomID domain.RoomID
	hasUID bool
	inRoom bool
}

func NewSession(conn core.Member, opts SessionOptions) *Session {
	return &Session{
		id:    domain.NewSessionID(),
		opts:  opts,
		conn:  conn,
		reasm: protocol.NewReassembler(opts.MaxPayload),
	}
}

func (s *Session) ID() domain.SessionID { return s.id }

// TrySend and Close make a Session the core.Member stored in rooms.
func (s *Session) TrySend(p core.Payload) error { return s.conn.TrySend(p) }

func (s *Session) Close() {
	s.closed.Store(true)
	s.conn.Close()
}

// Closed reports whether Close has been called. A closed session dispatches
// nothing more.
func (s *Session) Closed() bool { return s.closed.Load() }

// Room returns the current binding; ok is false when not in a room.
func (s *Session) Room() (roomID domain.RoomID, userID domain.UserID, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID, s.userID, s.inRoom
}

func (s *Session) bind(roomID domain.RoomID, userID domain.UserID) {
	s.mu.Lock()
	s.roomID, s.userID = roomID, userID
	s.hasUID, s.inRoom = true, true
	s.mu.Unlock()
}

func (s *Session) unbind() {
	s.mu.Lock()
	s.inRoom = false
	s.roomID = 0
	s.mu.Unlock()
}

// unbindFrom clears the binding only while it still points at roomID.
func (s *Session) unbindFrom(roomID domain.RoomID) {
	s.mu.Lock()
	if s.inRoom && s.roomID == roomID {
		s.inRoom = false
		s.roomID = 0
	}
	s.mu.Unlock()
}

func (s *Session) Info() app.SessionInfo {
	info := app.SessionInfo{
		ID:        s.id,
		Transport: s.opts.Transport,
		Remote:    s.opts.Remote,
		Client:    s.opts.Client,
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasUID {
		uid := s.userID
		info.UserID = &uid
	}
	if s.inRoom {
		rid := s.roomID
		info.RoomID = &rid
	}
	return info
}
