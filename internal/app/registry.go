package app

import (
	"sort"
	"sync"

	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// SessionInfo is a read-only view of a live connection for the admin API.
type SessionInfo struct {
	ID        domain.SessionID `json:"id"`
	Transport string           `json:"transport"`
	Remote    string           `json:"remote"`
	Client    string           `json:"client,omitempty"`
	UserID    *domain.UserID   `json:"user_id,omitempty"`
	RoomID    *domain.RoomID   `json:"room_id,omitempty"`
}

// LiveSession is what the registry tracks; implemented by orch.Session.
type LiveSession interface {
	ID() domain.SessionID
	Info() SessionInfo
	Close()
}

// Registry tracks every accepted connection until it is torn down.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]LiveSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]LiveSession),
	}
}

func (r *Registry) Bind(s LiveSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	log.Debug().Str("module", "app.registry").Str("sid", string(s.ID())).Msg("bound session")
}

func (r *Registry) Unbind(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Get(sid domain.SessionID) (LiveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CloseAll closes every live session's transport. Sessions unbind
// themselves as their read loops exit.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	all := make([]LiveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()
	for _, s := range all {
		s.Close()
	}
	log.Info().Str("module", "app.registry").Int("sessions", len(all)).Msg("closed all sessions")
	return len(all)
}
