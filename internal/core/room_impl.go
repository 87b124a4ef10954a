package core

import (
	"sort"
	"sync"

	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomOptions tunes fan-out behaviour.
type RoomOptions struct {
	// SelfDelivery echoes a broadcast back to its sender.
	SelfDelivery bool
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	opts   RoomOptions
	mu     sync.RWMutex
	byUser map[domain.UserID]Member
}

func NewRoomService(room *domain.Room, opts RoomOptions) RoomService {
	return &roomImpl{
		room:   room,
		opts:   opts,
		byUser: make(map[domain.UserID]Member),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *roomImpl) IsEmpty() bool { return r.MemberCount() == 0 }

func (r *roomImpl) Members() []domain.UserID {
	r.mu.RLock()
	out := make([]domain.UserID, 0, len(r.byUser))
	for uid := range r.byUser {
		out = append(out, uid)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *roomImpl) Join(uid domain.UserID, m Member) Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.byUser[uid]
	r.byUser[uid] = m
	log.Info().Str("module", "core.room").Stringer("room", r.room.ID).Stringer("user", uid).Bool("replaced", prev != nil).Msg("member added")
	return prev
}

func (r *roomImpl) Leave(uid domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[uid]; !ok {
		return false
	}
	delete(r.byUser, uid)
	log.Info().Str("module", "core.room").Stringer("room", r.room.ID).Stringer("user", uid).Msg("member removed")
	return true
}

func (r *roomImpl) LeaveIf(uid domain.UserID, m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[uid]; !ok || cur != m {
		return false
	}
	delete(r.byUser, uid)
	log.Info().Str("module", "core.room").Stringer("room", r.room.ID).Stringer("user", uid).Msg("member removed")
	return true
}

func (r *roomImpl) Clear() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, 0, len(r.byUser))
	for uid, m := range r.byUser {
		out = append(out, m)
		delete(r.byUser, uid)
	}
	return out
}

// Broadcast delivers data to the members present when it starts. The read
// lock is held for the whole fan-out, so a concurrent Join or Leave takes
// effect after it. Failed members are reported, never retried or removed here.
func (r *roomImpl) Broadcast(from domain.UserID, data Payload) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for uid, m := range r.byUser {
		if uid == from && !r.opts.SelfDelivery {
			continue
		}
		if err := m.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, Dropped{UserID: uid, Member: m, Err: err})
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Stringer("room", r.room.ID).Stringer("from", from).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
