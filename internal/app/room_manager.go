package app

import (
	"sort"
	"sync"

	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory maps live room ids to rooms. A room is present iff it has at
// least one member.
//
// mu serializes structural changes together with the membership change that
// causes them, so create-then-join and leave-then-erase are each atomic for a
// given id. Broadcasts only take the room's own lock and never mu.
type Directory struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]core.RoomService
	opts  core.RoomOptions
}

func NewDirectory(opts core.RoomOptions) *Directory {
	return &Directory{
		rooms: make(map[domain.RoomID]core.RoomService),
		opts:  opts,
	}
}

// JoinOrCreate ensures a room for id exists and adds m as uid. It returns
// the room and the member previously mapped to uid, if any.
func (d *Directory) JoinOrCreate(id domain.RoomID, uid domain.UserID, m core.Member) (core.RoomService, core.Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[id]
	if !ok {
		room = core.NewRoomService(domain.NewRoom(id), d.opts)
		d.rooms[id] = room
		log.Info().Str("module", "app.directory").Stringer("room", id).Msg("room created")
	}
	return room, room.Join(uid, m)
}

// Leave removes uid from room id and erases the room once it is empty.
// Unknown rooms and users are a no-op.
func (d *Directory) Leave(id domain.RoomID, uid domain.UserID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[id]
	if !ok {
		return false
	}
	left := room.Leave(uid)
	d.eraseIfEmpty(id, room)
	return left
}

// LeaveIf is Leave restricted to the case where uid still maps to m. A
// session uses it so that its teardown never removes a newer connection that
// rejoined under the same user id.
func (d *Directory) LeaveIf(id domain.RoomID, uid domain.UserID, m core.Member) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[id]
	if !ok {
		return false
	}
	left := room.LeaveIf(uid, m)
	d.eraseIfEmpty(id, room)
	return left
}

// Get returns the live room for id. The handle stays usable after the room
// is erased; erasure only hides it from later lookups.
func (d *Directory) Get(id domain.RoomID) (core.RoomService, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[id]
	return room, ok
}

// Evict erases room id and returns the members it held, so the caller can
// close their transports.
func (d *Directory) Evict(id domain.RoomID) []core.Member {
	d.mu.Lock()
	room, ok := d.rooms[id]
	if ok {
		delete(d.rooms, id)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}
	out := room.Clear()
	log.Info().Str("module", "app.directory").Stringer("room", id).Int("members", len(out)).Msg("room evicted")
	return out
}

func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

func (d *Directory) List() []core.RoomInfo {
	d.mu.Lock()
	out := make([]core.RoomInfo, 0, len(d.rooms))
	for id, r := range d.rooms {
		out = append(out, core.RoomInfo{ID: id, Name: r.Room().Name, MemberCount: r.MemberCount()})
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Directory) eraseIfEmpty(id domain.RoomID, room core.RoomService) {
	if !room.IsEmpty() {
		return
	}
	delete(d.rooms, id)
	log.Info().Str("module", "app.directory").Stringer("room", id).Msg("room removed")
}
