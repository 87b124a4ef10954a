// Package orch routes decoded frames to the room directory and drives each
// connection from its first chunk to its teardown.
package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/VoiceRelay/internal/app"
	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/dkeye/VoiceRelay/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownControlType = errors.New("unknown control type")
	ErrNotInRoom          = errors.New("session not in a room")
	ErrJoinRateLimited    = errors.New("join rate limited")
	ErrSessionClosed      = errors.New("session closed")
)

// Dispatcher interprets frames for sessions. It keeps no per-connection
// state of its own.
type Dispatcher struct {
	Rooms    *app.Directory
	Registry *app.Registry
	Policy   app.Policy
	Stats    *app.Stats
	// Joins limits room switches per session; nil means unlimited.
	Joins *app.JoinLimiter
	// ForwardFramed re-wraps relayed voice in a voice header; otherwise the
	// bare payload is forwarded.
	ForwardFramed bool
}

func NewDispatcher(rooms *app.Directory, reg *app.Registry) *Dispatcher {
	return &Dispatcher{
		Rooms:    rooms,
		Registry: reg,
		Policy:   app.SimplePolicy{},
		Stats:    app.NewStats(),
	}
}

// Feed runs one inbound chunk through the session's reassembler and
// dispatches every completed frame. Frame-local errors are logged and the
// frame dropped; only a fatal stream error is returned.
func (d *Dispatcher) Feed(s *Session, chunk []byte) error {
	d.Stats.BytesReceived.Add(uint64(len(chunk)))
	frames, err := s.reasm.Feed(chunk)
	for i, f := range frames {
		if s.Closed() {
			log.Debug().Str("module", "orch").Str("sid", string(s.ID())).Int("discarded", len(frames)-i).Msg("session closed, frames discarded")
			break
		}
		d.Stats.FramesReceived.Add(1)
		if derr := d.Dispatch(s, f); derr != nil {
			d.Stats.FrameErrors.Add(1)
			roomID, userID, _ := s.Room()
			log.Warn().Err(derr).Str("module", "orch").Str("sid", string(s.ID())).
				Stringer("room", roomID).Stringer("user", userID).Msg("frame dropped")
		}
	}
	if err != nil {
		d.Stats.FatalErrors.Add(1)
		return err
	}
	return nil
}

// Dispatch applies a single frame.
func (d *Dispatcher) Dispatch(s *Session, f protocol.Frame) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	if f.IsVoice() {
		return d.OnVoice(s, f.Payload)
	}
	switch f.Header.Type {
	case protocol.TypeJoinRoom:
		roomID, userID, err := protocol.DecodeJoin(f.Payload)
		if err != nil {
			return err
		}
		if !d.Joins.Allow(s.ID()) {
			return ErrJoinRateLimited
		}
		d.Join(s, domain.RoomID(roomID), domain.UserID(userID))
		return nil
	case protocol.TypeLeaveRoom:
		d.Leave(s)
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownControlType, uint8(f.Header.Type))
	}
}

// Join binds s to roomID as userID, leaving its previous room first.
func (d *Dispatcher) Join(s *Session, roomID domain.RoomID, userID domain.UserID) {
	if prevRoom, prevUser, ok := s.Room(); ok && (prevRoom != roomID || prevUser != userID) {
		d.Rooms.LeaveIf(prevRoom, prevUser, s)
		log.Info().Str("module", "orch").Str("sid", string(s.ID())).Stringer("from_room", prevRoom).Msg("left previous room")
	}
	_, replaced := d.Rooms.JoinOrCreate(roomID, userID, s)
	s.bind(roomID, userID)
	if replaced != nil && replaced != core.Member(s) {
		log.Warn().Str("module", "orch").Str("sid", string(s.ID())).Stringer("room", roomID).Stringer("user", userID).Msg("user id taken over from another connection")
	}
	log.Info().Str("module", "orch").Str("sid", string(s.ID())).Stringer("room", roomID).Stringer("user", userID).Msg("joined room")
}

// Leave removes s from its current room. A session that is not in a room is
// left untouched.
func (d *Dispatcher) Leave(s *Session) {
	roomID, userID, ok := s.Room()
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(s.ID())).Msg("leave without room")
		return
	}
	d.Rooms.LeaveIf(roomID, userID, s)
	s.unbind()
	log.Info().Str("module", "orch").Str("sid", string(s.ID())).Stringer("room", roomID).Stringer("user", userID).Msg("left room")
}

// OnVoice relays payload to every member of the session's room.
func (d *Dispatcher) OnVoice(s *Session, payload []byte) error {
	roomID, userID, ok := s.Room()
	if !ok {
		return ErrNotInRoom
	}
	room, ok := d.Rooms.Get(roomID)
	if !ok {
		return fmt.Errorf("%w: room %d is gone", ErrNotInRoom, roomID)
	}
	data := core.Payload(payload)
	if d.ForwardFramed {
		data = protocol.VoiceFrame(payload)
	}
	res := room.Broadcast(userID, data)
	d.Stats.Broadcasts.Add(1)
	d.Stats.Deliveries.Add(uint64(res.SentTo))
	d.applyPolicy(roomID, room, res)
	return nil
}

func (d *Dispatcher) applyPolicy(roomID domain.RoomID, room core.RoomService, res core.PublishResult) {
	for _, dr := range res.Dropped {
		d.Stats.Dropped.Add(1)
		action := d.Policy.OnBackPressure(room, dr)
		log.Warn().Err(dr.Err).Str("module", "orch").Stringer("room", roomID).Stringer("user", dr.UserID).Stringer("action", action).Msg("delivery failed")
		switch action {
		case app.KickMember:
			if d.Rooms.LeaveIf(roomID, dr.UserID, dr.Member) {
				d.Stats.Evictions.Add(1)
			}
			if ks, ok := dr.Member.(*Session); ok {
				ks.unbindFrom(roomID)
			}
			// closing ends the member's session, which then tears itself down
			dr.Member.Close()
		case app.DropFrame, app.NoAction:
			// keep the member
		}
	}
}

// Disconnect is the implicit leave performed when a connection ends.
func (d *Dispatcher) Disconnect(s *Session) {
	if _, _, ok := s.Room(); ok {
		d.Leave(s)
	}
}

// EvictRoom removes a room and closes every member's connection.
func (d *Dispatcher) EvictRoom(id domain.RoomID) int {
	members := d.Rooms.Evict(id)
	for _, m := range members {
		m.Close()
	}
	d.Stats.Evictions.Add(uint64(len(members)))
	return len(members)
}
