package core

//go:generate mockgen -destination=mocks/mock_member.go -package=mocks github.com/dkeye/VoiceRelay/internal/core Member

import (
	"errors"

	"github.com/dkeye/VoiceRelay/internal/domain"
)

var (
	// ErrBackpressure is returned by TrySend when the member's outbound
	// queue is full.
	ErrBackpressure = errors.New("backpressure")
	// ErrClosed is returned by TrySend after the member's transport closed.
	ErrClosed = errors.New("connection closed")
)

// Payload is an opaque outbound byte blob (e.g., a voice frame).
type Payload []byte

// Member is the transport endpoint a room fans out to.
// Owned by the adapter; the room never closes it.
type Member interface {
	// TrySend queues p for delivery without blocking.
	TrySend(p Payload) error
	Close()
}

// ChunkSource is the inbound half of a transport. ReadChunk returns the next
// chunk of the byte stream; the slice is only valid until the next call.
// It returns io.EOF once the peer has closed cleanly.
type ChunkSource interface {
	ReadChunk() ([]byte, error)
}

// Dropped is a member whose delivery failed during a broadcast.
type Dropped struct {
	UserID domain.UserID
	Member Member
	Err    error
}

// PublishResult reports delivery stats/backpressure to the dispatcher.
type PublishResult struct {
	SentTo  int
	Dropped []Dropped
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	IsEmpty() bool
	Members() []domain.UserID

	// Join inserts or replaces the member for uid and returns the member it
	// replaced, if any.
	Join(uid domain.UserID, m Member) (replaced Member)
	// Leave removes uid if present.
	Leave(uid domain.UserID) bool
	// LeaveIf removes uid only while it still maps to m.
	LeaveIf(uid domain.UserID, m Member) bool
	// Clear removes every member and returns them.
	Clear() []Member
	Broadcast(from domain.UserID, data Payload) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}
