// Package domain contains entity without logic, just meta-data
package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// UserID is chosen by the client in its JoinRoom frame. It is unique per
// room, not per process.
type UserID uint64

func (id UserID) String() string { return strconv.FormatUint(uint64(id), 10) }

// SessionID identifies one accepted transport connection.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}
