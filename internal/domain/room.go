package domain

import "strconv"

type RoomID uint64

func (id RoomID) String() string { return strconv.FormatUint(uint64(id), 10) }

// RoomName is the display name of a room. Rooms created by a join get the
// decimal form of their id.
type RoomName string

type Room struct {
	ID   RoomID
	Name RoomName
}

// NewRoom builds room metadata with the default display name.
func NewRoom(id RoomID) *Room {
	return &Room{ID: id, Name: RoomName(id.String())}
}

// ParseRoomID parses the decimal form used by the admin API.
func ParseRoomID(s string) (RoomID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return RoomID(v), nil
}
