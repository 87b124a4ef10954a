package app

import (
	"errors"
	"fmt"

	"github.com/dkeye/VoiceRelay/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what happens to a member whose delivery failed.
type Policy interface {
	OnBackPressure(room core.RoomService, d core.Dropped) BackpressureAction
}

// SimplePolicy evicts every member that fails a delivery.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.Dropped) BackpressureAction {
	return KickMember
}

// TolerantPolicy skips the frame for a member whose queue is full and only
// evicts members whose transport has closed.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(_ core.RoomService, d core.Dropped) BackpressureAction {
	if errors.Is(d.Err, core.ErrBackpressure) {
		return DropFrame
	}
	return KickMember
}

// PolicyByName maps the config value to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return TolerantPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
