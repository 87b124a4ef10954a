package core_test

import (
	"errors"
	"testing"

	"github.com/dkeye/VoiceRelay/internal/core"
	"github.com/dkeye/VoiceRelay/internal/core/mocks"
	"github.com/dkeye/VoiceRelay/internal/domain"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRoom(selfDelivery bool) core.RoomService {
	return core.NewRoomService(domain.NewRoom(1), core.RoomOptions{SelfDelivery: selfDelivery})
}

func TestRoom_JoinLeave(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockMember(ctrl)
	b := mocks.NewMockMember(ctrl)
	room := newRoom(true)

	assert.Equal(t, domain.RoomName("1"), room.Room().Name)
	assert.True(t, room.IsEmpty())

	assert.Nil(t, room.Join(10, a))
	assert.Nil(t, room.Join(11, b))
	assert.Equal(t, 2, room.MemberCount())
	assert.Equal(t, []domain.UserID{10, 11}, room.Members())

	assert.True(t, room.Leave(10))
	assert.False(t, room.Leave(10), "second leave is a no-op")
	assert.False(t, room.Leave(99))
	assert.Equal(t, []domain.UserID{11}, room.Members())

	assert.True(t, room.Leave(11))
	assert.True(t, room.IsEmpty())
}

func TestRoom_JoinReplacesSameUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockMember(ctrl)
	second := mocks.NewMockMember(ctrl)
	room := newRoom(true)

	room.Join(10, first)
	replaced := room.Join(10, second)
	assert.Same(t, first, replaced)
	assert.Equal(t, 1, room.MemberCount())

	second.EXPECT().TrySend(core.Payload("x")).Return(nil)
	res := room.Broadcast(10, core.Payload("x"))
	assert.Equal(t, 1, res.SentTo)
}

func TestRoom_LeaveIf(t *testing.T) {
	ctrl := gomock.NewController(t)
	stale := mocks.NewMockMember(ctrl)
	current := mocks.NewMockMember(ctrl)
	room := newRoom(true)

	room.Join(10, stale)
	room.Join(10, current)

	assert.False(t, room.LeaveIf(10, stale), "stale member must not evict its replacement")
	assert.Equal(t, 1, room.MemberCount())
	assert.True(t, room.LeaveIf(10, current))
	assert.True(t, room.IsEmpty())
	assert.False(t, room.LeaveIf(10, current))
}

func TestRoom_Broadcast(t *testing.T) {
	payload := core.Payload("voice")

	tests := []struct {
		name         string
		selfDelivery bool
		wantSender   int
	}{
		{name: "sender receives its own payload", selfDelivery: true, wantSender: 1},
		{name: "sender excluded", selfDelivery: false, wantSender: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			a := mocks.NewMockMember(ctrl)
			b := mocks.NewMockMember(ctrl)
			room := newRoom(tt.selfDelivery)
			room.Join(10, a)
			room.Join(11, b)

			a.EXPECT().TrySend(payload).Return(nil).Times(tt.wantSender)
			b.EXPECT().TrySend(payload).Return(nil).Times(1)

			res := room.Broadcast(10, payload)
			assert.Equal(t, 1+tt.wantSender, res.SentTo)
			assert.Empty(t, res.Dropped)
		})
	}
}

func TestRoom_BroadcastIsolatesFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	ok1 := mocks.NewMockMember(ctrl)
	broken := mocks.NewMockMember(ctrl)
	ok2 := mocks.NewMockMember(ctrl)
	room := newRoom(true)
	room.Join(1, ok1)
	room.Join(2, broken)
	room.Join(3, ok2)

	errClosed := errors.New("closed")
	ok1.EXPECT().TrySend(gomock.Any()).Return(nil)
	broken.EXPECT().TrySend(gomock.Any()).Return(errClosed)
	ok2.EXPECT().TrySend(gomock.Any()).Return(nil)

	res := room.Broadcast(1, core.Payload("p"))
	assert.Equal(t, 2, res.SentTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, domain.UserID(2), res.Dropped[0].UserID)
	assert.Same(t, broken, res.Dropped[0].Member)
	assert.ErrorIs(t, res.Dropped[0].Err, errClosed)

	// the room reports; it does not remove
	assert.Equal(t, 3, room.MemberCount())
}

func TestRoom_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	room := newRoom(true)

	const users = 64
	members := make([]*mocks.MockMember, users)
	for i := range members {
		members[i] = mocks.NewMockMember(ctrl)
		members[i].EXPECT().TrySend(gomock.Any()).Return(nil).AnyTimes()
	}

	var wg conc.WaitGroup
	for i := range users {
		uid := domain.UserID(i)
		m := members[i]
		wg.Go(func() {
			for range 50 {
				room.Join(uid, m)
				room.Broadcast(uid, core.Payload("x"))
				room.Leave(uid)
			}
			// even users stay
			if uid%2 == 0 {
				room.Join(uid, m)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, users/2, room.MemberCount())
	for _, uid := range room.Members() {
		assert.Zero(t, uid%2)
	}
}
