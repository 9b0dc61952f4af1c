// internal/room/registry_test.go
package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (s *recordingSink) Publish(_ context.Context, ev models.RoomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) types() []models.RoomEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RoomEventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

// countingObserver tallies observer calls.
type countingObserver struct {
	started  int
	swept    int
	failures map[string]int
	rooms    int
	conns    int
}

func (o *countingObserver) MessageHandled(models.MessageType) {}
func (o *countingObserver) Failure(reason string) {
	if o.failures == nil {
		o.failures = map[string]int{}
	}
	o.failures[reason]++
}
func (o *countingObserver) TournamentStarted() { o.started++ }
func (o *countingObserver) RoomsSwept(n int) { o.swept += n }
func (o *countingObserver) SetActive(rooms, conns int) { o.rooms, o.conns = rooms, conns }

func roomData(bet models.BetDirection, stake int64) *models.RoomData {
	return &models.RoomData{
		Bet:       bet,
		Stake:     decimal.NewFromInt(stake),
		Formation: "2-2-1",
		SelectedPlayers: models.Squad{
			{SlotID: "st-1", Position: models.PositionStriker, Token: models.Token{Symbol: "BTC", PriceFeedID: "aa"}},
		},
	}
}

// next pops the next queued message for conn, failing if none is queued.
func next(t *testing.T, c *Connection) models.Message {
	t.Helper()
	select {
	case m := <-c.OutChan:
		return m
	default:
		t.Fatalf("no message queued for %s", c.ID)
		return models.Message{}
	}
}

func assertSilent(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case m := <-c.OutChan:
		t.Fatalf("unexpected message %s for %s", m.Type, c.ID)
	default:
	}
}

// seatedRoom creates a room and a joined guest, draining the setup messages.
func seatedRoom(t *testing.T, r *Registry) (host, guest *Connection, roomID string) {
	t.Helper()
	host = r.Connect("host")
	guest = r.Connect("guest")
	require.NoError(t, r.CreateRoom(host, roomData(models.BetLong, 10)))
	created := next(t, host)
	require.Equal(t, models.MsgRoomCreated, created.Type)
	roomID = created.RoomID

	require.NoError(t, r.JoinRoom(guest, roomID, roomData(models.BetLong, 10)))
	require.Equal(t, models.MsgJoinRoomSuccess, next(t, guest).Type)
	require.Equal(t, models.MsgGuestJoined, next(t, host).Type)
	require.Equal(t, models.MsgHandshakeRequest, next(t, host).Type)
	return host, guest, roomID
}

func TestCreateRoomCodes(t *testing.T) {
	r := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c := r.Connect("h")
		require.NoError(t, r.CreateRoom(c, roomData(models.BetLong, 1)))
		m := next(t, c)
		assert.Regexp(t, `^[0-9A-F]{8}$`, m.RoomID)
		assert.False(t, seen[m.RoomID], "duplicate room code %s", m.RoomID)
		seen[m.RoomID] = true
	}
	rooms, conns := r.Stats()
	assert.Equal(t, 50, rooms)
	assert.Equal(t, 50, conns)
}

func TestCreateRoomCollisionNeverOverwrites(t *testing.T) {
	r := NewRegistry(WithCodeGenerator(func() (string, error) { return "DEADBEEF", nil }))
	first := r.Connect("a")
	second := r.Connect("b")

	require.NoError(t, r.CreateRoom(first, roomData(models.BetLong, 5)))
	next(t, first)

	err := r.CreateRoom(second, roomData(models.BetShort, 7))
	assert.ErrorIs(t, err, ErrRoomCollision)
	m := next(t, second)
	assert.Equal(t, models.MsgRoomCreationFailed, m.Type)
	assert.Equal(t, "Room ID collision, please try again", m.Error)

	info, ok := r.Room("DEADBEEF")
	require.True(t, ok)
	assert.Equal(t, models.BetLong, info.BetType)
	assert.Empty(t, second.RoomID)
}

func TestCreateRoomRejectsInvalidAndDoubleHosting(t *testing.T) {
	r := NewRegistry()
	c := r.Connect("a")

	bad := roomData("UP", 5)
	assert.ErrorIs(t, r.CreateRoom(c, bad), ErrInvalidPayload)
	assert.Equal(t, models.MsgRoomCreationFailed, next(t, c).Type)

	assert.ErrorIs(t, r.CreateRoom(c, nil), ErrInvalidPayload)
	next(t, c)

	require.NoError(t, r.CreateRoom(c, roomData(models.BetLong, 5)))
	next(t, c)
	assert.ErrorIs(t, r.CreateRoom(c, roomData(models.BetLong, 5)), ErrAlreadyInRoom)
}

func TestGetRoomInfo(t *testing.T) {
	r := NewRegistry()
	host := r.Connect("h")
	visitor := r.Connect("v")
	require.NoError(t, r.CreateRoom(host, roomData(models.BetShort, 25)))
	id := next(t, host).RoomID

	require.NoError(t, r.GetRoomInfo(visitor, id))
	m := next(t, visitor)
	assert.Equal(t, models.MsgRoomInfoSuccess, m.Type)
	require.NotNil(t, m.RequiredStake)
	assert.True(t, m.RequiredStake.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, models.BetShort, m.BetType)
	assert.NotNil(t, m.HostData)

	assert.ErrorIs(t, r.GetRoomInfo(visitor, "00000000"), ErrRoomNotFound)
	m = next(t, visitor)
	assert.Equal(t, models.MsgRoomInfoFailed, m.Type)
	assert.Equal(t, "Room not found", m.Error)
}

func TestJoinRoomValidation(t *testing.T) {
	r := NewRegistry()
	host := r.Connect("h")
	guest := r.Connect("g")
	require.NoError(t, r.CreateRoom(host, roomData(models.BetLong, 10)))
	id := next(t, host).RoomID

	cases := []struct {
		name   string
		roomID string
		data   *models.RoomData
		want   error
		text   string
	}{
		{"missing room", "FFFFFFFF", roomData(models.BetLong, 10), ErrRoomNotFound, "Room not found"},
		{"stake differs", id, roomData(models.BetLong, 11), ErrStakeMismatch, "Stake amount must be $10"},
		{"bet differs", id, roomData(models.BetShort, 10), ErrBetMismatch,
			"This room requires LONG betting. Your bet will be automatically set to LONG."},
		{"bad payload", id, roomData("FLAT", 10), ErrInvalidPayload, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.JoinRoom(guest, tc.roomID, tc.data)
			assert.ErrorIs(t, err, tc.want)
			m := next(t, guest)
			assert.Equal(t, models.MsgJoinRoomFailed, m.Type)
			if tc.text != "" {
				assert.Equal(t, tc.text, m.Error)
			}
			assertSilent(t, host)

			info, ok := r.Room(id)
			require.True(t, ok)
			assert.False(t, info.HasGuest)
			assert.Equal(t, StatusWaiting, info.Status)
		})
	}

	// Stake equality is numeric, not textual.
	same := roomData(models.BetLong, 0)
	same.Stake = decimal.RequireFromString("10.00")
	require.NoError(t, r.JoinRoom(guest, id, same))
	assert.Equal(t, models.MsgJoinRoomSuccess, next(t, guest).Type)

	third := r.Connect("t")
	assert.ErrorIs(t, r.JoinRoom(third, id, roomData(models.BetLong, 10)), ErrRoomFull)
	assert.Equal(t, "Room is full", next(t, third).Error)
}

func TestHandshakeAcceptAndReject(t *testing.T) {
	r := NewRegistry()
	host, guest, id := seatedRoom(t, r)

	assert.ErrorIs(t, r.AcceptHandshake(guest, id), ErrNotHost)
	assertSilent(t, host)
	assertSilent(t, guest)

	require.NoError(t, r.RejectHandshake(host, id, ""))
	m := next(t, guest)
	assert.Equal(t, models.MsgHandshakeRejected, m.Type)
	assert.Equal(t, "Host rejected the connection", m.Reason)
	assert.Empty(t, guest.RoomID)

	info, _ := r.Room(id)
	assert.Equal(t, StatusWaiting, info.Status)
	assert.False(t, info.HasGuest)

	// The rejected guest can try again and be accepted.
	require.NoError(t, r.JoinRoom(guest, id, roomData(models.BetLong, 10)))
	next(t, guest)
	next(t, host)
	next(t, host)

	require.NoError(t, r.AcceptHandshake(host, id))
	assert.Equal(t, models.MsgHandshakeAccepted, next(t, guest).Type)
	complete := next(t, host)
	assert.Equal(t, models.MsgHandshakeComplete, complete.Type)
	assert.NotNil(t, complete.GuestData)
	info, _ = r.Room(id)
	assert.Equal(t, StatusAccepted, info.Status)
}

func TestTournamentStartsOnceWhenBothReady(t *testing.T) {
	obs := &countingObserver{}
	r := NewRegistry(WithObserver(obs))
	host, guest, id := seatedRoom(t, r)
	require.NoError(t, r.AcceptHandshake(host, id))
	next(t, guest)
	next(t, host)

	require.NoError(t, r.SetPlayerReady(host, id))
	assertSilent(t, host)
	assertSilent(t, guest)

	outsider := r.Connect("x")
	assert.ErrorIs(t, r.SetPlayerReady(outsider, id), ErrNotMember)

	require.NoError(t, r.SetPlayerReady(guest, id))
	hs := next(t, host)
	gs := next(t, guest)
	assert.Equal(t, models.MsgTournamentStart, hs.Type)
	assert.Equal(t, models.MsgTournamentStart, gs.Type)
	assert.NotNil(t, hs.HostData)
	assert.NotNil(t, hs.GuestData)

	require.NoError(t, r.SetPlayerReady(guest, id))
	require.NoError(t, r.SetPlayerReady(host, id))
	assertSilent(t, host)
	assertSilent(t, guest)
	assert.Equal(t, 1, obs.started)

	info, _ := r.Room(id)
	assert.Equal(t, StatusTournament, info.Status)
}

func TestHandshakeAfterStartIsIgnored(t *testing.T) {
	obs := &countingObserver{}
	r := NewRegistry(WithObserver(obs))
	host, guest, id := seatedRoom(t, r)
	require.NoError(t, r.AcceptHandshake(host, id))
	next(t, guest)
	next(t, host)
	require.NoError(t, r.SetPlayerReady(host, id))
	require.NoError(t, r.SetPlayerReady(guest, id))
	next(t, host)
	next(t, guest)

	assert.ErrorIs(t, r.AcceptHandshake(host, id), ErrNotHandshaking)
	require.NoError(t, r.SetPlayerReady(host, id))
	assert.ErrorIs(t, r.RejectHandshake(host, id, "too late"), ErrNotHandshaking)
	assertSilent(t, host)
	assertSilent(t, guest)

	info, _ := r.Room(id)
	assert.Equal(t, StatusTournament, info.Status)
	assert.True(t, info.HasGuest)
	assert.Equal(t, guest.RoomID, id)
	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 2, obs.failures["not_handshaking"])
}

func TestAcceptWithoutGuestKeepsRoomWaiting(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRegistry(WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	host := r.Connect("h")
	require.NoError(t, r.CreateRoom(host, roomData(models.BetLong, 1)))
	id := next(t, host).RoomID

	assert.ErrorIs(t, r.AcceptHandshake(host, id), ErrNotHandshaking)
	assert.ErrorIs(t, r.RejectHandshake(host, id, ""), ErrNotHandshaking)
	assertSilent(t, host)

	info, _ := r.Room(id)
	assert.Equal(t, StatusWaiting, info.Status)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, models.MsgRoomExpired, next(t, host).Type)
}

func TestSentinelsStayLowerCase(t *testing.T) {
	for _, err := range []error{ErrRoomNotFound, ErrRoomFull, ErrRoomCollision, ErrNotHandshaking} {
		msg := err.Error()
		assert.Equal(t, strings.ToLower(msg[:1]), msg[:1], msg)
	}
	assert.Equal(t, "Room not found", playerText(ErrRoomNotFound))
	assert.Equal(t, "Room is full", playerText(fmt.Errorf("join: %w", ErrRoomFull)))
	assert.Equal(t, "Stake amount must be $3", playerText(stakeMismatch(decimal.NewFromInt(3))))
}

func TestHostDisconnectDestroysRoom(t *testing.T) {
	r := NewRegistry()
	host, guest, id := seatedRoom(t, r)

	r.Disconnect(host)
	m := next(t, guest)
	assert.Equal(t, models.MsgHostDisconnected, m.Type)
	assert.Equal(t, id, m.RoomID)
	_, ok := r.Room(id)
	assert.False(t, ok)
	assert.Empty(t, guest.RoomID)

	rooms, conns := r.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 1, conns)

	// The orphaned guest is free to host its own room.
	require.NoError(t, r.CreateRoom(guest, roomData(models.BetLong, 1)))
}

func TestGuestDisconnectReopensRoom(t *testing.T) {
	r := NewRegistry()
	host, guest, id := seatedRoom(t, r)
	require.NoError(t, r.SetPlayerReady(host, id))

	r.Disconnect(guest)
	assert.Equal(t, models.MsgGuestDisconnected, next(t, host).Type)

	info, ok := r.Room(id)
	require.True(t, ok)
	assert.False(t, info.HasGuest)
	assert.False(t, info.HostReady)
	assert.Equal(t, StatusWaiting, info.Status)
}

func TestHandleUnknownAndMalformed(t *testing.T) {
	r := NewRegistry()
	c := r.Connect("c")

	r.HandleRaw(c, []byte("{not json"))
	m := next(t, c)
	assert.Equal(t, models.MsgError, m.Type)
	assert.NotEmpty(t, m.Error)

	r.HandleRaw(c, []byte(`{"type":"DANCE"}`))
	m = next(t, c)
	assert.Equal(t, models.MsgError, m.Type)
	assert.Contains(t, m.Error, "DANCE")

	r.HandleRaw(c, []byte(`{"type":"CREATE_ROOM","hostData":{"bet":"LONG","stake":"3","selectedPlayers":[]}}`))
	assert.Equal(t, models.MsgRoomCreated, next(t, c).Type)
}

func TestSweepExpiresWaitingRooms(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	obs := &countingObserver{}
	r := NewRegistry(WithTTL(time.Minute), WithClock(clock), WithObserver(obs))

	idle := r.Connect("idle")
	require.NoError(t, r.CreateRoom(idle, roomData(models.BetLong, 1)))
	idleID := next(t, idle).RoomID

	_, _, busyID := seatedRoom(t, r)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, r.Sweep())

	m := next(t, idle)
	assert.Equal(t, models.MsgRoomExpired, m.Type)
	assert.Equal(t, idleID, m.RoomID)
	assert.Empty(t, idle.RoomID)

	_, ok := r.Room(idleID)
	assert.False(t, ok)
	_, ok = r.Room(busyID)
	assert.True(t, ok, "rooms with a guest are not swept")
	assert.Equal(t, 1, obs.swept)
}

func TestSweepDisabledWithZeroTTL(t *testing.T) {
	r := NewRegistry(WithTTL(0))
	c := r.Connect("c")
	require.NoError(t, r.CreateRoom(c, roomData(models.BetLong, 1)))
	assert.Equal(t, 0, r.Sweep())
}

func TestRunForwardsEvents(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(WithEventSink(sink))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	host, _, _ := seatedRoom(t, r)
	r.Disconnect(host)

	assert.Eventually(t, func() bool { return len(sink.types()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.RoomEventType{
		models.EventRoomCreated, models.EventGuestJoined, models.EventHostDisconnected,
	}, sink.types())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestProtocolErrorUnwraps(t *testing.T) {
	err := stakeMismatch(decimal.RequireFromString("2.5"))
	assert.True(t, errors.Is(err, ErrStakeMismatch))
	assert.Equal(t, "Stake amount must be $2.5", err.Error())
	assert.Equal(t, "stake_mismatch", reasonOf(err))
}
