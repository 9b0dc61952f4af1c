// internal/room/registry.go
package room

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = time.Minute
	defaultRejectReason  = "Host rejected the connection"
	eventBuffer          = 256
)

// Observer receives registry activity for metrics. All methods must be cheap
// and non-blocking; they are called with the registry lock held.
type Observer interface {
	MessageHandled(t models.MessageType)
	Failure(reason string)
	TournamentStarted()
	RoomsSwept(n int)
	SetActive(rooms, conns int)
}

// EventSink persists room lifecycle events. Publish runs outside the registry lock.
type EventSink interface {
	Publish(ctx context.Context, ev models.RoomEvent) error
}

type noopObserver struct{}

func (noopObserver) MessageHandled(models.MessageType) {}
func (noopObserver) Failure(string)                    {}
func (noopObserver) TournamentStarted()                {}
func (noopObserver) RoomsSwept(int)                    {}
func (noopObserver) SetActive(int, int)                {}

// Registry owns every live room and connection. A single mutex serialises
// all room mutation; replies are queued on connection channels and never
// block the lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	conns map[uuid.UUID]*Connection

	logger        *logrus.Entry
	observer      Observer
	sink          EventSink
	events        chan models.RoomEvent
	ttl           time.Duration
	sweepInterval time.Duration
	newCode       func() (string, error)
	now           func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l *logrus.Entry) Option { return func(r *Registry) { r.logger = l } }

func WithObserver(o Observer) Option { return func(r *Registry) { r.observer = o } }

// WithEventSink enables the lifecycle event stream, drained by Run.
func WithEventSink(s EventSink) Option { return func(r *Registry) { r.sink = s } }

// WithTTL sets how long a room may wait for a guest. Zero disables expiry.
func WithTTL(d time.Duration) Option { return func(r *Registry) { r.ttl = d } }

func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// WithCodeGenerator replaces the random room code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newCode = gen }
}

func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:         make(map[string]*Room),
		conns:         make(map[uuid.UUID]*Connection),
		logger:        logrus.NewEntry(logrus.StandardLogger()),
		observer:      noopObserver{},
		events:        make(chan models.RoomEvent, eventBuffer),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		newCode:       GenerateRoomCode,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateRoomCode returns 8 upper-case hex characters from 4 random bytes.
func GenerateRoomCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// Connect registers a new socket.
func (r *Registry) Connect(remote string) *Connection {
	conn := NewConnection(remote, r.logger)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	r.updateActiveLocked()
	conn.logger.WithField("remote", remote).Debug("connection registered")
	return conn
}

// Disconnect removes a socket. A departing host destroys the room and orphans
// the guest; a departing guest only frees the guest slot.
func (r *Registry) Disconnect(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn.ID)
	defer r.updateActiveLocked()

	if conn.RoomID == "" {
		return
	}
	rm, ok := r.rooms[conn.RoomID]
	if !ok {
		return
	}
	log := r.logger.WithFields(logrus.Fields{"room": rm.ID, "conn": conn.ID})

	switch {
	case conn.IsHost && rm.Host == conn:
		if rm.Guest != nil {
			rm.Guest.Write(models.Message{Type: models.MsgHostDisconnected, RoomID: rm.ID})
			rm.Guest.detach()
		}
		delete(r.rooms, rm.ID)
		r.emitLocked(models.NewRoomEvent(rm.ID, models.EventHostDisconnected, conn.ID, nil))
		log.Info("host disconnected, room closed")
	case !conn.IsHost && rm.Guest == conn:
		rm.clearGuest()
		rm.Host.Write(models.Message{Type: models.MsgGuestDisconnected, RoomID: rm.ID})
		r.emitLocked(models.NewRoomEvent(rm.ID, models.EventGuestDisconnected, conn.ID, nil))
		log.Info("guest disconnected, room reopened")
	}
	conn.detach()
}

// CreateRoom opens a room hosted by conn.
func (r *Registry) CreateRoom(conn *Connection, hostData *models.RoomData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fail := func(err error) error {
		r.failLocked(conn, models.MsgRoomCreationFailed, err)
		return err
	}

	if conn.RoomID != "" {
		return fail(ErrAlreadyInRoom)
	}
	if err := hostData.Validate(); err != nil {
		return fail(invalidPayload(err))
	}
	code, err := r.newCode()
	if err != nil {
		return fail(fmt.Errorf("generate room code: %w", err))
	}
	if _, exists := r.rooms[code]; exists {
		r.logger.WithField("room", code).Warn("room id collision")
		return fail(ErrRoomCollision)
	}

	rm := &Room{
		ID:            code,
		Host:          conn,
		HostData:      hostData,
		Status:        StatusWaiting,
		RequiredStake: hostData.Stake,
		BetType:       hostData.Bet,
		CreatedAt:     r.now(),
	}
	r.rooms[code] = rm
	conn.RoomID = code
	conn.IsHost = true
	r.updateActiveLocked()

	conn.Write(models.Message{Type: models.MsgRoomCreated, RoomID: code, HostData: hostData})
	r.emitLocked(models.NewRoomEvent(code, models.EventRoomCreated, conn.ID, map[string]interface{}{
		"stake": hostData.Stake.String(),
		"bet":   string(hostData.Bet),
	}))
	r.logger.WithFields(logrus.Fields{"room": code, "conn": conn.ID}).Info("room created")
	return nil
}

// GetRoomInfo answers a read-only lookup of a joinable room.
func (r *Registry) GetRoomInfo(conn *Connection, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[normalizeCode(roomID)]
	switch {
	case !ok:
		r.failLocked(conn, models.MsgRoomInfoFailed, ErrRoomNotFound)
		return ErrRoomNotFound
	case rm.full():
		r.failLocked(conn, models.MsgRoomInfoFailed, ErrRoomFull)
		return ErrRoomFull
	}

	stake := rm.RequiredStake
	conn.Write(models.Message{
		Type:          models.MsgRoomInfoSuccess,
		RoomID:        rm.ID,
		RequiredStake: &stake,
		BetType:       rm.BetType,
		HostData:      rm.HostData,
	})
	return nil
}

// JoinRoom seats conn as guest when the stake and bet match exactly.
// On any failure the room is left untouched.
func (r *Registry) JoinRoom(conn *Connection, roomID string, guestData *models.RoomData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fail := func(err error) error {
		r.failLocked(conn, models.MsgJoinRoomFailed, err)
		return err
	}

	rm, ok := r.rooms[normalizeCode(roomID)]
	switch {
	case !ok:
		return fail(ErrRoomNotFound)
	case rm.full():
		return fail(ErrRoomFull)
	case conn.RoomID != "":
		return fail(ErrAlreadyInRoom)
	}
	if err := guestData.Validate(); err != nil {
		return fail(invalidPayload(err))
	}
	if !guestData.Stake.Equal(rm.RequiredStake) {
		return fail(stakeMismatch(rm.RequiredStake))
	}
	if guestData.Bet != rm.BetType {
		return fail(betMismatch(rm.BetType))
	}

	rm.Guest = conn
	rm.GuestData = guestData
	rm.Status = StatusHandshaking
	conn.RoomID = rm.ID
	conn.IsHost = false

	conn.Write(models.Message{Type: models.MsgJoinRoomSuccess, RoomID: rm.ID, HostData: rm.HostData})
	rm.Host.Write(models.Message{Type: models.MsgGuestJoined, RoomID: rm.ID, GuestData: guestData})
	rm.Host.Write(models.Message{Type: models.MsgHandshakeRequest, RoomID: rm.ID, GuestData: guestData})

	r.emitLocked(models.NewRoomEvent(rm.ID, models.EventGuestJoined, conn.ID, nil))
	r.logger.WithFields(logrus.Fields{"room": rm.ID, "conn": conn.ID}).Info("guest joined, handshake requested")
	return nil
}

// AcceptHandshake confirms the seated guest. Only the host may accept.
func (r *Registry) AcceptHandshake(conn *Connection, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, err := r.pendingHandshakeLocked(conn, roomID)
	if err != nil {
		return err
	}
	rm.Status = StatusAccepted
	rm.Guest.Write(models.Message{Type: models.MsgHandshakeAccepted, RoomID: rm.ID, HostData: rm.HostData})
	conn.Write(models.Message{Type: models.MsgHandshakeComplete, RoomID: rm.ID, GuestData: rm.GuestData})
	r.emitLocked(models.NewRoomEvent(rm.ID, models.EventHandshakeAccepted, conn.ID, nil))
	return nil
}

// RejectHandshake turns the guest away and reopens the room.
func (r *Registry) RejectHandshake(conn *Connection, roomID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, err := r.pendingHandshakeLocked(conn, roomID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = defaultRejectReason
	}
	rm.Guest.Write(models.Message{Type: models.MsgHandshakeRejected, RoomID: rm.ID, Reason: reason})
	rm.clearGuest()
	r.emitLocked(models.NewRoomEvent(rm.ID, models.EventHandshakeRejected, conn.ID, map[string]interface{}{"reason": reason}))
	return nil
}

// SetPlayerReady flags the sender ready. When both players are ready the
// tournament starts, once.
func (r *Registry) SetPlayerReady(conn *Connection, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[normalizeCode(roomID)]
	if !ok {
		r.logger.WithField("room", roomID).Warn("ready for unknown room")
		r.observer.Failure(reasonOf(ErrRoomNotFound))
		return ErrRoomNotFound
	}
	switch {
	case rm.Host == conn:
		rm.HostReady = true
	case rm.Guest == conn:
		rm.GuestReady = true
	default:
		r.logger.WithFields(logrus.Fields{"room": rm.ID, "conn": conn.ID}).Warn("ready from non-member ignored")
		r.observer.Failure(reasonOf(ErrNotMember))
		return ErrNotMember
	}

	// GuestReady is reset whenever the guest slot is cleared.
	if !rm.HostReady || !rm.GuestReady || rm.Status == StatusTournament {
		return nil
	}
	rm.Status = StatusTournament
	start := models.Message{Type: models.MsgTournamentStart, RoomID: rm.ID, HostData: rm.HostData, GuestData: rm.GuestData}
	rm.Host.Write(start)
	rm.Guest.Write(start)
	r.observer.TournamentStarted()
	r.emitLocked(models.NewRoomEvent(rm.ID, models.EventTournamentStarted, conn.ID, map[string]interface{}{
		"stake": rm.RequiredStake.String(),
		"bet":   string(rm.BetType),
	}))
	r.logger.WithField("room", rm.ID).Info("both players ready, tournament started")
	return nil
}

// Stats reports the number of live rooms and connections.
func (r *Registry) Stats() (rooms, conns int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms), len(r.conns)
}

// Room returns a snapshot of a room.
func (r *Registry) Room(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[normalizeCode(id)]
	if !ok {
		return Info{}, false
	}
	return rm.info(), true
}

func (r *Registry) hostRoomLocked(conn *Connection, roomID string) (*Room, error) {
	rm, ok := r.rooms[normalizeCode(roomID)]
	if !ok {
		r.logger.WithField("room", roomID).Warn("handshake for unknown room")
		r.observer.Failure(reasonOf(ErrRoomNotFound))
		return nil, ErrRoomNotFound
	}
	if rm.Host != conn {
		r.logger.WithFields(logrus.Fields{"room": rm.ID, "conn": conn.ID}).Warn("handshake response from non-host ignored")
		r.observer.Failure(reasonOf(ErrNotHost))
		return nil, ErrNotHost
	}
	return rm, nil
}

// pendingHandshakeLocked returns the host's room only while a seated guest
// awaits the host's answer.
func (r *Registry) pendingHandshakeLocked(conn *Connection, roomID string) (*Room, error) {
	rm, err := r.hostRoomLocked(conn, roomID)
	if err != nil {
		return nil, err
	}
	if rm.Guest == nil || rm.Status != StatusHandshaking {
		r.logger.WithFields(logrus.Fields{"room": rm.ID, "status": rm.Status}).Warn("handshake response outside handshake ignored")
		r.observer.Failure(reasonOf(ErrNotHandshaking))
		return nil, ErrNotHandshaking
	}
	return rm, nil
}

func (r *Registry) failLocked(conn *Connection, typ models.MessageType, err error) {
	r.observer.Failure(reasonOf(err))
	r.logger.WithFields(logrus.Fields{"conn": conn.ID, "type": typ}).WithError(err).Info("request failed")
	conn.Write(models.Message{Type: typ, Error: playerText(err)})
}

func (r *Registry) emitLocked(ev models.RoomEvent) {
	if r.sink == nil {
		return
	}
	select {
	case r.events <- ev:
	default:
		r.logger.WithField("room", ev.RoomID).Warn("event buffer full, dropped event")
	}
}

func (r *Registry) updateActiveLocked() {
	r.observer.SetActive(len(r.rooms), len(r.conns))
}

func normalizeCode(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
