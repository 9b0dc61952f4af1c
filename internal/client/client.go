// internal/client/client.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Subprotocol is offered on every dial.
const Subprotocol = "rivals"

const (
	defaultDialTimeout = 5 * time.Second
	writeTimeout       = 5 * time.Second
	eventBuffer        = 64
)

var (
	ErrNotConnected   = errors.New("not connected to server")
	ErrConnectionLost = errors.New("connection lost")
	ErrClosed         = errors.New("client closed")
)

// Player-facing text recorded in Snapshot.Error.
const (
	MsgNotConnected   = "Not connected to server"
	MsgConnectionLost = "Connection lost. Please refresh the page."
)

// State is the room lifecycle as seen by one player.
type State string

const (
	StateIdle        State = "idle"
	StateWaiting     State = "waiting"
	StateHandshaking State = "handshaking"
	StateAccepted    State = "accepted"
	StateTournament  State = "tournament"
	StateError       State = "error"
)

// EventType tags entries on the Events channel.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventMessage        EventType = "message"
	EventConnectionLost EventType = "connection_lost"
	EventClosed         EventType = "closed"
)

// Event reports a connection change or an inbound message, together with
// the state after it was applied.
type Event struct {
	Type    EventType
	Message models.Message
	State   State
	Err     error
}

// RoomInfo is what a prospective guest learns from GET_ROOM_INFO.
type RoomInfo struct {
	RoomID        string
	RequiredStake decimal.Decimal
	BetType       models.BetDirection
	HostData      *models.RoomData
}

// Snapshot is a copy of the client's observable state.
type Snapshot struct {
	Connected bool
	State     State
	RoomID    string
	Error     string
	RoomInfo  *RoomInfo
	HostData  *models.RoomData
	GuestData *models.RoomData
	Attempts  int
}

// RoomClient holds one websocket to the room server and reconnects on
// abnormal closure.
type RoomClient struct {
	url         string
	backoff     Backoff
	dialTimeout time.Duration
	logger      *logrus.Entry
	events      chan Event

	mu         sync.Mutex
	gen        uint64
	conn       *websocket.Conn
	cancelRead context.CancelFunc
	timer      *time.Timer
	attempts   int

	state     State
	roomID    string
	lastErr   string
	roomInfo  *RoomInfo
	hostData  *models.RoomData
	guestData *models.RoomData
}

type Option func(*RoomClient)

func WithBackoff(b Backoff) Option { return func(c *RoomClient) { c.backoff = b } }

func WithDialTimeout(d time.Duration) Option { return func(c *RoomClient) { c.dialTimeout = d } }

func WithLogger(l *logrus.Entry) Option { return func(c *RoomClient) { c.logger = l } }

// NewRoomClient returns an idle client for the websocket endpoint at url.
// Nothing is dialled until Connect.
func NewRoomClient(url string, opts ...Option) *RoomClient {
	c := &RoomClient{
		url:         url,
		backoff:     DefaultBackoff,
		dialTimeout: defaultDialTimeout,
		logger:      logrus.NewEntry(logrus.StandardLogger()),
		events:      make(chan Event, eventBuffer),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "room_client")
	return c
}

// Events delivers connection changes and inbound messages. Slow consumers
// lose events rather than stall the read loop; Snapshot is always current.
func (c *RoomClient) Events() <-chan Event { return c.events }

func (c *RoomClient) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Connected: c.conn != nil,
		State:     c.state,
		RoomID:    c.roomID,
		Error:     c.lastErr,
		RoomInfo:  c.roomInfo,
		HostData:  c.hostData,
		GuestData: c.guestData,
		Attempts:  c.attempts,
	}
}

// Connect dials the server. A failed dial is retried in the background the
// same way a dropped connection is.
func (c *RoomClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()
	return c.dial(ctx, gen)
}

// Close ends the session with a normal closure. Pending reconnects are
// cancelled and the state returns to idle.
func (c *RoomClient) Close() error {
	c.mu.Lock()
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn, cancel := c.conn, c.cancelRead
	c.conn, c.cancelRead = nil, nil
	c.attempts = 0
	c.state = StateIdle
	c.roomID = ""
	c.lastErr = ""
	c.roomInfo = nil
	c.hostData, c.guestData = nil, nil
	c.emitLocked(Event{Type: EventClosed})
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.logger.Info("disconnecting")
		err = conn.Close(websocket.StatusNormalClosure, "User initiated disconnect")
	}
	if cancel != nil {
		cancel()
	}
	return err
}

func (c *RoomClient) CreateRoom(ctx context.Context, data *models.RoomData) error {
	return c.send(ctx, models.Message{Type: models.MsgCreateRoom, HostData: data})
}

func (c *RoomClient) GetRoomInfo(ctx context.Context, roomID string) error {
	return c.send(ctx, models.Message{Type: models.MsgGetRoomInfo, RoomID: roomID})
}

func (c *RoomClient) JoinRoom(ctx context.Context, roomID string, data *models.RoomData) error {
	return c.send(ctx, models.Message{Type: models.MsgJoinRoom, RoomID: roomID, GuestData: data})
}

func (c *RoomClient) AcceptHandshake(ctx context.Context, roomID string) error {
	return c.send(ctx, models.Message{Type: models.MsgHandshakeAccept, RoomID: roomID})
}

// RejectHandshake turns the guest away; an empty reason lets the server pick one.
func (c *RoomClient) RejectHandshake(ctx context.Context, roomID, reason string) error {
	return c.send(ctx, models.Message{Type: models.MsgHandshakeReject, RoomID: roomID, Reason: reason})
}

func (c *RoomClient) SetPlayerReady(ctx context.Context, roomID string) error {
	return c.send(ctx, models.Message{Type: models.MsgPlayerReady, RoomID: roomID})
}

func (c *RoomClient) send(ctx context.Context, msg models.Message) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.lastErr = MsgNotConnected
		c.mu.Unlock()
		c.logger.Errorf("cannot send %s: not connected", msg.Type)
		return ErrNotConnected
	}
	c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	c.logger.Debugf("sent %s", msg.Type)
	return nil
}

func (c *RoomClient) dial(ctx context.Context, gen uint64) error {
	dctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, c.url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "superseded")
		}
		return ErrClosed
	}
	if err != nil {
		c.logger.Warnf("dial %s failed: %v", c.url, err)
		c.scheduleReconnectLocked()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.gen++
	c.conn = conn
	c.attempts = 0
	c.lastErr = ""
	rctx, rcancel := context.WithCancel(context.Background())
	c.cancelRead = rcancel
	go c.readLoop(rctx, conn, c.gen)

	c.logger.Infof("connected to %s", c.url)
	c.emitLocked(Event{Type: EventConnected})
	return nil
}

// scheduleReconnectLocked arms the next attempt, or gives up once the
// attempt budget is spent.
func (c *RoomClient) scheduleReconnectLocked() {
	if c.attempts >= c.backoff.MaxAttempts {
		c.logger.Error("max reconnection attempts reached")
		c.lastErr = MsgConnectionLost
		c.state = StateError
		c.emitLocked(Event{Type: EventConnectionLost, Err: ErrConnectionLost})
		return
	}
	delay := c.backoff.Delay(c.attempts)
	gen := c.gen
	c.logger.Infof("reconnecting in %s (attempt %d/%d)", delay, c.attempts+1, c.backoff.MaxAttempts)
	c.timer = time.AfterFunc(delay, func() { c.reconnect(gen) })
}

func (c *RoomClient) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.attempts++
	c.mu.Unlock()
	_ = c.dial(context.Background(), gen)
}

func (c *RoomClient) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.connectionClosed(gen, err)
			return
		}
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Errorf("error parsing message: %v", err)
			continue
		}
		c.handle(gen, msg)
	}
}

func (c *RoomClient) connectionClosed(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.cancelRead != nil {
		c.cancelRead()
		c.cancelRead = nil
	}
	c.conn = nil

	status := websocket.CloseStatus(err)
	c.logger.Infof("connection closed: %d: %v", status, err)
	c.emitLocked(Event{Type: EventDisconnected, Err: err})
	if status == websocket.StatusNormalClosure {
		return
	}
	c.scheduleReconnectLocked()
}

// handle applies one server message to the local state machine.
func (c *RoomClient) handle(gen uint64, msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	log := c.logger.WithField("room", msg.RoomID)

	switch msg.Type {
	case models.MsgRoomCreated:
		c.roomID = msg.RoomID
		c.hostData = msg.HostData
		c.state = StateWaiting
		c.lastErr = ""
	case models.MsgRoomInfoSuccess:
		if msg.RoomID != "" && msg.RequiredStake != nil && msg.BetType != "" && msg.HostData != nil {
			c.roomInfo = &RoomInfo{
				RoomID:        msg.RoomID,
				RequiredStake: *msg.RequiredStake,
				BetType:       msg.BetType,
				HostData:      msg.HostData,
			}
		}
		c.lastErr = ""
	case models.MsgRoomInfoFailed:
		c.lastErr = orDefault(msg.Error, "Failed to get room info")
		c.roomInfo = nil
	case models.MsgRoomCreationFailed:
		c.lastErr = orDefault(msg.Error, "Failed to create room")
		c.state = StateError
	case models.MsgJoinRoomSuccess:
		c.roomID = msg.RoomID
		c.hostData = msg.HostData
		c.state = StateHandshaking
		c.lastErr = ""
	case models.MsgJoinRoomFailed:
		c.lastErr = orDefault(msg.Error, "Failed to join room")
		c.state = StateError
	case models.MsgGuestJoined, models.MsgHandshakeRequest:
		c.guestData = msg.GuestData
		c.state = StateHandshaking
	case models.MsgHandshakeAccepted, models.MsgHandshakeComplete:
		c.state = StateAccepted
	case models.MsgHandshakeRejected:
		c.lastErr = orDefault(msg.Reason, "Handshake was rejected")
		c.state = StateError
	case models.MsgTournamentStart:
		if msg.HostData != nil {
			c.hostData = msg.HostData
		}
		if msg.GuestData != nil {
			c.guestData = msg.GuestData
		}
		c.state = StateTournament
	case models.MsgHostDisconnected:
		c.lastErr = "Host disconnected from the room"
		c.state = StateError
	case models.MsgGuestDisconnected:
		c.lastErr = "Guest disconnected from the room"
		c.state = StateError
	case models.MsgRoomExpired:
		c.lastErr = "Room expired"
		c.state = StateError
	case models.MsgError:
		c.lastErr = msg.Error
	default:
		log.Warnf("unknown message type: %s", msg.Type)
	}
	log.Debugf("received %s, state %s", msg.Type, c.state)
	c.emitLocked(Event{Type: EventMessage, Message: msg})
}

func (c *RoomClient) emitLocked(ev Event) {
	ev.State = c.state
	select {
	case c.events <- ev:
	default:
		c.logger.Warnf("event buffer full, dropping %s", ev.Type)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
