// internal/room/connection.go
package room

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

// outBuffer bounds the per-connection send queue.
const outBuffer = 32

// Connection is a single live socket. RoomID and IsHost are owned by the
// Registry and only change under its lock.
type Connection struct {
	ID      uuid.UUID
	Remote  string
	OutChan chan models.Message

	RoomID string
	IsHost bool

	logger *logrus.Entry
}

// NewConnection builds a detached connection with a fresh id.
func NewConnection(remote string, logger *logrus.Entry) *Connection {
	id := uuid.New()
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Connection{
		ID:      id,
		Remote:  remote,
		OutChan: make(chan models.Message, outBuffer),
		logger:  logger.WithField("conn", id),
	}
}

// Write queues msg without blocking. A full queue drops the message.
func (c *Connection) Write(msg models.Message) {
	select {
	case c.OutChan <- msg:
	default:
		c.logger.WithField("type", msg.Type).Warn("outbound queue full, dropped message")
	}
}

// WriteError sends an ERROR frame.
func (c *Connection) WriteError(text string) {
	c.Write(models.Message{Type: models.MsgError, Error: text})
}

func (c *Connection) detach() {
	c.RoomID = ""
	c.IsHost = false
}
