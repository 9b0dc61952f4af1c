// internal/room/sweep.go
package room

import (
	"context"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

// Run drives the registry's background work until ctx ends: it reaps rooms
// that waited past the TTL and forwards lifecycle events to the sink.
func (r *Registry) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if r.ttl > 0 {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.drainEvents()
			return
		case <-sweep:
			r.Sweep()
		case ev := <-r.events:
			r.publish(ctx, ev)
		}
	}
}

// Sweep removes rooms still waiting for a guest longer than the TTL. The host
// is told the room expired and is detached. Returns the number of rooms reaped.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	reaped := 0
	for id, rm := range r.rooms {
		if rm.Status != StatusWaiting || rm.Guest != nil || now.Sub(rm.CreatedAt) < r.ttl {
			continue
		}
		rm.Host.Write(models.Message{Type: models.MsgRoomExpired, RoomID: id})
		rm.Host.detach()
		delete(r.rooms, id)
		r.emitLocked(models.NewRoomEvent(id, models.EventRoomExpired, rm.Host.ID, nil))
		reaped++
	}
	if reaped > 0 {
		r.observer.RoomsSwept(reaped)
		r.updateActiveLocked()
		r.logger.WithField("count", reaped).Info("expired idle rooms")
	}
	return reaped
}

func (r *Registry) publish(ctx context.Context, ev models.RoomEvent) {
	if r.sink == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.sink.Publish(pubCtx, ev); err != nil {
		r.logger.WithFields(logrus.Fields{"room": ev.RoomID, "event": ev.Type}).WithError(err).Warn("failed to publish room event")
	}
}

// drainEvents flushes whatever is buffered on shutdown.
func (r *Registry) drainEvents() {
	for {
		select {
		case ev := <-r.events:
			r.publish(context.Background(), ev)
		default:
			return
		}
	}
}
