// internal/database/room_events_test.go
package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	ev := models.NewRoomEvent("R1", models.EventRoomCreated, uuid.New(), map[string]interface{}{"stake": "12.5", "bet": "SHORT"})
	sum, ok := summarize(ev)
	require.True(t, ok)
	assert.Equal(t, "waiting", sum.Status)
	require.NotNil(t, sum.Stake)
	assert.Equal(t, "12.5", *sum.Stake)
	assert.Equal(t, "SHORT", *sum.Bet)
	assert.Nil(t, sum.Winner)
	assert.Nil(t, sum.closedAt(time.Now()))

	sum, ok = summarize(models.NewRoomEvent("R1", models.EventRoomExpired, uuid.Nil, nil))
	require.True(t, ok)
	assert.Equal(t, "expired", sum.Status)
	assert.NotNil(t, sum.closedAt(time.Now()))

	sum, ok = summarize(models.NewRoomEvent("R1", models.EventTournamentResult, uuid.Nil, map[string]interface{}{"winner": "guest"}))
	require.True(t, ok)
	assert.Equal(t, "completed", sum.Status)
	assert.Equal(t, "guest", *sum.Winner)

	_, ok = summarize(models.NewRoomEvent("R1", models.EventSettlement, uuid.Nil, nil))
	assert.False(t, ok)
}

// Requires a live Postgres reachable via DATABASE_URL.
func TestInsertBatchRoundTrip(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, EnsureSchema(ctx, pool))

	roomID := "T" + uuid.NewString()[:7]
	host := uuid.New()
	events := []models.RoomEvent{
		models.NewRoomEvent(roomID, models.EventRoomCreated, host, map[string]interface{}{"stake": "5", "bet": "LONG"}),
		models.NewRoomEvent(roomID, models.EventGuestJoined, uuid.New(), nil),
		models.NewRoomEvent(roomID, models.EventHostDisconnected, host, nil),
	}
	store := NewEventStore(pool)
	require.NoError(t, store.InsertBatch(ctx, events))
	// Replays are idempotent.
	require.NoError(t, store.InsertBatch(ctx, events))

	var status, bet string
	var closed *time.Time
	err = pool.QueryRow(ctx, `SELECT status, bet_type, closed_at FROM rooms WHERE id = $1`, roomID).Scan(&status, &bet, &closed)
	require.NoError(t, err)
	assert.Equal(t, "closed", status)
	assert.Equal(t, "LONG", bet)
	assert.NotNil(t, closed)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM room_events WHERE room_id = $1`, roomID).Scan(&n))
	assert.Equal(t, 3, n)

	_, _ = pool.Exec(ctx, `DELETE FROM room_events WHERE room_id = $1`, roomID)
	_, _ = pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID)
}
