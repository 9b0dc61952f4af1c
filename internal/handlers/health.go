// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatsSource reports live room and connection counts.
type StatsSource interface {
	Stats() (rooms, conns int)
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status        string `json:"status"`
	ActiveRooms   int    `json:"activeRooms"`
	ActiveClients int    `json:"activeClients"`
	Timestamp     string `json:"timestamp"`
}

// HealthHandler serves GET /health.
func HealthHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, conns := src.Stats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status:        "healthy",
			ActiveRooms:   rooms,
			ActiveClients: conns,
			Timestamp:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
}
