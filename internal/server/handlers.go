package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// handleHealth reports liveness. Both databases must answer a ping;
// deeper integrity checks live under /api/system/databases.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	response := map[string]string{
		"status":  "healthy",
		"version": Version,
		"service": "rebalancer",
	}

	for _, db := range s.databases() {
		if err := db.Conn().PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health ping failed")
			response["status"] = "degraded"
			response[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
