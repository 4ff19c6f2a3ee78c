package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "capitol",
	}

	writeJSON(w, s.log, http.StatusOK, response)
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, s.log, status, data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, s.log, status, map[string]interface{}{
		"error": message,
	})
}

// writeEnvelope wraps data in the standard {data, metadata} envelope.
func writeEnvelope(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	writeJSON(w, log, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
