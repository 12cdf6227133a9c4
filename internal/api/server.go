// Package api serves the most recent stability report over HTTP.
// GET-only, read-only observation; disabled unless a port is configured.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/talgya/phasehull/internal/report"
)

// Server exposes the latest report.
type Server struct {
	Port int

	mu     sync.RWMutex
	latest *report.Report
}

// Publish replaces the served report.
func (s *Server) Publish(r report.Report) {
	s.mu.Lock()
	s.latest = &r
	s.mu.Unlock()
}

// Start begins serving in a goroutine. No-op when Port is 0.
func (s *Server) Start() {
	if s.Port == 0 {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/results", s.handleResults)

	addr := fmt.Sprintf(":%d", s.Port)
	go func() {
		slog.Info("results API listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("API server stopped", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]any{"ready": s.latest != nil}
	if s.latest != nil {
		status["run_id"] = s.latest.RunID
		status["target"] = s.latest.Target
		status["generated_at"] = s.latest.GeneratedAt
		status["conditions"] = len(s.latest.Conditions)
	}
	writeJSON(w, status)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		http.Error(w, "no report yet", http.StatusNotFound)
		return
	}
	writeJSON(w, s.latest)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
