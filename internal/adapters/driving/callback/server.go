// Package callback exposes the inbound HTTP endpoint the conversion
// worker posts results to.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-pipeline/internal/core/domain"
	"github.com/custodia-labs/sercha-pipeline/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-pipeline/internal/logger"
)

const maxPayloadBytes = 64 << 20 // conversion results carry full text plus vectors

// Server receives conversion callbacks and hands them to the handler.
type Server struct {
	mu       sync.Mutex
	addr     string
	handler  driving.CallbackHandler
	server   *http.Server
	listener net.Listener
}

// NewServer creates a callback server listening on addr.
func NewServer(addr string, handler driving.CallbackHandler) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
	}
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/internal/callback", s.handleCallback)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("callback server: %v", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the callback URL as the worker should see it.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s/internal/callback", s.Addr())
}

// Stop shuts down the server, draining in-flight callbacks.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload domain.CallbackPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	if err := s.handler.HandleCallback(r.Context(), payload); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown document")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error("callback for document %s: %v", payload.DocumentID, err)
			writeError(w, http.StatusInternalServerError, "callback processing failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
