package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/sentinel/pkg/events"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/metrics"
	"github.com/cuemby/sentinel/pkg/storage"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/rs/zerolog"
)

// OperationReader serves the operation history
type OperationReader interface {
	GetOperation(id uint64) (*types.Operation, error)
	ListOperations(q storage.OperationQuery) (*storage.OperationPage, error)
}

// EventSource hands out event subscriptions
type EventSource interface {
	Subscribe() events.Subscriber
	Unsubscribe(sub events.Subscriber)
}

// Server exposes the operator HTTP API
type Server struct {
	operations OperationReader
	queue      metrics.QueueStatsSource
	events     EventSource
	mux        *http.ServeMux
	http       *http.Server
	logger     zerolog.Logger
}

// NewServer creates a new API server. events may be nil, which disables the event stream.
func NewServer(operations OperationReader, queue metrics.QueueStatsSource, eventSource EventSource) *Server {
	mux := http.NewServeMux()
	s := &Server{
		operations: operations,
		queue:      queue,
		events:     eventSource,
		mux:        mux,
		logger:     log.WithComponent("api"),
	}
	s.http = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Register endpoints
	mux.HandleFunc("GET /api/v1/operations", s.listOperations)
	mux.HandleFunc("GET /api/v1/operations/{id}", s.getOperation)
	mux.HandleFunc("GET /api/v1/queue", s.queueStats)
	mux.HandleFunc("GET /api/v1/events", s.streamEvents)
	mux.Handle("GET /health", metrics.HealthHandler())
	mux.Handle("GET /ready", metrics.ReadyHandler())
	mux.Handle("GET /live", metrics.LivenessHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return instrument(s.mux)
}

// Start listens on addr and serves until Shutdown
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentAPI, false, err.Error())
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Shutdown
func (s *Server) Serve(lis net.Listener) error {
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("address", lis.Addr().String()).Msg("HTTP API listening")

	if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.UpdateComponent(metrics.ComponentAPI, false, err.Error())
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	return s.http.Shutdown(ctx)
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listOperations(w http.ResponseWriter, r *http.Request) {
	query := storage.OperationQuery{
		ApplianceID: r.URL.Query().Get("applianceId"),
	}

	var err error
	if query.Page, err = intParam(r, "page", 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Size, err = intParam(r, "size", storage.DefaultPageSize); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query, err = query.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.operations.ListOperations(query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list operations")
		writeError(w, http.StatusInternalServerError, "failed to list operations")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getOperation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid operation id %q", r.PathValue("id")))
		return
	}

	op, err := s.operations.GetOperation(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Uint64("id", id).Msg("Failed to get operation")
		writeError(w, http.StatusInternalServerError, "failed to get operation")
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Stats())
}

// streamEvents writes one JSON event per line until the client goes away
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
