/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api exposes the merged device state over HTTP for
// out-of-process consumers such as desktop widgets and status bars.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/batteryradar/pkg/devices"
	"github.com/carverauto/batteryradar/pkg/logger"
	"github.com/carverauto/batteryradar/pkg/logwatch"
	"github.com/carverauto/batteryradar/pkg/models"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	shutdownTimeout = 5 * time.Second
)

// StatusProvider reports the watcher state for /api/status.
type StatusProvider interface {
	Status(ctx context.Context) logwatch.Status
}

// Server is the HTTP surface over the device store. It implements
// devices.Consumer, so registering it on the store is what turns merges
// into stream pushes.
type Server struct {
	addr   string
	store  *devices.Store
	status StatusProvider
	router *mux.Router
	logger logger.Logger

	httpServer *http.Server
	done       chan struct{}
	closeOnce  sync.Once

	mu          sync.RWMutex
	boundAddr   string
	snapshot    models.Snapshot
	hasSnapshot bool

	subMu       sync.Mutex
	subscribers map[string]chan models.Snapshot
}

// NewServer creates an API server bound to addr.
func NewServer(addr string, store *devices.Store, status StatusProvider, log logger.Logger) *Server {
	s := &Server{
		addr:        addr,
		store:       store,
		status:      status,
		router:      mux.NewRouter(),
		logger:      log,
		done:        make(chan struct{}),
		subscribers: make(map[string]chan models.Snapshot),
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures the HTTP routes for the API server.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/devices", s.handleDevices).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/stream", s.handleStream).Methods("GET")
}

// Start implements the lifecycle.Service interface. The listener is
// opened synchronously so a bad address fails startup instead of
// surfacing later in a goroutine.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	go func() {
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error().Err(serveErr).Msg("API server terminated unexpectedly")
		}
	}()

	s.logger.Info().Str("listen_addr", s.boundAddr).Msg("API server listening")

	return nil
}

// Stop implements the lifecycle.Service interface.
func (s *Server) Stop(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}

	s.logger.Info().Msg("API server stopped")

	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.boundAddr
}

// HandleSnapshot implements devices.Consumer. It caches the snapshot and
// fans it out to stream subscribers without ever blocking the merge
// path: a lagging subscriber loses intermediate snapshots, and since
// every snapshot is the full state, the next push catches it up.
func (s *Server) HandleSnapshot(snapshot models.Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.hasSnapshot = true
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}

		// Channel full: evict the oldest queued snapshot so the newest
		// state wins.
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- snapshot:
		default:
			s.logger.Debug().Str("subscriber_id", id).Msg("Subscriber lagging, snapshot dropped")
		}
	}
}

func (s *Server) latestSnapshot() models.Snapshot {
	s.mu.RLock()
	snapshot, ok := s.snapshot, s.hasSnapshot
	s.mu.RUnlock()

	if !ok {
		return s.store.Snapshot()
	}

	return snapshot
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.latestSnapshot())
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	logwatch.Status
	DeviceCount        int     `json:"device_count"`
	SnapshotAgeSeconds float64 `json:"snapshot_age_seconds,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.latestSnapshot()

	resp := StatusResponse{
		Status:      s.status.Status(r.Context()),
		DeviceCount: len(snapshot.Devices),
	}

	if !snapshot.UpdatedAt.IsZero() {
		resp.SnapshotAgeSeconds = time.Since(snapshot.UpdatedAt).Seconds()
	}

	s.writeJSON(w, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode API response")
	}
}
