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

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carverauto/batteryradar/pkg/models"
)

const (
	pingInterval = 30 * time.Second

	// subscriberBuffer absorbs short bursts of merges per client before
	// the fan-out starts replacing queued snapshots with newer ones.
	subscriberBuffer = 8
)

// upgrader handles WebSocket protocol upgrades. The server binds to
// loopback for local widgets, so cross-origin browser clients are
// allowed through.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// StreamMessage is a message sent over the WebSocket stream.
type StreamMessage struct {
	Type      string           `json:"type"`
	Snapshot  *models.Snapshot `json:"snapshot,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// handleStream upgrades the connection and pushes a full snapshot after
// every merge, starting with the current state so clients never render
// empty while waiting for the next poll cycle.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade stream connection")
		return
	}

	subscriberID := uuid.New().String()
	updates := s.addSubscriber(subscriberID)

	defer func() {
		s.removeSubscriber(subscriberID)

		if closeErr := conn.Close(); closeErr != nil {
			s.logger.Debug().Err(closeErr).Msg("Error closing stream connection")
		}
	}()

	s.logger.Debug().
		Str("subscriber_id", subscriberID).
		Str("remote_addr", r.RemoteAddr).
		Msg("Stream client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends application data; reading is how we notice
	// it went away.
	go func() {
		defer cancel()

		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	if !s.sendSnapshotMessage(conn, subscriberID, s.latestSnapshot()) {
		return
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("subscriber_id", subscriberID).Msg("Stream client disconnected")
			return
		case <-s.done:
			return
		case snapshot := <-updates:
			if !s.sendSnapshotMessage(conn, subscriberID, snapshot) {
				return
			}
		case <-pingTicker.C:
			if !s.sendPingMessage(conn, subscriberID) {
				return
			}
		}
	}
}

func (s *Server) sendSnapshotMessage(conn *websocket.Conn, subscriberID string, snapshot models.Snapshot) bool {
	msg := StreamMessage{
		Type:      "snapshot",
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	}

	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug().
			Err(err).
			Str("subscriber_id", subscriberID).
			Msg("Failed to write snapshot to stream")

		return false
	}

	return true
}

func (s *Server) sendPingMessage(conn *websocket.Conn, subscriberID string) bool {
	msg := StreamMessage{
		Type:      "ping",
		Timestamp: time.Now(),
	}

	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug().
			Err(err).
			Str("subscriber_id", subscriberID).
			Msg("Failed to write ping to stream")

		return false
	}

	return true
}

func (s *Server) addSubscriber(id string) chan models.Snapshot {
	ch := make(chan models.Snapshot, subscriberBuffer)

	s.subMu.Lock()
	s.subscribers[id] = ch
	s.subMu.Unlock()

	return ch
}

func (s *Server) removeSubscriber(id string) {
	s.subMu.Lock()
	delete(s.subscribers, id)
	s.subMu.Unlock()
}
