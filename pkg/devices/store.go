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

// Package devices holds the merged device state map.
package devices

import (
	"sync"
	"time"

	"github.com/carverauto/batteryradar/pkg/logger"
	"github.com/carverauto/batteryradar/pkg/models"
)

// Store is the merge-only device state map, keyed by device handle.
// Devices are only ever added or updated; a handle that disappears from
// later records keeps its last known state until the process exits.
type Store struct {
	mu      sync.RWMutex
	records map[string]models.DeviceRecord
	order   []string

	lastRecordTimestamp string
	updatedAt           time.Time

	selected  string
	consumers []Consumer
	logger    logger.Logger

	now func() time.Time
}

// NewStore creates an empty store. selected is the handle of the
// device the UI currently shows; when empty, every record is marked
// selected.
func NewStore(selected string, log logger.Logger, consumers ...Consumer) *Store {
	return &Store{
		records:   make(map[string]models.DeviceRecord),
		selected:  selected,
		consumers: consumers,
		logger:    log,
		now:       time.Now,
	}
}

// Subscribe registers an additional consumer. Merges that are already
// in flight may complete without seeing it.
func (s *Store) Subscribe(c Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consumers = append(s.consumers, c)
}

// Merge folds one scanned record batch into the map and pushes the
// resulting snapshot to every consumer. Entries without a battery or
// without a usable handle are dropped; surviving entries replace their
// previous record wholesale. A batch with no survivors leaves the map
// untouched but still notifies, so consumers always see the state that
// corresponds to the newest accepted record.
func (s *Store) Merge(timestamp string, batch []models.RawDevice) {
	s.mu.Lock()

	now := s.now()
	merged := 0
	dropped := 0

	for i := range batch {
		raw := &batch[i]

		if !raw.HasBattery {
			continue
		}

		handle, ok := raw.Handle()
		if !ok {
			dropped++
			continue
		}

		if _, exists := s.records[handle]; !exists {
			s.order = append(s.order, handle)
		}

		s.records[handle] = models.DeviceRecord{
			Handle:            handle,
			DisplayName:       raw.DisplayName(),
			IsConnected:       true,
			BatteryPercentage: raw.BatteryPercent(),
			IsCharging:        raw.Charging(),
			IsSelected:        s.isSelected(handle),
			UpdatedAt:         now,
		}

		merged++
	}

	s.lastRecordTimestamp = timestamp
	s.updatedAt = now
	snapshot := s.snapshotLocked()
	consumers := s.consumers

	s.mu.Unlock()

	s.logger.Debug().
		Str("record_timestamp", timestamp).
		Int("merged", merged).
		Int("dropped", dropped).
		Int("known_devices", len(snapshot.Devices)).
		Msg("Merged device record")

	for _, c := range consumers {
		c.HandleSnapshot(snapshot)
	}
}

func (s *Store) isSelected(handle string) bool {
	return s.selected == "" || s.selected == handle
}

// Snapshot returns a copy of the current state. Mutating the result
// does not affect the store.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Count returns the number of known devices.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func (s *Store) snapshotLocked() models.Snapshot {
	records := make([]models.DeviceRecord, 0, len(s.order))
	for _, handle := range s.order {
		records = append(records, s.records[handle])
	}

	return models.Snapshot{
		Devices:             records,
		LastRecordTimestamp: s.lastRecordTimestamp,
		UpdatedAt:           s.updatedAt,
	}
}
