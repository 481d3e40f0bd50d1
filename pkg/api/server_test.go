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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/batteryradar/pkg/devices"
	"github.com/carverauto/batteryradar/pkg/logger"
	"github.com/carverauto/batteryradar/pkg/logwatch"
	"github.com/carverauto/batteryradar/pkg/models"
)

type fakeStatus struct {
	status logwatch.Status
}

func (f *fakeStatus) Status(_ context.Context) logwatch.Status {
	return f.status
}

func newTestServer(t *testing.T) (*Server, *devices.Store, *fakeStatus) {
	t.Helper()

	log := logger.NewTestLogger()
	store := devices.NewStore("A", log)
	status := &fakeStatus{status: logwatch.Status{State: logwatch.StateWatching}}

	return NewServer("127.0.0.1:0", store, status, log), store, status
}

func rawDevice(serial string, level float64, chargingStatus string) models.RawDevice {
	return models.RawDevice{
		SerialNumber: serial,
		HasBattery:   true,
		PowerStatus:  &models.PowerStatus{Level: level, ChargingStatus: chargingStatus},
		Name:         models.LocalizedString{"en": "Arctis Nova"},
	}
}

func TestHandleDevicesFallsBackToStore(t *testing.T) {
	s, store, _ := newTestServer(t)

	store.Merge("2024-03-01 10:00:00.123", []models.RawDevice{rawDevice("A", 50, "Charging")})

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rr := httptest.NewRecorder()

	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))

	require.Len(t, snapshot.Devices, 1)
	assert.Equal(t, "A", snapshot.Devices[0].Handle)
	assert.Equal(t, 50, snapshot.Devices[0].BatteryPercentage)
	assert.True(t, snapshot.Devices[0].IsCharging)
	assert.Equal(t, "2024-03-01 10:00:00.123", snapshot.LastRecordTimestamp)
}

func TestHandleDevicesServesCachedSnapshot(t *testing.T) {
	s, _, _ := newTestServer(t)

	s.HandleSnapshot(models.Snapshot{
		Devices: []models.DeviceRecord{
			{Handle: "A", DisplayName: "Arctis Nova", IsConnected: true, BatteryPercentage: 60},
		},
		LastRecordTimestamp: "2024-03-01 10:00:10.456",
		UpdatedAt:           time.Now(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	rr := httptest.NewRecorder()

	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))

	require.Len(t, snapshot.Devices, 1)
	assert.Equal(t, 60, snapshot.Devices[0].BatteryPercentage)
	assert.Equal(t, "2024-03-01 10:00:10.456", snapshot.LastRecordTimestamp)
}

func TestHandleStatus(t *testing.T) {
	s, store, status := newTestServer(t)

	status.status = logwatch.Status{
		State:               logwatch.StateWatching,
		LogPath:             "/var/log/steelseries/systray_systrayv2.log",
		LastRecordTimestamp: "2024-03-01 10:00:10.456",
	}

	store.Merge("2024-03-01 10:00:10.456", []models.RawDevice{rawDevice("A", 60, "NoCharge_BatteryFull")})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()

	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "watching", resp["state"])
	assert.Equal(t, "/var/log/steelseries/systray_systrayv2.log", resp["log_path"])
	assert.Equal(t, "2024-03-01 10:00:10.456", resp["last_record_timestamp"])
	assert.InDelta(t, 1, resp["device_count"], 0)
	assert.Greater(t, resp["snapshot_age_seconds"], float64(0))
}

func TestHandleStatusEmptyStore(t *testing.T) {
	s, _, status := newTestServer(t)

	status.status = logwatch.Status{State: logwatch.StateRetryScheduled}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()

	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Equal(t, "retry_scheduled", resp["state"])
	assert.InDelta(t, 0, resp["device_count"], 0)
	assert.NotContains(t, resp, "snapshot_age_seconds")
	assert.NotContains(t, resp, "log_path")
}

func TestRoutesRejectOtherMethods(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader("{}"))
	rr := httptest.NewRecorder()

	s.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestStreamPushesSnapshots(t *testing.T) {
	s, store, _ := newTestServer(t)

	httpServer := httptest.NewServer(s.router)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/stream"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()

		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The connection opens with the current state.
	var initial StreamMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "snapshot", initial.Type)
	require.NotNil(t, initial.Snapshot)
	assert.Empty(t, initial.Snapshot.Devices)

	// A merge reaches the client through the consumer fan-out.
	store.Merge("2024-03-01 10:00:00.123", []models.RawDevice{rawDevice("A", 50, "Charging")})
	s.HandleSnapshot(store.Snapshot())

	var pushed StreamMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "snapshot", pushed.Type)
	require.NotNil(t, pushed.Snapshot)
	require.Len(t, pushed.Snapshot.Devices, 1)
	assert.Equal(t, "A", pushed.Snapshot.Devices[0].Handle)
	assert.Equal(t, 50, pushed.Snapshot.Devices[0].BatteryPercentage)
	assert.Equal(t, "2024-03-01 10:00:00.123", pushed.Snapshot.LastRecordTimestamp)
}

func TestHandleSnapshotKeepsNewestForLaggingSubscriber(t *testing.T) {
	s, _, _ := newTestServer(t)

	updates := s.addSubscriber("lagging")
	defer s.removeSubscriber("lagging")

	total := subscriberBuffer + 3
	for i := 0; i < total; i++ {
		s.HandleSnapshot(models.Snapshot{
			LastRecordTimestamp: fmt.Sprintf("2024-03-01 10:00:%02d.000", i),
			UpdatedAt:           time.Now(),
		})
	}

	// The subscriber never read, so older snapshots were evicted to keep
	// the queue moving. Whatever is queued must end on the newest state.
	var last models.Snapshot

	drained := 0

	for {
		select {
		case snapshot := <-updates:
			last = snapshot
			drained++

			continue
		default:
		}

		break
	}

	require.NotZero(t, drained)
	assert.LessOrEqual(t, drained, subscriberBuffer)
	assert.Equal(t, fmt.Sprintf("2024-03-01 10:00:%02d.000", total-1), last.LastRecordTimestamp)
}

func TestServerStartStop(t *testing.T) {
	s, store, _ := newTestServer(t)

	store.Merge("2024-03-01 10:00:00.123", []models.RawDevice{rawDevice("A", 50, "Charging")})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	addr := s.Addr()
	require.NotEmpty(t, addr)
	require.NotEqual(t, "127.0.0.1:0", addr, "listener should report the real port")

	resp, err := http.Get("http://" + addr + "/api/devices")
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(ctx))

	_, err = http.Get("http://" + addr + "/api/devices") //nolint:bodyclose // request must fail
	require.Error(t, err)
}

func TestServerStartBadAddress(t *testing.T) {
	log := logger.NewTestLogger()
	store := devices.NewStore("", log)
	s := NewServer("256.256.256.256:99999", store, &fakeStatus{}, log)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
