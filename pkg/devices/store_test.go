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

package devices

import (
	"testing"
	"time"

	"github.com/carverauto/batteryradar/pkg/logger"
	"github.com/carverauto/batteryradar/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureConsumer struct {
	snapshots []models.Snapshot
}

func (c *captureConsumer) HandleSnapshot(snapshot models.Snapshot) {
	c.snapshots = append(c.snapshots, snapshot)
}

func powered(level float64, status string) *models.PowerStatus {
	return &models.PowerStatus{Level: level, ChargingStatus: status}
}

func TestStoreMerge_Upsert(t *testing.T) {
	consumer := &captureConsumer{}
	store := NewStore("", logger.NewTestLogger(), consumer)

	store.Merge("t1", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(50, "Charging")},
	})

	snap := store.Snapshot()
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, "A", snap.Devices[0].Handle)
	assert.Equal(t, 50, snap.Devices[0].BatteryPercentage)
	assert.True(t, snap.Devices[0].IsCharging)
	assert.True(t, snap.Devices[0].IsConnected)

	store.Merge("t2", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(60, "NoCharge_BatteryFull")},
	})

	snap = store.Snapshot()
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, 60, snap.Devices[0].BatteryPercentage)
	assert.False(t, snap.Devices[0].IsCharging, "full replace must overwrite the charging flag")
	assert.Equal(t, "t2", snap.LastRecordTimestamp)

	require.Len(t, consumer.snapshots, 2, "every merge notifies")
}

func TestStoreMerge_NeverDeletes(t *testing.T) {
	store := NewStore("", logger.NewTestLogger())

	store.Merge("t1", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(80, "Discharging")},
		{SerialNumber: "B", HasBattery: true, PowerStatus: powered(20, "Charging")},
	})

	// B disappears from the next record; its last state must survive
	store.Merge("t2", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(79, "Discharging")},
	})

	snap := store.Snapshot()
	require.Len(t, snap.Devices, 2)
	assert.Equal(t, "A", snap.Devices[0].Handle, "insertion order is preserved")
	assert.Equal(t, "B", snap.Devices[1].Handle)
	assert.Equal(t, 20, snap.Devices[1].BatteryPercentage)
}

func TestStoreMerge_FiltersBatchEntries(t *testing.T) {
	consumer := &captureConsumer{}
	store := NewStore("", logger.NewTestLogger(), consumer)

	store.Merge("t1", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(50, "Charging")},
	})

	store.Merge("t2", []models.RawDevice{
		// no battery: ignored even though the handle matches an existing record
		{SerialNumber: "A", HasBattery: false, PowerStatus: powered(1, "Discharging")},
		// no usable identifier: dropped
		{HasBattery: true, PowerStatus: powered(99, "Charging")},
		{SerialNumber: "UNKNOWN", ContainerID: "UNKNOWN", HasBattery: true},
	})

	snap := store.Snapshot()
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, 50, snap.Devices[0].BatteryPercentage, "record A must keep its previous state")
	assert.True(t, snap.Devices[0].IsCharging)

	require.Len(t, consumer.snapshots, 2, "a merge with no survivors still notifies")
	assert.Equal(t, "t2", consumer.snapshots[1].LastRecordTimestamp)
}

func TestStoreMerge_ContainerIDFallback(t *testing.T) {
	store := NewStore("", logger.NewTestLogger())

	store.Merge("t1", []models.RawDevice{
		{SerialNumber: "UNKNOWN", ContainerID: "C-9", HasBattery: true, PowerStatus: powered(42, "Discharging")},
	})

	snap := store.Snapshot()
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, "C-9", snap.Devices[0].Handle)
}

func TestStoreMerge_SelectionFlag(t *testing.T) {
	t.Run("explicit preference", func(t *testing.T) {
		store := NewStore("B", logger.NewTestLogger())

		store.Merge("t1", []models.RawDevice{
			{SerialNumber: "A", HasBattery: true},
			{SerialNumber: "B", HasBattery: true},
		})

		snap := store.Snapshot()
		require.Len(t, snap.Devices, 2)
		assert.False(t, snap.Devices[0].IsSelected)
		assert.True(t, snap.Devices[1].IsSelected)
	})

	t.Run("no preference selects everything", func(t *testing.T) {
		store := NewStore("", logger.NewTestLogger())

		store.Merge("t1", []models.RawDevice{
			{SerialNumber: "A", HasBattery: true},
			{SerialNumber: "B", HasBattery: true},
		})

		for _, record := range store.Snapshot().Devices {
			assert.True(t, record.IsSelected)
		}
	})
}

func TestStoreSubscribe_LateConsumer(t *testing.T) {
	early := &captureConsumer{}
	store := NewStore("", logger.NewTestLogger(), early)

	store.Merge("t1", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(50, "Charging")},
	})

	late := &captureConsumer{}
	store.Subscribe(late)

	store.Merge("t2", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(49, "Discharging")},
	})

	require.Len(t, early.snapshots, 2)
	require.Len(t, late.snapshots, 1, "late subscriber only sees merges after Subscribe")
	assert.Equal(t, "t2", late.snapshots[0].LastRecordTimestamp)
}

func TestStoreSnapshot_IsACopy(t *testing.T) {
	store := NewStore("", logger.NewTestLogger())

	store.Merge("t1", []models.RawDevice{
		{SerialNumber: "A", HasBattery: true, PowerStatus: powered(50, "Charging")},
	})

	snap := store.Snapshot()
	snap.Devices[0].BatteryPercentage = 1

	assert.Equal(t, 50, store.Snapshot().Devices[0].BatteryPercentage)
}

func TestStoreMerge_DisplayNameAndTimestamps(t *testing.T) {
	store := NewStore("", logger.NewTestLogger())
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	store.Merge("t1", []models.RawDevice{
		{
			SerialNumber: "A",
			HasBattery:   true,
			Name:         models.LocalizedString{"en": "Wireless Mouse"},
		},
		{
			SerialNumber: "B",
			HasBattery:   true,
		},
	})

	snap := store.Snapshot()
	require.Len(t, snap.Devices, 2)
	assert.Equal(t, "Wireless Mouse", snap.Devices[0].DisplayName)
	assert.Equal(t, models.DefaultDisplayName, snap.Devices[1].DisplayName)
	assert.Equal(t, fixed, snap.Devices[0].UpdatedAt)
	assert.Equal(t, fixed, snap.UpdatedAt)
	assert.Equal(t, 2, store.Count())
}
