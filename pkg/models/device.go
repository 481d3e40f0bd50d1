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

// Package models defines the shared data types for batteryradar.
package models

import (
	"math"
	"time"
)

const (
	// unknownIdentifier is the sentinel some producer builds emit in place
	// of a missing serial or container id. It is treated as absent.
	unknownIdentifier = "UNKNOWN"

	// ChargingStatusCharging is the only power status value that means the
	// battery is actively charging. Everything else ("Discharging",
	// "NoCharge_BatteryFull", ...) maps to not charging.
	ChargingStatusCharging = "Charging"

	// DefaultDisplayName is used when a device reports no usable name.
	DefaultDisplayName = "Unknown Device"

	englishLanguageCode = "en"

	maxBatteryPercent = 100
)

// LocalizedString is a producer-side localized text object keyed by
// language code.
type LocalizedString map[string]string

// English returns the "en" entry, or "" when the object has none.
func (l LocalizedString) English() string {
	return l[englishLanguageCode]
}

// PowerStatus is the battery section of a raw device payload.
type PowerStatus struct {
	Level          float64 `json:"level"`
	ChargingStatus string  `json:"chargingStatus"`
}

// RawDevice is one device object exactly as the producing application
// writes it into its log payloads. Every field is optional in the
// source JSON; field names follow the producer's camelCase convention.
type RawDevice struct {
	SerialNumber string          `json:"serialNumber,omitempty"`
	ContainerID  string          `json:"containerId,omitempty"`
	HasBattery   bool            `json:"hasBattery,omitempty"`
	PowerStatus  *PowerStatus    `json:"powerStatus,omitempty"`
	Name         LocalizedString `json:"name,omitempty"`
	ProductName  LocalizedString `json:"productName,omitempty"`
}

// Handle derives the stable identifier for this device: the serial
// number when present, the container id as fallback. The legacy
// "UNKNOWN" sentinel and the empty string both count as absent; callers
// must drop records whose handle is absent.
func (d *RawDevice) Handle() (string, bool) {
	if usableIdentifier(d.SerialNumber) {
		return d.SerialNumber, true
	}

	if usableIdentifier(d.ContainerID) {
		return d.ContainerID, true
	}

	return "", false
}

func usableIdentifier(id string) bool {
	return id != "" && id != unknownIdentifier
}

// DisplayName resolves the human-readable name: localized name first,
// then localized product name, then DefaultDisplayName.
func (d *RawDevice) DisplayName() string {
	if name := d.Name.English(); name != "" {
		return name
	}

	if name := d.ProductName.English(); name != "" {
		return name
	}

	return DefaultDisplayName
}

// BatteryPercent returns the battery level clamped to [0,100], or 0
// when the payload carries no power status.
func (d *RawDevice) BatteryPercent() int {
	if d.PowerStatus == nil {
		return 0
	}

	level := int(math.Round(d.PowerStatus.Level))
	if level < 0 {
		return 0
	}

	if level > maxBatteryPercent {
		return maxBatteryPercent
	}

	return level
}

// Charging reports whether the payload marks the battery as actively
// charging.
func (d *RawDevice) Charging() bool {
	return d.PowerStatus != nil && d.PowerStatus.ChargingStatus == ChargingStatusCharging
}

// DeviceRecord is one merged entry of the device state map.
type DeviceRecord struct {
	Handle            string    `json:"handle"`
	DisplayName       string    `json:"display_name"`
	IsConnected       bool      `json:"is_connected"`
	BatteryPercentage int       `json:"battery_percentage"`
	IsCharging        bool      `json:"is_charging"`
	IsSelected        bool      `json:"is_selected"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Snapshot is the read-only view pushed to consumers after every merge
// cycle. Devices are ordered by first appearance in the store.
type Snapshot struct {
	Devices             []DeviceRecord `json:"devices"`
	LastRecordTimestamp string         `json:"last_record_timestamp,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at"`
}
