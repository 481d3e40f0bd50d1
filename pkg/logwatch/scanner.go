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

package logwatch

import (
	"encoding/json"
	"regexp"

	"github.com/carverauto/batteryradar/pkg/models"
)

// Record is one device-update record parsed out of the log.
type Record struct {
	Timestamp string
	Devices   []models.RawDevice
}

// markerPattern matches the start of a device-update record: a bracketed
// timestamp at the beginning of a line followed, on the same line, by one
// of the producer's update keywords.
var markerPattern = regexp.MustCompile(
	`(?m)^\[([^\]\r\n]+)\][^\r\n]*?(?:updateDeviceInfos|deviceListUpdated|batteryInfoChanged)`)

// ScanLatestRecord scans the full log content and returns the last record
// whose payload can be extracted. The producer appends records over time,
// so the last marker carries the current device state; an unfinished write
// at the tail falls back to the record before it.
func ScanLatestRecord(content []byte) (*Record, error) {
	matches := markerPattern.FindAllSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil, ErrNoRecordFound
	}

	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]

		// The payload lives between this marker and the next one, so a
		// run of unbalanced brackets cannot swallow a later record.
		regionEnd := len(content)
		if i+1 < len(matches) {
			regionEnd = matches[i+1][0]
		}

		block, ok := extractJSONBlock(content[m[1]:regionEnd])
		if !ok {
			continue
		}

		timestamp := string(content[m[2]:m[3]])

		devices, err := decodeDevicePayload(block)
		if err != nil {
			return nil, &MalformedPayloadError{Timestamp: timestamp, Err: err}
		}

		return &Record{Timestamp: timestamp, Devices: devices}, nil
	}

	return nil, ErrNoRecordFound
}

// extractJSONBlock returns the first balanced JSON array or object in the
// region. Bracket depth is tracked outside string literals, so payload
// values containing brackets do not end the block early. A block that
// never closes, typically a record the producer is still writing, reports
// ok=false.
func extractJSONBlock(region []byte) (block []byte, ok bool) {
	start := -1

	var opener byte

	for i := 0; i < len(region); i++ {
		if region[i] == '[' || region[i] == '{' {
			start = i
			opener = region[i]

			break
		}
	}

	if start < 0 {
		return nil, false
	}

	closer := byte(']')
	if opener == '{' {
		closer = '}'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(region); i++ {
		c := region[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return region[start : i+1], true
			}
		}
	}

	return nil, false
}

// decodeDevicePayload decodes a balanced JSON block into device entries.
// The producer writes either a bare device array or an object wrapping
// one under "devices". Any other valid JSON shape yields an empty batch;
// invalid JSON is an error so the caller can report the record.
func decodeDevicePayload(block []byte) ([]models.RawDevice, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(block, &raw); err != nil {
		return nil, err
	}

	var devices []models.RawDevice
	if err := json.Unmarshal(raw, &devices); err == nil {
		return devices, nil
	}

	var wrapper struct {
		Devices []models.RawDevice `json:"devices"`
	}

	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Devices != nil {
		return wrapper.Devices, nil
	}

	return nil, nil
}
