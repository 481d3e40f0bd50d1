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
	"errors"
	"fmt"
)

var (
	// ErrDirectoryMissing indicates the configured log directory does not exist.
	ErrDirectoryMissing = errors.New("log directory does not exist")
	// ErrNoCandidateFile indicates the directory holds no file matching the pattern.
	ErrNoCandidateFile = errors.New("no log file matches the filename pattern")
	// ErrNoRecordFound indicates the log content holds no complete device record.
	ErrNoRecordFound = errors.New("no device record found in log content")

	errLogDirRequired      = errors.New("log_dir is required")
	errInvalidPollInterval = errors.New("poll_interval must be positive")
)

// MalformedPayloadError reports a record whose payload block was
// present and balanced but not valid JSON. The cycle that hits it is
// skipped; the store stays untouched.
type MalformedPayloadError struct {
	Timestamp string
	Err       error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed device payload in record [%s]: %v", e.Timestamp, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
