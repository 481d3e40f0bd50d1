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
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// LocateLatest finds the most recently modified file in dir whose name
// matches pattern. The producer rotates through a numbered family of log
// files, so the newest mtime identifies the one currently being written.
// Ties on mtime resolve to the lexically greater name, which in the
// rotated family is the higher sequence number.
func LocateLatest(dir string, pattern *regexp.Regexp) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDirectoryMissing, dir)
		}

		return "", fmt.Errorf("failed to read log directory %s: %w", dir, err)
	}

	var (
		bestName string
		bestTime time.Time
		found    bool
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !pattern.MatchString(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// The file vanished between listing and stat; the next
			// poll will see the directory's new shape.
			continue
		}

		modTime := info.ModTime()

		if !found || modTime.After(bestTime) || (modTime.Equal(bestTime) && name > bestName) {
			bestName = name
			bestTime = modTime
			found = true
		}
	}

	if !found {
		return "", fmt.Errorf("%w in %s", ErrNoCandidateFile, dir)
	}

	return filepath.Join(dir, bestName), nil
}
