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
	"fmt"
	"regexp"
	"time"

	"github.com/carverauto/batteryradar/pkg/models"
)

const (
	// DefaultFilePattern matches the producer's rotated log family:
	// systray_systrayv2.log, systray_systrayv201.log, and so on.
	DefaultFilePattern = `(?i)^systray_systrayv2\d*\.log$`

	defaultPollInterval = 10 * time.Second
)

// Config represents the log watcher configuration.
type Config struct {
	LogDir          string          `json:"log_dir"`
	FilePattern     string          `json:"file_pattern,omitempty"`
	PollInterval    models.Duration `json:"poll_interval,omitempty"`
	SelectedDevice  string          `json:"selected_device,omitempty"`
	ProducerProcess string          `json:"producer_process,omitempty"`
}

// Validate implements config.Validator interface.
func (c *Config) Validate() error {
	if c.LogDir == "" {
		return errLogDirRequired
	}

	if c.FilePattern == "" {
		c.FilePattern = DefaultFilePattern
	}

	if _, err := regexp.Compile(c.FilePattern); err != nil {
		return fmt.Errorf("invalid file_pattern: %w", err)
	}

	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollInterval) < 0 {
		return errInvalidPollInterval
	}

	return nil
}
