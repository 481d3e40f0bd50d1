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

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	outputStdout = "stdout"
	outputStderr = "stderr"
	outputFile   = "file"
)

// Config controls logger construction for a service process.
type Config struct {
	Level      string             `json:"level" yaml:"level"`
	Debug      bool               `json:"debug" yaml:"debug"`
	Output     string             `json:"output" yaml:"output"`
	TimeFormat string             `json:"time_format" yaml:"time_format"`
	File       FileRotationConfig `json:"file,omitempty" yaml:"file,omitempty"`
	OTel       OTelConfig         `json:"otel,omitempty" yaml:"otel,omitempty"`
}

// FileRotationConfig configures the rotating log file used when
// Output is "file".
type FileRotationConfig struct {
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// Duration is a time.Duration that accepts either a duration string or
// a float64 nanosecond count in JSON.
type Duration time.Duration

var errInvalidDuration = fmt.Errorf("invalid duration")

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// NewWriter resolves the configured output destination. "file" routes
// through lumberjack so the service's own log rotates instead of
// growing unbounded.
func NewWriter(config *Config) io.Writer {
	switch config.Output {
	case outputStderr:
		return os.Stderr
	case outputFile:
		if config.File.Path == "" {
			return os.Stdout
		}

		return &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSizeMB,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAgeDays,
			Compress:   config.File.Compress,
		}
	case outputStdout:
		return os.Stdout
	default:
		return os.Stdout
	}
}

// Shutdown flushes any buffered log export pipelines. Call it once on
// process exit.
func Shutdown() error {
	return ShutdownOTEL()
}
