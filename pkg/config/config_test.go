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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carverauto/batteryradar/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errIntervalRequired = errors.New("interval must be positive")

type testServiceConfig struct {
	Name     string            `json:"name"`
	Interval time.Duration     `json:"interval"`
	Debug    bool              `json:"debug"`
	Logging  logger.Config     `json:"logging"`
	Labels   map[string]string `json:"labels,omitempty"`

	validated bool
}

func (c *testServiceConfig) Validate() error {
	c.validated = true

	if c.Interval <= 0 {
		return errIntervalRequired
	}

	if c.Name == "" {
		c.Name = "default"
	}

	return nil
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileConfigLoader_Load(t *testing.T) {
	path := writeConfigFile(t, `{"name": "watcher", "interval": 10000000000, "debug": true}`)

	var cfg testServiceConfig

	loader := &FileConfigLoader{logger: logger.NewTestLogger()}
	require.NoError(t, loader.Load(context.Background(), path, &cfg))

	assert.Equal(t, "watcher", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.True(t, cfg.Debug)
}

func TestFileConfigLoader_MissingFile(t *testing.T) {
	var cfg testServiceConfig

	loader := &FileConfigLoader{}
	err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "gone.json"), &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestFileConfigLoader_BadJSON(t *testing.T) {
	path := writeConfigFile(t, `{"name": `)

	var cfg testServiceConfig

	loader := &FileConfigLoader{}
	err := loader.Load(context.Background(), path, &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal JSON")
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfigFile(t, `{"interval": 5000000000}`)

	var cfg testServiceConfig

	c := NewConfig(logger.NewTestLogger())
	require.NoError(t, c.LoadAndValidate(context.Background(), path, &cfg))

	assert.True(t, cfg.validated, "Validate should run after load")
	assert.Equal(t, "default", cfg.Name, "Validate should apply defaults")
}

func TestLoadAndValidate_ValidationError(t *testing.T) {
	path := writeConfigFile(t, `{"name": "watcher"}`)

	var cfg testServiceConfig

	c := NewConfig(logger.NewTestLogger())
	err := c.LoadAndValidate(context.Background(), path, &cfg)

	require.ErrorIs(t, err, errIntervalRequired)
}

func TestLoadAndValidate_InvalidSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "carrier-pigeon")

	var cfg testServiceConfig

	c := NewConfig(logger.NewTestLogger())
	err := c.LoadAndValidate(context.Background(), "ignored.json", &cfg)

	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestEnvConfigLoader_Load(t *testing.T) {
	t.Setenv("BATTERYRADAR_NAME", "from-env")
	t.Setenv("BATTERYRADAR_INTERVAL", "30s")
	t.Setenv("BATTERYRADAR_DEBUG", "true")
	t.Setenv("BATTERYRADAR_LOGGING_LEVEL", "debug")
	t.Setenv("BATTERYRADAR_LABELS", `{"site":"lab"}`)

	var cfg testServiceConfig

	loader := NewEnvConfigLoader(logger.NewTestLogger(), "BATTERYRADAR_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"site": "lab"}, cfg.Labels)
}

func TestEnvConfigLoader_EmbeddedStruct(t *testing.T) {
	t.Setenv("BATTERYRADAR_LEVEL", "debug")
	t.Setenv("BATTERYRADAR_NAME", "embedded")

	var cfg struct {
		logger.Config
		Name string `json:"name"`
	}

	loader := NewEnvConfigLoader(logger.NewTestLogger(), "BATTERYRADAR_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "debug", cfg.Level, "embedded fields take the parent prefix")
	assert.Equal(t, "embedded", cfg.Name)
}

func TestEnvConfigLoader_ConfigJSON(t *testing.T) {
	t.Setenv("BATTERYRADAR_CONFIG_JSON", `{"name": "json-env", "interval": 1000000000}`)

	var cfg testServiceConfig

	loader := NewEnvConfigLoader(logger.NewTestLogger(), "BATTERYRADAR_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "json-env", cfg.Name)
	assert.Equal(t, time.Second, cfg.Interval)
}

func TestEnvConfigLoader_InvalidDst(t *testing.T) {
	loader := NewEnvConfigLoader(logger.NewTestLogger(), "BATTERYRADAR_")

	require.ErrorIs(t, loader.Load(context.Background(), "", nil), ErrDstMustBeNonNilPointer)

	var notStruct int
	require.ErrorIs(t, loader.Load(context.Background(), "", &notStruct), ErrDstMustBePointerToStruct)
}

func TestLoadAndValidate_EnvSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("BATTERYRADAR_NAME", "env-source")
	t.Setenv("BATTERYRADAR_INTERVAL", "15s")

	var cfg testServiceConfig

	c := NewConfig(logger.NewTestLogger())
	require.NoError(t, c.LoadAndValidate(context.Background(), "unused.json", &cfg))

	assert.Equal(t, "env-source", cfg.Name)
	assert.Equal(t, 15*time.Second, cfg.Interval)
}
