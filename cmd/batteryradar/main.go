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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/batteryradar/pkg/api"
	"github.com/carverauto/batteryradar/pkg/config"
	"github.com/carverauto/batteryradar/pkg/devices"
	"github.com/carverauto/batteryradar/pkg/lifecycle"
	"github.com/carverauto/batteryradar/pkg/logger"
	"github.com/carverauto/batteryradar/pkg/logwatch"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
)

// Config is the service configuration. The watch settings sit at the
// top level of the JSON file alongside the service-wide ones.
type Config struct {
	logwatch.Config
	ListenAddr string         `json:"listen_addr,omitempty"`
	Logging    *logger.Config `json:"logging,omitempty"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	// Parse command line flags
	configPath := flag.String("config", "/etc/batteryradar/batteryradar.json", "Path to batteryradar config file")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	cfgLoader := config.NewConfig(nil)

	var cfg Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		// Use default config if not specified
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	radarLogger, err := lifecycle.CreateComponentLogger(ctx, "batteryradar", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Step 3: Wire the store, the watcher, and (optionally) the API
	// server together. The watcher drives merges; the API server
	// consumes them.
	store := devices.NewStore(cfg.SelectedDevice, radarLogger)

	watcher, err := logwatch.New(&cfg.Config, store, nil, radarLogger) // nil clock defaults to the realtime clock
	if err != nil {
		return err
	}

	services := []lifecycle.Service{watcher}

	if cfg.ListenAddr != "" {
		apiServer := api.NewServer(cfg.ListenAddr, store, watcher, radarLogger)
		store.Subscribe(apiServer)
		services = append(services, apiServer)
	}

	return lifecycle.Run(ctx, &lifecycle.RunOptions{
		ServiceName: "batteryradar",
		Services:    services,
		Logger:      radarLogger,
	})
}
