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

// Package lifecycle wires service startup, shutdown, and logging.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/batteryradar/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is the lifecycle contract every long-running component
// implements. Start must not block; Stop must be safe to call after a
// failed or partial Start.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RunOptions configures Run.
type RunOptions struct {
	ServiceName     string
	Services        []Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
}

// Run starts every service in order, then blocks until the context is
// canceled or the process receives SIGINT/SIGTERM, and finally stops
// the services in reverse order with a bounded shutdown window.
func Run(ctx context.Context, opts *RunOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	started := make([]Service, 0, len(opts.Services))

	for _, svc := range opts.Services {
		if err := svc.Start(ctx); err != nil {
			stopServices(log, started, opts.shutdownTimeout())

			return fmt.Errorf("failed to start service: %w", err)
		}

		started = append(started, svc)
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service started")

	<-ctx.Done()

	log.Info().Str("service", opts.ServiceName).Msg("Shutdown signal received")

	stopServices(log, started, opts.shutdownTimeout())

	if err := ShutdownLogger(); err != nil {
		log.Error().Err(err).Msg("Error flushing logs during shutdown")
	}

	return nil
}

func (o *RunOptions) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout > 0 {
		return o.ShutdownTimeout
	}

	return defaultShutdownTimeout
}

// stopServices stops services in reverse start order.
func stopServices(log logger.Logger, services []Service, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			log.Error().Err(err).Msg("Error stopping service")
		}
	}
}
