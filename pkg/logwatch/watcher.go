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

// Package logwatch locates the battery producer's log file, rescans it on
// a fixed interval, and merges the newest device record into the store.
package logwatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/batteryradar/pkg/devices"
	"github.com/carverauto/batteryradar/pkg/logger"
)

// Watcher drives the poll loop. It owns the resolved log path, the poll
// ticker, and the retry timer; the device store it feeds is long-lived
// and shared.
type Watcher struct {
	config  Config
	pattern *regexp.Regexp
	store   *devices.Store
	clock   Clock
	probe   ProducerProbe
	logger  logger.Logger

	mu      sync.Mutex
	state   WatchState
	logPath string
	ticker  Ticker
	retry   Timer
	done    chan struct{}

	wg       sync.WaitGroup
	inFlight atomic.Bool
	dedup    dedupGate

	readFile   func(name string) ([]byte, error)
	locateFile func(dir string, pattern *regexp.Regexp) (string, error)
}

// New creates a watcher feeding store. A nil clock selects the real one.
// The producer probe is armed only when the config names a producer
// process.
func New(config *Config, store *devices.Store, clock Clock, log logger.Logger) (*Watcher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watch config: %w", err)
	}

	pattern, err := regexp.Compile(config.FilePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file_pattern: %w", err)
	}

	if clock == nil {
		clock = realClock{}
	}

	w := &Watcher{
		config:     *config,
		pattern:    pattern,
		store:      store,
		clock:      clock,
		logger:     log,
		state:      StateStopped,
		readFile:   os.ReadFile,
		locateFile: LocateLatest,
	}

	if config.ProducerProcess != "" {
		w.probe = NewProcessProbe(config.ProducerProcess)
	}

	return w, nil
}

// Start implements the lifecycle.Service interface. It resolves the log
// file and begins polling. A resolution failure does not fail Start: the
// watcher schedules a retry and returns nil, so a machine where the
// producer has not written its log yet keeps retrying indefinitely.
func (w *Watcher) Start(ctx context.Context) error {
	return w.start(ctx, nil)
}

// start performs one start attempt. When expectDone is non-nil the call
// came from a retry timer; the attempt is abandoned unless the watcher is
// still in the retry window that armed it, which keeps a concurrent Stop
// from being resurrected.
func (w *Watcher) start(ctx context.Context, expectDone chan struct{}) error {
	w.mu.Lock()

	if expectDone != nil && (w.state != StateRetryScheduled || w.done != expectDone) {
		w.mu.Unlock()

		return nil
	}

	w.cancelTimersLocked()
	w.state = StateStarting

	w.logger.Info().
		Str("log_dir", w.config.LogDir).
		Msg("Starting battery log watch")

	path, err := w.locateFile(w.config.LogDir, w.pattern)
	if err != nil {
		w.enterRetryLocked(ctx, err)
		w.mu.Unlock()

		w.hintProducerDown(ctx)

		return nil
	}

	w.logPath = path
	w.state = StateWatching

	interval := time.Duration(w.config.PollInterval)
	w.ticker = w.clock.Ticker(interval)

	done := make(chan struct{})
	w.done = done
	ticker := w.ticker

	w.mu.Unlock()

	w.logger.Info().
		Str("log_file", path).
		Dur("interval", interval).
		Msg("Watching battery log")

	// Surface current content immediately instead of waiting out the
	// first interval.
	w.runCycle(ctx)

	w.wg.Add(1)

	go w.watch(ctx, done, ticker)

	return nil
}

// Stop implements the lifecycle.Service interface.
func (w *Watcher) Stop(_ context.Context) error {
	w.mu.Lock()
	w.cancelTimersLocked()
	w.state = StateStopped
	w.logPath = ""
	w.mu.Unlock()

	w.wg.Wait()

	w.logger.Info().Msg("Battery log watch stopped")

	return nil
}

// cancelTimersLocked stops the poll ticker and retry timer and releases
// any goroutines waiting on them. Callers hold w.mu.
func (w *Watcher) cancelTimersLocked() {
	if w.ticker != nil {
		w.ticker.Stop()
		w.ticker = nil
	}

	if w.retry != nil {
		w.retry.Stop()
		w.retry = nil
	}

	if w.done != nil {
		close(w.done)
		w.done = nil
	}
}

// enterRetryLocked records a failed start and arms a one-shot retry with
// the poll interval. Callers hold w.mu.
func (w *Watcher) enterRetryLocked(ctx context.Context, cause error) {
	w.state = StateError
	w.logPath = ""

	w.logger.Error().
		Err(cause).
		Str("log_dir", w.config.LogDir).
		Msg("Failed to initialize battery log watch")

	interval := time.Duration(w.config.PollInterval)
	timer := w.clock.Timer(interval)
	w.retry = timer

	done := make(chan struct{})
	w.done = done

	w.state = StateRetryScheduled

	w.logger.Info().Dur("retry_in", interval).Msg("Retry scheduled")

	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-timer.Chan():
		}

		if err := w.start(ctx, done); err != nil {
			w.logger.Error().Err(err).Msg("Retry failed to start battery log watch")
		}
	}()
}

// watch is the poll loop. Each tick runs one cycle in its own goroutine
// so a slow file read cannot stall the loop.
func (w *Watcher) watch(ctx context.Context, done <-chan struct{}, ticker Ticker) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.Chan():
			w.wg.Add(1)

			go func() {
				defer w.wg.Done()

				w.runCycle(ctx)
			}()
		}
	}
}

// runCycle reads, scans, and merges once. A tick that fires while a cycle
// is still running is dropped, not queued; the poll is fixed-interval, so
// the next tick repeats the work anyway.
func (w *Watcher) runCycle(ctx context.Context) {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.logger.Debug().Msg("Skipping poll cycle, previous cycle still running")

		return
	}
	defer w.inFlight.Store(false)

	w.mu.Lock()
	state := w.state
	path := w.logPath
	w.mu.Unlock()

	if state != StateWatching || path == "" {
		return
	}

	content, err := w.readFile(path)
	if err != nil {
		w.logger.Error().Err(err).Str("log_file", path).Msg("Failed to read battery log")
		w.hintProducerDown(ctx)

		return
	}

	record, err := ScanLatestRecord(content)
	if err != nil {
		var malformed *MalformedPayloadError

		switch {
		case errors.Is(err, ErrNoRecordFound):
			w.logger.Debug().Str("log_file", path).Msg("No device record in battery log yet")
		case errors.As(err, &malformed):
			w.logger.Warn().
				Str("record_timestamp", malformed.Timestamp).
				Err(err).
				Msg("Malformed device payload, keeping previous state")
		default:
			w.logger.Error().Err(err).Str("log_file", path).Msg("Failed to scan battery log")
		}

		return
	}

	if !w.dedup.accept(record.Timestamp) {
		w.logger.Debug().Str("record_timestamp", record.Timestamp).Msg("Device record already processed")

		return
	}

	w.store.Merge(record.Timestamp, record.Devices)
}

// hintProducerDown logs when the producer process cannot be found, which
// turns a silent "log never appears" failure into a diagnosable one. The
// probe result never changes watcher behavior.
func (w *Watcher) hintProducerDown(ctx context.Context) {
	if w.probe == nil {
		return
	}

	running, err := w.probe.Running(ctx)
	if err != nil {
		w.logger.Debug().Err(err).Msg("Producer process probe failed")

		return
	}

	if !running {
		w.logger.Warn().
			Str("process", w.config.ProducerProcess).
			Msg("Producer process does not appear to be running")
	}
}

// Status is the watcher state reported over the status API.
type Status struct {
	State               WatchState `json:"state"`
	LogPath             string     `json:"log_path,omitempty"`
	LastRecordTimestamp string     `json:"last_record_timestamp,omitempty"`
	ProducerRunning     *bool      `json:"producer_running,omitempty"`
}

// Status reports the current watch state. The producer flag is populated
// only when a producer process is configured; a probe failure leaves it
// unset rather than failing the call.
func (w *Watcher) Status(ctx context.Context) Status {
	w.mu.Lock()
	st := Status{
		State:   w.state,
		LogPath: w.logPath,
	}
	w.mu.Unlock()

	st.LastRecordTimestamp = w.dedup.current()

	if w.probe != nil {
		if running, err := w.probe.Running(ctx); err == nil {
			st.ProducerRunning = &running
		}
	}

	return st
}
