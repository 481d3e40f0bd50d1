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

//go:generate mockgen -destination=mock_watch.go -package=logwatch github.com/carverauto/batteryradar/pkg/logwatch Clock,Ticker,Timer,ProducerProbe

import (
	"context"
	"time"
)

// Clock abstracts time operations so the watcher can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
	Timer(d time.Duration) Timer
}

// Ticker abstracts time.Ticker.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Timer abstracts time.Timer for one-shot retry scheduling.
type Timer interface {
	Chan() <-chan time.Time
	Stop()
}

// ProducerProbe reports whether the process that writes the watched log
// is currently running. The result is diagnostic only; the watcher never
// changes behavior based on it.
type ProducerProbe interface {
	Running(ctx context.Context) (bool, error)
}
