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
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessProbe implements ProducerProbe by scanning the process table for
// a process with the configured name.
type ProcessProbe struct {
	name string
	list func(ctx context.Context) ([]*process.Process, error)
}

// NewProcessProbe returns a probe that looks for name, compared
// case-insensitively against each process name.
func NewProcessProbe(name string) *ProcessProbe {
	return &ProcessProbe{
		name: name,
		list: process.ProcessesWithContext,
	}
}

// Running implements ProducerProbe.
func (p *ProcessProbe) Running(ctx context.Context) (bool, error) {
	procs, err := p.list(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list processes: %w", err)
	}

	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			// Processes exit while we walk the table.
			continue
		}

		if strings.EqualFold(name, p.name) {
			return true, nil
		}
	}

	return false, nil
}
