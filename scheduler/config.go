// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package scheduler

import (
	"fmt"
	"time"
)

// Names of the pipeline jobs.
const (
	JobFetch = "fetch"
	JobEmbed = "embed"
	JobReap  = "reap"
)

// JobConfig controls when a job runs.
type JobConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interval is the time between runs.
	Interval time.Duration `yaml:"interval"`
	// StartDelay postpones the first run after Start; 0 runs immediately.
	StartDelay time.Duration `yaml:"start_delay"`
}

// Validate checks the job timing.
func (c JobConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be greater than 0", ErrInvalidJob)
	}
	if c.StartDelay < 0 {
		return fmt.Errorf("%w: start delay cannot be negative", ErrInvalidJob)
	}
	return nil
}

// Config holds scheduling for the pipeline jobs.
type Config struct {
	// PoolSize bounds the number of jobs executing at once.
	PoolSize int       `yaml:"pool_size"`
	Fetch    JobConfig `yaml:"fetch"`
	Embed    JobConfig `yaml:"embed"`
	Reap     JobConfig `yaml:"reap"`
}

// DefaultConfig fetches hourly starting at once, embeds three times a day
// starting two minutes in, and reaps daily starting three minutes in.
func DefaultConfig() *Config {
	return &Config{
		PoolSize: 4,
		Fetch:    JobConfig{Enabled: true, Interval: time.Hour},
		Embed:    JobConfig{Enabled: true, Interval: 8 * time.Hour, StartDelay: 2 * time.Minute},
		Reap:     JobConfig{Enabled: true, Interval: 24 * time.Hour, StartDelay: 3 * time.Minute},
	}
}

// Validate checks every enabled job.
func (c *Config) Validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("%w: pool size must be greater than 0", ErrInvalidJob)
	}
	for name, job := range map[string]JobConfig{JobFetch: c.Fetch, JobEmbed: c.Embed, JobReap: c.Reap} {
		if !job.Enabled {
			continue
		}
		if err := job.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
