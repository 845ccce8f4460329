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


package embedder

import (
	"fmt"
	"time"
)

// Config holds configuration for batch embedding.
type Config struct {
	// BatchSize is the number of records embedded per provider call
	BatchSize int `yaml:"batch_size"`

	// MaxBatches bounds the groups processed per run; 0 means until exhausted
	MaxBatches int `yaml:"max_batches"`

	// Delay is the pause between groups
	Delay time.Duration `yaml:"delay"`

	// MaxRetries is the maximum number of attempts per provider call
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  50,
		MaxBatches: 2,
		Delay:      2 * time.Second,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be greater than 0", ErrInvalidConfig)
	case c.MaxBatches < 0:
		return fmt.Errorf("%w: max batches cannot be negative", ErrInvalidConfig)
	case c.Delay < 0:
		return fmt.Errorf("%w: delay cannot be negative", ErrInvalidConfig)
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: max retries must be greater than 0", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	}
	return nil
}
