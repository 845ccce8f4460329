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

import "errors"

var (
	// ErrInvalidJob is returned for a job with unusable timing or no function.
	ErrInvalidJob = errors.New("invalid job")

	// ErrDuplicateJob is returned when a job name is registered twice.
	ErrDuplicateJob = errors.New("job already registered")

	// ErrUnknownJob is returned when triggering a job that was never registered.
	ErrUnknownJob = errors.New("unknown job")

	// ErrAlreadyStarted is returned when registering after Start.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrNotRunning is returned when triggering a job on a stopped scheduler.
	ErrNotRunning = errors.New("scheduler not running")

	// ErrJobPanicked wraps a panic recovered from a job.
	ErrJobPanicked = errors.New("job panicked")
)
