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


package main

import (
	"fmt"
	"io"
	"time"

	"github.com/poiesic/tenderscope/embedder"
	"github.com/schollz/progressbar/v3"
)

// barProgress renders embedding progress as a terminal progress bar.
type barProgress struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

var _ embedder.Progress = (*barProgress)(nil)

func newBarProgress(w io.Writer, description string) *barProgress {
	return &barProgress{w: w, description: description}
}

func (b *barProgress) Start(total int) {
	if total <= 0 {
		return
	}
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(b.w)
		}),
	)
}

func (b *barProgress) Increment(delta int) {
	if b.bar != nil {
		b.bar.Add(delta)
	}
}

func (b *barProgress) Finish() {
	if b.bar != nil {
		b.bar.Finish()
		b.bar = nil
	}
}
